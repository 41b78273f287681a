package dmarc

import (
	"encoding/xml"
	"strconv"

	"github.com/pkg/errors"

	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/models"
)

// Feedback is one parsed aggregate report (the <feedback> document).
type Feedback struct {
	OrgName   string
	Email     string
	ReportID  string
	DateBegin int64
	DateEnd   int64
	Domain    string
	Policy    PublishedPolicy
	Records   []SourceRecord
}

type PublishedPolicy struct {
	Mode          enum.PolicyMode
	SubdomainMode enum.PolicyMode
	Pct           int
	AlignmentDKIM string
	AlignmentSPF  string
}

type SourceRecord struct {
	SourceIP    string
	Count       int
	Disposition enum.Disposition
	DKIM        enum.AuthResult
	SPF         enum.AuthResult
}

// xmlFeedback mirrors the aggregate report schema (RFC 7489 appendix C).
type xmlFeedback struct {
	XMLName  xml.Name `xml:"feedback"`
	Metadata struct {
		OrgName   string `xml:"org_name"`
		Email     string `xml:"email"`
		ReportID  string `xml:"report_id"`
		DateRange struct {
			Begin string `xml:"begin"`
			End   string `xml:"end"`
		} `xml:"date_range"`
	} `xml:"report_metadata"`
	PolicyPublished struct {
		Domain string `xml:"domain"`
		ADKIM  string `xml:"adkim"`
		ASPF   string `xml:"aspf"`
		P      string `xml:"p"`
		SP     string `xml:"sp"`
		Pct    string `xml:"pct"`
	} `xml:"policy_published"`
	Records []struct {
		Row struct {
			SourceIP        string `xml:"source_ip"`
			Count           string `xml:"count"`
			PolicyEvaluated struct {
				Disposition string `xml:"disposition"`
				DKIM        string `xml:"dkim"`
				SPF         string `xml:"spf"`
			} `xml:"policy_evaluated"`
		} `xml:"row"`
	} `xml:"record"`
}

// Parse decodes an aggregate report XML document. Missing fields fall
// back to neutral defaults rather than failing the document, so a report
// either parses completely or not at all.
func Parse(data []byte) (*Feedback, error) {
	var doc xmlFeedback
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse aggregate report xml")
	}

	fb := &Feedback{
		OrgName:   stringOr(doc.Metadata.OrgName, "Unknown"),
		Email:     stringOr(doc.Metadata.Email, "Unknown"),
		ReportID:  stringOr(doc.Metadata.ReportID, "Unknown"),
		DateBegin: intOr(doc.Metadata.DateRange.Begin, 0),
		DateEnd:   intOr(doc.Metadata.DateRange.End, 0),
		Domain:    stringOr(doc.PolicyPublished.Domain, "Unknown"),
		Policy: PublishedPolicy{
			Mode:          enum.DecodePolicyMode(doc.PolicyPublished.P),
			SubdomainMode: enum.DecodePolicyMode(doc.PolicyPublished.SP),
			Pct:           int(intOr(doc.PolicyPublished.Pct, 100)),
			AlignmentDKIM: stringOr(doc.PolicyPublished.ADKIM, "r"),
			AlignmentSPF:  stringOr(doc.PolicyPublished.ASPF, "r"),
		},
	}

	for _, rec := range doc.Records {
		fb.Records = append(fb.Records, SourceRecord{
			SourceIP:    stringOr(rec.Row.SourceIP, "Unknown"),
			Count:       int(intOr(rec.Row.Count, 0)),
			Disposition: enum.DecodeDisposition(rec.Row.PolicyEvaluated.Disposition),
			DKIM:        enum.DecodeAuthResult(rec.Row.PolicyEvaluated.DKIM),
			SPF:         enum.DecodeAuthResult(rec.Row.PolicyEvaluated.SPF),
		})
	}

	return fb, nil
}

// ToReport converts the parsed feedback into the persisted report shape
// with derived totals populated.
func (f *Feedback) ToReport() *models.Report {
	report := &models.Report{
		Domain:           f.Domain,
		OrgName:          f.OrgName,
		ExternalReportID: f.ReportID,
		DateBegin:        f.DateBegin,
		DateEnd:          f.DateEnd,
		PolicyMode:       f.Policy.Mode,
		SubdomainMode:    f.Policy.SubdomainMode,
		PolicyPct:        f.Policy.Pct,
		AlignmentDKIM:    f.Policy.AlignmentDKIM,
		AlignmentSPF:     f.Policy.AlignmentSPF,
	}

	for _, rec := range f.Records {
		report.Records = append(report.Records, models.Record{
			SourceIP:    rec.SourceIP,
			Count:       rec.Count,
			Disposition: rec.Disposition,
			DKIMResult:  rec.DKIM,
			SPFResult:   rec.SPF,
		})
	}

	report.ComputeTotals()
	return report
}

// TotalMessages sums record counts across all sources.
func (f *Feedback) TotalMessages() int {
	total := 0
	for _, rec := range f.Records {
		total += rec.Count
	}
	return total
}

func stringOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func intOr(s string, fallback int64) int64 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
