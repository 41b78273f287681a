package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/utils"
)

// Report is one ingested DMARC aggregate report. The five-column identity
// (domain, org, external report id, period begin/end) is unique so that
// re-delivery of the same report resolves to the existing row.
type Report struct {
	ID               string          `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	Domain           string          `gorm:"column:domain;type:varchar(255);not null;uniqueIndex:idx_reports_identity;index:idx_reports_domain_date" json:"domain"`
	OrgName          string          `gorm:"column:org_name;type:varchar(255);not null;uniqueIndex:idx_reports_identity" json:"orgName"`
	ExternalReportID string          `gorm:"column:report_id;type:varchar(255);not null;uniqueIndex:idx_reports_identity" json:"reportId"`
	DateBegin        int64           `gorm:"column:date_begin;not null;uniqueIndex:idx_reports_identity;index:idx_reports_domain_date" json:"dateBegin"`
	DateEnd          int64           `gorm:"column:date_end;not null;uniqueIndex:idx_reports_identity" json:"dateEnd"`
	ProcessedAt      time.Time       `gorm:"column:processed_at;index" json:"processedAt"`
	PolicyMode       enum.PolicyMode `gorm:"column:policy_p;type:varchar(20)" json:"policyMode"`
	SubdomainMode    enum.PolicyMode `gorm:"column:policy_sp;type:varchar(20)" json:"subdomainMode"`
	PolicyPct        int             `gorm:"column:policy_pct" json:"policyPct"`
	AlignmentDKIM    string          `gorm:"column:alignment_dkim;type:varchar(10)" json:"alignmentDkim"`
	AlignmentSPF     string          `gorm:"column:alignment_spf;type:varchar(10)" json:"alignmentSpf"`
	TotalMessages    int             `gorm:"column:total_messages;default:0" json:"totalMessages"`
	TotalSources     int             `gorm:"column:total_sources;default:0" json:"totalSources"`

	Records []Record `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE" json:"records,omitempty"`
}

func (Report) TableName() string {
	return "reports"
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = utils.GenerateNanoIDWithPrefix("rpt", 21)
	}
	if r.ProcessedAt.IsZero() {
		r.ProcessedAt = utils.Now()
	}
	return nil
}

// ComputeTotals refreshes the derived message volume and distinct source
// count from the attached records.
func (r *Report) ComputeTotals() {
	total := 0
	sources := make(map[string]struct{}, len(r.Records))
	for _, rec := range r.Records {
		total += rec.Count
		sources[rec.SourceIP] = struct{}{}
	}
	r.TotalMessages = total
	r.TotalSources = len(sources)
}

// AuthSuccessRate is the percentage of message volume that passed both
// DKIM and SPF. An empty report counts as fully authenticated.
func (r *Report) AuthSuccessRate() float64 {
	total := 0
	passed := 0
	for _, rec := range r.Records {
		total += rec.Count
		if rec.DKIMResult == enum.AuthResultPass && rec.SPFResult == enum.AuthResultPass {
			passed += rec.Count
		}
	}
	if total == 0 {
		return 100.0
	}
	return float64(passed) / float64(total) * 100.0
}

func (r *Report) PeriodBegin() time.Time {
	return time.Unix(r.DateBegin, 0).UTC()
}

func (r *Report) PeriodEnd() time.Time {
	return time.Unix(r.DateEnd, 0).UTC()
}
