package ai

import (
	"fmt"
	"strings"

	"github.com/customeros/dmarcwatch/internal/dmarc"
	"github.com/customeros/dmarcwatch/internal/enum"
)

// FallbackNarrative builds a deterministic summary when the language
// model is unreachable. It follows the same section layout as the model
// output so downstream keyword and recommendation scans keep working.
func FallbackNarrative(feedback *dmarc.Feedback) string {
	total := feedback.TotalMessages()
	passed := 0
	var failing []dmarc.SourceRecord
	for _, rec := range feedback.Records {
		if rec.DKIM == enum.AuthResultPass && rec.SPF == enum.AuthResultPass {
			passed += rec.Count
		} else {
			failing = append(failing, rec)
		}
	}
	rate := 100.0
	if total > 0 {
		rate = float64(passed) / float64(total) * 100.0
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Overall Status: %d messages reported for %s by %s, %.1f%% fully authenticated.\n\n",
		total, feedback.Domain, feedback.OrgName, rate)

	fmt.Fprintf(&b, "Authentication Results: policy is %s (subdomains %s) applied to %d%% of traffic.\n\n",
		feedback.Policy.Mode, feedback.Policy.SubdomainMode, feedback.Policy.Pct)

	if len(failing) == 0 {
		b.WriteString("Issues Found: none detected, all sources passing DKIM and SPF.\n")
		return b.String()
	}

	b.WriteString("Issues Found:\n")
	for _, rec := range failing {
		fmt.Fprintf(&b, "- %s: %d messages, DKIM %s, SPF %s, disposition %s\n",
			rec.SourceIP, rec.Count, rec.DKIM, rec.SPF, rec.Disposition)
	}
	b.WriteString("\nRecommendations:\n")
	b.WriteString("- Verify the failing sources above are authorized senders for this domain\n")
	b.WriteString("- Update the SPF record or DKIM signing if an authorized sender is failing\n")
	return b.String()
}
