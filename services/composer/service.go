package composer

import (
	"context"
	"fmt"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/dmarcwatch/config"
	"github.com/customeros/dmarcwatch/dto"
	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/models"
	"github.com/customeros/dmarcwatch/internal/narrative"
	"github.com/customeros/dmarcwatch/internal/tracing"
	"github.com/customeros/dmarcwatch/internal/utils"
)

const (
	separator        = "============================================================"
	thinSeparator    = "--------------------------------------------------"
	summaryWindow    = 24
	recentIssueHours = 72
)

type reportComposer struct {
	notifications *config.NotificationConfig
	reportRepo    interfaces.ReportRepository
	reputation    interfaces.IPReputationService
}

func NewReportComposer(
	notifications *config.NotificationConfig,
	reportRepository interfaces.ReportRepository,
	reputation interfaces.IPReputationService,
) interfaces.ReportComposer {
	return &reportComposer{
		notifications: notifications,
		reportRepo:    reportRepository,
		reputation:    reputation,
	}
}

func (c *reportComposer) Compose(ctx context.Context, issues, clean []dto.AnalyzedReport) (*dto.ReportPayload, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reportComposer.Compose")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	switch {
	case len(issues) > 0:
		return c.composeIssues(ctx, issues, clean)
	case len(clean) > 0:
		return c.composeClean(ctx, clean)
	default:
		return c.composeNoReports(ctx)
	}
}

func (c *reportComposer) ShouldDispatch(payload *dto.ReportPayload) bool {
	if payload == nil {
		return false
	}
	if payload.HasIssues {
		return true
	}
	if payload.NoReports {
		return !c.notifications.QuietMode
	}
	return c.notifications.SendCleanStatus
}

func (c *reportComposer) composeIssues(ctx context.Context, issues, clean []dto.AnalyzedReport) (*dto.ReportPayload, error) {
	timestamp := utils.Now().Format("2006-01-02 15:04:05")
	stats, err := c.reportRepo.SummaryStats(ctx, summaryWindow)
	if err != nil {
		return nil, errors.Wrap(err, "summary stats")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🚨 DMARC ISSUES DETECTED - %s\n%s\n\n", timestamp, separator)
	b.WriteString("EXECUTIVE SUMMARY\n")
	fmt.Fprintf(&b, "• Total Reports Analyzed: %d\n", len(issues)+len(clean))
	fmt.Fprintf(&b, "• Reports with Issues: %d\n", len(issues))
	fmt.Fprintf(&b, "• Clean Reports: %d\n", len(clean))
	fmt.Fprintf(&b, "• Total Email Messages: %d\n", stats.TotalMessages)
	fmt.Fprintf(&b, "• Average Authentication Rate: %.1f%%\n\n", stats.AvgAuthRate)
	fmt.Fprintf(&b, "DOMAINS REQUIRING ATTENTION\n%s\n", separator)

	for i, analyzed := range issues {
		if err := c.writeDomainBlock(ctx, &b, i+1, analyzed); err != nil {
			return nil, err
		}
	}

	if len(clean) > 0 {
		fmt.Fprintf(&b, "\n✅ CLEAN DOMAINS (%d domains)\n%s\n", len(clean), separator)
		b.WriteString("The following domains showed no significant issues:\n")
		for _, analyzed := range clean {
			fmt.Fprintf(&b, "• %s: %d messages processed successfully\n",
				analyzed.Report.Domain, analyzed.Report.TotalMessages)
		}
	}

	fmt.Fprintf(&b, "\n%s\n📧 Report generated by DMARC Monitor at %s\n", separator, timestamp)

	return &dto.ReportPayload{
		Subject: fmt.Sprintf("%s ⚠️ Issues Detected - %d domains need attention",
			c.notifications.SubjectPrefix, len(issues)),
		Body:       b.String(),
		HasIssues:  true,
		IssueCount: len(issues),
		CleanCount: len(clean),
	}, nil
}

func (c *reportComposer) writeDomainBlock(ctx context.Context, b *strings.Builder, position int, analyzed dto.AnalyzedReport) error {
	report := analyzed.Report
	rate := report.AuthSuccessRate()
	passed := int(float64(report.TotalMessages) * rate / 100.0)

	comparison, err := c.reportRepo.CompareWithHistorical(ctx, report.Domain, rate)
	if err != nil {
		return errors.Wrap(err, "historical comparison")
	}

	fmt.Fprintf(b, "\n%d. %s (reported by %s)\n%s\n", position, report.Domain, report.OrgName, thinSeparator)
	fmt.Fprintf(b, "📊 Authentication Rate: %.1f%% (%d/%d messages)\n", rate, passed, report.TotalMessages)
	fmt.Fprintf(b, "📈 Historical Trend: %s (%+.1f%% vs 30-day avg)\n", titleCase(string(comparison.Trend)), comparison.Change)
	fmt.Fprintf(b, "⏰ Report Period: %s to %s\n",
		report.PeriodBegin().Format("2006-01-02"), report.PeriodEnd().Format("2006-01-02"))

	failures, err := c.reportRepo.FailureDetails(ctx, report.Domain, analyzed.ReportID)
	if err != nil {
		return errors.Wrap(err, "failure details")
	}
	if len(failures) > 0 {
		b.WriteString("\n🔎 FAILING SOURCES:\n")
		for _, record := range failures {
			rep := c.reputation.Classify(record.SourceIP)
			marker := ""
			if rep.IsSuspicious {
				marker = " ⚠️ suspicious"
			}
			fmt.Fprintf(b, "• %s (%s)%s: %d messages, DKIM %s, SPF %s\n",
				record.SourceIP, rep.Organization, marker, record.Count, record.DKIMResult, record.SPFResult)
		}
		for _, action := range remediationActions(failures) {
			fmt.Fprintf(b, "→ %s\n", action)
		}
	}

	narrativeSource := analyzed.Narrative
	fmt.Fprintf(b, "\n🔍 ANALYSIS & RECOMMENDATIONS:\n%s\n", narrative.ExtractRecommendations(narrativeSource))
	return nil
}

// remediationActions groups fixes by failure type instead of repeating
// them per IP. Failing sources that all sit in one /16 get a single
// range investigation instead of per-address noise.
func remediationActions(failures []models.Record) []string {
	var actions []string
	spfFailed := false
	dkimFailed := false
	for _, record := range failures {
		if record.SPFResult != enum.AuthResultPass {
			spfFailed = true
		}
		if record.DKIMResult != enum.AuthResultPass {
			dkimFailed = true
		}
	}
	if spfFailed {
		actions = append(actions, "Review the SPF record and add any missing authorized sender includes")
	}
	if dkimFailed {
		actions = append(actions, "Verify DKIM signing is enabled for all authorized sending services")
	}
	if prefix, ok := sharedRange(failures); ok {
		actions = append(actions, fmt.Sprintf("Investigate the %sx.x range, all failing sources originate from it", prefix))
	}
	return actions
}

func sharedRange(failures []models.Record) (string, bool) {
	if len(failures) < 2 {
		return "", false
	}
	shared := rangePrefix(failures[0].SourceIP)
	if shared == "" {
		return "", false
	}
	for _, record := range failures[1:] {
		if rangePrefix(record.SourceIP) != shared {
			return "", false
		}
	}
	return shared, true
}

// rangePrefix returns the first two octets of an IPv4 address, dot
// terminated, or the empty string for anything else.
func rangePrefix(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return ""
	}
	return parts[0] + "." + parts[1] + "."
}

func (c *reportComposer) composeClean(ctx context.Context, clean []dto.AnalyzedReport) (*dto.ReportPayload, error) {
	timestamp := utils.Now().Format("2006-01-02 15:04:05")
	stats, err := c.reportRepo.SummaryStats(ctx, summaryWindow)
	if err != nil {
		return nil, errors.Wrap(err, "summary stats")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ ALL SYSTEMS HEALTHY - %s\n%s\n\n", timestamp, separator)
	b.WriteString("EXECUTIVE SUMMARY\n")
	fmt.Fprintf(&b, "• Total Reports Analyzed: %d\n", len(clean))
	b.WriteString("• All domains performing well\n")
	fmt.Fprintf(&b, "• Total Email Messages: %d\n", stats.TotalMessages)
	fmt.Fprintf(&b, "• Average Authentication Rate: %.1f%%\n\n", stats.AvgAuthRate)
	fmt.Fprintf(&b, "DOMAIN STATUS\n%s\n", separator)

	for _, analyzed := range clean {
		report := analyzed.Report
		rate := report.AuthSuccessRate()
		comparison, err := c.reportRepo.CompareWithHistorical(ctx, report.Domain, rate)
		if err != nil {
			return nil, errors.Wrap(err, "historical comparison")
		}
		trendEmoji := "📊"
		switch comparison.Trend {
		case enum.TrendImproved:
			trendEmoji = "📈"
		case enum.TrendDeclined:
			trendEmoji = "📉"
		}

		fmt.Fprintf(&b, "\n✅ %s (reported by %s)\n", report.Domain, report.OrgName)
		fmt.Fprintf(&b, "   📊 Authentication Rate: %.1f%% (%d messages)\n", rate, report.TotalMessages)
		fmt.Fprintf(&b, "   %s Trend: %s (%+.1f%% vs 30-day avg)\n", trendEmoji, titleCase(string(comparison.Trend)), comparison.Change)

		lastFailure, err := c.reportRepo.LastFailureDate(ctx, report.Domain)
		if err != nil {
			return nil, errors.Wrap(err, "last failure date")
		}
		if lastFailure != nil {
			fmt.Fprintf(&b, "   ⏰ Last failure seen: %s\n", lastFailure.Format("2006-01-02"))
		} else {
			b.WriteString("   🛡️ No failures on record for this domain\n")
		}
	}

	fmt.Fprintf(&b, "\n%s\n🛡️ All DMARC policies are working effectively\n📧 Report generated by DMARC Monitor at %s\n", separator, timestamp)

	return &dto.ReportPayload{
		Subject:    fmt.Sprintf("%s ✅ All Clear - No Issues Detected", c.notifications.SubjectPrefix),
		Body:       b.String(),
		CleanCount: len(clean),
	}, nil
}

func (c *reportComposer) composeNoReports(ctx context.Context) (*dto.ReportPayload, error) {
	timestamp := utils.Now().Format("2006-01-02 15:04:05")

	recentIssues, err := c.reportRepo.RecentIssueCount(ctx, recentIssueHours)
	if err != nil {
		return nil, errors.Wrap(err, "recent issue count")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📭 NO NEW REPORTS - %s\n%s\n\n", timestamp, separator)
	b.WriteString("STATUS\n")
	b.WriteString("• No new DMARC reports found since last check\n")
	b.WriteString("• System is monitoring normally\n\n")
	fmt.Fprintf(&b, "RECENT ACTIVITY\n%s\n", separator)
	if recentIssues > 0 {
		fmt.Fprintf(&b, "Recent issues (last 3 days): %d reports had issues\n", recentIssues)
	} else {
		b.WriteString("No issues detected in the last 3 days\n")
	}
	fmt.Fprintf(&b, "\n%s\n📧 Report generated at %s\n", separator, timestamp)

	return &dto.ReportPayload{
		Subject:   fmt.Sprintf("%s 📭 No New DMARC Reports", c.notifications.SubjectPrefix),
		Body:      b.String(),
		NoReports: true,
	}, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
