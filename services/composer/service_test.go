package composer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/customeros/dmarcwatch/config"
	"github.com/customeros/dmarcwatch/dto"
	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/models"
	"github.com/customeros/dmarcwatch/services/reputation"
)

type stubReportRepo struct {
	failures    []models.Record
	lastFailure *time.Time
	issueCount  int64
}

func (s *stubReportRepo) Store(ctx context.Context, report *models.Report, narrative string, fallback bool) (string, error) {
	return "", nil
}

func (s *stubReportRepo) HistoricalData(ctx context.Context, domain string, windowDays int) ([]interfaces.ReportWithAnalysis, error) {
	return nil, nil
}

func (s *stubReportRepo) CompareWithHistorical(ctx context.Context, domain string, currentRate float64) (*interfaces.HistoricalComparison, error) {
	return &interfaces.HistoricalComparison{
		HistoricalAvg: currentRate,
		CurrentRate:   currentRate,
		Trend:         enum.TrendStable,
	}, nil
}

func (s *stubReportRepo) SummaryStats(ctx context.Context, hoursBack int) (*interfaces.SummaryStats, error) {
	return &interfaces.SummaryStats{TotalMessages: 100, AvgAuthRate: 92.5}, nil
}

func (s *stubReportRepo) RecentIssueCount(ctx context.Context, hoursBack int) (int64, error) {
	return s.issueCount, nil
}

func (s *stubReportRepo) FailureDetails(ctx context.Context, domain, reportID string) ([]models.Record, error) {
	return s.failures, nil
}

func (s *stubReportRepo) LastFailureDate(ctx context.Context, domain string) (*time.Time, error) {
	return s.lastFailure, nil
}

func (s *stubReportRepo) Purge(ctx context.Context, retentionDays int) (*interfaces.PurgeStats, error) {
	return &interfaces.PurgeStats{}, nil
}

func (s *stubReportRepo) DatabaseStats(ctx context.Context) (*interfaces.DatabaseStats, error) {
	return &interfaces.DatabaseStats{}, nil
}

func analyzedReport(domain string, passCount, failCount int, narrative string) dto.AnalyzedReport {
	report := &models.Report{
		Domain:    domain,
		OrgName:   "google.com",
		DateBegin: time.Now().Add(-48 * time.Hour).Unix(),
		DateEnd:   time.Now().Add(-24 * time.Hour).Unix(),
	}
	if passCount > 0 {
		report.Records = append(report.Records, models.Record{
			SourceIP: "209.85.220.41", Count: passCount,
			DKIMResult: enum.AuthResultPass, SPFResult: enum.AuthResultPass,
		})
	}
	if failCount > 0 {
		report.Records = append(report.Records, models.Record{
			SourceIP: "50.63.9.60", Count: failCount,
			DKIMResult: enum.AuthResultFail, SPFResult: enum.AuthResultFail,
		})
	}
	report.ComputeTotals()
	return dto.AnalyzedReport{
		ReportID:  "rpt" + domain,
		Report:    report,
		Narrative: narrative,
	}
}

func newComposer(notifications *config.NotificationConfig, repo *stubReportRepo) interfaces.ReportComposer {
	return NewReportComposer(notifications, repo, reputation.NewIPReputationService())
}

func TestComposeIssuesPayload(t *testing.T) {
	repo := &stubReportRepo{failures: []models.Record{
		{SourceIP: "50.63.9.60", Count: 3, DKIMResult: enum.AuthResultFail, SPFResult: enum.AuthResultFail},
		{SourceIP: "50.63.11.59", Count: 2, DKIMResult: enum.AuthResultFail, SPFResult: enum.AuthResultPass},
	}}
	c := newComposer(&config.NotificationConfig{SubjectPrefix: "[DMARC Monitor]"}, repo)

	narrative := "Recommendations:\n• Update the SPF record for the new relay\n\nOverall things look shaky."
	payload, err := c.Compose(context.Background(),
		[]dto.AnalyzedReport{analyzedReport("example.com", 5, 5, narrative)},
		[]dto.AnalyzedReport{analyzedReport("other.com", 20, 0, "clean")})
	require.NoError(t, err)

	require.True(t, payload.HasIssues)
	require.Equal(t, 1, payload.IssueCount)
	require.Equal(t, 1, payload.CleanCount)
	require.Contains(t, payload.Subject, "Issues Detected - 1 domains need attention")
	require.Contains(t, payload.Body, "example.com (reported by google.com)")
	require.Contains(t, payload.Body, "50.63.9.60 (Unknown Provider (50.63.x.x range)) ⚠️ suspicious")
	require.Contains(t, payload.Body, "Investigate the 50.63.x.x range")
	require.Contains(t, payload.Body, "Update the SPF record for the new relay")
	require.Contains(t, payload.Body, "• other.com: 20 messages processed successfully")
	require.True(t, c.ShouldDispatch(payload))
}

func TestComposeCleanPayload(t *testing.T) {
	lastFailure := time.Date(2026, 5, 12, 0, 0, 0, 0, time.UTC)
	repo := &stubReportRepo{lastFailure: &lastFailure}
	c := newComposer(&config.NotificationConfig{SubjectPrefix: "[DMARC Monitor]", SendCleanStatus: true}, repo)

	payload, err := c.Compose(context.Background(), nil,
		[]dto.AnalyzedReport{analyzedReport("example.com", 50, 0, "clean")})
	require.NoError(t, err)

	require.False(t, payload.HasIssues)
	require.Equal(t, 1, payload.CleanCount)
	require.Contains(t, payload.Subject, "All Clear")
	require.Contains(t, payload.Body, "Authentication Rate: 100.0%")
	require.Contains(t, payload.Body, "Last failure seen: 2026-05-12")
	require.True(t, c.ShouldDispatch(payload))
}

func TestCleanPayloadGatedByConfig(t *testing.T) {
	c := newComposer(&config.NotificationConfig{SubjectPrefix: "[DMARC Monitor]", SendCleanStatus: false}, &stubReportRepo{})

	payload, err := c.Compose(context.Background(), nil,
		[]dto.AnalyzedReport{analyzedReport("example.com", 50, 0, "clean")})
	require.NoError(t, err)
	require.False(t, c.ShouldDispatch(payload))
}

func TestComposeNoReportsPayload(t *testing.T) {
	repo := &stubReportRepo{issueCount: 2}
	c := newComposer(&config.NotificationConfig{SubjectPrefix: "[DMARC Monitor]"}, repo)

	payload, err := c.Compose(context.Background(), nil, nil)
	require.NoError(t, err)

	require.True(t, payload.NoReports)
	require.Contains(t, payload.Subject, "No New DMARC Reports")
	require.Contains(t, payload.Body, "Recent issues (last 3 days): 2 reports had issues")
	require.True(t, c.ShouldDispatch(payload))
}

func TestNoReportsPayloadSuppressedInQuietMode(t *testing.T) {
	c := newComposer(&config.NotificationConfig{SubjectPrefix: "[DMARC Monitor]", QuietMode: true}, &stubReportRepo{})

	payload, err := c.Compose(context.Background(), nil, nil)
	require.NoError(t, err)
	require.False(t, c.ShouldDispatch(payload))
}

func TestSharedRangeDetection(t *testing.T) {
	shared, ok := sharedRange([]models.Record{
		{SourceIP: "50.63.9.60"},
		{SourceIP: "50.63.11.59"},
	})
	require.True(t, ok)
	require.Equal(t, "50.63.", shared)

	_, ok = sharedRange([]models.Record{
		{SourceIP: "50.63.9.60"},
		{SourceIP: "185.220.101.5"},
	})
	require.False(t, ok)

	_, ok = sharedRange([]models.Record{{SourceIP: "50.63.9.60"}})
	require.False(t, ok)
}
