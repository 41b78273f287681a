package classifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/customeros/dmarcwatch/config"
	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/models"
)

type stubReportRepo struct {
	comparison *interfaces.HistoricalComparison
	history    []interfaces.ReportWithAnalysis
}

func (s *stubReportRepo) Store(ctx context.Context, report *models.Report, narrative string, fallback bool) (string, error) {
	return "", nil
}

func (s *stubReportRepo) HistoricalData(ctx context.Context, domain string, windowDays int) ([]interfaces.ReportWithAnalysis, error) {
	return s.history, nil
}

func (s *stubReportRepo) CompareWithHistorical(ctx context.Context, domain string, currentRate float64) (*interfaces.HistoricalComparison, error) {
	if s.comparison != nil {
		return s.comparison, nil
	}
	return &interfaces.HistoricalComparison{
		HistoricalAvg: currentRate,
		CurrentRate:   currentRate,
		Trend:         enum.TrendStable,
	}, nil
}

func (s *stubReportRepo) SummaryStats(ctx context.Context, hoursBack int) (*interfaces.SummaryStats, error) {
	return &interfaces.SummaryStats{}, nil
}

func (s *stubReportRepo) RecentIssueCount(ctx context.Context, hoursBack int) (int64, error) {
	return 0, nil
}

func (s *stubReportRepo) FailureDetails(ctx context.Context, domain, reportID string) ([]models.Record, error) {
	return nil, nil
}

func (s *stubReportRepo) LastFailureDate(ctx context.Context, domain string) (*time.Time, error) {
	return nil, nil
}

func (s *stubReportRepo) Purge(ctx context.Context, retentionDays int) (*interfaces.PurgeStats, error) {
	return &interfaces.PurgeStats{}, nil
}

func (s *stubReportRepo) DatabaseStats(ctx context.Context) (*interfaces.DatabaseStats, error) {
	return &interfaces.DatabaseStats{}, nil
}

func defaultThresholds() *config.Thresholds {
	return &config.Thresholds{
		MinimumMessagesForAlert: 10,
		AuthSuccessRateMin:      95.0,
		AuthRateDropThreshold:   5.0,
		NewSourcesThreshold:     3,
	}
}

func buildReport(passCount, failCount int) *models.Report {
	report := &models.Report{Domain: "example.com"}
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
	return report
}

func TestLowVolumeNeverAlerts(t *testing.T) {
	c := NewIssueClassifier(defaultThresholds(), &stubReportRepo{})

	// All nine messages failing would otherwise trip every check.
	verdict, err := c.Classify(context.Background(), buildReport(0, 9), "Authentication failures everywhere")
	require.NoError(t, err)
	require.False(t, verdict.Significant)
}

func TestLowAuthRateAlerts(t *testing.T) {
	c := NewIssueClassifier(defaultThresholds(), &stubReportRepo{})

	verdict, err := c.Classify(context.Background(), buildReport(949, 51), "")
	require.NoError(t, err)
	require.True(t, verdict.Significant)
	require.Equal(t, enum.AlertLowAuthRate, verdict.Category)
	require.Contains(t, verdict.Threshold, "94.9%")
}

func TestRateAtThresholdDoesNotAlert(t *testing.T) {
	c := NewIssueClassifier(defaultThresholds(), &stubReportRepo{})

	verdict, err := c.Classify(context.Background(), buildReport(950, 50), "All clear")
	require.NoError(t, err)
	require.False(t, verdict.Significant)
}

func TestHistoricalRateChangeAlerts(t *testing.T) {
	repo := &stubReportRepo{comparison: &interfaces.HistoricalComparison{
		HistoricalAvg: 100.0,
		CurrentRate:   95.0,
		Change:        -5.0,
		Trend:         enum.TrendDeclined,
	}}
	c := NewIssueClassifier(defaultThresholds(), repo)

	verdict, err := c.Classify(context.Background(), buildReport(95, 5), "")
	require.NoError(t, err)
	require.True(t, verdict.Significant)
	require.Equal(t, enum.AlertRateChange, verdict.Category)
}

func TestNewSourcesAboveBaselineAlerts(t *testing.T) {
	repo := &stubReportRepo{history: []interfaces.ReportWithAnalysis{
		{Report: models.Report{TotalSources: 2}},
		{Report: models.Report{TotalSources: 2}},
	}}
	c := NewIssueClassifier(defaultThresholds(), repo)

	report := buildReport(100, 0)
	report.Records = append(report.Records,
		models.Record{SourceIP: "10.0.0.1", Count: 1, DKIMResult: enum.AuthResultPass, SPFResult: enum.AuthResultPass},
		models.Record{SourceIP: "10.0.0.2", Count: 1, DKIMResult: enum.AuthResultPass, SPFResult: enum.AuthResultPass},
		models.Record{SourceIP: "10.0.0.3", Count: 1, DKIMResult: enum.AuthResultPass, SPFResult: enum.AuthResultPass},
		models.Record{SourceIP: "10.0.0.4", Count: 1, DKIMResult: enum.AuthResultPass, SPFResult: enum.AuthResultPass},
		models.Record{SourceIP: "10.0.0.5", Count: 1, DKIMResult: enum.AuthResultPass, SPFResult: enum.AuthResultPass},
	)
	report.ComputeTotals()

	verdict, err := c.Classify(context.Background(), report, "")
	require.NoError(t, err)
	require.True(t, verdict.Significant)
	require.Equal(t, enum.AlertNewSources, verdict.Category)
}

func TestNarrativeKeywordsAlert(t *testing.T) {
	c := NewIssueClassifier(defaultThresholds(), &stubReportRepo{})

	verdict, err := c.Classify(context.Background(), buildReport(100, 0), "Suspicious activity from an unrecognized relay")
	require.NoError(t, err)
	require.True(t, verdict.Significant)
	require.Equal(t, enum.AlertNarrativeKeywords, verdict.Category)
}

func TestPositiveNarrativeSuppressesKeywordAlert(t *testing.T) {
	c := NewIssueClassifier(defaultThresholds(), &stubReportRepo{})

	verdict, err := c.Classify(context.Background(), buildReport(100, 0), "Issues: none detected, domain is healthy")
	require.NoError(t, err)
	require.False(t, verdict.Significant)
}
