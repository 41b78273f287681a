package interfaces

import (
	"context"
	"time"

	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/models"
)

// ReportWithAnalysis joins a stored report with its derived metrics row.
type ReportWithAnalysis struct {
	Report   models.Report
	Analysis models.Analysis
}

// HistoricalComparison describes how the current authentication rate
// relates to the trailing historical average for a domain.
type HistoricalComparison struct {
	HistoricalAvg float64    `json:"historicalAvg"`
	CurrentRate   float64    `json:"currentRate"`
	Change        float64    `json:"change"`
	Trend         enum.Trend `json:"trend"`
}

// SummaryStats aggregates reports processed in a trailing window.
type SummaryStats struct {
	TotalReports      int64   `json:"totalReports"`
	UniqueDomains     int64   `json:"uniqueDomains"`
	TotalMessages     int64   `json:"totalMessages"`
	ReportsWithIssues int64   `json:"reportsWithIssues"`
	CleanReports      int64   `json:"cleanReports"`
	AvgAuthRate       float64 `json:"avgAuthRate"`
}

// PurgeStats counts rows removed by a retention sweep.
type PurgeStats struct {
	ReportsDeleted  int64     `json:"reportsDeleted"`
	RecordsDeleted  int64     `json:"recordsDeleted"`
	AnalysesDeleted int64     `json:"analysesDeleted"`
	AlertsDeleted   int64     `json:"alertsDeleted"`
	CutoffDate      time.Time `json:"cutoffDate"`
	RetentionDays   int       `json:"retentionDays"`
}

// DatabaseStats describes the store file and its table sizes.
type DatabaseStats struct {
	SizeBytes        int64            `json:"sizeBytes"`
	TotalRows        int64            `json:"totalRows"`
	TableCounts      map[string]int64 `json:"tableCounts"`
	OldestReportDate *time.Time       `json:"oldestReportDate,omitempty"`
	NewestReportDate *time.Time       `json:"newestReportDate,omitempty"`
}

type ReportRepository interface {
	// Store persists a report with its records and computed analysis in
	// one transaction. Re-delivery of an already stored report resolves
	// to the existing row id without duplicating records.
	Store(ctx context.Context, report *models.Report, narrative string, narrativeFallback bool) (string, error)

	// HistoricalData returns report+analysis rows for a domain whose
	// period start falls within the window, newest first.
	HistoricalData(ctx context.Context, domain string, windowDays int) ([]ReportWithAnalysis, error)

	// CompareWithHistorical compares the given rate against the mean
	// auth rate of reports processed between 30 and 7 days ago. With no
	// history the average defaults to the current rate.
	CompareWithHistorical(ctx context.Context, domain string, currentRate float64) (*HistoricalComparison, error)

	SummaryStats(ctx context.Context, hoursBack int) (*SummaryStats, error)

	// RecentIssueCount counts reports flagged with issues that were
	// processed within the trailing window.
	RecentIssueCount(ctx context.Context, hoursBack int) (int64, error)

	// FailureDetails returns the records of one report where either
	// authentication check did not pass.
	FailureDetails(ctx context.Context, domain, reportID string) ([]models.Record, error)

	// LastFailureDate returns the most recent period end among failing
	// records for a domain, or nil if the domain never had a failure.
	LastFailureDate(ctx context.Context, domain string) (*time.Time, error)

	// Purge deletes reports older than the retention window, cascading
	// to records and analyses, removes aged alert history, and reclaims
	// file space. Must not run while a write transaction is open.
	Purge(ctx context.Context, retentionDays int) (*PurgeStats, error)

	DatabaseStats(ctx context.Context) (*DatabaseStats, error)
}
