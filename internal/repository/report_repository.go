package repository

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/enum"
	localerrors "github.com/customeros/dmarcwatch/internal/errors"
	"github.com/customeros/dmarcwatch/internal/models"
	"github.com/customeros/dmarcwatch/internal/narrative"
	"github.com/customeros/dmarcwatch/internal/tracing"
	"github.com/customeros/dmarcwatch/internal/utils"
)

const (
	trendImprovementThreshold = 2.0
	issueAuthRateThreshold    = 95.0
)

type reportRepository struct {
	db     *gorm.DB
	dbPath string
}

func NewReportRepository(db *gorm.DB, dbPath string) interfaces.ReportRepository {
	return &reportRepository{db: db, dbPath: dbPath}
}

func (r *reportRepository) Store(ctx context.Context, report *models.Report, narrativeText string, narrativeFallback bool) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ReportRepository.Store")
	defer span.Finish()
	tracing.TagComponentSqliteRepository(span)
	tracing.TagDomain(span, report.Domain)

	report.ComputeTotals()
	rate := report.AuthSuccessRate()
	hasIssues := rate < issueAuthRateThreshold || narrative.IndicatesIssue(narrativeText)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Report
		lookup := tx.
			Where("domain = ? AND org_name = ? AND report_id = ? AND date_begin = ? AND date_end = ?",
				report.Domain, report.OrgName, report.ExternalReportID, report.DateBegin, report.DateEnd).
			First(&existing)
		switch {
		case lookup.Error == nil:
			// Re-delivered report, keep the stored row and its records.
			report.ID = existing.ID
		case errors.Is(lookup.Error, gorm.ErrRecordNotFound):
			if err := tx.Create(report).Error; err != nil {
				return errors.Wrap(err, "create report")
			}
		default:
			return errors.Wrap(lookup.Error, "lookup report")
		}

		analysis := models.Analysis{
			ReportID:          report.ID,
			Narrative:         narrativeText,
			NarrativeFallback: narrativeFallback,
			HasIssues:         hasIssues,
			AuthSuccessRate:   rate,
			SourceCount:       report.TotalSources,
			CreatedAt:         utils.Now(),
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "report_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"narrative", "narrative_fallback", "has_issues",
				"auth_success_rate", "source_count", "created_at",
			}),
		}).Create(&analysis).Error
		if err != nil {
			return errors.Wrap(err, "upsert analysis")
		}
		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return "", fmt.Errorf("%w: %v", localerrors.ErrStoreFailed, err)
	}
	tracing.TagReport(span, report.ID)
	return report.ID, nil
}

func (r *reportRepository) HistoricalData(ctx context.Context, domain string, windowDays int) ([]interfaces.ReportWithAnalysis, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ReportRepository.HistoricalData")
	defer span.Finish()
	tracing.TagComponentSqliteRepository(span)
	tracing.TagDomain(span, domain)

	cutoff := utils.Now().AddDate(0, 0, -windowDays).Unix()

	var reports []models.Report
	err := r.db.WithContext(ctx).
		Where("domain = ? AND date_begin >= ?", domain, cutoff).
		Order("date_begin DESC").
		Find(&reports).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "query reports")
	}
	if len(reports) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(reports))
	for _, report := range reports {
		ids = append(ids, report.ID)
	}
	var analyses []models.Analysis
	err = r.db.WithContext(ctx).
		Where("report_id IN ?", ids).
		Find(&analyses).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "query analyses")
	}
	byReportID := make(map[string]models.Analysis, len(analyses))
	for _, analysis := range analyses {
		byReportID[analysis.ReportID] = analysis
	}

	result := make([]interfaces.ReportWithAnalysis, 0, len(reports))
	for _, report := range reports {
		result = append(result, interfaces.ReportWithAnalysis{
			Report:   report,
			Analysis: byReportID[report.ID],
		})
	}
	return result, nil
}

func (r *reportRepository) CompareWithHistorical(ctx context.Context, domain string, currentRate float64) (*interfaces.HistoricalComparison, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ReportRepository.CompareWithHistorical")
	defer span.Finish()
	tracing.TagComponentSqliteRepository(span)
	tracing.TagDomain(span, domain)

	now := utils.Now()
	windowStart := now.AddDate(0, 0, -30)
	windowEnd := now.AddDate(0, 0, -7)

	var avg *float64
	err := r.db.WithContext(ctx).
		Model(&models.Analysis{}).
		Joins("JOIN reports ON reports.id = analyses.report_id").
		Where("reports.domain = ? AND reports.processed_at BETWEEN ? AND ?", domain, windowStart, windowEnd).
		Select("AVG(analyses.auth_success_rate)").
		Scan(&avg).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "query historical average")
	}

	// A domain with no history compares against itself, so the first
	// report ever is always a stable trend.
	historicalAvg := currentRate
	if avg != nil {
		historicalAvg = *avg
	}
	change := currentRate - historicalAvg

	trend := enum.TrendStable
	switch {
	case change > trendImprovementThreshold:
		trend = enum.TrendImproved
	case change < -trendImprovementThreshold:
		trend = enum.TrendDeclined
	}

	return &interfaces.HistoricalComparison{
		HistoricalAvg: historicalAvg,
		CurrentRate:   currentRate,
		Change:        change,
		Trend:         trend,
	}, nil
}

func (r *reportRepository) SummaryStats(ctx context.Context, hoursBack int) (*interfaces.SummaryStats, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ReportRepository.SummaryStats")
	defer span.Finish()
	tracing.TagComponentSqliteRepository(span)

	cutoff := utils.Now().Add(-time.Duration(hoursBack) * time.Hour)

	var row struct {
		TotalReports      int64
		UniqueDomains     int64
		TotalMessages     int64
		ReportsWithIssues int64
		AvgAuthRate       float64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Report{}).
		Joins("LEFT JOIN analyses ON analyses.report_id = reports.id").
		Where("reports.processed_at >= ?", cutoff).
		Select("COUNT(reports.id) AS total_reports, " +
			"COUNT(DISTINCT reports.domain) AS unique_domains, " +
			"COALESCE(SUM(reports.total_messages), 0) AS total_messages, " +
			"COALESCE(SUM(CASE WHEN analyses.has_issues THEN 1 ELSE 0 END), 0) AS reports_with_issues, " +
			"COALESCE(AVG(analyses.auth_success_rate), 0) AS avg_auth_rate").
		Scan(&row).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "query summary stats")
	}

	return &interfaces.SummaryStats{
		TotalReports:      row.TotalReports,
		UniqueDomains:     row.UniqueDomains,
		TotalMessages:     row.TotalMessages,
		ReportsWithIssues: row.ReportsWithIssues,
		CleanReports:      row.TotalReports - row.ReportsWithIssues,
		AvgAuthRate:       row.AvgAuthRate,
	}, nil
}

func (r *reportRepository) RecentIssueCount(ctx context.Context, hoursBack int) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ReportRepository.RecentIssueCount")
	defer span.Finish()
	tracing.TagComponentSqliteRepository(span)

	cutoff := utils.Now().Add(-time.Duration(hoursBack) * time.Hour)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Analysis{}).
		Joins("JOIN reports ON reports.id = analyses.report_id").
		Where("analyses.has_issues = ? AND reports.processed_at >= ?", true, cutoff).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, errors.Wrap(err, "count recent issues")
	}
	return count, nil
}

func (r *reportRepository) FailureDetails(ctx context.Context, domain, reportID string) ([]models.Record, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ReportRepository.FailureDetails")
	defer span.Finish()
	tracing.TagComponentSqliteRepository(span)
	tracing.TagDomain(span, domain)
	tracing.TagReport(span, reportID)

	var report models.Report
	err := r.db.WithContext(ctx).
		Where("id = ? AND domain = ?", reportID, domain).
		First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, localerrors.ErrReportNotFound
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "lookup report")
	}

	var records []models.Record
	err = r.db.WithContext(ctx).
		Where("report_id = ? AND (dkim_result <> ? OR spf_result <> ?)",
			reportID, enum.AuthResultPass, enum.AuthResultPass).
		Order("count DESC").
		Find(&records).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "query failing records")
	}
	return records, nil
}

func (r *reportRepository) LastFailureDate(ctx context.Context, domain string) (*time.Time, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ReportRepository.LastFailureDate")
	defer span.Finish()
	tracing.TagComponentSqliteRepository(span)
	tracing.TagDomain(span, domain)

	var latest *int64
	err := r.db.WithContext(ctx).
		Model(&models.Record{}).
		Joins("JOIN reports ON reports.id = records.report_id").
		Where("reports.domain = ? AND (records.dkim_result <> ? OR records.spf_result <> ?)",
			domain, enum.AuthResultPass, enum.AuthResultPass).
		Select("MAX(reports.date_end)").
		Scan(&latest).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "query last failure")
	}
	if latest == nil {
		return nil, nil
	}
	return utils.TimePtr(time.Unix(*latest, 0).UTC()), nil
}

func (r *reportRepository) Purge(ctx context.Context, retentionDays int) (*interfaces.PurgeStats, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ReportRepository.Purge")
	defer span.Finish()
	tracing.TagComponentSqliteRepository(span)

	cutoff := utils.Now().AddDate(0, 0, -retentionDays)
	stats := &interfaces.PurgeStats{
		CutoffDate:    cutoff,
		RetentionDays: retentionDays,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		agedReports := tx.Model(&models.Report{}).Select("id").Where("date_begin < ?", cutoff.Unix())

		res := tx.Where("report_id IN (?)", agedReports).Delete(&models.Analysis{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete analyses")
		}
		stats.AnalysesDeleted = res.RowsAffected

		res = tx.Where("report_id IN (?)", agedReports).Delete(&models.Record{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete records")
		}
		stats.RecordsDeleted = res.RowsAffected

		res = tx.Where("date_begin < ?", cutoff.Unix()).Delete(&models.Report{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete reports")
		}
		stats.ReportsDeleted = res.RowsAffected

		res = tx.Where("created_at < ?", cutoff).Delete(&models.AlertHistory{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete alert history")
		}
		stats.AlertsDeleted = res.RowsAffected
		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	// VACUUM cannot run inside a transaction.
	if err := r.db.WithContext(ctx).Exec("VACUUM").Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "vacuum")
	}
	return stats, nil
}

func (r *reportRepository) DatabaseStats(ctx context.Context) (*interfaces.DatabaseStats, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ReportRepository.DatabaseStats")
	defer span.Finish()
	tracing.TagComponentSqliteRepository(span)

	stats := &interfaces.DatabaseStats{
		TableCounts: make(map[string]int64, 4),
	}

	tables := []struct {
		name  string
		model any
	}{
		{"reports", &models.Report{}},
		{"records", &models.Record{}},
		{"analyses", &models.Analysis{}},
		{"alert_history", &models.AlertHistory{}},
	}
	for _, table := range tables {
		var count int64
		if err := r.db.WithContext(ctx).Model(table.model).Count(&count).Error; err != nil {
			tracing.TraceErr(span, err)
			return nil, errors.Wrapf(err, "count %s", table.name)
		}
		stats.TableCounts[table.name] = count
		stats.TotalRows += count
	}

	var bounds struct {
		OldestBegin *int64
		NewestBegin *int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Report{}).
		Select("MIN(date_begin) AS oldest_begin, MAX(date_begin) AS newest_begin").
		Scan(&bounds).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "query report bounds")
	}
	if bounds.OldestBegin != nil {
		oldest := time.Unix(*bounds.OldestBegin, 0).UTC()
		stats.OldestReportDate = &oldest
	}
	if bounds.NewestBegin != nil {
		newest := time.Unix(*bounds.NewestBegin, 0).UTC()
		stats.NewestReportDate = &newest
	}

	if info, err := os.Stat(r.dbPath); err == nil {
		stats.SizeBytes = info.Size()
	}
	return stats, nil
}
