package classifier

import (
	"context"
	"fmt"
	"math"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/dmarcwatch/config"
	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/models"
	"github.com/customeros/dmarcwatch/internal/narrative"
	"github.com/customeros/dmarcwatch/internal/tracing"
)

const sourceBaselineDays = 7

type issueClassifier struct {
	thresholds *config.Thresholds
	reportRepo interfaces.ReportRepository
}

func NewIssueClassifier(thresholds *config.Thresholds, reportRepository interfaces.ReportRepository) interfaces.IssueClassifier {
	return &issueClassifier{
		thresholds: thresholds,
		reportRepo: reportRepository,
	}
}

// Classify runs the significance checks in order of severity and stops
// at the first one that fires. Low-volume reports never alert; they are
// mostly noise from small forwarders.
func (c *issueClassifier) Classify(ctx context.Context, report *models.Report, narrativeText string) (*interfaces.Verdict, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "issueClassifier.Classify")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagDomain(span, report.Domain)

	if report.TotalMessages < c.thresholds.MinimumMessagesForAlert {
		return &interfaces.Verdict{}, nil
	}

	rate := report.AuthSuccessRate()
	if rate < c.thresholds.AuthSuccessRateMin {
		return &interfaces.Verdict{
			Significant: true,
			Category:    enum.AlertLowAuthRate,
			Threshold:   fmt.Sprintf("auth rate %.1f%% below %.1f%%", rate, c.thresholds.AuthSuccessRateMin),
		}, nil
	}

	comparison, err := c.reportRepo.CompareWithHistorical(ctx, report.Domain, rate)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "historical comparison")
	}
	if math.Abs(comparison.Change) >= c.thresholds.AuthRateDropThreshold {
		return &interfaces.Verdict{
			Significant: true,
			Category:    enum.AlertRateChange,
			Threshold:   fmt.Sprintf("auth rate changed %+.1f%% vs 30-day average %.1f%%", comparison.Change, comparison.HistoricalAvg),
		}, nil
	}

	history, err := c.reportRepo.HistoricalData(ctx, report.Domain, sourceBaselineDays)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "source baseline")
	}
	if len(history) > 0 {
		sum := 0
		for _, row := range history {
			sum += row.Report.TotalSources
		}
		baseline := float64(sum) / float64(len(history))
		if float64(report.TotalSources) > baseline+float64(c.thresholds.NewSourcesThreshold) {
			return &interfaces.Verdict{
				Significant: true,
				Category:    enum.AlertNewSources,
				Threshold:   fmt.Sprintf("%d sending sources above 7-day baseline %.1f", report.TotalSources, baseline),
			}, nil
		}
	}

	if narrative.IndicatesIssue(narrativeText) {
		return &interfaces.Verdict{
			Significant: true,
			Category:    enum.AlertNarrativeKeywords,
			Threshold:   "analysis narrative flagged potential issues",
		}, nil
	}

	return &interfaces.Verdict{}, nil
}
