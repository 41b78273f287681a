package interfaces

import (
	"context"

	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/models"
)

// Verdict is the outcome of classifying one report.
type Verdict struct {
	Significant bool
	Category    enum.AlertCategory
	Threshold   string
}

// IssueClassifier decides whether a report constitutes a significant
// issue worth alerting about.
type IssueClassifier interface {
	Classify(ctx context.Context, report *models.Report, narrative string) (*Verdict, error)
}
