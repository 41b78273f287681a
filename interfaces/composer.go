package interfaces

import (
	"context"

	"github.com/customeros/dmarcwatch/dto"
)

// ReportComposer turns a run's analyzed reports into exactly one
// notification payload: issues, clean status, or no-reports.
type ReportComposer interface {
	Compose(ctx context.Context, issues, clean []dto.AnalyzedReport) (*dto.ReportPayload, error)

	// ShouldDispatch applies the notification gating: issue payloads
	// always go out, clean payloads only when clean-status notifications
	// are enabled, no-reports payloads only outside quiet mode.
	ShouldDispatch(payload *dto.ReportPayload) bool
}
