package interfaces

import (
	"context"

	"github.com/customeros/dmarcwatch/internal/dmarc"
)

// NarrativeService produces a natural-language analysis of one parsed
// aggregate report. Implementations may call out to a language model;
// callers must tolerate failure and fall back to a deterministic summary.
type NarrativeService interface {
	AnalyzeReport(ctx context.Context, feedback *dmarc.Feedback) (string, error)
}
