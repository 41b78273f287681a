package dto

import (
	"github.com/customeros/dmarcwatch/internal/models"
)

// AnalyzedReport is one report moving through the pipeline after storage
// and narrative generation, before composition.
type AnalyzedReport struct {
	ReportID          string
	Report            *models.Report
	Narrative         string
	NarrativeFallback bool
}
