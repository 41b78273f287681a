package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/dmarcwatch/internal/utils"
)

// Analysis holds the derived metrics and narrative for a report.
// Exactly one row per report; re-analysis replaces it.
type Analysis struct {
	ID                string    `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	ReportID          string    `gorm:"column:report_id;type:varchar(50);uniqueIndex:idx_analyses_report_id;not null" json:"reportId"`
	Narrative         string    `gorm:"column:narrative;type:text" json:"narrative"`
	NarrativeFallback bool      `gorm:"column:narrative_fallback;default:false" json:"narrativeFallback"`
	HasIssues         bool      `gorm:"column:has_issues;default:false" json:"hasIssues"`
	AuthSuccessRate   float64   `gorm:"column:auth_success_rate" json:"authSuccessRate"`
	SourceCount       int       `gorm:"column:source_count;default:0" json:"sourceCount"`
	CreatedAt         time.Time `gorm:"column:created_at" json:"createdAt"`
}

func (Analysis) TableName() string {
	return "analyses"
}

func (a *Analysis) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("anl", 21)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = utils.Now()
	}
	return nil
}
