package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/utils"
)

// AlertHistory is the append-only log of classification-triggered
// notifications. Rows are never mutated; only the retention sweep
// removes them.
type AlertHistory struct {
	ID                string             `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	Domain            string             `gorm:"column:domain;type:varchar(255);not null;index:idx_alert_history_domain" json:"domain"`
	Category          enum.AlertCategory `gorm:"column:alert_type;type:varchar(50);not null" json:"category"`
	ThresholdExceeded string             `gorm:"column:threshold_exceeded;type:text" json:"thresholdExceeded"`
	AlertSent         bool               `gorm:"column:alert_sent;default:false" json:"alertSent"`
	CreatedAt         time.Time          `gorm:"column:created_at;index:idx_alert_history_domain" json:"createdAt"`
}

func (AlertHistory) TableName() string {
	return "alert_history"
}

func (a *AlertHistory) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("alr", 21)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = utils.Now()
	}
	return nil
}
