package interfaces

import (
	"context"

	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/models"
)

type AlertRepository interface {
	// LogAlert appends one classification-triggered notification record.
	LogAlert(ctx context.Context, domain string, category enum.AlertCategory, threshold string, sent bool) error

	// RecentAlerts returns alert rows for a domain, newest first.
	RecentAlerts(ctx context.Context, domain string, limit int) ([]models.AlertHistory, error)
}
