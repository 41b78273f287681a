package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/models"
	"github.com/customeros/dmarcwatch/internal/tracing"
)

type alertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) interfaces.AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) LogAlert(ctx context.Context, domain string, category enum.AlertCategory, threshold string, sent bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AlertRepository.LogAlert")
	defer span.Finish()
	tracing.TagComponentSqliteRepository(span)
	tracing.TagDomain(span, domain)

	alert := models.AlertHistory{
		Domain:            domain,
		Category:          category,
		ThresholdExceeded: threshold,
		AlertSent:         sent,
	}
	if err := r.db.WithContext(ctx).Create(&alert).Error; err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "create alert history")
	}
	return nil
}

func (r *alertRepository) RecentAlerts(ctx context.Context, domain string, limit int) ([]models.AlertHistory, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AlertRepository.RecentAlerts")
	defer span.Finish()
	tracing.TagComponentSqliteRepository(span)
	tracing.TagDomain(span, domain)

	var alerts []models.AlertHistory
	err := r.db.WithContext(ctx).
		Where("domain = ?", domain).
		Order("created_at DESC").
		Limit(limit).
		Find(&alerts).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "query alert history")
	}
	return alerts, nil
}
