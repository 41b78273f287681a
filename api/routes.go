package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/dmarcwatch/api/handlers"
	"github.com/customeros/dmarcwatch/api/middleware"
	"github.com/customeros/dmarcwatch/config"
	"github.com/customeros/dmarcwatch/internal/repository"
	"github.com/customeros/dmarcwatch/internal/tracing"
	"github.com/customeros/dmarcwatch/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, cfg *config.Config, s *services.Services, repos *repository.Repositories) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	// Add recovery middlewares
	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	// setup handlers
	apiHandlers := handlers.InitHandlers(repos)

	// Health check endpoint (unauthenticated)
	r.GET("/health", handlers.HealthCheck)

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-DMARCWATCH-API-KEY",
		ValidAPIKey: cfg.AppConfig.APIKey,
	})

	// API group with version
	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.TracingMiddleware())
	{
		api.GET("/summary", apiHandlers.Reports.Summary())

		domains := api.Group("/domains")
		{
			domains.GET("/:domain/history", apiHandlers.Reports.DomainHistory())
			domains.GET("/:domain/reports/:id/failures", apiHandlers.Reports.DomainFailures())
			domains.GET("/:domain/alerts", apiHandlers.Reports.DomainAlerts())
		}

		admin := api.Group("/admin")
		{
			admin.GET("/stats", apiHandlers.Admin.DatabaseStats())
			admin.POST("/purge", apiHandlers.Admin.Purge(cfg.RetentionConfig.RetentionDays))
			admin.POST("/runs", handlers.TriggerRun(s.MonitorService))
		}
	}
}
