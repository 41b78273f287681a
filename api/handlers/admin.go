package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/repository"
	"github.com/customeros/dmarcwatch/internal/tracing"
)

type AdminHandler struct {
	repos *repository.Repositories
}

func NewAdminHandler(r *repository.Repositories) *AdminHandler {
	return &AdminHandler{repos: r}
}

// DatabaseStats returns store file size and per-table row counts
func (h *AdminHandler) DatabaseStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "DatabaseStats", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		stats, err := h.repos.ReportRepository.DatabaseStats(ctx)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, stats)
	}
}

type purgeRequest struct {
	RetentionDays int `json:"retentionDays"`
}

// Purge removes reports older than the retention window. The body may
// override the configured retention period.
func (h *AdminHandler) Purge(defaultRetentionDays int) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "Purge", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		retentionDays := defaultRetentionDays
		var req purgeRequest
		if err := c.ShouldBindJSON(&req); err == nil && req.RetentionDays > 0 {
			retentionDays = req.RetentionDays
		}

		stats, err := h.repos.ReportRepository.Purge(ctx, retentionDays)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, stats)
	}
}

// TriggerRun starts a mailbox check synchronously and returns its summary
func TriggerRun(monitor interfaces.MonitorService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "TriggerRun", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		summary, err := monitor.Run(ctx)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "summary": summary})
			return
		}

		c.JSON(http.StatusOK, summary)
	}
}
