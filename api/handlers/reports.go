package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	localerrors "github.com/customeros/dmarcwatch/internal/errors"
	"github.com/customeros/dmarcwatch/internal/repository"
	"github.com/customeros/dmarcwatch/internal/tracing"
)

type ReportsHandler struct {
	repos *repository.Repositories
}

func NewReportsHandler(r *repository.Repositories) *ReportsHandler {
	return &ReportsHandler{repos: r}
}

// Summary returns aggregate processing stats for a trailing window
func (h *ReportsHandler) Summary() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "Summary", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		hours := intQuery(c, "hours", 24)

		stats, err := h.repos.ReportRepository.SummaryStats(ctx, hours)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, stats)
	}
}

// DomainHistory returns stored reports with their analyses for a domain
func (h *ReportsHandler) DomainHistory() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "DomainHistory", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		domain := c.Param("domain")
		tracing.TagDomain(span, domain)
		days := intQuery(c, "days", 30)

		history, err := h.repos.ReportRepository.HistoricalData(ctx, domain, days)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"domain": domain, "windowDays": days, "reports": history})
	}
}

// DomainFailures returns the failing records of one stored report
func (h *ReportsHandler) DomainFailures() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "DomainFailures", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		domain := c.Param("domain")
		reportID := c.Param("id")
		tracing.TagDomain(span, domain)
		tracing.TagReport(span, reportID)

		records, err := h.repos.ReportRepository.FailureDetails(ctx, domain, reportID)
		if err != nil {
			if errors.Is(err, localerrors.ErrReportNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"domain": domain, "reportId": reportID, "failures": records})
	}
}

// DomainAlerts returns recent alert history rows for a domain
func (h *ReportsHandler) DomainAlerts() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "DomainAlerts", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		domain := c.Param("domain")
		tracing.TagDomain(span, domain)
		limit := intQuery(c, "limit", 20)

		alerts, err := h.repos.AlertRepository.RecentAlerts(ctx, domain, limit)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"domain": domain, "alerts": alerts})
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
