package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/customeros/dmarcwatch/internal/database"
	"github.com/customeros/dmarcwatch/internal/enum"
	"github.com/customeros/dmarcwatch/internal/models"
	"github.com/customeros/dmarcwatch/internal/repository"
)

func setupRouter(t *testing.T) (*gin.Engine, *repository.Repositories) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbPath := filepath.Join(t.TempDir(), "dmarcwatch.db")
	db, err := database.NewConnection(&database.DatabaseConfig{Path: dbPath, LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, repository.MigrateDB(db))
	repos := repository.InitRepositories(db, dbPath)

	h := InitHandlers(repos)
	r := gin.New()
	r.GET("/health", HealthCheck)
	r.GET("/v1/summary", h.Reports.Summary())
	r.GET("/v1/domains/:domain/reports/:id/failures", h.Reports.DomainFailures())
	r.GET("/v1/domains/:domain/alerts", h.Reports.DomainAlerts())
	r.GET("/v1/admin/stats", h.Admin.DatabaseStats())
	return r, repos
}

func storeReport(t *testing.T, repos *repository.Repositories, domain string) string {
	t.Helper()
	now := time.Now().UTC()
	report := &models.Report{
		Domain:           domain,
		OrgName:          "google.com",
		ExternalReportID: "rep-1",
		DateBegin:        now.Add(-24 * time.Hour).Unix(),
		DateEnd:          now.Unix(),
		Records: []models.Record{
			{SourceIP: "209.85.220.41", Count: 8, Disposition: enum.DispositionNone, DKIMResult: enum.AuthResultPass, SPFResult: enum.AuthResultPass},
			{SourceIP: "50.63.9.60", Count: 2, Disposition: enum.DispositionQuarantine, DKIMResult: enum.AuthResultFail, SPFResult: enum.AuthResultFail},
		},
	}
	id, err := repos.ReportRepository.Store(context.Background(), report, "narrative", false)
	require.NoError(t, err)
	return id
}

func TestHealthCheck(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSummaryEndpoint(t *testing.T) {
	r, repos := setupRouter(t)
	storeReport(t, repos, "example.com")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/summary?hours=48", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.EqualValues(t, 1, body["totalReports"])
	require.EqualValues(t, 10, body["totalMessages"])
}

func TestDomainFailuresEndpoint(t *testing.T) {
	r, repos := setupRouter(t)
	id := storeReport(t, repos, "example.com")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/domains/example.com/reports/"+id+"/failures", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Failures []models.Record `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Failures, 1)
	require.Equal(t, "50.63.9.60", body.Failures[0].SourceIP)
}

func TestDomainFailuresNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/domains/example.com/reports/missing/failures", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDatabaseStatsEndpoint(t *testing.T) {
	r, repos := setupRouter(t)
	storeReport(t, repos, "example.com")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	require.NotZero(t, stats["totalRows"])
}
