package monitor

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/customeros/dmarcwatch/config"
	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/database"
	"github.com/customeros/dmarcwatch/internal/dmarc"
	"github.com/customeros/dmarcwatch/internal/logger"
	"github.com/customeros/dmarcwatch/internal/repository"
	"github.com/customeros/dmarcwatch/internal/runstate"
	"github.com/customeros/dmarcwatch/services/classifier"
	"github.com/customeros/dmarcwatch/services/composer"
	"github.com/customeros/dmarcwatch/services/reputation"
)

type stubMailbox struct {
	messages []interfaces.ReportMessage
	err      error
}

func (s *stubMailbox) FetchReportMessages(ctx context.Context, since time.Time) ([]interfaces.ReportMessage, error) {
	return s.messages, s.err
}

type stubNarrator struct {
	text string
	err  error
}

func (s *stubNarrator) AnalyzeReport(ctx context.Context, feedback *dmarc.Feedback) (string, error) {
	return s.text, s.err
}

type stubSender struct {
	subjects []string
	bodies   []string
	err      error
}

func (s *stubSender) Send(ctx context.Context, subject, body string) error {
	if s.err != nil {
		return s.err
	}
	s.subjects = append(s.subjects, subject)
	s.bodies = append(s.bodies, body)
	return nil
}

func failingReportXML(reportID string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0"?>
<feedback>
  <report_metadata>
    <org_name>google.com</org_name>
    <email>noreply-dmarc-support@google.com</email>
    <report_id>%s</report_id>
    <date_range><begin>1700000000</begin><end>1700086400</end></date_range>
  </report_metadata>
  <policy_published>
    <domain>example.com</domain>
    <adkim>r</adkim><aspf>r</aspf><p>quarantine</p><sp>none</sp><pct>100</pct>
  </policy_published>
  <record>
    <row>
      <source_ip>209.85.220.41</source_ip><count>50</count>
      <policy_evaluated><disposition>none</disposition><dkim>pass</dkim><spf>pass</spf></policy_evaluated>
    </row>
  </record>
  <record>
    <row>
      <source_ip>50.63.9.60</source_ip><count>30</count>
      <policy_evaluated><disposition>quarantine</disposition><dkim>fail</dkim><spf>fail</spf></policy_evaluated>
    </row>
  </record>
</feedback>`, reportID))
}

func newMonitor(t *testing.T, mailboxStub *stubMailbox, narrator *stubNarrator, sender *stubSender, notifications *config.NotificationConfig) (interfaces.MonitorService, *repository.Repositories) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "dmarcwatch.db")
	db, err := database.NewConnection(&database.DatabaseConfig{Path: dbPath, LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, repository.MigrateDB(db))
	repos := repository.InitRepositories(db, dbPath)

	log := logger.NewAppLogger(&logger.Config{DevMode: true})
	log.InitLogger()

	cfg := &config.Config{
		MonitorConfig: &config.MonitorConfig{LookbackDays: 7, MaxLookbackDays: 30},
		Thresholds: &config.Thresholds{
			MinimumMessagesForAlert: 10,
			AuthSuccessRateMin:      95.0,
			AuthRateDropThreshold:   5.0,
			NewSourcesThreshold:     3,
		},
		NotificationConfig: notifications,
	}

	reputationService := reputation.NewIPReputationService()
	svc := NewMonitorService(
		log, cfg, repos,
		mailboxStub, narrator,
		classifier.NewIssueClassifier(cfg.Thresholds, repos.ReportRepository),
		composer.NewReportComposer(cfg.NotificationConfig, repos.ReportRepository, reputationService),
		sender,
		runstate.NewManager(t.TempDir()),
	)
	return svc, repos
}

func notificationsDefaults() *config.NotificationConfig {
	return &config.NotificationConfig{
		EmailTo:       "ops@example.com",
		SubjectPrefix: "[DMARC Monitor]",
	}
}

func TestRunDispatchesIssuesReport(t *testing.T) {
	mailboxStub := &stubMailbox{messages: []interfaces.ReportMessage{{
		Subject: "Report domain: example.com",
		From:    "noreply-dmarc-support@google.com",
		Attachments: []interfaces.ReportAttachment{{
			Filename: "google.com!example.com!1700000000!1700086400.xml",
			Content:  failingReportXML("run-1"),
		}},
	}}}
	sender := &stubSender{}
	monitorSvc, repos := newMonitor(t, mailboxStub, &stubNarrator{text: "Authentication failures from suspicious sources"}, sender, notificationsDefaults())

	summary, err := monitorSvc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.ReportsParsed)
	require.Equal(t, 1, summary.IssueCount)
	require.Equal(t, 0, summary.CleanCount)
	require.True(t, summary.Dispatched)

	require.Len(t, sender.subjects, 1)
	require.Contains(t, sender.subjects[0], "Issues Detected")
	require.Contains(t, sender.bodies[0], "example.com (reported by google.com)")
	require.Contains(t, sender.bodies[0], "50.63.9.60")

	alerts, err := repos.AlertRepository.RecentAlerts(context.Background(), "example.com", 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.True(t, alerts[0].AlertSent)
}

func TestRunUsesFallbackNarrativeWhenModelFails(t *testing.T) {
	mailboxStub := &stubMailbox{messages: []interfaces.ReportMessage{{
		Attachments: []interfaces.ReportAttachment{{
			Filename: "report.xml",
			Content:  failingReportXML("run-2"),
		}},
	}}}
	monitorSvc, repos := newMonitor(t, mailboxStub, &stubNarrator{err: errors.New("model unreachable")}, &stubSender{}, notificationsDefaults())

	summary, err := monitorSvc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.ReportsParsed)

	history, err := repos.ReportRepository.HistoricalData(context.Background(), "example.com", 3650)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.True(t, history[0].Analysis.NarrativeFallback)
	require.Contains(t, history[0].Analysis.Narrative, "Issues Found:")
}

func TestRunWithoutMessagesComposesNoReports(t *testing.T) {
	sender := &stubSender{}
	monitorSvc, _ := newMonitor(t, &stubMailbox{}, &stubNarrator{text: "unused"}, sender, notificationsDefaults())

	summary, err := monitorSvc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, summary.ReportsParsed)
	require.True(t, summary.Dispatched)
	require.Contains(t, sender.subjects[0], "No New DMARC Reports")
}

func TestRunQuietModeSuppressesNoReports(t *testing.T) {
	notifications := notificationsDefaults()
	notifications.QuietMode = true
	sender := &stubSender{}
	monitorSvc, _ := newMonitor(t, &stubMailbox{}, &stubNarrator{text: "unused"}, sender, notifications)

	summary, err := monitorSvc.Run(context.Background())
	require.NoError(t, err)
	require.False(t, summary.Dispatched)
	require.Empty(t, sender.subjects)
}

func TestRunMailboxFailureAborts(t *testing.T) {
	monitorSvc, _ := newMonitor(t, &stubMailbox{err: errors.New("connection refused")}, &stubNarrator{}, &stubSender{}, notificationsDefaults())

	_, err := monitorSvc.Run(context.Background())
	require.Error(t, err)
}

func TestRunSkipsBrokenAttachments(t *testing.T) {
	mailboxStub := &stubMailbox{messages: []interfaces.ReportMessage{{
		Attachments: []interfaces.ReportAttachment{
			{Filename: "broken.xml", Content: []byte("<feedback><unclosed>")},
			{Filename: "good.xml", Content: failingReportXML("run-3")},
		},
	}}}
	monitorSvc, repos := newMonitor(t, mailboxStub, &stubNarrator{text: "fail keyword"}, &stubSender{}, notificationsDefaults())

	summary, err := monitorSvc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.ReportsFailed)
	require.Equal(t, 1, summary.ReportsParsed)

	history, err := repos.ReportRepository.HistoricalData(context.Background(), "example.com", 3650)
	require.NoError(t, err)
	require.Len(t, history, 1)
}
