package services

import (
	"github.com/customeros/dmarcwatch/config"
	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/logger"
	"github.com/customeros/dmarcwatch/internal/repository"
	"github.com/customeros/dmarcwatch/internal/runstate"
	"github.com/customeros/dmarcwatch/services/ai"
	"github.com/customeros/dmarcwatch/services/classifier"
	"github.com/customeros/dmarcwatch/services/composer"
	"github.com/customeros/dmarcwatch/services/mailbox"
	"github.com/customeros/dmarcwatch/services/monitor"
	"github.com/customeros/dmarcwatch/services/reputation"
	"github.com/customeros/dmarcwatch/services/smtp"
)

type Services struct {
	MailboxService    interfaces.MailboxService
	NarrativeService  interfaces.NarrativeService
	ReputationService interfaces.IPReputationService
	ClassifierService interfaces.IssueClassifier
	ComposerService   interfaces.ReportComposer
	SenderService     interfaces.MailSender
	MonitorService    interfaces.MonitorService
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) *Services {
	reputationService := reputation.NewIPReputationService()
	classifierService := classifier.NewIssueClassifier(cfg.Thresholds, repos.ReportRepository)
	composerService := composer.NewReportComposer(cfg.NotificationConfig, repos.ReportRepository, reputationService)
	mailboxService := mailbox.NewIMAPMailboxService(cfg.IMAPConfig)
	narrativeService := ai.NewAnthropicService(cfg.AnthropicConfig)
	senderService := smtp.NewSMTPSender(cfg.SMTPConfig, cfg.NotificationConfig)

	runState := runstate.NewManager(cfg.MonitorConfig.StateDir)

	return &Services{
		MailboxService:    mailboxService,
		NarrativeService:  narrativeService,
		ReputationService: reputationService,
		ClassifierService: classifierService,
		ComposerService:   composerService,
		SenderService:     senderService,
		MonitorService: monitor.NewMonitorService(
			log, cfg, repos,
			mailboxService, narrativeService, classifierService, composerService, senderService,
			runState,
		),
	}
}
