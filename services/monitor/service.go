package monitor

import (
	"context"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/dmarcwatch/config"
	"github.com/customeros/dmarcwatch/dto"
	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/dmarc"
	"github.com/customeros/dmarcwatch/internal/logger"
	"github.com/customeros/dmarcwatch/internal/repository"
	"github.com/customeros/dmarcwatch/internal/runstate"
	"github.com/customeros/dmarcwatch/internal/tracing"
	"github.com/customeros/dmarcwatch/internal/utils"
	"github.com/customeros/dmarcwatch/services/ai"
)

type monitorService struct {
	log        logger.Logger
	cfg        *config.Config
	repos      *repository.Repositories
	mailbox    interfaces.MailboxService
	narrator   interfaces.NarrativeService
	classifier interfaces.IssueClassifier
	composer   interfaces.ReportComposer
	sender     interfaces.MailSender
	runState   *runstate.Manager
}

func NewMonitorService(
	log logger.Logger,
	cfg *config.Config,
	repos *repository.Repositories,
	mailbox interfaces.MailboxService,
	narrator interfaces.NarrativeService,
	classifier interfaces.IssueClassifier,
	composer interfaces.ReportComposer,
	sender interfaces.MailSender,
	runState *runstate.Manager,
) interfaces.MonitorService {
	return &monitorService{
		log:        log,
		cfg:        cfg,
		repos:      repos,
		mailbox:    mailbox,
		narrator:   narrator,
		classifier: classifier,
		composer:   composer,
		sender:     sender,
		runState:   runState,
	}
}

type classifiedReport struct {
	analyzed dto.AnalyzedReport
	verdict  *interfaces.Verdict
}

func (s *monitorService) Run(ctx context.Context) (*interfaces.RunSummary, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "monitorService.Run")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	summary := &interfaces.RunSummary{
		RunID:     uuid.New().String(),
		StartedAt: utils.Now(),
	}
	span.SetTag("run-id", summary.RunID)

	since, err := s.runState.LookbackSince(summary.StartedAt, s.cfg.MonitorConfig.LookbackDays, s.cfg.MonitorConfig.MaxLookbackDays)
	if err != nil {
		tracing.TraceErr(span, err)
		return summary, errors.Wrap(err, "resolve lookback window")
	}
	s.log.Infof("checking mailbox for reports since %s", since.Format("2006-01-02 15:04"))

	messages, err := s.mailbox.FetchReportMessages(ctx, since)
	if err != nil {
		tracing.TraceErr(span, err)
		s.markFailure()
		return summary, errors.Wrap(err, "fetch report messages")
	}
	summary.MessagesFetched = len(messages)

	var issues, clean []classifiedReport
	for _, msg := range messages {
		for _, attachment := range msg.Attachments {
			classified, ok := s.processAttachment(ctx, attachment)
			if !ok {
				summary.ReportsFailed++
				continue
			}
			summary.ReportsParsed++
			if classified.verdict.Significant {
				issues = append(issues, classified)
			} else {
				clean = append(clean, classified)
			}
		}
	}
	summary.IssueCount = len(issues)
	summary.CleanCount = len(clean)

	payload, err := s.composer.Compose(ctx, analyzedOf(issues), analyzedOf(clean))
	if err != nil {
		tracing.TraceErr(span, err)
		s.markFailure()
		return summary, errors.Wrap(err, "compose payload")
	}

	if s.composer.ShouldDispatch(payload) {
		if err := s.sender.Send(ctx, payload.Subject, payload.Body); err != nil {
			tracing.TraceErr(span, err)
			s.logAlerts(ctx, issues, false)
			s.markFailure()
			return summary, errors.Wrap(err, "dispatch notification")
		}
		summary.Dispatched = true
		s.log.Infof("dispatched notification: %s", payload.Subject)
	} else {
		s.log.Infof("notification suppressed by configuration: %s", payload.Subject)
	}

	s.logAlerts(ctx, issues, summary.Dispatched)

	summary.CompletedAt = utils.Now()
	if err := s.runState.MarkSuccess(summary.CompletedAt); err != nil {
		s.log.Warnf("could not persist run marker: %v", err)
	}
	s.log.Infof("run %s complete: %d parsed, %d with issues, %d clean, %d failed",
		summary.RunID, summary.ReportsParsed, summary.IssueCount, summary.CleanCount, summary.ReportsFailed)
	return summary, nil
}

// processAttachment takes one mailbox attachment through extraction,
// parsing, narrative generation, storage and classification. A failure
// at any step skips the attachment; the rest of the run continues.
func (s *monitorService) processAttachment(ctx context.Context, attachment interfaces.ReportAttachment) (classifiedReport, bool) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "monitorService.processAttachment")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("filename", attachment.Filename)

	xmlData, err := dmarc.ExtractXML(attachment.Content, attachment.Filename)
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Warnf("could not extract %s: %v", attachment.Filename, err)
		return classifiedReport{}, false
	}
	feedback, err := dmarc.Parse(xmlData)
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Warnf("could not parse %s: %v", attachment.Filename, err)
		return classifiedReport{}, false
	}
	tracing.TagDomain(span, feedback.Domain)

	narrativeText, err := s.narrator.AnalyzeReport(ctx, feedback)
	narrativeFallback := false
	if err != nil {
		s.log.Warnf("narrative generation failed for %s, using fallback: %v", feedback.Domain, err)
		narrativeText = ai.FallbackNarrative(feedback)
		narrativeFallback = true
	}

	report := feedback.ToReport()
	reportID, err := s.repos.ReportRepository.Store(ctx, report, narrativeText, narrativeFallback)
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("could not store report for %s: %v", feedback.Domain, err)
		return classifiedReport{}, false
	}

	verdict, err := s.classifier.Classify(ctx, report, narrativeText)
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("classification failed for %s, treating as clean: %v", feedback.Domain, err)
		verdict = &interfaces.Verdict{}
	}

	return classifiedReport{
		analyzed: dto.AnalyzedReport{
			ReportID:          reportID,
			Report:            report,
			Narrative:         narrativeText,
			NarrativeFallback: narrativeFallback,
		},
		verdict: verdict,
	}, true
}

func (s *monitorService) logAlerts(ctx context.Context, issues []classifiedReport, sent bool) {
	for _, classified := range issues {
		err := s.repos.AlertRepository.LogAlert(ctx,
			classified.analyzed.Report.Domain,
			classified.verdict.Category,
			classified.verdict.Threshold,
			sent)
		if err != nil {
			s.log.Errorf("could not log alert for %s: %v", classified.analyzed.Report.Domain, err)
		}
	}
}

func (s *monitorService) markFailure() {
	if err := s.runState.MarkFailure(utils.Now()); err != nil {
		s.log.Warnf("could not persist failure marker: %v", err)
	}
}

func analyzedOf(reports []classifiedReport) []dto.AnalyzedReport {
	analyzed := make([]dto.AnalyzedReport, 0, len(reports))
	for _, classified := range reports {
		analyzed = append(analyzed, classified.analyzed)
	}
	return analyzed
}
