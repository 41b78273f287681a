package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/log"

	"github.com/customeros/dmarcwatch/config"
	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/dmarc"
	localerrors "github.com/customeros/dmarcwatch/internal/errors"
	"github.com/customeros/dmarcwatch/internal/tracing"
)

type imapMailboxService struct {
	cfg *config.IMAPConfig
}

func NewIMAPMailboxService(cfg *config.IMAPConfig) interfaces.MailboxService {
	return &imapMailboxService{cfg: cfg}
}

func (s *imapMailboxService) FetchReportMessages(ctx context.Context, since time.Time) ([]interfaces.ReportMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapMailboxService.FetchReportMessages")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("server", s.cfg.Server)
	span.SetTag("folder", s.cfg.Folder)
	span.LogKV("since", since.Format(time.RFC3339))

	c, err := s.connect(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select(s.cfg.Folder, true); err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to select folder %s: %w", s.cfg.Folder, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	ids, err := c.Search(criteria)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	var result []interfaces.ReportMessage
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		envelope, err := enmime.ReadEnvelope(body)
		if err != nil {
			span.LogFields(log.String("unparseable message", err.Error()))
			continue
		}

		attachments := collectReportAttachments(envelope)
		if len(attachments) == 0 {
			continue
		}

		reportMsg := interfaces.ReportMessage{
			ReceivedAt:  msg.InternalDate,
			Attachments: attachments,
		}
		if msg.Envelope != nil {
			reportMsg.Subject = msg.Envelope.Subject
			if len(msg.Envelope.From) > 0 {
				reportMsg.From = msg.Envelope.From[0].Address()
			}
		}
		result = append(result, reportMsg)
	}

	if err := <-done; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	span.LogKV("messages", len(result))
	return result, nil
}

// collectReportAttachments keeps only parts whose filename looks like an
// aggregate report archive. Reporters differ on whether they attach the
// payload as an attachment or an inline part, so both are scanned.
func collectReportAttachments(envelope *enmime.Envelope) []interfaces.ReportAttachment {
	var attachments []interfaces.ReportAttachment
	parts := make([]*enmime.Part, 0, len(envelope.Attachments)+len(envelope.Inlines))
	parts = append(parts, envelope.Attachments...)
	parts = append(parts, envelope.Inlines...)
	for _, part := range parts {
		if dmarc.IsReportAttachment(part.FileName) {
			attachments = append(attachments, interfaces.ReportAttachment{
				Filename: part.FileName,
				Content:  part.Content,
			})
		}
	}
	return attachments
}

func (s *imapMailboxService) connect(ctx context.Context) (*client.Client, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "imapMailboxService.connect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	serverAddr := fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port)
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	c, err := client.DialWithDialerTLS(dialer, serverAddr, &tls.Config{ServerName: s.cfg.Server})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to connect to %s: %w", serverAddr, err)
	}

	c.Timeout = 30 * time.Second
	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		c.Logout()
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("%w: %v", localerrors.ErrMailboxAuthFailed, err)
	}
	c.Timeout = 0

	return c, nil
}
