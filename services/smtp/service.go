package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/dmarcwatch/config"
	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/tracing"
)

type smtpSender struct {
	cfg           *config.SMTPConfig
	notifications *config.NotificationConfig
}

func NewSMTPSender(cfg *config.SMTPConfig, notifications *config.NotificationConfig) interfaces.MailSender {
	return &smtpSender{
		cfg:           cfg,
		notifications: notifications,
	}
}

func (s *smtpSender) Send(ctx context.Context, subject, body string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "smtpSender.Send")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("smtp_server", s.cfg.Server)
	span.LogKV("subject", subject)

	recipients := splitRecipients(s.notifications.EmailTo)
	if len(recipients) == 0 {
		return fmt.Errorf("no notification recipients configured")
	}
	from := s.cfg.FromAddress
	if from == "" {
		from = s.cfg.Username
	}

	buffer := buildMessage(from, recipients, subject, body)
	addr := fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Server)

	if err := s.sendWithSTARTTLS(ctx, addr, auth, from, recipients, buffer); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *smtpSender) sendWithSTARTTLS(ctx context.Context, addr string, auth smtp.Auth, from string, recipients []string, buffer *bytes.Buffer) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "smtpSender.sendWithSTARTTLS")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		err = fmt.Errorf("failed to connect to SMTP server: %w", err)
		tracing.TraceErr(span, err)
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Server)
	if err != nil {
		err = fmt.Errorf("failed to create SMTP client: %w", err)
		tracing.TraceErr(span, err)
		return err
	}
	defer client.Close()

	if err = client.StartTLS(&tls.Config{ServerName: s.cfg.Server}); err != nil {
		err = fmt.Errorf("failed to start TLS: %w", err)
		tracing.TraceErr(span, err)
		return err
	}

	if err = client.Auth(auth); err != nil {
		err = fmt.Errorf("SMTP authentication failed: %w", err)
		tracing.TraceErr(span, err)
		return err
	}

	if err = client.Mail(from); err != nil {
		err = fmt.Errorf("SMTP MAIL command failed: %w", err)
		tracing.TraceErr(span, err)
		return err
	}
	for _, recipient := range recipients {
		if err = client.Rcpt(recipient); err != nil {
			err = fmt.Errorf("SMTP RCPT command failed for %s: %w", recipient, err)
			tracing.TraceErr(span, err)
			return err
		}
	}

	dataWriter, err := client.Data()
	if err != nil {
		err = fmt.Errorf("SMTP DATA command failed: %w", err)
		tracing.TraceErr(span, err)
		return err
	}
	if _, err = dataWriter.Write(buffer.Bytes()); err != nil {
		err = fmt.Errorf("failed to write email data: %w", err)
		tracing.TraceErr(span, err)
		return err
	}
	if err = dataWriter.Close(); err != nil {
		err = fmt.Errorf("failed to close data writer: %w", err)
		tracing.TraceErr(span, err)
		return err
	}

	return client.Quit()
}

func buildMessage(from string, recipients []string, subject, body string) *bytes.Buffer {
	buffer := &bytes.Buffer{}
	fmt.Fprintf(buffer, "From: %s\r\n", from)
	fmt.Fprintf(buffer, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(buffer, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(buffer, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	buffer.WriteString("MIME-Version: 1.0\r\n")
	buffer.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buffer.WriteString("\r\n")
	buffer.WriteString(body)
	return buffer
}

func splitRecipients(list string) []string {
	var recipients []string
	for _, part := range strings.Split(list, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			recipients = append(recipients, trimmed)
		}
	}
	return recipients
}
