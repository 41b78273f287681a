package interfaces

import (
	"context"
	"time"
)

// ReportAttachment is one candidate aggregate-report payload pulled from
// a mailbox message.
type ReportAttachment struct {
	Filename string
	Content  []byte
}

// ReportMessage is a mailbox message that may carry report attachments.
type ReportMessage struct {
	Subject     string
	From        string
	ReceivedAt  time.Time
	Attachments []ReportAttachment
}

// MailboxService retrieves candidate report messages from the monitored
// mailbox folder.
type MailboxService interface {
	FetchReportMessages(ctx context.Context, since time.Time) ([]ReportMessage, error)
}

// MailSender dispatches a composed report to the configured recipients.
type MailSender interface {
	Send(ctx context.Context, subject, body string) error
}
