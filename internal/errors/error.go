package errors

import "github.com/pkg/errors"

var (
	// storage errors
	ErrReportNotFound = errors.New("report not found")
	ErrStoreFailed    = errors.New("report store failed")

	// narrative provider errors
	ErrNarrativeUnavailable = errors.New("narrative provider unavailable")

	// run errors
	ErrMailboxAuthFailed = errors.New("mailbox authentication failed")
)
