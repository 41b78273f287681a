package smtp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	buffer := buildMessage("monitor@example.com", []string{"ops@example.com", "admin@example.com"},
		"[DMARC Monitor] ⚠️ Issues Detected", "body text")

	msg := buffer.String()
	require.Contains(t, msg, "From: monitor@example.com\r\n")
	require.Contains(t, msg, "To: ops@example.com, admin@example.com\r\n")
	require.Contains(t, msg, "Subject: ")
	require.Contains(t, msg, "Content-Type: text/plain; charset=utf-8\r\n")
	require.Contains(t, msg, "\r\n\r\nbody text")
	// Non-ASCII subject must be encoded for the wire.
	require.NotContains(t, msg, "Subject: [DMARC Monitor] ⚠️")
}

func TestSplitRecipients(t *testing.T) {
	require.Equal(t, []string{"a@example.com", "b@example.com"}, splitRecipients("a@example.com, b@example.com"))
	require.Equal(t, []string{"a@example.com"}, splitRecipients("a@example.com,"))
	require.Nil(t, splitRecipients(""))
}
