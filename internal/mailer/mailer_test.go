package mailer

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSenderWritesEnvelope(t *testing.T) {
	var buf bytes.Buffer
	sender := Log{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	require.NoError(t, sender.Send(context.Background(), "a@x.com", "Hello", "body", ""))

	out := buf.String()
	assert.Contains(t, out, "to=a@x.com")
	assert.Contains(t, out, "subject=Hello")
	assert.NotContains(t, out, "body")
}

func TestNewMailgunKeepsSender(t *testing.T) {
	m := NewMailgun("mg.example.com", "key-123", "DevCampus <no-reply@example.com>")
	assert.Equal(t, "DevCampus <no-reply@example.com>", m.sender)
	assert.Equal(t, "mg.example.com", m.client.Domain())
}
