package notificator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/pkg/logger"
)

type fakeSink struct {
	name string
	err  error
	sent []*models.Alert
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) SendNotification(_ context.Context, a *models.Alert) error {
	f.sent = append(f.sent, a)
	return f.err
}

type panicSink struct{}

func (panicSink) Name() string { return "panic" }
func (panicSink) SendNotification(context.Context, *models.Alert) error {
	panic("boom")
}

func testAlert(sev models.Severity) *models.Alert {
	return &models.Alert{
		EventID:   "evt-1",
		RuleID:    "available-funds-low",
		Name:      "Low available funds",
		Severity:  sev,
		Message:   "payment account has 0 USDFC available",
		Timestamp: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestNotificator_SeverityRouting(t *testing.T) {
	tests := []struct {
		severity models.Severity
		email    int
		telegram int
	}{
		{models.SeverityWarning, 0, 0},
		{models.SeverityError, 0, 0},
		{models.SeverityCritical, 1, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			console, email, tg, hook := &fakeSink{name: "console"}, &fakeSink{name: "email"}, &fakeSink{name: "telegram"}, &fakeSink{name: "webhook"}
			n := NewNotificator(logger.NewNop(), console, email, tg, hook)

			n.Dispatch(context.Background(), testAlert(tt.severity))

			assert.Len(t, console.sent, 1)
			assert.Len(t, email.sent, tt.email)
			assert.Len(t, tg.sent, tt.telegram)
			assert.Len(t, hook.sent, 1)
		})
	}
}

func TestNotificator_UnconfiguredSinks(t *testing.T) {
	console := &fakeSink{name: "console"}
	n := NewNotificator(logger.NewNop(), console, nil, nil, nil)

	assert.Len(t, n.Sinks(models.SeverityCritical), 1)
	n.Dispatch(context.Background(), testAlert(models.SeverityCritical))
	assert.Len(t, console.sent, 1)
}

func TestNotificator_FailuresDoNotStopDelivery(t *testing.T) {
	console := &fakeSink{name: "console", err: errors.New("closed pipe")}
	hook := &fakeSink{name: "webhook"}
	n := NewNotificator(logger.NewNop(), console, panicSink{}, nil, hook)

	n.Dispatch(context.Background(), testAlert(models.SeverityCritical))
	assert.Len(t, console.sent, 1)
	assert.Len(t, hook.sent, 1)
}

func TestConsoleNotificator(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleNotificator(&buf)
	require.NoError(t, c.SendNotification(context.Background(), testAlert(models.SeverityWarning)))

	out := buf.String()
	assert.Contains(t, out, "2025-03-01T10:00:00Z")
	assert.Contains(t, out, "warning")
	assert.Contains(t, out, "Low available funds: payment account has 0 USDFC available")
}

func TestWebhookNotificator(t *testing.T) {
	var got models.Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhookNotificator(srv.URL)
	require.NoError(t, w.SendNotification(context.Background(), testAlert(models.SeverityError)))
	assert.Equal(t, "available-funds-low", got.RuleID)
	assert.Equal(t, models.SeverityError, got.Severity)
	assert.Equal(t, "evt-1", got.EventID)
}

func TestWebhookNotificator_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotificator(srv.URL).SendNotification(context.Background(), testAlert(models.SeverityError))
	assert.ErrorContains(t, err, "502")
}

func TestEmailNotificator(t *testing.T) {
	e := NewEmailNotificator(logger.NewNop(), "smtp.example.com", 587, "user", "secret", "alerts@example.com", "ops@example.com, oncall@example.com")

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	e.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		assert.Equal(t, "alerts@example.com", from)
		return nil
	}

	require.NoError(t, e.SendNotification(context.Background(), testAlert(models.SeverityCritical)))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"ops@example.com", "oncall@example.com"}, gotTo)
	assert.True(t, strings.Contains(gotMsg, "Subject: [CRITICAL] Low available funds\r\n"))
	assert.Contains(t, gotMsg, "Rule: available-funds-low")
}

func TestEmailNotificator_Error(t *testing.T) {
	e := NewEmailNotificator(logger.NewNop(), "smtp.example.com", 25, "", "", "alerts@example.com", "ops@example.com")
	e.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
	assert.ErrorContains(t, e.SendNotification(context.Background(), testAlert(models.SeverityCritical)), "refused")

	empty := NewEmailNotificator(logger.NewNop(), "smtp.example.com", 25, "", "", "alerts@example.com", "")
	assert.Error(t, empty.SendNotification(context.Background(), testAlert(models.SeverityCritical)))
}

func TestTelegramNotificator(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
	}))
	defer srv.Close()

	tg, err := NewTelegramNotificator(logger.NewNop(), "test-token", "42", bot.WithServerURL(srv.URL))
	require.NoError(t, err)
	require.NoError(t, tg.SendNotification(context.Background(), testAlert(models.SeverityCritical)))
	assert.Equal(t, int32(1), calls.Load())
}
