package notificator

import (
	"context"
	"runtime/debug"

	"github.com/fil-demos/synapse-kit/internal/metrics"
	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/pkg/logger"
)

// Notificator routes alerts to sinks by severity: the console gets everything,
// email and Telegram only critical alerts, the webhook every severity.
// Unconfigured sinks are nil.
type Notificator struct {
	logger *logger.Logger

	Console  models.NotificationService
	Email    models.NotificationService
	Telegram models.NotificationService
	Webhook  models.NotificationService
}

func NewNotificator(logger *logger.Logger, console, email, telegram, webhook models.NotificationService) *Notificator {
	return &Notificator{logger: logger, Console: console, Email: email, Telegram: telegram, Webhook: webhook}
}

// Sinks returns the configured sinks an alert of the given severity goes to.
func (n *Notificator) Sinks(severity models.Severity) []models.NotificationService {
	var sinks []models.NotificationService
	add := func(s models.NotificationService) {
		if s != nil {
			sinks = append(sinks, s)
		}
	}

	add(n.Console)
	if severity == models.SeverityCritical {
		add(n.Email)
		add(n.Telegram)
	}
	add(n.Webhook)
	return sinks
}

// Dispatch sends the alert to every matching sink. Failures are logged and do not stop the others.
func (n *Notificator) Dispatch(ctx context.Context, alert *models.Alert) {
	for _, sink := range n.Sinks(alert.Severity) {
		n.safeCall(sink.Name(), func() error { return sink.SendNotification(ctx, alert) })
	}
}

// safeCall runs a send with panic recovery
func (n *Notificator) safeCall(sink string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.NotificationFailures.WithLabelValues(sink).Inc()
			n.logger.Error("Notification sink panicked",
				"sink", sink,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	if err := fn(); err != nil {
		metrics.NotificationFailures.WithLabelValues(sink).Inc()
		n.logger.Error("Failed to send notification", "sink", sink, "error", err)
	}
}
