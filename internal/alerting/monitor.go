package alerting

import (
	"context"
	"time"

	"github.com/fil-demos/synapse-kit/internal/metrics"
	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/pkg/logger"
)

// Dispatcher delivers a fired alert to its sinks.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert *models.Alert)
}

// Monitor evaluates the rules, drops alerts inside the cooldown and dispatches the rest.
type Monitor struct {
	logger *logger.Logger

	evaluator  *Evaluator
	source     Source
	history    *History
	dispatcher Dispatcher

	now func() time.Time
}

func NewMonitor(evaluator *Evaluator, source Source, history *History, dispatcher Dispatcher, logger *logger.Logger) *Monitor {
	return &Monitor{
		logger:     logger,
		evaluator:  evaluator,
		source:     source,
		history:    history,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// WithClock replaces the time source.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// Check runs one evaluation pass and returns the alerts that were dispatched.
func (m *Monitor) Check(ctx context.Context) []*models.Alert {
	now := m.now()
	var fired []*models.Alert
	for _, alert := range m.evaluator.Evaluate(ctx, m.source, now) {
		if !m.history.Allow(alert.RuleID, now) {
			metrics.AlertsSuppressed.WithLabelValues(alert.RuleID).Inc()
			m.logger.Debug("Alert suppressed by cooldown", "rule", alert.RuleID)
			continue
		}
		metrics.AlertsFired.WithLabelValues(alert.RuleID, string(alert.Severity)).Inc()
		m.dispatcher.Dispatch(ctx, alert)
		fired = append(fired, alert)
	}
	m.logger.Info("Alert check finished", "fired", len(fired))
	return fired
}

// Run checks every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	m.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
