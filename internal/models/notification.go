package models

import (
	"fmt"
	"time"
)

// Severity orders alerts by urgency.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Alert is a fired alert rule, delivered to notification sinks.
type Alert struct {
	// EventID identifies this delivery, so webhook receivers can drop replays.
	EventID   string    `json:"event_id"`
	RuleID    string    `json:"id"`
	Name      string    `json:"name"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (a *Alert) String() string {
	return fmt.Sprintf("[%s] %s: %s", a.Severity, a.Name, a.Message)
}
