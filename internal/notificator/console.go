package notificator

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/fil-demos/synapse-kit/internal/models"
)

// ConsoleNotificator prints alerts, colored by severity.
type ConsoleNotificator struct {
	out io.Writer
}

func NewConsoleNotificator(out io.Writer) *ConsoleNotificator {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleNotificator{out: out}
}

func (c *ConsoleNotificator) Name() string { return "console" }

func (c *ConsoleNotificator) SendNotification(_ context.Context, alert *models.Alert) error {
	_, err := fmt.Fprintf(c.out, "%s %s %s: %s\n",
		alert.Timestamp.Format(time.RFC3339),
		severityColor(alert.Severity).Sprintf("%-8s", alert.Severity),
		alert.Name,
		alert.Message,
	)
	return err
}

func severityColor(s models.Severity) *color.Color {
	switch s {
	case models.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case models.SeverityError:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}
