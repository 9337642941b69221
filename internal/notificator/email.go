package notificator

import (
	"context"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/pkg/logger"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type EmailNotificator struct {
	logger *logger.Logger

	SMTPHost   string
	SMTPPort   int
	SMTPSender string
	Recipients []string

	SMTPAuth smtp.Auth

	sendMail sendMailFunc
}

func NewEmailNotificator(logger *logger.Logger, SMTPHost string, SMTPPort int, SMTPUser string, SMTPPassword string, SMTPSender string, recipients string) *EmailNotificator {
	var auth smtp.Auth
	if SMTPUser != "" {
		auth = smtp.PlainAuth(
			"",
			SMTPUser,
			SMTPPassword,
			SMTPHost,
		)
	}

	var to []string
	for _, r := range strings.Split(recipients, ",") {
		if r = strings.TrimSpace(r); r != "" {
			to = append(to, r)
		}
	}

	return &EmailNotificator{
		logger:     logger,
		SMTPAuth:   auth,
		SMTPHost:   SMTPHost,
		SMTPPort:   SMTPPort,
		SMTPSender: SMTPSender,
		Recipients: to,
		sendMail:   smtp.SendMail,
	}
}

func (e *EmailNotificator) Name() string { return "email" }

func (e *EmailNotificator) SendNotification(_ context.Context, alert *models.Alert) error {
	if len(e.Recipients) == 0 {
		return fmt.Errorf("no email recipients configured")
	}
	addr := fmt.Sprintf("%s:%s", e.SMTPHost, strconv.Itoa(e.SMTPPort))
	if err := e.sendMail(addr, e.SMTPAuth, e.SMTPSender, e.Recipients, e.message(alert)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	e.logger.Debug("Alert email sent", "rule", alert.RuleID, "recipients", len(e.Recipients))
	return nil
}

func (e *EmailNotificator) message(alert *models.Alert) []byte {
	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(alert.Severity)), alert.Name)
	return []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n\r\nRule: %s\r\nTime: %s\r\n",
		e.SMTPSender,
		strings.Join(e.Recipients, ", "),
		subject,
		alert.Message,
		alert.RuleID,
		alert.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"),
	))
}
