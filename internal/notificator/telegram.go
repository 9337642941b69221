package notificator

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"

	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/pkg/logger"
)

type TelegramNotificator struct {
	logger *logger.Logger
	bot    *bot.Bot

	chatID string
}

// NewTelegramNotificator creates a send-only bot for one chat. Extra options are
// passed to the bot client, tests use them to point it at a fake server.
func NewTelegramNotificator(logger *logger.Logger, token, chatID string, opts ...bot.Option) (*TelegramNotificator, error) {
	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramNotificator{logger: logger, bot: b, chatID: chatID}, nil
}

func (t *TelegramNotificator) Name() string { return "telegram" }

func (t *TelegramNotificator) SendNotification(ctx context.Context, alert *models.Alert) error {
	params := &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   alert.String(),
	}
	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
