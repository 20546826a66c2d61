// Package notifier delivers user-facing messages about key expiry and
// provisioning events.
package notifier

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Message describes one notification addressed to a Telegram account.
type Message struct {
	ChatID    int64
	Text      string
	ParseMode string
}

// Service is the unified notification channel.
type Service interface {
	Send(ctx context.Context, msg Message) error
}

// LoggerService records notification intent without delivering anything.
// Used in tests and when no bot token is configured.
type LoggerService struct {
	logger *slog.Logger
}

// NewLoggerService creates a log-only notification service.
func NewLoggerService(logger *slog.Logger) *LoggerService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LoggerService{logger: logger}
}

// Send logs the notification and reports success.
func (s *LoggerService) Send(ctx context.Context, msg Message) error {
	if msg.ChatID == 0 {
		return fmt.Errorf("notifier: chat id is required")
	}
	s.logger.InfoContext(ctx, "notification",
		slog.Int64("chat_id", msg.ChatID),
		slog.String("text", msg.Text))
	return nil
}

// TelegramService delivers messages through the Telegram Bot API.
type TelegramService struct {
	bot    *bot.Bot
	logger *slog.Logger
}

// NewTelegramService builds the Telegram channel from a bot token.
func NewTelegramService(token string, logger *slog.Logger) (*TelegramService, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("notifier: telegram token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("notifier: create telegram bot: %w", err)
	}
	return &TelegramService{bot: b, logger: logger}, nil
}

// Send posts the message, retrying transient API failures with backoff.
func (s *TelegramService) Send(ctx context.Context, msg Message) error {
	if msg.ChatID == 0 {
		return fmt.Errorf("notifier: chat id is required")
	}

	params := &bot.SendMessageParams{
		ChatID: msg.ChatID,
		Text:   msg.Text,
	}
	if msg.ParseMode != "" {
		params.ParseMode = models.ParseMode(msg.ParseMode)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxElapsedTime = 15 * time.Second

	err := backoff.Retry(func() error {
		_, sendErr := s.bot.SendMessage(ctx, params)
		return sendErr
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return fmt.Errorf("notifier: send telegram message: %w", err)
	}
	return nil
}
