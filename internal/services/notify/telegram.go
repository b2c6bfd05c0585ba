package notify

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"mailwatch/internal/config"
	"mailwatch/internal/models"
)

// Telegram delivers the alert through a bot. Unlike the HTTP channels
// it retries transient send failures a few times with exponential
// backoff, because the Bot API throttles bursts.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

func NewTelegram(cfg config.TelegramConfig, logger *zap.Logger) (*Telegram, error) {
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			Dial: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).Dial,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			MaxIdleConns:          100,
		},
	}

	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat ID %q: %w", cfg.ChatID, err)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Client = httpClient

	return &Telegram{
		bot:    bot,
		chatID: chatID,
		logger: logger,
	}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, event models.EmailEvent) error {
	text := fmt.Sprintf("📬 *New urgent email!*\n\n*From:* %s\n*Subject:* %s\n\n%s",
		event.Sender, truncate(event.Subject, 100), truncate(event.Preview, 200))

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "Markdown"

	maxRetries := 3
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		_, err := t.bot.Send(msg)
		if err == nil {
			t.logger.Info("Telegram message sent",
				zap.Int64("chat_id", t.chatID),
				zap.Int("attempt", attempt))
			return nil
		}

		lastErr = err
		t.logger.Warn("Failed to send Telegram message",
			zap.Int64("chat_id", t.chatID),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))

		if attempt < maxRetries {
			// Exponential backoff: 1s, 2s, 4s
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("telegram send after %d attempts: %w", maxRetries, lastErr)
}
