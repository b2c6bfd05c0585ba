package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"mailwatch/internal/config"
	"mailwatch/internal/models"
)

const (
	callMeBotWhatsAppEndpoint = "https://api.callmebot.com/whatsapp.php"
	callMeBotVoiceEndpoint    = "https://api.callmebot.com/"
)

// WhatsAppCallMeBot sends a WhatsApp message through the free CallMeBot
// API. The provider wants the phone number without its leading "+" and
// signals acceptance with "Message queued" in the response body.
type WhatsAppCallMeBot struct {
	config   config.CallMeBotConfig
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

func NewWhatsAppCallMeBot(cfg config.CallMeBotConfig, logger *zap.Logger) *WhatsAppCallMeBot {
	return &WhatsAppCallMeBot{
		config:   cfg,
		endpoint: callMeBotWhatsAppEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

func (w *WhatsAppCallMeBot) Name() string { return "whatsapp_callmebot" }

func (w *WhatsAppCallMeBot) Send(ctx context.Context, event models.EmailEvent) error {
	message := fmt.Sprintf("📧 *New urgent email!*\n\n*From:* %s\n*Subject:* %s\n\n%s",
		event.Sender, truncate(event.Subject, 100), truncate(event.Preview, 200))

	params := url.Values{}
	params.Set("phone", strings.TrimPrefix(w.config.PhoneNumber, "+"))
	params.Set("text", message)
	params.Set("apikey", w.config.APIKey)

	body, _, err := getBody(ctx, w.client, w.endpoint, params)
	if err != nil {
		return err
	}

	if !strings.Contains(body, "Message queued") {
		return fmt.Errorf("callmebot rejected message: %s", truncate(body, 120))
	}
	return nil
}

// CallCallMeBot triggers a voice call that reads an alert out loud.
// Success is "Call queued" in the body or a plain 200.
type CallCallMeBot struct {
	config   config.CallMeBotConfig
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

func NewCallCallMeBot(cfg config.CallMeBotConfig, logger *zap.Logger) *CallCallMeBot {
	return &CallCallMeBot{
		config:   cfg,
		endpoint: callMeBotVoiceEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}
}

func (c *CallCallMeBot) Name() string { return "call_callmebot" }

func (c *CallCallMeBot) Send(ctx context.Context, event models.EmailEvent) error {
	message := fmt.Sprintf("Urgent email alert from %s. Subject: %s. Check your mailbox immediately.",
		event.Sender, event.TruncateSubject(50))

	params := url.Values{}
	params.Set("user", c.config.PhoneNumber)
	params.Set("text", message)

	body, status, err := getBody(ctx, c.client, c.endpoint, params)
	if err != nil {
		return err
	}

	if !strings.Contains(body, "Call queued") && status != http.StatusOK {
		return fmt.Errorf("callmebot call failed (%d): %s", status, truncate(body, 120))
	}
	return nil
}

// getBody performs one GET with query params and returns the response
// body text and status code.
func getBody(ctx context.Context, client *http.Client, endpoint string, params url.Values) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	return string(body), resp.StatusCode, nil
}
