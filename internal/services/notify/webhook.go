package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"mailwatch/internal/config"
	"mailwatch/internal/models"
)

type webhookEnvelope struct {
	Type      string            `json:"type"`
	Timestamp string            `json:"timestamp"`
	Email     models.EmailEvent `json:"email"`
}

// Webhook delivers a generic JSON envelope to a configured URL, by POST
// or GET. Any status below 300 is success.
type Webhook struct {
	config config.WebhookConfig
	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewWebhook(cfg config.WebhookConfig, logger *zap.Logger) *Webhook {
	return &Webhook{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		now:    time.Now,
	}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, event models.EmailEvent) error {
	envelope := webhookEnvelope{
		Type:      "new_email",
		Timestamp: w.now().Format(time.RFC3339),
		Email:     event,
	}

	var req *http.Request
	var err error

	switch strings.ToUpper(w.config.Method) {
	case http.MethodGet:
		params := url.Values{}
		params.Set("type", envelope.Type)
		params.Set("timestamp", envelope.Timestamp)
		params.Set("id", event.ID)
		params.Set("sender", event.Sender)
		params.Set("subject", event.Subject)
		params.Set("content_preview", event.Preview)

		req, err = http.NewRequestWithContext(ctx, http.MethodGet, w.config.URL+"?"+params.Encode(), nil)
		if err != nil {
			return fmt.Errorf("build webhook request: %w", err)
		}

	default:
		body, marshalErr := json.Marshal(envelope)
		if marshalErr != nil {
			return fmt.Errorf("marshal webhook payload: %w", marshalErr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build webhook request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}

	return nil
}
