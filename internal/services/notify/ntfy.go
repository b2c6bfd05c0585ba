package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"mailwatch/internal/config"
	"mailwatch/internal/models"
)

type ntfyPayload struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
	Click    string   `json:"click,omitempty"`
}

// Ntfy pushes to an ntfy topic with urgent priority. Non-200 responses
// are failures; there is no retry.
type Ntfy struct {
	config config.NtfyConfig
	client *http.Client
	logger *zap.Logger
}

func NewNtfy(cfg config.NtfyConfig, logger *zap.Logger) *Ntfy {
	return &Ntfy{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (n *Ntfy) Name() string { return "ntfy" }

func (n *Ntfy) Send(ctx context.Context, event models.EmailEvent) error {
	message := fmt.Sprintf("👤 **%s**", event.SenderName())
	if preview := compactPreview(event.Preview); preview != "" {
		message += "\n\n💬 " + preview
	}

	tags := n.config.Tags
	if len(tags) == 0 {
		tags = []string{"email"}
	}

	payload := ntfyPayload{
		Title:    "✉️ " + truncate(event.Subject, 40),
		Message:  message,
		Priority: 5,
		Tags:     tags,
		Click:    n.config.ClickURL,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal ntfy payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("ntfy request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ntfy responded %d", resp.StatusCode)
	}

	return nil
}

// compactPreview flattens the preview to a single short line. Previews
// too short to be informative are dropped.
func compactPreview(preview string) string {
	preview = strings.TrimSpace(preview)
	if len(preview) <= 10 {
		return ""
	}
	preview = strings.NewReplacer("\n", " ", "\r", " ").Replace(preview)
	preview = strings.Join(strings.Fields(preview), " ")
	return truncate(preview, 100)
}
