package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"mailwatch/internal/config"
	"mailwatch/internal/models"
)

const freeMobileEndpoint = "https://smsapi.free-mobile.fr/sendmsg"

// FreeMobile sends the Free Mobile (France) notification SMS, which
// subscribers commonly use to trigger a ring on their handset.
type FreeMobile struct {
	config   config.FreeMobileConfig
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

func NewFreeMobile(cfg config.FreeMobileConfig, logger *zap.Logger) *FreeMobile {
	return &FreeMobile{
		config:   cfg,
		endpoint: freeMobileEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

func (f *FreeMobile) Name() string { return "call_freemobile" }

func (f *FreeMobile) Send(ctx context.Context, event models.EmailEvent) error {
	message := fmt.Sprintf("URGENT: Email from %s. Subject: %s. Check your mailbox.",
		event.Sender, event.TruncateSubject(50))

	params := url.Values{}
	params.Set("user", f.config.User)
	params.Set("pass", f.config.Pass)
	params.Set("msg", message)

	_, status, err := getBody(ctx, f.client, f.endpoint, params)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return fmt.Errorf("free mobile responded %d", status)
	}
	return nil
}
