package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"mailwatch/internal/config"
	"mailwatch/internal/models"
)

// Dispatcher fans a matching email event out to every enabled channel.
// Each send runs in its own goroutine and is fire and forget: the
// monitor loop never waits on a channel, and a failing channel cannot
// block or cancel the others.
type Dispatcher struct {
	channels []models.Channel
	logger   *zap.Logger
	wg       sync.WaitGroup

	sent   atomic.Int64
	failed atomic.Int64
}

// NewDispatcher builds the channel set from the per-channel enable
// flags. A channel whose construction fails (for example a bad bot
// token) is logged and skipped; the rest still run.
func NewDispatcher(cfg config.NotificationsConfig, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{logger: logger}

	if cfg.Desktop.Enabled {
		d.add(NewDesktop(logger))
	}
	if cfg.Sound.Enabled {
		d.add(NewSound(cfg.Sound, logger))
	}
	if cfg.Ntfy.Enabled {
		d.add(NewNtfy(cfg.Ntfy, logger))
	}
	if cfg.Webhook.Enabled {
		d.add(NewWebhook(cfg.Webhook, logger))
	}
	if cfg.TwilioSMS.Enabled {
		d.add(NewTwilioSMS(cfg.TwilioSMS, logger))
	}
	if cfg.WhatsAppCallMeBot.Enabled {
		d.add(NewWhatsAppCallMeBot(cfg.WhatsAppCallMeBot, logger))
	}
	if cfg.WhatsAppTwilio.Enabled {
		d.add(NewTwilioWhatsApp(cfg.WhatsAppTwilio, logger))
	}
	if cfg.CallCallMeBot.Enabled {
		d.add(NewCallCallMeBot(cfg.CallCallMeBot, logger))
	}
	if cfg.CallTwilio.Enabled {
		d.add(NewTwilioCall(cfg.CallTwilio, logger))
	}
	if cfg.CallFreeMobile.Enabled {
		d.add(NewFreeMobile(cfg.CallFreeMobile, logger))
	}
	if cfg.Telegram.Enabled {
		tg, err := NewTelegram(cfg.Telegram, logger)
		if err != nil {
			logger.Error("Failed to initialize Telegram channel, skipping", zap.Error(err))
		} else {
			d.add(tg)
		}
	}
	if cfg.AlarmIntensive.Enabled {
		d.add(NewAlarm(cfg.AlarmIntensive, logger))
	}

	logger.Info("Notification channels loaded", zap.Strings("channels", d.Names()))
	return d
}

func (d *Dispatcher) add(ch models.Channel) {
	d.channels = append(d.channels, ch)
}

// Names lists the active channels in dispatch order.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Dispatch triggers every channel for the event and returns without
// waiting. Failures are logged, never escalated, and never cancel the
// other channels. Sends are detached from the caller's context so a
// shutdown abandons in-flight notifications instead of aborting them;
// each channel bounds itself with its own timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.EmailEvent) {
	sendCtx := context.WithoutCancel(ctx)
	for _, ch := range d.channels {
		d.wg.Add(1)
		go func(ch models.Channel) {
			defer d.wg.Done()
			if err := ch.Send(sendCtx, event); err != nil {
				d.failed.Add(1)
				d.logger.Error("Notification failed",
					zap.String("channel", ch.Name()),
					zap.String("subject", event.Subject),
					zap.Error(err))
				return
			}
			d.sent.Add(1)
			d.logger.Info("Notification sent",
				zap.String("channel", ch.Name()),
				zap.String("subject", event.Subject))
		}(ch)
	}
}

// Wait blocks until every in-flight send has finished. The monitor loop
// never calls this; it exists for tests and a best-effort shutdown drain.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Counters returns the total sends and failures so far.
func (d *Dispatcher) Counters() (sent, failed int64) {
	return d.sent.Load(), d.failed.Load()
}

// truncate shortens s to max characters, appending an ellipsis when
// anything was cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
