package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailwatch/internal/config"
	"mailwatch/internal/models"
)

// Alarm repeats a local sound plus desktop popup several times, for the
// cases where a single notification is too easy to miss. The trailing
// delay after the last repetition is skipped.
type Alarm struct {
	config config.AlarmConfig
	runner commandRunner
	logger *zap.Logger
}

func NewAlarm(cfg config.AlarmConfig, logger *zap.Logger) *Alarm {
	return &Alarm{config: cfg, runner: execRunner{}, logger: logger}
}

func (a *Alarm) Name() string { return "alarm_intensive" }

func (a *Alarm) Send(ctx context.Context, event models.EmailEvent) error {
	repeat := a.config.RepeatCount
	interval := time.Duration(a.config.IntervalSeconds) * time.Second
	soundFile := a.config.SoundFile
	if soundFile == "" {
		soundFile = fallbackSample
	}

	a.logger.Info("Triggering intensive alarm",
		zap.Int("repeat_count", repeat),
		zap.String("subject", event.Subject))

	for i := 0; i < repeat; i++ {
		if err := a.runner.Run(ctx, "aplay", soundFile); err != nil {
			a.logger.Warn("Alarm sound failed", zap.Int("repetition", i+1), zap.Error(err))
		}

		message := fmt.Sprintf("(%d/%d) %s... FROM: %s",
			i+1, repeat, event.TruncateSubject(30), event.Sender)
		if err := a.runner.Run(ctx, "notify-send",
			"-u", "critical",
			"-t", "5000",
			"URGENT EMAIL ALERT!",
			message,
		); err != nil {
			a.logger.Warn("Alarm popup failed", zap.Int("repetition", i+1), zap.Error(err))
		}

		if i < repeat-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	}

	return nil
}
