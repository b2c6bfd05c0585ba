package notify

import (
	"context"

	"go.uber.org/zap"

	"mailwatch/internal/config"
	"mailwatch/internal/models"
)

const fallbackSample = "/usr/share/sounds/alsa/Front_Left.wav"

// Sound plays an alert file through aplay. With no file configured it
// falls back to uploading and playing a bell sample via pactl.
type Sound struct {
	config config.SoundConfig
	runner commandRunner
	logger *zap.Logger
}

func NewSound(cfg config.SoundConfig, logger *zap.Logger) *Sound {
	return &Sound{config: cfg, runner: execRunner{}, logger: logger}
}

func (s *Sound) Name() string { return "sound" }

func (s *Sound) Send(ctx context.Context, _ models.EmailEvent) error {
	if s.config.SoundFile != "" {
		return s.runner.Run(ctx, "aplay", s.config.SoundFile)
	}

	if err := s.runner.Run(ctx, "pactl", "upload-sample", fallbackSample, "bell"); err != nil {
		return err
	}
	return s.runner.Run(ctx, "pactl", "play-sample", "bell")
}
