package notify

import (
	"context"
	"os/exec"

	"go.uber.org/zap"

	"mailwatch/internal/models"
)

// commandRunner abstracts local utility invocation so the exec-backed
// channels can be tested without a desktop session.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Desktop shows an OS popup through notify-send with critical urgency.
type Desktop struct {
	runner commandRunner
	logger *zap.Logger
}

func NewDesktop(logger *zap.Logger) *Desktop {
	return &Desktop{runner: execRunner{}, logger: logger}
}

func (d *Desktop) Name() string { return "desktop" }

func (d *Desktop) Send(ctx context.Context, event models.EmailEvent) error {
	title := "New mail: " + event.TruncateSubject(50)
	body := "From: " + event.Sender + "\n" + event.Preview

	return d.runner.Run(ctx, "notify-send",
		"-u", "critical",
		"-t", "10000",
		title,
		body,
	)
}
