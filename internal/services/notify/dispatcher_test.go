package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailwatch/internal/config"
	"mailwatch/internal/models"
)

type recordingChannel struct {
	name string
	fail bool

	mu    sync.Mutex
	calls int
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(_ context.Context, _ models.EmailEvent) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.fail {
		return errors.New("send failed")
	}
	return nil
}

func (c *recordingChannel) sends() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestDispatchInvokesEveryChannel(t *testing.T) {
	a := &recordingChannel{name: "a"}
	b := &recordingChannel{name: "b"}

	d := &Dispatcher{logger: zap.NewNop()}
	d.add(a)
	d.add(b)

	d.Dispatch(context.Background(), models.EmailEvent{Subject: "URGENT"})
	d.Wait()

	require.Equal(t, 1, a.sends())
	require.Equal(t, 1, b.sends())

	sent, failed := d.Counters()
	require.EqualValues(t, 2, sent)
	require.EqualValues(t, 0, failed)
}

func TestDispatchFailureDoesNotBlockOthers(t *testing.T) {
	failing := &recordingChannel{name: "failing", fail: true}
	healthy := &recordingChannel{name: "healthy"}

	d := &Dispatcher{logger: zap.NewNop()}
	d.add(failing)
	d.add(healthy)

	d.Dispatch(context.Background(), models.EmailEvent{})
	d.Wait()

	require.Equal(t, 1, failing.sends())
	require.Equal(t, 1, healthy.sends())

	sent, failedCount := d.Counters()
	require.EqualValues(t, 1, sent)
	require.EqualValues(t, 1, failedCount)
}

// contextCheckingChannel fails exactly when the context it receives is
// already done.
type contextCheckingChannel struct {
	name string
}

func (c *contextCheckingChannel) Name() string { return c.name }

func (c *contextCheckingChannel) Send(ctx context.Context, _ models.EmailEvent) error {
	return ctx.Err()
}

func TestDispatchOutlivesCallerContext(t *testing.T) {
	ch := &contextCheckingChannel{name: "slow"}

	d := &Dispatcher{logger: zap.NewNop()}
	d.add(ch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// In-flight sends are abandoned on shutdown, not cancelled: a send
	// started from an already-cancelled caller must still go through.
	d.Dispatch(ctx, models.EmailEvent{Subject: "URGENT"})
	d.Wait()

	sent, failed := d.Counters()
	require.EqualValues(t, 1, sent)
	require.EqualValues(t, 0, failed)
}

func TestNewDispatcherRespectsEnableFlags(t *testing.T) {
	cfg := config.NotificationsConfig{}
	cfg.Desktop.Enabled = true
	cfg.Webhook.Enabled = true
	cfg.Webhook.URL = "https://hooks.example.com/x"
	cfg.Webhook.Method = "POST"

	d := NewDispatcher(cfg, zap.NewNop())
	require.Equal(t, []string{"desktop", "webhook"}, d.Names())
}

func TestNewDispatcherAllDisabled(t *testing.T) {
	d := NewDispatcher(config.NotificationsConfig{}, zap.NewNop())
	require.Empty(t, d.Names())
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", truncate("abc", 5))
	require.Equal(t, "ab...", truncate("abcdef", 2))
	require.Equal(t, "abcde", truncate("abcde", 5))
}
