package monitor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mailwatch/internal/config"
	"mailwatch/internal/models"
	"mailwatch/internal/services/decoder"
	"mailwatch/internal/services/email"
)

// State is the monitor loop's current position in its lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnectedIdle
	StatePolling
	StateReconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnectedIdle:
		return "connected-idle"
	case StatePolling:
		return "polling"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Session is the slice of a mailbox session the loop needs.
type Session interface {
	SearchUnseen() ([]uint32, error)
	FetchRaw(id uint32) ([]byte, error)
	Close()
}

// Connector dials and authenticates new sessions.
type Connector interface {
	Connect(ctx context.Context, mailbox string) (Session, error)
}

// Decoder turns raw message bytes into text fields.
type Decoder interface {
	Decode(raw []byte) (decoder.Decoded, error)
}

// Matcher applies the configured filter rules.
type Matcher interface {
	Matches(sender, subject, body string) bool
}

// Notifier fans matching events out to the channels.
type Notifier interface {
	Dispatch(ctx context.Context, event models.EmailEvent)
}

// NewIMAPConnector adapts the concrete IMAP client to the Connector
// interface.
func NewIMAPConnector(client *email.Client) Connector {
	return imapConnector{client: client}
}

type imapConnector struct {
	client *email.Client
}

func (c imapConnector) Connect(ctx context.Context, mailbox string) (Session, error) {
	session, err := c.client.Connect(ctx, mailbox)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Snapshot is a point-in-time view of the loop for the status server.
type Snapshot struct {
	State      string    `json:"state"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	LastPoll   time.Time `json:"last_poll,omitzero"`
	Polls      int64     `json:"polls"`
	Matched    int64     `json:"matched"`
	Rejected   int64     `json:"rejected"`
	StopReason string    `json:"stop_reason,omitempty"`
}

// Monitor drives connect, poll, decode, filter, dispatch and the
// reconnect policy. It is the sole owner of the mailbox session.
type Monitor struct {
	connector Connector
	decoder   Decoder
	filter    Matcher
	notifier  Notifier
	config    *config.Config
	logger    *zap.Logger

	// interval and reconnectDelay default from config; tests shrink them.
	interval       time.Duration
	reconnectDelay time.Duration

	state      atomic.Int32
	polls      atomic.Int64
	matched    atomic.Int64
	rejected   atomic.Int64
	lastPoll   atomic.Int64 // unix nanos, 0 = never
	startedAt  atomic.Int64 // unix nanos, 0 = not started
	stopReason atomic.Value // string
}

func New(connector Connector, dec Decoder, matcher Matcher, notifier Notifier, cfg *config.Config, logger *zap.Logger) *Monitor {
	m := &Monitor{
		connector: connector,
		decoder:   dec,
		filter:    matcher,
		notifier:  notifier,
		config:    cfg,
		logger:    logger,
	}
	m.stopReason.Store("")
	return m
}

// State returns the loop's current state.
func (m *Monitor) State() State {
	return State(m.state.Load())
}

func (m *Monitor) setState(s State) {
	old := State(m.state.Swap(int32(s)))
	if old != s {
		m.logger.Debug("Monitor state changed",
			zap.String("from", old.String()),
			zap.String("to", s.String()))
	}
}

// Snapshot returns current counters and state.
func (m *Monitor) Snapshot() Snapshot {
	snap := Snapshot{
		State:      m.State().String(),
		Polls:      m.polls.Load(),
		Matched:    m.matched.Load(),
		Rejected:   m.rejected.Load(),
		StopReason: m.stopReason.Load().(string),
	}
	if nanos := m.startedAt.Load(); nanos != 0 {
		snap.StartedAt = time.Unix(0, nanos)
	}
	if nanos := m.lastPoll.Load(); nanos != 0 {
		snap.LastPoll = time.Unix(0, nanos)
	}
	return snap
}

// Run blocks until the external context is cancelled, the credentials
// are rejected, or the reconnect budget is exhausted. The returned
// error is non-nil only for the fatal classes.
func (m *Monitor) Run(ctx context.Context) error {
	m.startedAt.Store(time.Now().UnixNano())
	interval := m.interval
	if interval == 0 {
		interval = time.Duration(m.config.Monitoring.CheckInterval) * time.Second
	}
	reconnectDelay := m.reconnectDelay
	if reconnectDelay == 0 {
		reconnectDelay = time.Duration(m.config.Retry.ReconnectDelaySeconds) * time.Second
	}
	maxReconnects := m.config.Retry.ReconnectAttempts

	m.logger.Info("Monitoring started",
		zap.Duration("check_interval", interval),
		zap.String("mailbox", m.config.Monitoring.Mailbox))

	connRetries := 0

	for {
		if ctx.Err() != nil {
			return m.stop("stop requested", nil)
		}

		// Every dial starts from disconnected, including the hop out of
		// reconnecting after a dead session.
		m.setState(StateDisconnected)
		session, err := m.connector.Connect(ctx, m.config.Monitoring.Mailbox)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return m.stop("stop requested", nil)
			}
			if email.IsAuthError(err) {
				return m.stop("authentication rejected, operator intervention required", err)
			}

			connRetries++
			m.logger.Error("Connection attempt failed",
				zap.Int("retry", connRetries),
				zap.Int("max_retries", maxReconnects),
				zap.Error(err))

			if connRetries >= maxReconnects {
				return m.stop("giving up after repeated connection failures", err)
			}

			m.logger.Info("Waiting before next connection attempt",
				zap.Duration("delay", reconnectDelay))
			if !sleepCtx(ctx, reconnectDelay) {
				return m.stop("stop requested", nil)
			}
			continue
		}

		// Successful connect resets the retry counter.
		connRetries = 0
		m.setState(StateConnectedIdle)

		err = m.pollLoop(ctx, session, interval)
		session.Close()

		if ctx.Err() != nil {
			return m.stop("stop requested", nil)
		}

		m.logger.Warn("Too many consecutive polling errors, reconnecting", zap.Error(err))
		m.setState(StateReconnecting)
	}
}

// pollLoop runs poll cycles on one session until the context is
// cancelled or consecutive transient errors cross the threshold.
func (m *Monitor) pollLoop(ctx context.Context, session Session, interval time.Duration) error {
	threshold := m.config.Retry.PollErrorThreshold
	consecutive := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		m.setState(StatePolling)
		err := m.poll(ctx, session)
		m.polls.Add(1)
		m.lastPoll.Store(time.Now().UnixNano())
		m.setState(StateConnectedIdle)

		if err == nil {
			consecutive = 0
			if !sleepCtx(ctx, interval) {
				return ctx.Err()
			}
			continue
		}

		if email.IsTransient(err) {
			consecutive++
			m.logger.Warn("Transient polling error",
				zap.Int("consecutive", consecutive),
				zap.Int("threshold", threshold),
				zap.Error(err))
			if consecutive >= threshold {
				return err
			}
			// Retry in place with a widened wait before reconnecting.
			if !sleepCtx(ctx, 2*interval) {
				return ctx.Err()
			}
			continue
		}

		m.logger.Error("Polling error", zap.Error(err))
		if !sleepCtx(ctx, interval) {
			return ctx.Err()
		}
	}
}

// poll runs one search/fetch/decode/filter/dispatch cycle. Per-message
// failures are skipped; only search and transient fetch errors bubble.
func (m *Monitor) poll(ctx context.Context, session Session) error {
	ids, err := session.SearchUnseen()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	m.logger.Info("Found unread emails", zap.Int("count", len(ids)))

	for _, id := range ids {
		raw, err := session.FetchRaw(id)
		if err != nil {
			if email.IsTransient(err) {
				return err
			}
			m.logger.Error("Failed to fetch message, skipping",
				zap.Uint32("id", id),
				zap.Error(err))
			continue
		}

		decoded, err := m.decoder.Decode(raw)
		if err != nil {
			m.logger.Error("Failed to decode message, skipping",
				zap.Uint32("id", id),
				zap.Error(err))
			continue
		}

		if !m.filter.Matches(decoded.Sender, decoded.Subject, decoded.Body) {
			m.rejected.Add(1)
			continue
		}

		event := models.NewEmailEvent(
			strconv.FormatUint(uint64(id), 10),
			decoded.Sender,
			decoded.Subject,
			decoded.Date,
			decoded.Body,
		)
		m.matched.Add(1)
		m.logger.Info("Matching email detected",
			zap.String("subject", event.Subject),
			zap.String("sender", event.Sender))

		m.notifier.Dispatch(ctx, event)
	}

	return nil
}

// stop transitions to the terminal state, logging the reason. Fatal
// causes are returned so the process can exit non-zero.
func (m *Monitor) stop(reason string, cause error) error {
	m.setState(StateStopped)
	m.stopReason.Store(reason)
	if cause != nil {
		m.logger.Error("Monitoring stopped", zap.String("reason", reason), zap.Error(cause))
		return fmt.Errorf("%s: %w", reason, cause)
	}
	m.logger.Info("Monitoring stopped", zap.String("reason", reason))
	return nil
}

// sleepCtx waits for d and reports false if the context was cancelled
// first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
