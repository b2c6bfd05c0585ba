package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"

	"mailwatch/internal/config"
)

// Client dials and authenticates mailbox sessions. It owns the retry
// policy for the initial connect; the monitor loop owns reconnection.
type Client struct {
	config config.EmailConfig
	retry  config.RetryConfig
	logger *zap.Logger
}

func NewClient(emailConfig config.EmailConfig, retryConfig config.RetryConfig, logger *zap.Logger) *Client {
	return &Client{
		config: emailConfig,
		retry:  retryConfig,
		logger: logger,
	}
}

// Session is an authenticated connection to the remote mailbox. It is
// owned exclusively by the monitor loop and never shared.
type Session struct {
	cli    *client.Client
	logger *zap.Logger
}

// Connect establishes a session: dial (TLS per config), login, select
// the given mailbox. Transient failures are retried up to the configured
// attempt count with a fixed delay between attempts, because the server
// may soft-block repeated failed logins. Authentication failures are
// returned immediately as an AuthError and must not be retried.
func (c *Client) Connect(ctx context.Context, mailbox string) (*Session, error) {
	delay := time.Duration(c.retry.ConnectDelaySeconds) * time.Second
	var lastErr error

	for attempt := 1; attempt <= c.retry.ConnectAttempts; attempt++ {
		c.logger.Info("Connecting to IMAP server",
			zap.String("server", c.config.Server),
			zap.Int("port", c.config.Port),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.retry.ConnectAttempts))

		session, err := c.connectOnce(mailbox)
		if err == nil {
			c.logger.Info("IMAP connection established")
			return session, nil
		}

		lastErr = err
		c.logger.Error("IMAP connection failed",
			zap.Int("attempt", attempt),
			zap.Error(err))

		if IsAuthError(err) {
			return nil, err
		}
		if !IsTransient(err) {
			return nil, &ConnectionError{Err: err}
		}

		if attempt < c.retry.ConnectAttempts {
			c.logger.Warn("Possible temporary server block, waiting before retry",
				zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	c.logger.Error("All connection attempts failed, the server may be blocking this client",
		zap.Int("attempts", c.retry.ConnectAttempts))
	return nil, &ConnectionError{Err: lastErr, RetriesExhausted: true}
}

func (c *Client) connectOnce(mailbox string) (*Session, error) {
	addr := fmt.Sprintf("%s:%d", c.config.Server, c.config.Port)

	var cli *client.Client
	var err error
	if c.config.UseSSL {
		cli, err = client.DialTLS(addr, &tls.Config{ServerName: c.config.Server})
	} else {
		cli, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if err := cli.Login(c.config.Username, c.config.Password); err != nil {
		if logoutErr := cli.Logout(); logoutErr != nil {
			c.logger.Error("Failed to logout after login failure", zap.Error(logoutErr))
		}
		if IsTransient(err) {
			return nil, fmt.Errorf("login: %w", err)
		}
		return nil, &AuthError{Username: c.config.Username, Err: err}
	}

	session := &Session{cli: cli, logger: c.logger}
	if err := session.SelectMailbox(mailbox); err != nil {
		session.Close()
		return nil, err
	}

	return session, nil
}

// SelectMailbox selects the named folder for subsequent search/fetch.
func (s *Session) SelectMailbox(name string) error {
	if _, err := s.cli.Select(name, false); err != nil {
		return fmt.Errorf("select %s: %w", name, err)
	}
	return nil
}

// SearchUnseen returns the sequence numbers of unread messages.
func (s *Session) SearchUnseen() ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	ids, err := s.cli.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("search unseen: %w", err)
	}
	return ids, nil
}

// FetchRaw retrieves the full raw message for one sequence number. The
// fetch is deliberately not a peek: the store marks the message seen, so
// the next unseen search will not return it again.
func (s *Session) FetchRaw(id uint32) ([]byte, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(id)

	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- s.cli.Fetch(seqset, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var raw []byte
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		buf, err := io.ReadAll(body)
		if err != nil {
			s.logger.Error("Failed to read message body", zap.Uint32("id", id), zap.Error(err))
			continue
		}
		raw = buf
	}

	if err := <-done; err != nil {
		return nil, &FetchError{ID: id, Err: err}
	}
	if raw == nil {
		return nil, &FetchError{ID: id, Err: fmt.Errorf("empty body section")}
	}

	return raw, nil
}

// Close logs out best-effort; errors are logged and swallowed because
// close happens on shutdown or error paths where nothing can react.
func (s *Session) Close() {
	if err := s.cli.Logout(); err != nil {
		s.logger.Debug("IMAP logout failed", zap.Error(err))
	}
}
