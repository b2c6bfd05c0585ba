package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)

	// The template must now exist on disk.
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.True(t, cfg.Notifications.Desktop.Enabled)
	require.True(t, cfg.Notifications.Sound.Enabled)
	require.False(t, cfg.Notifications.Ntfy.Enabled)
	require.False(t, cfg.Notifications.Webhook.Enabled)
	require.False(t, cfg.Notifications.TwilioSMS.Enabled)
	require.False(t, cfg.Notifications.Telegram.Enabled)
	require.False(t, cfg.Notifications.AlarmIntensive.Enabled)

	require.Equal(t, "INBOX", cfg.Monitoring.Mailbox)
	require.Equal(t, 993, cfg.Email.Port)
	require.True(t, cfg.Email.UseSSL)
}

func TestLoadMalformedReturnsParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(path)
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	minimal := `{"email": {"server": "mail.example.com", "port": 993, "username": "u", "password": "p", "use_ssl": true}}`
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 60, cfg.Monitoring.CheckInterval)
	require.Equal(t, "INBOX", cfg.Monitoring.Mailbox)
	require.Equal(t, 3, cfg.Retry.ConnectAttempts)
	require.Equal(t, 30, cfg.Retry.ConnectDelaySeconds)
	require.Equal(t, 5, cfg.Retry.ReconnectAttempts)
	require.Equal(t, 60, cfg.Retry.ReconnectDelaySeconds)
	require.Equal(t, 3, cfg.Retry.PollErrorThreshold)
	require.Equal(t, 5, cfg.Notifications.AlarmIntensive.RepeatCount)
	require.Equal(t, 2, cfg.Notifications.AlarmIntensive.IntervalSeconds)
	require.Equal(t, "POST", cfg.Notifications.Webhook.Method)
}

func TestCreateDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, CreateDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)

	want := Default()
	require.Equal(t, want.Filters.SubjectKeywords, cfg.Filters.SubjectKeywords)
	require.Equal(t, want.Retry, cfg.Retry)
	require.Equal(t, want.Monitoring, cfg.Monitoring)
}
