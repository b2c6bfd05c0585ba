package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Email         EmailConfig         `mapstructure:"email" json:"email"`
	Filters       FilterConfig        `mapstructure:"filters" json:"filters"`
	Notifications NotificationsConfig `mapstructure:"notifications" json:"notifications"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring" json:"monitoring"`
	Retry         RetryConfig         `mapstructure:"retry" json:"retry"`
	Server        ServerConfig        `mapstructure:"server" json:"server"`
	Logging       LoggingConfig       `mapstructure:"logging" json:"logging"`
}

type EmailConfig struct {
	Server   string `mapstructure:"server" json:"server"`
	Port     int    `mapstructure:"port" json:"port"`
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"password"`
	UseSSL   bool   `mapstructure:"use_ssl" json:"use_ssl"`
}

type FilterConfig struct {
	Senders         []string `mapstructure:"senders" json:"senders"`
	Keywords        []string `mapstructure:"keywords" json:"keywords"`
	SubjectKeywords []string `mapstructure:"subject_keywords" json:"subject_keywords"`
}

type NotificationsConfig struct {
	Desktop           DesktopConfig    `mapstructure:"desktop" json:"desktop"`
	Sound             SoundConfig      `mapstructure:"sound" json:"sound"`
	Ntfy              NtfyConfig       `mapstructure:"ntfy" json:"ntfy"`
	Webhook           WebhookConfig    `mapstructure:"webhook" json:"webhook"`
	TwilioSMS         TwilioConfig     `mapstructure:"twilio_sms" json:"twilio_sms"`
	WhatsAppCallMeBot CallMeBotConfig  `mapstructure:"whatsapp_callmebot" json:"whatsapp_callmebot"`
	WhatsAppTwilio    TwilioConfig     `mapstructure:"whatsapp_twilio" json:"whatsapp_twilio"`
	CallCallMeBot     CallMeBotConfig  `mapstructure:"call_callmebot" json:"call_callmebot"`
	CallTwilio        TwilioConfig     `mapstructure:"call_twilio" json:"call_twilio"`
	CallFreeMobile    FreeMobileConfig `mapstructure:"call_freemobile" json:"call_freemobile"`
	Telegram          TelegramConfig   `mapstructure:"telegram" json:"telegram"`
	AlarmIntensive    AlarmConfig      `mapstructure:"alarm_intensive" json:"alarm_intensive"`
}

type DesktopConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
}

type SoundConfig struct {
	Enabled   bool   `mapstructure:"enabled" json:"enabled"`
	SoundFile string `mapstructure:"sound_file" json:"sound_file"`
}

type NtfyConfig struct {
	Enabled  bool     `mapstructure:"enabled" json:"enabled"`
	URL      string   `mapstructure:"url" json:"url"`
	Tags     []string `mapstructure:"tags" json:"tags"`
	ClickURL string   `mapstructure:"click_url" json:"click_url"`
}

type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	URL     string `mapstructure:"url" json:"url"`
	Method  string `mapstructure:"method" json:"method"`
}

type TwilioConfig struct {
	Enabled    bool   `mapstructure:"enabled" json:"enabled"`
	AccountSID string `mapstructure:"account_sid" json:"account_sid"`
	AuthToken  string `mapstructure:"auth_token" json:"auth_token"`
	FromNumber string `mapstructure:"from_number" json:"from_number"`
	ToNumber   string `mapstructure:"to_number" json:"to_number"`
	Message    string `mapstructure:"message,omitempty" json:"message,omitempty"`
}

type CallMeBotConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	PhoneNumber string `mapstructure:"phone_number" json:"phone_number"`
	APIKey      string `mapstructure:"api_key" json:"api_key"`
}

type FreeMobileConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	User    string `mapstructure:"user" json:"user"`
	Pass    string `mapstructure:"pass" json:"pass"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled" json:"enabled"`
	BotToken string `mapstructure:"bot_token" json:"bot_token"`
	ChatID   string `mapstructure:"chat_id" json:"chat_id"`
}

type AlarmConfig struct {
	Enabled         bool   `mapstructure:"enabled" json:"enabled"`
	RepeatCount     int    `mapstructure:"repeat_count" json:"repeat_count"`
	IntervalSeconds int    `mapstructure:"interval_seconds" json:"interval_seconds"`
	SoundFile       string `mapstructure:"sound_file" json:"sound_file"`
}

type MonitoringConfig struct {
	CheckInterval int    `mapstructure:"check_interval" json:"check_interval"` // seconds
	Mailbox       string `mapstructure:"mailbox" json:"mailbox"`
}

// RetryConfig carries the connection retry and backoff knobs. They were
// hardcoded historically; exposing them lets operators tune behaviour for
// servers that soft-block repeated logins.
type RetryConfig struct {
	ConnectAttempts       int `mapstructure:"connect_attempts" json:"connect_attempts"`
	ConnectDelaySeconds   int `mapstructure:"connect_delay_seconds" json:"connect_delay_seconds"`
	ReconnectAttempts     int `mapstructure:"reconnect_attempts" json:"reconnect_attempts"`
	ReconnectDelaySeconds int `mapstructure:"reconnect_delay_seconds" json:"reconnect_delay_seconds"`
	PollErrorThreshold    int `mapstructure:"poll_error_threshold" json:"poll_error_threshold"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Address string `mapstructure:"address" json:"address"`
}

type LoggingConfig struct {
	File string `mapstructure:"file" json:"file"`
}

// ParseError marks persisted configuration that exists but cannot be
// decoded. It is fatal: credentials cannot be safely guessed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Load reads the JSON configuration at path. A missing file triggers
// CreateDefault followed by a second read, so first runs produce a
// template the operator can fill in. Malformed data returns a ParseError.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err == nil {
		return cfg, nil
	}

	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
		if createErr := CreateDefault(path); createErr != nil {
			return nil, createErr
		}
		return read(path)
	}

	return nil, err
}

func read(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, &ParseError{Path: path, Err: err}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// CreateDefault writes a template configuration with placeholder
// credentials. Only the local desktop and sound channels start enabled.
func CreateDefault(path string) error {
	data, err := json.MarshalIndent(Default(), "", "    ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write default config %s: %w", path, err)
	}

	return nil
}

// Default returns the template configuration synthesized on first run.
func Default() Config {
	return Config{
		Email: EmailConfig{
			Server:   "mail.example.com",
			Port:     993,
			Username: "your.email@example.com",
			Password: "your_password",
			UseSSL:   true,
		},
		Filters: FilterConfig{
			Senders:         []string{"sender1@example.com", "sender2@example.com"},
			Keywords:        []string{"urgent", "important", "alerte"},
			SubjectKeywords: []string{"URGENT", "ALERTE"},
		},
		Notifications: NotificationsConfig{
			Desktop: DesktopConfig{Enabled: true},
			Sound: SoundConfig{
				Enabled:   true,
				SoundFile: "/usr/share/sounds/alsa/Front_Left.wav",
			},
			Ntfy: NtfyConfig{
				URL:  "https://ntfy.sh/your-unique-topic",
				Tags: []string{"email"},
			},
			Webhook: WebhookConfig{
				URL:    "https://hooks.example.com/catch/...",
				Method: "POST",
			},
			TwilioSMS: TwilioConfig{
				AccountSID: "YOUR_ACCOUNT_SID",
				AuthToken:  "YOUR_AUTH_TOKEN",
				FromNumber: "+1234567890",
				ToNumber:   "+0987654321",
			},
			WhatsAppCallMeBot: CallMeBotConfig{
				PhoneNumber: "+33612345678",
				APIKey:      "YOUR_CALLMEBOT_API_KEY",
			},
			WhatsAppTwilio: TwilioConfig{
				AccountSID: "YOUR_ACCOUNT_SID",
				AuthToken:  "YOUR_AUTH_TOKEN",
				FromNumber: "whatsapp:+14155238886",
				ToNumber:   "whatsapp:+33612345678",
			},
			CallCallMeBot: CallMeBotConfig{
				PhoneNumber: "+33612345678",
				APIKey:      "YOUR_CALLMEBOT_API_KEY",
			},
			CallTwilio: TwilioConfig{
				AccountSID: "YOUR_ACCOUNT_SID",
				AuthToken:  "YOUR_AUTH_TOKEN",
				FromNumber: "+15551234567",
				ToNumber:   "+33612345678",
				Message:    "You have received an urgent email. Check your mailbox.",
			},
			CallFreeMobile: FreeMobileConfig{
				User: "YOUR_FREE_LOGIN",
				Pass: "YOUR_FREE_API_KEY",
			},
			Telegram: TelegramConfig{
				BotToken: "YOUR_BOT_TOKEN",
				ChatID:   "123456789",
			},
			AlarmIntensive: AlarmConfig{
				RepeatCount:     5,
				IntervalSeconds: 2,
				SoundFile:       "/usr/share/sounds/alsa/Front_Left.wav",
			},
		},
		Monitoring: MonitoringConfig{
			CheckInterval: 5,
			Mailbox:       "INBOX",
		},
		Retry: RetryConfig{
			ConnectAttempts:       3,
			ConnectDelaySeconds:   30,
			ReconnectAttempts:     5,
			ReconnectDelaySeconds: 60,
			PollErrorThreshold:    3,
		},
		Server: ServerConfig{
			Enabled: false,
			Address: ":8710",
		},
		Logging: LoggingConfig{
			File: "mailwatch.log",
		},
	}
}

func (c *Config) applyDefaults() {
	if c.Monitoring.CheckInterval <= 0 {
		c.Monitoring.CheckInterval = 60
	}
	if c.Monitoring.Mailbox == "" {
		c.Monitoring.Mailbox = "INBOX"
	}
	if c.Retry.ConnectAttempts <= 0 {
		c.Retry.ConnectAttempts = 3
	}
	if c.Retry.ConnectDelaySeconds <= 0 {
		c.Retry.ConnectDelaySeconds = 30
	}
	if c.Retry.ReconnectAttempts <= 0 {
		c.Retry.ReconnectAttempts = 5
	}
	if c.Retry.ReconnectDelaySeconds <= 0 {
		c.Retry.ReconnectDelaySeconds = 60
	}
	if c.Retry.PollErrorThreshold <= 0 {
		c.Retry.PollErrorThreshold = 3
	}
	if c.Notifications.AlarmIntensive.RepeatCount <= 0 {
		c.Notifications.AlarmIntensive.RepeatCount = 5
	}
	if c.Notifications.AlarmIntensive.IntervalSeconds <= 0 {
		c.Notifications.AlarmIntensive.IntervalSeconds = 2
	}
	if c.Notifications.Webhook.Method == "" {
		c.Notifications.Webhook.Method = "POST"
	}
	if c.Logging.File == "" {
		c.Logging.File = "mailwatch.log"
	}
}
