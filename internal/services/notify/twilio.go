package notify

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"mailwatch/internal/config"
	"mailwatch/internal/models"
)

func newTwilioRestClient(cfg config.TwilioConfig, timeout time.Duration) *twilio.RestClient {
	c := &twclient.Client{Credentials: twclient.NewCredentials(cfg.AccountSID, cfg.AuthToken)}
	c.SetTimeout(timeout)

	return twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
		Client:   c,
	})
}

// TwilioSMS sends one alert SMS per matching event.
type TwilioSMS struct {
	config config.TwilioConfig
	client *twilio.RestClient
	logger *zap.Logger
}

func NewTwilioSMS(cfg config.TwilioConfig, logger *zap.Logger) *TwilioSMS {
	return &TwilioSMS{
		config: cfg,
		client: newTwilioRestClient(cfg, 15*time.Second),
		logger: logger,
	}
}

func (t *TwilioSMS) Name() string { return "twilio_sms" }

func (t *TwilioSMS) Send(_ context.Context, event models.EmailEvent) error {
	body := smsBody(event)

	params := &openapi.CreateMessageParams{}
	params.SetTo(t.config.ToNumber)
	params.SetFrom(t.config.FromNumber)
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio sms: %w", err)
	}

	if resp.Sid != nil {
		t.logger.Info("Twilio SMS accepted", zap.String("sid", *resp.Sid))
	}
	return nil
}

// TwilioWhatsApp sends the alert as a WhatsApp message. The configured
// numbers already carry the provider's "whatsapp:" prefix.
type TwilioWhatsApp struct {
	config config.TwilioConfig
	client *twilio.RestClient
	logger *zap.Logger
}

func NewTwilioWhatsApp(cfg config.TwilioConfig, logger *zap.Logger) *TwilioWhatsApp {
	return &TwilioWhatsApp{
		config: cfg,
		client: newTwilioRestClient(cfg, 15*time.Second),
		logger: logger,
	}
}

func (t *TwilioWhatsApp) Name() string { return "whatsapp_twilio" }

func (t *TwilioWhatsApp) Send(_ context.Context, event models.EmailEvent) error {
	body := fmt.Sprintf("📧 *New urgent email!*\n\nFrom: %s\nSubject: %s\n\n%s",
		event.Sender, truncate(event.Subject, 100), truncate(event.Preview, 200))

	params := &openapi.CreateMessageParams{}
	params.SetTo(t.config.ToNumber)
	params.SetFrom(t.config.FromNumber)
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio whatsapp: %w", err)
	}

	if resp.Sid != nil {
		t.logger.Info("Twilio WhatsApp accepted", zap.String("sid", *resp.Sid))
	}
	return nil
}

// TwilioCall places a voice call that speaks the alert via inline TwiML.
type TwilioCall struct {
	config config.TwilioConfig
	client *twilio.RestClient
	logger *zap.Logger
}

func NewTwilioCall(cfg config.TwilioConfig, logger *zap.Logger) *TwilioCall {
	return &TwilioCall{
		config: cfg,
		client: newTwilioRestClient(cfg, 15*time.Second),
		logger: logger,
	}
}

func (t *TwilioCall) Name() string { return "call_twilio" }

func (t *TwilioCall) Send(_ context.Context, event models.EmailEvent) error {
	params := &openapi.CreateCallParams{}
	params.SetTo(t.config.ToNumber)
	params.SetFrom(t.config.FromNumber)
	params.SetTwiml(callTwiML(t.config.Message, event))

	resp, err := t.client.Api.CreateCall(params)
	if err != nil {
		return fmt.Errorf("twilio call: %w", err)
	}

	if resp.Sid != nil {
		t.logger.Info("Twilio call initiated", zap.String("sid", *resp.Sid))
	}
	return nil
}

func smsBody(event models.EmailEvent) string {
	return fmt.Sprintf("📧 New urgent email!\n\nFrom: %s\nSubject: %s",
		event.Sender, truncate(event.Subject, 100))
}

// callTwiML renders the spoken alert. Dynamic text is XML-escaped so a
// subject cannot break out of the document.
func callTwiML(operatorMessage string, event models.EmailEvent) string {
	spoken := fmt.Sprintf("%s Email from %s. Subject: %s.",
		operatorMessage, event.Sender, event.TruncateSubject(50))

	return fmt.Sprintf(`<Response><Say voice="alice" language="fr-FR">%s</Say></Response>`,
		xmlEscape(spoken))
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return s
	}
	return buf.String()
}
