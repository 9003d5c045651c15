// Package sms provides the outbound SMS collaborator.
//
// This file wraps the Twilio REST API for deployments that want real
// dispatch instead of the log-only default.
package sms

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Opts holds configuration options for the Twilio notifier.
type Opts struct {
	AccountSID string
	AuthToken  string
	From       string
}

// Option defines a configuration option for the Twilio notifier.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sender number in E.164 form.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.From = from }
}

// TwilioNotifier sends SMS through the Twilio REST API.
type TwilioNotifier struct {
	client *twilio.RestClient
	from   string
}

// Compile-time check that TwilioNotifier implements Notifier.
var _ Notifier = (*TwilioNotifier)(nil)

// NewTwilioNotifier creates a Twilio-backed notifier. Credentials fall back
// to TWILIO_ACCOUNT_SID / TWILIO_AUTH_TOKEN / TWILIO_FROM_NUMBER when not
// provided via options.
func NewTwilioNotifier(opts ...Option) (*TwilioNotifier, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio notifier config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"From_set", cfg.From != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioNotifier{client: client, from: cfg.From}, nil
}

// Send dispatches the SMS via Twilio.
func (n *TwilioNotifier) Send(_ context.Context, to string, kind Kind, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(n.from)
	params.SetBody(body)

	resp, err := n.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("TwilioNotifier.Send failed", "error", err, "to", to, "kind", kind)
		return fmt.Errorf("failed to send sms to %s: %w", to, err)
	}
	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	slog.Info("TwilioNotifier.Send: sms dispatched", "to", to, "kind", kind, "sid", sid)
	return nil
}
