// Package sms provides the outbound SMS collaborator for terminal menu
// choices ("SMS me the summary/tips/contacts").
//
// The default notifier only logs dispatch intent, matching the service's
// MVP behavior; a Twilio-backed notifier is available for deployments with
// a real gateway.
package sms

import (
	"context"
	"log/slog"
)

// Kind labels what content an outbound SMS carries.
type Kind string

const (
	KindAlertSummary Kind = "alerts_summary"
	KindTips         Kind = "tips"
	KindContacts     Kind = "contacts"
)

// Notifier dispatches an SMS to a canonical phone number.
type Notifier interface {
	Send(ctx context.Context, to string, kind Kind, body string) error
}

// LogNotifier records dispatch intent without sending anything.
type LogNotifier struct{}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Send logs the outbound message and returns nil.
func (n *LogNotifier) Send(_ context.Context, to string, kind Kind, body string) error {
	slog.Info("LogNotifier.Send: sms dispatch requested", "to", to, "kind", kind, "body_len", len(body))
	return nil
}
