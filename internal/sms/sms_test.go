package sms

import (
	"context"
	"testing"
)

func TestLogNotifierSend(t *testing.T) {
	n := NewLogNotifier()
	if err := n.Send(context.Background(), "+254700000001", KindTips, "Tips body"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewTwilioNotifierRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewTwilioNotifier(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewTwilioNotifier(WithAccountSID("AC123"), WithAuthToken("tok")); err == nil {
		t.Error("expected error without from number")
	}
	n, err := NewTwilioNotifier(WithAccountSID("AC123"), WithAuthToken("tok"), WithFromNumber("+15550001111"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n == nil {
		t.Fatal("expected notifier")
	}
}
