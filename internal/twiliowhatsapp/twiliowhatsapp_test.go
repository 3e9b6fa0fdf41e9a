package twiliowhatsapp

import (
	"context"
	"errors"
	"testing"
)

func TestMockClient_SendMessage(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	if err := mock.SendMessage(ctx, "+525512345678", "Hola"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sent := mock.Sent()
	if len(sent) != 1 || sent[0].Body != "Hola" {
		t.Fatalf("unexpected sent messages %+v", sent)
	}

	mock.Err = errors.New("rate limited")
	if err := mock.SendMessage(ctx, "+525512345678", "again"); err == nil {
		t.Error("expected configured error")
	}
	if len(mock.Sent()) != 1 {
		t.Error("failed send should not be recorded")
	}
}

func TestAddress(t *testing.T) {
	tests := []struct {
		from, to, want string
	}{
		{"whatsapp:+14155238886", "+525512345678", "whatsapp:+525512345678"},
		{"whatsapp:+14155238886", "whatsapp:+525512345678", "whatsapp:+525512345678"},
		{"+14155238886", "+525512345678", "+525512345678"},
	}
	for _, tt := range tests {
		if got := Address(tt.from, tt.to); got != tt.want {
			t.Errorf("Address(%q, %q) = %q, want %q", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("secret")); err == nil {
		t.Error("expected error without a from number")
	}
	c, err := NewClient(WithAccountSID("AC123"), WithAuthToken("secret"), WithFrom("whatsapp:+14155238886"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.from != "whatsapp:+14155238886" {
		t.Errorf("from = %q", c.from)
	}
}
