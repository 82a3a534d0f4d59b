package notify

import (
	"errors"
	"testing"

	"eventtrack/internal/errs"
)

func TestValidEmail(t *testing.T) {
	for _, addr := range []string{"user@example.com", "first.last+tag@mail.example.co.jp"} {
		if !ValidEmail(addr) {
			t.Fatalf("ValidEmail(%q) = false", addr)
		}
	}
	for _, addr := range []string{"not-an-email", "user@", "@example.com", "user@example.c", "a b@example.com"} {
		if ValidEmail(addr) {
			t.Fatalf("ValidEmail(%q) = true", addr)
		}
	}
}

func TestValidPhone(t *testing.T) {
	for _, phone := range []string{"09012345678", "03-1234-5678", "+819012345678", "+14155550100"} {
		if !ValidPhone(phone) {
			t.Fatalf("ValidPhone(%q) = false", phone)
		}
	}
	for _, phone := range []string{"12345", "abc", "+0123456789", "090-1234-567"} {
		if ValidPhone(phone) {
			t.Fatalf("ValidPhone(%q) = true", phone)
		}
	}
}

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage(map[string]any{
		"recipient": "user@example.com",
		"subject":   "Hello",
		"message":   "Body",
		"channel":   "email",
	})
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if msg.Channel != ChannelEmail || msg.Recipient != "user@example.com" || msg.Body != "Body" || msg.Subject != "Hello" {
		t.Fatalf("ParseMessage() = %#v", msg)
	}
}

func TestParseMessageFailures(t *testing.T) {
	cases := []struct {
		name    string
		body    map[string]any
		message string
	}{
		{
			name:    "missing fields in order",
			body:    map[string]any{"subject": "s", "message": ""},
			message: "Missing required fields: recipient, message, channel",
		},
		{
			name:    "invalid email",
			body:    map[string]any{"recipient": "not-an-email", "subject": "s", "message": "m", "channel": "email"},
			message: "Invalid email address",
		},
		{
			name:    "invalid phone",
			body:    map[string]any{"recipient": "12", "subject": "s", "message": "m", "channel": "sms"},
			message: "Invalid phone number",
		},
		{
			name:    "invalid channel",
			body:    map[string]any{"recipient": "user@example.com", "subject": "s", "message": "m", "channel": "fax"},
			message: `Invalid channel. Use "email" or "sms"`,
		},
		{
			name:    "missing reported before type errors",
			body:    map[string]any{"recipient": int64(7), "subject": "s", "message": "m"},
			message: "Missing required fields: channel",
		},
		{
			name:    "null counts as missing",
			body:    map[string]any{"recipient": nil, "subject": "s", "message": "m", "channel": "sms"},
			message: "Missing required fields: recipient",
		},
		{
			name:    "non string channel",
			body:    map[string]any{"recipient": "user@example.com", "subject": "s", "message": "m", "channel": true},
			message: `Field "channel" must be a string`,
		},
		{
			name:    "non string recipient",
			body:    map[string]any{"recipient": int64(1), "subject": "s", "message": "m", "channel": "sms"},
			message: `Field "recipient" must be a string`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseMessage(tc.body)
			if !errors.Is(err, errs.ErrValidation) {
				t.Fatalf("ParseMessage() error = %v, want validation failure", err)
			}
			if got := errs.Public(err, ""); got != tc.message {
				t.Fatalf("ParseMessage() message = %q, want %q", got, tc.message)
			}
		})
	}
}
