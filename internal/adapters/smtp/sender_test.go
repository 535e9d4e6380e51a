package smtp

import (
	"strings"
	"testing"
	"time"

	"github.com/example/courier/internal/models"
)

func TestBuildMessageHeaders(t *testing.T) {
	msg := models.OutboundMessage{
		From:      "helpdesk@agents.example.com",
		To:        "Alice <alice@example.com>",
		Subject:   "Re: Need help",
		Body:      "Here is what I found.",
		InReplyTo: "m1@x.com",
	}

	raw, err := buildMessage(msg, "out-1@courier.local", time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("buildMessage() error = %v", err)
	}
	text := string(raw)

	for _, want := range []string{
		"From: <helpdesk@agents.example.com>",
		"To: <alice@example.com>",
		"Subject: Re: Need help",
		"Message-Id: <out-1@courier.local>",
		"In-Reply-To: <m1@x.com>",
		"References: <m1@x.com>",
		"Here is what I found.",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("message missing %q:\n%s", want, text)
		}
	}
}

func TestBuildMessageWithoutReplyHeaders(t *testing.T) {
	msg := models.OutboundMessage{
		From:    "helpdesk@agents.example.com",
		To:      "alice@example.com",
		Subject: "hello",
		Body:    "hi",
	}

	raw, err := buildMessage(msg, "out-2@courier.local", time.Now())
	if err != nil {
		t.Fatalf("buildMessage() error = %v", err)
	}
	text := string(raw)

	if strings.Contains(text, "In-Reply-To") {
		t.Errorf("unexpected In-Reply-To header:\n%s", text)
	}
	if strings.Contains(text, "References") {
		t.Errorf("unexpected References header:\n%s", text)
	}
}
