// Package smtp delivers outbound engine mail over SMTP. Messages are
// assembled with go-message so threading headers (Message-Id,
// In-Reply-To, References) come out well-formed; replies that carry
// them keep the conversation correlatable.
package smtp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"github.com/example/courier/internal/models"
	"github.com/example/courier/internal/ports/secondary"
)

// Config holds SMTP relay settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// Hostname is used for generated Message-Id domains. Falls back
	// to the relay host when empty.
	Hostname string
}

// Sender implements secondary.MailSender over an SMTP relay.
type Sender struct {
	cfg Config
}

// NewSender creates a new SMTP sender.
func NewSender(cfg Config) *Sender {
	return &Sender{cfg: cfg}
}

// Send assembles and delivers the message, returning the generated
// Message-Id (without angle brackets).
func (s *Sender) Send(ctx context.Context, msg models.OutboundMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := s.newMessageID()
	body, err := buildMessage(msg, messageID, time.Now())
	if err != nil {
		return "", err
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	var auth sasl.Client
	if s.cfg.Username != "" {
		auth = sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
	}

	from := models.BareAddress(msg.From)
	to := models.BareAddress(msg.To)
	if err := gosmtp.SendMail(addr, auth, from, []string{to}, bytes.NewReader(body)); err != nil {
		return "", fmt.Errorf("failed to send mail to %s: %w", to, err)
	}

	return messageID, nil
}

func (s *Sender) newMessageID() string {
	host := s.cfg.Hostname
	if host == "" {
		host = s.cfg.Host
	}
	if host == "" {
		host = "courier.local"
	}
	return fmt.Sprintf("%s@%s", uuid.New().String(), host)
}

// buildMessage renders a single-part text message with threading
// headers. Split from Send so tests can inspect the wire format
// without a relay.
func buildMessage(msg models.OutboundMessage, messageID string, now time.Time) ([]byte, error) {
	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Address: models.BareAddress(msg.From)}})
	h.SetAddressList("To", []*mail.Address{{Address: models.BareAddress(msg.To)}})
	h.SetSubject(msg.Subject)
	h.SetMessageID(messageID)
	if msg.InReplyTo != "" {
		ref := strings.Trim(msg.InReplyTo, "<>")
		h.SetMsgIDList("In-Reply-To", []string{ref})
		h.SetMsgIDList("References", []string{ref})
	}

	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize message: %w", err)
	}

	return buf.Bytes(), nil
}

// Ensure Sender implements the interface.
var _ secondary.MailSender = (*Sender)(nil)
