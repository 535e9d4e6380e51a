// Package mailin adapts duck-typed inbound webhook payloads into the
// canonical Email the engine consumes. Providers disagree on field
// names, casing, and nesting; all of that probing lives here, behind
// one ordered extraction table, so nothing downstream ever sees a
// provider-specific shape.
package mailin

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/courier/internal/core/thread"
	"github.com/example/courier/internal/models"
)

// ErrMalformed is returned when a payload lacks the canonical fields
// the engine cannot work without. Malformed inbound mail is dropped
// and logged, never bounced.
var ErrMalformed = errors.New("malformed inbound payload")

// Ordered extraction tables: the first present key wins.
var (
	messageIDKeys = []string{"message_id", "Message-Id", "Message-ID", "messageId", "MessageId", "id"}
	fromKeys      = []string{"from", "From", "sender", "Sender", "from_email", "fromEmail"}
	toKeys        = []string{"to", "To", "recipient", "Recipient", "to_email", "toEmail"}
	subjectKeys   = []string{"subject", "Subject"}
	bodyKeys      = []string{"text", "body", "Body", "text_body", "plain", "TextBody"}
	htmlKeys      = []string{"html", "Html", "html_body", "HtmlBody"}
	dateKeys      = []string{"received_at", "timestamp", "date", "Date"}
)

// CanonicalEmail converts a raw payload into the canonical Email,
// computing the conversation id from whatever threading headers the
// provider supplied. The clock parameter stamps ReceivedAt when the
// payload carries no usable date.
func CanonicalEmail(payload map[string]any, now time.Time) (models.Email, error) {
	if payload == nil {
		return models.Email{}, fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	messageID := firstString(payload, messageIDKeys)
	from := firstString(payload, fromKeys)
	if messageID == "" {
		return models.Email{}, fmt.Errorf("%w: no message id", ErrMalformed)
	}
	if from == "" {
		return models.Email{}, fmt.Errorf("%w: no sender", ErrMalformed)
	}

	headers := thread.ExtractHeaders(payload)

	email := models.Email{
		MessageID:  thread.Normalize(messageID),
		From:       from,
		To:         firstString(payload, toKeys),
		Subject:    firstString(payload, subjectKeys),
		Body:       firstString(payload, bodyKeys),
		HTML:       firstString(payload, htmlKeys),
		InReplyTo:  headers.InReplyTo,
		References: headers.References,
		ReceivedAt: extractTime(payload, now),
	}
	email.ConversationID = thread.ConversationID(email.MessageID, email.InReplyTo, email.References)

	return email, nil
}

func firstString(payload map[string]any, keys []string) string {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case []string:
			if len(v) > 0 && v[0] != "" {
				return v[0]
			}
		case []any:
			if len(v) > 0 {
				if s, ok := v[0].(string); ok && s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func extractTime(payload map[string]any, fallback time.Time) time.Time {
	for _, key := range dateKeys {
		switch v := payload[key].(type) {
		case string:
			for _, layout := range []string{time.RFC3339, time.RFC1123Z, time.RFC1123} {
				if t, err := time.Parse(layout, v); err == nil {
					return t
				}
			}
		case float64: // JSON numbers decode as float64
			return time.Unix(int64(v), 0).UTC()
		case int64:
			return time.Unix(v, 0).UTC()
		}
	}
	return fallback
}
