// Package delegate contains the pure logic for delegation correlation
// tokens: the bracketed request id an agent embeds in the subject line
// when it asks another agent for help, and extracts again from the
// reply.
package delegate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// tokenPattern matches the bracketed request id anywhere in a subject,
// so typical client mangling (Re:, Fwd:, Fw:, AW:) in front of it does
// not break extraction.
var tokenPattern = regexp.MustCompile(`\[REQ-([A-Za-z0-9][A-Za-z0-9-]*)\]`)

// replyPrefixPattern matches the stack of reply/forward prefixes mail
// clients pile onto subjects.
var replyPrefixPattern = regexp.MustCompile(`^(?i:(re|fwd|fw|aw)\s*:\s*)+`)

// NewRequestID mints a fresh request id for an outbound delegation.
func NewRequestID() string {
	return uuid.New().String()[:8]
}

// EmbedToken prefixes a subject with the bracketed request id token.
// Embedding is skipped when the subject already carries the same
// token.
func EmbedToken(subject, requestID string) string {
	token := fmt.Sprintf("[REQ-%s]", requestID)
	if strings.Contains(subject, token) {
		return subject
	}
	if subject == "" {
		return token
	}
	return token + " " + subject
}

// ExtractRequestID parses the request id out of a subject line.
// Returns the empty string when no token is present.
func ExtractRequestID(subject string) string {
	m := tokenPattern.FindStringSubmatch(subject)
	if m == nil {
		return ""
	}
	return m[1]
}

// StripReplyPrefixes removes leading Re:/Fwd: style prefixes. Used for
// display and for comparing subjects, never for correlation.
func StripReplyPrefixes(subject string) string {
	return strings.TrimSpace(replyPrefixPattern.ReplaceAllString(strings.TrimSpace(subject), ""))
}
