// Package thread contains the pure logic for correlating mail messages
// into conversations. This is part of the Functional Core - no I/O,
// only pure functions over threading headers.
package thread

import "strings"

// maxLookback bounds how many entries of a References chain are
// considered. Malformed or cyclic chains must not cause unbounded work.
const maxLookback = 20

// Headers holds the threading headers extracted from a raw payload.
type Headers struct {
	InReplyTo  []string
	References []string
}

// inReplyToKeys and referencesKeys form the ordered extraction table
// for duck-typed webhook payloads. Providers disagree on casing and
// naming; the first key present wins.
var (
	inReplyToKeys  = []string{"in_reply_to", "In-Reply-To", "in-reply-to", "inReplyTo", "InReplyTo"}
	referencesKeys = []string{"references", "References", "reference_ids", "referenceIds"}
)

// ExtractHeaders pulls In-Reply-To and References equivalents out of
// whatever shape the mail adapter hands in. It never panics and
// returns empty slices when nothing usable is present. Values may be
// a string (possibly space-separated message ids), a []string, or a
// []any of strings; anything else is ignored.
func ExtractHeaders(payload map[string]any) Headers {
	h := Headers{InReplyTo: []string{}, References: []string{}}
	if payload == nil {
		return h
	}

	sources := []map[string]any{payload}
	// Some providers nest threading data under a headers sub-object.
	for _, key := range []string{"headers", "Headers"} {
		if sub, ok := payload[key].(map[string]any); ok {
			sources = append(sources, sub)
		}
	}

	for _, src := range sources {
		if len(h.InReplyTo) == 0 {
			h.InReplyTo = probeKeys(src, inReplyToKeys)
		}
		if len(h.References) == 0 {
			h.References = probeKeys(src, referencesKeys)
		}
	}
	return h
}

// probeKeys returns the message ids found under the first matching key.
func probeKeys(src map[string]any, keys []string) []string {
	for _, key := range keys {
		raw, ok := src[key]
		if !ok {
			continue
		}
		ids := coerceIDs(raw)
		if len(ids) > 0 {
			return ids
		}
	}
	return []string{}
}

// coerceIDs turns a duck-typed header value into a list of message ids.
func coerceIDs(raw any) []string {
	var out []string
	switch v := raw.(type) {
	case string:
		for _, part := range strings.Fields(v) {
			if id := Normalize(part); id != "" {
				out = append(out, id)
			}
		}
	case []string:
		for _, part := range v {
			if id := Normalize(part); id != "" {
				out = append(out, id)
			}
		}
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if id := Normalize(s); id != "" {
				out = append(out, id)
			}
		}
	}
	if len(out) > maxLookback {
		out = out[:maxLookback]
	}
	return out
}

// Normalize canonicalizes a message id: angle brackets and surrounding
// whitespace stripped, lowercased. Message ids are case-insensitive in
// practice even though the RFC says otherwise; providers re-case them
// freely across replies.
func Normalize(messageID string) string {
	id := strings.TrimSpace(messageID)
	id = strings.TrimPrefix(id, "<")
	id = strings.TrimSuffix(id, ">")
	return strings.ToLower(strings.TrimSpace(id))
}

// ConversationID derives the stable conversation identifier for a
// message. Preference order: the first entry of the References chain
// (the thread root in well-behaved clients), else the In-Reply-To id,
// else the message's own id. Every reply in a thread carries the root
// somewhere in these headers, so all messages of one logical thread
// map to the same id even when providers populate the headers
// inconsistently between replies.
func ConversationID(messageID string, inReplyTo, references []string) string {
	for i, ref := range references {
		if i >= maxLookback {
			break
		}
		if id := Normalize(ref); id != "" {
			return id
		}
	}
	for _, irt := range inReplyTo {
		if id := Normalize(irt); id != "" {
			return id
		}
	}
	return Normalize(messageID)
}
