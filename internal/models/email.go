package models

import "time"

// Email is the canonical inbound message produced by the mail adapter.
// The engine never sees provider-specific payload shapes; everything
// upstream of this struct is the adapter's problem. Immutable once
// received.
type Email struct {
	MessageID      string
	From           string
	To             string
	Subject        string
	Body           string
	HTML           string
	InReplyTo      []string
	References     []string
	ReceivedAt     time.Time
	ConversationID string
}

// OutboundMessage is what the engine hands to the mail sender.
// Delivery guarantees are the transport's problem, not ours.
type OutboundMessage struct {
	From      string
	To        string
	Subject   string
	Body      string
	InReplyTo string
}
