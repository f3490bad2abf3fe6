// Package bus decouples chat-platform adapters from the cognitive core
// using plain Go channels, the way the upstream agent decoupled channel
// adapters from its ReAct loop.
package bus

import "time"

// Message is one line of group-chat history: an inbound user message or
// one of the agent's own replies, immutable once created.
type Message struct {
	Time     time.Time `json:"time"`
	UserName string    `json:"user_name"`
	Content  string    `json:"content"`
}

// PartKind tags a fragment of an inbound message as it arrives from the
// platform adapter.
type PartKind string

const (
	PartText  PartKind = "text"
	PartImage PartKind = "image"
	PartEmoji PartKind = "emoji"
	PartAt    PartKind = "at"
	PartReply PartKind = "reply"
)

// Part is one tagged fragment of a platform message. Unknown kinds are
// ignored by the adapter before an InboundEvent is ever published.
type Part struct {
	Kind PartKind
	Text string // text content, or the image/emoji fetch URL
	At   string // target id, set only when Kind == PartAt
}

// InboundEvent is a raw platform event handed to a Session's pending
// batch, before image/emoji parts have been resolved into Content.
type InboundEvent struct {
	GroupID      string
	UserID       string
	UserName     string
	Parts        []Part
	ReplyToSelf  bool
	Time         time.Time
}

// OutboundMessage is a reply the cognitive pipeline decided to send.
type OutboundMessage struct {
	GroupID string
	Content string
}
