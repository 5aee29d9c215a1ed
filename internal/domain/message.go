package domain

import "time"

// Message is an inbound message as delivered by a source. It is owned by the
// source and never mutated after delivery.
type Message struct {
	ID         int64
	ExternalID string
	ChatID     int64
	Text       string
	Origin     Origin
	Link       string
	Date       time.Time
}

type Origin string

const (
	OriginTelegram Origin = "telegram"
	OriginFeed     Origin = "feed"
)

// Forwardable reports whether the message still exists on the platform and can
// be forwarded natively instead of re-sent as text.
func (m Message) Forwardable() bool {
	return m.Origin == OriginTelegram && m.ID != 0 && m.ChatID != 0
}

// ForwardJob is a single matched message waiting to be delivered to Targets.
type ForwardJob struct {
	SourceID int64
	Message  Message
	Targets  []int64
}
