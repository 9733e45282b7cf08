package chat

import "time"

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Valid reports whether s is a known sender.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderBot
}

// Message is one turn of a conversation. Messages are never edited, only removed.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// CloneMessages returns an independent copy of msgs. A nil input yields an empty slice.
func CloneMessages(msgs []Message) []Message {
	copied := make([]Message, len(msgs))
	copy(copied, msgs)
	return copied
}
