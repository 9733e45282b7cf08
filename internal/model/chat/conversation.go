package chat

import "time"

// Conversation is the persisted record of a titled, ordered message sequence.
type Conversation struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary is the sidebar view of a conversation.
type Summary struct {
	ID           string    `json:"_id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Summarize projects a conversation onto its list entry.
func (c Conversation) Summarize() Summary {
	return Summary{
		ID:           c.ID,
		Title:        c.Title,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: len(c.Messages),
	}
}

// UntitledConversation is shown for conversations stored without a title.
const UntitledConversation = "未命名对话"
