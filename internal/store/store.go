// Package store persists conversations for the API server. Every repository stores one
// record per conversation holding its ordered messages.
package store

import (
	"context"
	"errors"
	"regexp"

	"github.com/zhouzirui/edu-agent/internal/model/chat"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("not found")

// Repository is implemented by every backend.
type Repository interface {
	// Save inserts or replaces the whole conversation.
	Save(ctx context.Context, conv chat.Conversation) error
	Get(ctx context.Context, id string) (chat.Conversation, error)
	List(ctx context.Context) ([]chat.Conversation, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidID reports whether id is safe to use as a key in every backend.
func ValidID(id string) bool {
	return validID.MatchString(id)
}

func cloneConversation(conv chat.Conversation) chat.Conversation {
	conv.Messages = chat.CloneMessages(conv.Messages)
	return conv
}
