package store

import (
	"context"
	"sync"

	"github.com/zhouzirui/edu-agent/internal/model/chat"
)

// MemoryRepository keeps conversations in process memory.
type MemoryRepository struct {
	mu            sync.RWMutex
	conversations map[string]chat.Conversation
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{conversations: make(map[string]chat.Conversation)}
}

func (r *MemoryRepository) Save(_ context.Context, conv chat.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversations[conv.ID] = cloneConversation(conv)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (chat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.conversations[id]
	if !ok {
		return chat.Conversation{}, ErrNotFound
	}
	return cloneConversation(conv), nil
}

func (r *MemoryRepository) List(_ context.Context) ([]chat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]chat.Conversation, 0, len(r.conversations))
	for _, conv := range r.conversations {
		out = append(out, cloneConversation(conv))
	}
	return out, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[id]; !ok {
		return ErrNotFound
	}
	delete(r.conversations, id)
	return nil
}

func (r *MemoryRepository) Close() error { return nil }
