package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/edu-agent/internal/model/chat"
	"github.com/zhouzirui/edu-agent/internal/store"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidMessage       = errors.New("invalid message")
)

// Update carries the optional fields of a conversation update. Nil fields are left untouched.
type Update struct {
	Messages *[]chat.Message
	Title    *string
}

// Service manages stored conversations for the HTTP layer.
type Service struct {
	repo store.Repository
	now  func() time.Time

	// mu keeps Update's read-modify-write and Delete from interleaving, so a
	// deleted conversation is never saved back.
	mu sync.Mutex
}

// NewService builds a conversation service on top of a repository.
func NewService(repo store.Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// DefaultTitle is the title given to conversations created without one.
func DefaultTitle(t time.Time) string {
	return "新对话 " + t.Local().Format("2006-01-02 15:04:05")
}

// Create stores a new conversation under a fresh identifier.
func (s *Service) Create(ctx context.Context, title string, messages []chat.Message) (chat.Conversation, error) {
	if err := validateMessages(messages); err != nil {
		return chat.Conversation{}, err
	}

	now := s.now()
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle(now)
	}

	conv := chat.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		Messages:  chat.CloneMessages(messages),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Save(ctx, conv); err != nil {
		return chat.Conversation{}, fmt.Errorf("saving conversation: %w", err)
	}
	return conv, nil
}

// Get returns one conversation including its messages.
func (s *Service) Get(ctx context.Context, id string) (chat.Conversation, error) {
	conv, err := s.repo.Get(ctx, id)
	if err != nil {
		return chat.Conversation{}, mapStoreError(err)
	}
	if conv.Title == "" {
		conv.Title = chat.UntitledConversation
	}
	return conv, nil
}

// List returns conversation summaries, most recently updated first.
func (s *Service) List(ctx context.Context) ([]chat.Summary, error) {
	convs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	summaries := make([]chat.Summary, 0, len(convs))
	for _, conv := range convs {
		summary := conv.Summarize()
		if summary.Title == "" {
			summary.Title = chat.UntitledConversation
		}
		summaries = append(summaries, summary)
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// Update applies the provided fields and stamps updated_at with the server time.
func (s *Service) Update(ctx context.Context, id string, update Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.repo.Get(ctx, id)
	if err != nil {
		return mapStoreError(err)
	}

	if update.Messages != nil {
		if err := validateMessages(*update.Messages); err != nil {
			return err
		}
		conv.Messages = chat.CloneMessages(*update.Messages)
	}
	if update.Title != nil {
		conv.Title = *update.Title
	}
	conv.UpdatedAt = s.now()

	if err := s.repo.Save(ctx, conv); err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}
	return nil
}

// Delete removes a conversation.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Delete(ctx, id); err != nil {
		return mapStoreError(err)
	}
	return nil
}

func validateMessages(messages []chat.Message) error {
	seen := make(map[string]struct{}, len(messages))
	for i, msg := range messages {
		if msg.ID == "" {
			return fmt.Errorf("%w: message %d has no id", ErrInvalidMessage, i)
		}
		if !msg.Sender.Valid() {
			return fmt.Errorf("%w: message %s has unknown sender %q", ErrInvalidMessage, msg.ID, msg.Sender)
		}
		if _, dup := seen[msg.ID]; dup {
			return fmt.Errorf("%w: duplicate message id %s", ErrInvalidMessage, msg.ID)
		}
		seen[msg.ID] = struct{}{}
	}
	return nil
}

func mapStoreError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrConversationNotFound
	}
	return err
}
