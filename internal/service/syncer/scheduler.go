// Package syncer keeps the remote conversation store eventually consistent with the
// session state, and swaps the state when another conversation is loaded.
//
// Persist ships the whole message sequence rather than a delta, so the store always
// converges on the newest snapshot. Failures are logged and never roll back local
// state; the next successful persist carries the latest messages.
package syncer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zhouzirui/edu-agent/internal/model/chat"
	"github.com/zhouzirui/edu-agent/internal/remote"
	"github.com/zhouzirui/edu-agent/internal/session"
)

// ConversationStore is the remote repository of conversations.
type ConversationStore interface {
	CreateConversation(ctx context.Context, title string) (string, error)
	ListConversations(ctx context.Context) ([]chat.Summary, error)
	GetConversation(ctx context.Context, id string) (chat.Conversation, error)
	UpdateConversation(ctx context.Context, id string, messages []chat.Message, updatedAt time.Time) error
	DeleteConversation(ctx context.Context, id string) error
}

// StatusService reports server health. Only used for diagnostics.
type StatusService interface {
	Status(ctx context.Context) (remote.Status, error)
}

// Scheduler mirrors session mutations to the store.
type Scheduler struct {
	state  *session.State
	store  ConversationStore
	logger *log.Logger
	now    func() time.Time

	// persistTimeout bounds each background write; zero means no bound.
	persistTimeout time.Duration

	mu       sync.Mutex
	idle     *sync.Cond // signalled when a flush finishes or the drainer exits
	queue    []string
	latest   map[string]write
	running  bool
	inflight string
}

// write is one queued persist: the full message sequence of a conversation.
type write struct {
	conversationID string
	messages       []chat.Message
	updatedAt      time.Time
}

// New returns a scheduler. A nil logger logs to the standard logger.
func New(state *session.State, store ConversationStore, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	s := &Scheduler{
		state:  state,
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		latest: make(map[string]write),
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// SetPersistTimeout bounds background writes. Call before the first Persist.
func (s *Scheduler) SetPersistTimeout(d time.Duration) {
	s.persistTimeout = d
}

// Persist queues the current messages of the active conversation and returns
// immediately; without an active conversation it does nothing. Writes go out one at a
// time, and a queued write is replaced by a newer snapshot of the same conversation.
func (s *Scheduler) Persist() {
	snap := s.state.Snapshot()
	if snap.ConversationID == "" {
		return
	}
	w := write{
		conversationID: snap.ConversationID,
		messages:       snap.Messages,
		updatedAt:      s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueueLocked(w, true)
}

// enqueueLocked queues w. Unless replace is set, an already queued write for the same
// conversation wins. Callers hold s.mu.
func (s *Scheduler) enqueueLocked(w write, replace bool) {
	if _, queued := s.latest[w.conversationID]; queued {
		if replace {
			s.latest[w.conversationID] = w
		}
		return
	}
	s.queue = append(s.queue, w.conversationID)
	s.latest[w.conversationID] = w
	if !s.running {
		s.running = true
		go s.drain()
	}
}

func (s *Scheduler) drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) > 0 {
		id := s.queue[0]
		s.queue = s.queue[1:]
		w := s.latest[id]
		delete(s.latest, id)
		s.inflight = id
		s.mu.Unlock()

		s.flush(w)

		s.mu.Lock()
		s.inflight = ""
		s.idle.Broadcast()
	}
	s.running = false
	s.idle.Broadcast()
}

func (s *Scheduler) flush(w write) {
	ctx := context.Background()
	if s.persistTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.persistTimeout)
		defer cancel()
	}

	if err := s.store.UpdateConversation(ctx, w.conversationID, w.messages, w.updatedAt); err != nil {
		s.logger.Printf("[sync] failed to save conversation %s: %v", w.conversationID, err)
	}
}

// forget drops the queued write for id and waits out a flush of id already on the
// wire, so a delete sent afterwards cannot be overtaken by it. The dropped write is
// returned for restore.
func (s *Scheduler) forget(id string) (write, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, queued := s.latest[id]
	if queued {
		delete(s.latest, id)
		for i, queuedID := range s.queue {
			if queuedID == id {
				s.queue = append(s.queue[:i], s.queue[i+1:]...)
				break
			}
		}
	}
	for id != "" && s.inflight == id {
		s.idle.Wait()
	}
	return w, queued
}

// restore requeues a write dropped by forget unless a newer one has been queued since.
func (s *Scheduler) restore(w write) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueueLocked(w, false)
}

// Wait blocks until the queue is empty and no write is in flight. Persist calls made
// while Wait blocks are waited for as well.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.running {
		s.idle.Wait()
	}
}

// LoadList returns the conversations for the sidebar. Failures yield an empty list.
func (s *Scheduler) LoadList(ctx context.Context) []chat.Summary {
	list, err := s.store.ListConversations(ctx)
	if err != nil {
		s.logger.Printf("[sync] failed to load conversations: %v", err)
		return []chat.Summary{}
	}
	return list
}

// LoadConversation makes id the active conversation. The previous working copy is
// dropped without being written back. On failure the state is left untouched.
func (s *Scheduler) LoadConversation(ctx context.Context, id string) error {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		s.logger.Printf("[sync] failed to load conversation %s: %v", id, err)
		return fmt.Errorf("loading conversation %s: %w", id, err)
	}

	s.state.Reset(id, conv.Messages)
	return nil
}

// DeleteConversation removes id from the store. Pending writes of id are dropped first
// and a write already in flight is awaited, so nothing writes id back after the delete.
// Deleting the active conversation starts a new one. On failure nothing changes
// locally and a dropped write is queued again.
func (s *Scheduler) DeleteConversation(ctx context.Context, id string) error {
	dropped, hadWrite := s.forget(id)
	if err := s.store.DeleteConversation(ctx, id); err != nil {
		s.logger.Printf("[sync] failed to delete conversation %s: %v", id, err)
		if hadWrite {
			s.restore(dropped)
		}
		return fmt.Errorf("deleting conversation %s: %w", id, err)
	}

	if s.state.ConversationID() != id {
		return nil
	}
	// The deleted conversation must not be written back by the new-conversation flush.
	s.state.Reset("", nil)
	return s.NewConversation(ctx)
}

// NewConversation saves the current conversation, then creates and activates an empty
// one. If creation fails the state is left with no active conversation, and the next
// question creates one lazily.
func (s *Scheduler) NewConversation(ctx context.Context) error {
	if s.state.ConversationID() != "" {
		s.Persist()
	}
	s.state.Reset("", nil)

	title := "新对话 " + s.now().Local().Format("2006/1/2 15:04:05")
	id, err := s.store.CreateConversation(ctx, title)
	if err != nil {
		s.logger.Printf("[sync] failed to create conversation: %v", err)
		return fmt.Errorf("creating conversation: %w", err)
	}

	s.state.Reset(id, nil)
	return nil
}

// CheckStatus logs the server status. The boolean is false when the server is unreachable.
func (s *Scheduler) CheckStatus(ctx context.Context, svc StatusService) (remote.Status, bool) {
	status, err := svc.Status(ctx)
	if err != nil {
		s.logger.Printf("[sync] status check failed, answers may come from the local responder: %v", err)
		return remote.Status{}, false
	}
	s.logger.Printf("[sync] system status: %s, mode: %s", status.SystemStatus, status.Mode)
	return status, true
}
