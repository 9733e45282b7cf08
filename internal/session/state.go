// Package session owns the working copy of the active conversation.
//
// State is the single source of truth for the turn sequence shown to the user. It is
// authoritative locally until synced: persistence, loading and answering are driven by
// the turn and syncer services, which only ever touch the conversation through State.
//
// Every Reset starts a new epoch. Request tickets carry the epoch they were issued in,
// so a request that was in flight when the user switched conversations can neither
// append into the new conversation nor release the new conversation's request slot.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/edu-agent/internal/model/chat"
)

// ErrRequestPending is returned by BeginRequest while another request holds the slot.
var ErrRequestPending = errors.New("a request is already in flight")

// Ticket identifies one question or regenerate request holding the request slot.
type Ticket struct {
	epoch uint64
}

// Snapshot is a consistent read of the whole state.
type Snapshot struct {
	ConversationID string
	Messages       []chat.Message
	Started        bool
	Pending        bool
	LatestBotID    string
}

// State holds the active conversation id, its ordered messages and the request slot.
type State struct {
	mu       sync.RWMutex
	convID   string
	messages []chat.Message
	started  bool
	pending  bool
	epoch    uint64

	now   func() time.Time
	newID func() string
}

// New returns an empty state with no active conversation.
func New() *State {
	return &State{
		messages: make([]chat.Message, 0, 16),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    newMessageID,
	}
}

// newMessageID issues time-ordered ids; UUIDv7 strings sort in creation order.
func newMessageID() string {
	return "msg-" + uuid.Must(uuid.NewV7()).String()
}

// Append adds a message authored by sender and returns it. Persisting is the caller's job.
func (s *State) Append(sender chat.Sender, text string) chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(sender, text)
}

// AppendFor appends on behalf of a request. It reports false, appending nothing, when the
// ticket belongs to a conversation that has since been replaced.
func (s *State) AppendFor(t Ticket, sender chat.Sender, text string) (chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.epoch != s.epoch {
		return chat.Message{}, false
	}
	return s.appendLocked(sender, text), true
}

func (s *State) appendLocked(sender chat.Sender, text string) chat.Message {
	msg := chat.Message{
		ID:        s.newID(),
		Sender:    sender,
		Text:      text,
		Timestamp: s.now(),
	}
	s.messages = append(s.messages, msg)
	s.started = s.convID != ""
	return msg
}

// Remove drops the message with the given id. Unknown ids are ignored.
func (s *State) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

// RemoveFor is Remove guarded by a request ticket.
func (s *State) RemoveFor(t Ticket, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.epoch != s.epoch {
		return false
	}
	s.removeLocked(id)
	return true
}

func (s *State) removeLocked(id string) {
	for i, msg := range s.messages {
		if msg.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

// LatestBotMessageID returns the id of the last bot message, the only one that may be
// regenerated. It is derived from the current sequence on every call.
func (s *State) LatestBotMessageID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestBot(s.messages)
}

func latestBot(msgs []chat.Message) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Sender == chat.SenderBot {
			return msgs[i].ID, true
		}
	}
	return "", false
}

// Reset replaces the active conversation wholesale and frees the request slot.
// An empty conversationID returns the state to "no active conversation".
func (s *State) Reset(conversationID string, messages []chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.convID = conversationID
	s.messages = chat.CloneMessages(messages)
	s.started = conversationID != "" && len(s.messages) > 0
	s.pending = false
}

// Adopt binds a conversation created on behalf of the ticket holder, without starting a
// new epoch. It reports false when the state was reset or already has a conversation.
func (s *State) Adopt(t Ticket, conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.epoch != s.epoch || s.convID != "" {
		return false
	}
	s.convID = conversationID
	s.started = len(s.messages) > 0
	return true
}

// BeginRequest claims the request slot.
func (s *State) BeginRequest() (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending {
		return Ticket{}, ErrRequestPending
	}
	s.pending = true
	return Ticket{epoch: s.epoch}, nil
}

// EndRequest frees the slot claimed by t. Stale tickets are ignored.
func (s *State) EndRequest(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.epoch == s.epoch {
		s.pending = false
	}
}

// Current reports whether t still refers to the active conversation.
func (s *State) Current(t Ticket) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return t.epoch == s.epoch
}

// ConversationID returns the active conversation id, or "" when there is none.
func (s *State) ConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.convID
}

// Messages returns a copy of the ordered message sequence.
func (s *State) Messages() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return chat.CloneMessages(s.messages)
}

// Started reports whether the active conversation has received a message.
func (s *State) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Pending reports whether a request holds the slot.
func (s *State) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// Snapshot returns every field under a single lock.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest, _ := latestBot(s.messages)
	return Snapshot{
		ConversationID: s.convID,
		Messages:       chat.CloneMessages(s.messages),
		Started:        s.started,
		Pending:        s.pending,
		LatestBotID:    latest,
	}
}
