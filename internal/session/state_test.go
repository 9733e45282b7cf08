package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/edu-agent/internal/model/chat"
)

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	s := New()
	s.Reset("conv-1", nil)

	var prev string
	for i := 0; i < 50; i++ {
		msg := s.Append(chat.SenderUser, "q")
		require.NotEmpty(t, msg.ID)
		if prev != "" {
			assert.Less(t, prev, msg.ID, "ids must sort in creation order")
		}
		assert.False(t, msg.Timestamp.IsZero())
		prev = msg.ID
	}
	assert.Len(t, s.Messages(), 50)
}

func TestStartedFlag(t *testing.T) {
	s := New()
	assert.False(t, s.Started())

	s.Append(chat.SenderUser, "no conversation yet")
	assert.False(t, s.Started(), "started requires an active conversation")

	s.Reset("conv-1", nil)
	assert.False(t, s.Started())

	s.Append(chat.SenderUser, "hello")
	assert.True(t, s.Started())

	s.Reset("conv-2", []chat.Message{{ID: "m1", Sender: chat.SenderUser, Text: "old"}})
	assert.True(t, s.Started(), "loading a non-empty conversation counts as started")

	s.Reset("", nil)
	assert.False(t, s.Started())
}

func TestLatestBotMessageID(t *testing.T) {
	s := New()
	s.Reset("conv-1", nil)

	_, ok := s.LatestBotMessageID()
	assert.False(t, ok)

	s.Append(chat.SenderUser, "Q1")
	first := s.Append(chat.SenderBot, "A1")
	id, ok := s.LatestBotMessageID()
	require.True(t, ok)
	assert.Equal(t, first.ID, id)

	s.Append(chat.SenderUser, "Q2")
	id, _ = s.LatestBotMessageID()
	assert.Equal(t, first.ID, id, "a trailing user message does not change eligibility")

	second := s.Append(chat.SenderBot, "A2")
	id, _ = s.LatestBotMessageID()
	assert.Equal(t, second.ID, id)

	s.Remove(second.ID)
	id, _ = s.LatestBotMessageID()
	assert.Equal(t, first.ID, id, "removal re-derives the previous bot message")
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	s := New()
	s.Reset("conv-1", nil)
	s.Append(chat.SenderUser, "Q1")

	s.Remove("missing")
	assert.Len(t, s.Messages(), 1)
}

func TestResetCopiesInputAndClearsPending(t *testing.T) {
	s := New()
	_, err := s.BeginRequest()
	require.NoError(t, err)

	input := []chat.Message{{ID: "m1", Sender: chat.SenderBot, Text: "A"}}
	s.Reset("conv-1", input)
	input[0].Text = "mutated"

	assert.False(t, s.Pending())
	assert.Equal(t, "A", s.Messages()[0].Text)
}

func TestRequestSlotIsExclusive(t *testing.T) {
	s := New()
	ticket, err := s.BeginRequest()
	require.NoError(t, err)
	assert.True(t, s.Pending())

	_, err = s.BeginRequest()
	assert.ErrorIs(t, err, ErrRequestPending)

	s.EndRequest(ticket)
	assert.False(t, s.Pending())

	_, err = s.BeginRequest()
	assert.NoError(t, err)
}

func TestStaleTicketCannotTouchNewConversation(t *testing.T) {
	s := New()
	s.Reset("conv-a", nil)
	stale, err := s.BeginRequest()
	require.NoError(t, err)

	s.Reset("conv-b", nil)
	fresh, err := s.BeginRequest()
	require.NoError(t, err)

	_, ok := s.AppendFor(stale, chat.SenderBot, "late answer")
	assert.False(t, ok)
	assert.Empty(t, s.Messages())

	s.EndRequest(stale)
	assert.True(t, s.Pending(), "stale ticket must not free the new request slot")

	_, ok = s.AppendFor(fresh, chat.SenderBot, "answer")
	assert.True(t, ok)
	s.EndRequest(fresh)
	assert.False(t, s.Pending())
}

func TestAdoptOnlyWithoutConversation(t *testing.T) {
	s := New()
	ticket, err := s.BeginRequest()
	require.NoError(t, err)

	assert.True(t, s.Adopt(ticket, "conv-1"))
	assert.Equal(t, "conv-1", s.ConversationID())
	assert.True(t, s.Pending(), "adopting keeps the request slot")
	assert.False(t, s.Adopt(ticket, "conv-2"))
}

func TestSnapshot(t *testing.T) {
	s := New()
	s.Reset("conv-1", nil)
	s.Append(chat.SenderUser, "Q")
	bot := s.Append(chat.SenderBot, "A")

	snap := s.Snapshot()
	assert.Equal(t, "conv-1", snap.ConversationID)
	assert.Len(t, snap.Messages, 2)
	assert.True(t, snap.Started)
	assert.False(t, snap.Pending)
	assert.Equal(t, bot.ID, snap.LatestBotID)
}
