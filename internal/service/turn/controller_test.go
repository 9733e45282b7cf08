package turn

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/edu-agent/internal/model/chat"
	"github.com/zhouzirui/edu-agent/internal/service/fallback"
	"github.com/zhouzirui/edu-agent/internal/session"
)

type fakeCreator struct {
	mu     sync.Mutex
	err    error
	titles []string
}

func (f *fakeCreator) CreateConversation(_ context.Context, title string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.titles = append(f.titles, title)
	return "conv-new", nil
}

// fakeAnswers returns queued answers in order; an empty queue means failure.
type fakeAnswers struct {
	mu        sync.Mutex
	answers   []string
	questions []string
	err       error
	block     chan struct{}
	entered   chan struct{}
}

func (f *fakeAnswers) Ask(_ context.Context, question string) (string, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, question)
	if f.err != nil {
		return "", f.err
	}
	if len(f.answers) == 0 {
		return "", errors.New("no answer queued")
	}
	answer := f.answers[0]
	f.answers = f.answers[1:]
	return answer, nil
}

type panickingAnswers struct{}

func (panickingAnswers) Ask(context.Context, string) (string, error) {
	panic("boom")
}

type countingPersister struct {
	mu    sync.Mutex
	calls int
}

func (p *countingPersister) Persist() {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
}

func (p *countingPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

var quiet = log.New(io.Discard, "", 0)

func newController(state *session.State, creator ConversationCreator, answers AnswerService, persister Persister) *Controller {
	return New(state, creator, answers, fallback.Default(), persister, quiet)
}

func seeded(t *testing.T) (*session.State, chat.Message, chat.Message) {
	t.Helper()
	state := session.New()
	state.Reset("conv-1", nil)
	q := state.Append(chat.SenderUser, "Q1")
	a := state.Append(chat.SenderBot, "A1")
	return state, q, a
}

func TestSubmitCreatesConversationLazily(t *testing.T) {
	state := session.New()
	creator := &fakeCreator{}
	persister := &countingPersister{}
	ctrl := newController(state, creator, &fakeAnswers{answers: []string{"摩擦力是阻碍相对运动的力"}}, persister)

	turn, err := ctrl.Submit(context.Background(), "摩擦力是什么")
	require.NoError(t, err)

	assert.Equal(t, "conv-new", state.ConversationID())
	assert.Equal(t, "conv-new", turn.ConversationID)
	require.Len(t, creator.titles, 1)
	assert.Contains(t, creator.titles[0], "对话 ")

	msgs := state.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.SenderUser, msgs[0].Sender)
	assert.Equal(t, "摩擦力是什么", msgs[0].Text)
	assert.Equal(t, chat.SenderBot, msgs[1].Sender)
	assert.True(t, state.Started())
	assert.False(t, state.Pending())
	assert.Equal(t, 1, persister.count())
}

func TestSubmitPairsTurnsInOrder(t *testing.T) {
	state, _, _ := seeded(t)
	ctrl := newController(state, &fakeCreator{}, &fakeAnswers{answers: []string{"A2"}}, &countingPersister{})
	before := len(state.Messages())

	turn, err := ctrl.Submit(context.Background(), "  Q2  ")
	require.NoError(t, err)

	msgs := state.Messages()
	require.Len(t, msgs, before+2)
	assert.Equal(t, turn.Question.ID, msgs[before].ID)
	assert.Equal(t, "Q2", msgs[before].Text)
	assert.Equal(t, chat.SenderUser, msgs[before].Sender)
	assert.Equal(t, turn.Answer.ID, msgs[before+1].ID)
	assert.Equal(t, "A2", msgs[before+1].Text)
	assert.Less(t, msgs[before].ID, msgs[before+1].ID)

	latest, ok := state.LatestBotMessageID()
	require.True(t, ok)
	assert.Equal(t, turn.Answer.ID, latest)
}

func TestSubmitRejectsBlankInput(t *testing.T) {
	state := session.New()
	creator := &fakeCreator{}
	answers := &fakeAnswers{}
	ctrl := newController(state, creator, answers, &countingPersister{})

	_, err := ctrl.Submit(context.Background(), " \n\t ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, state.Messages())
	assert.Empty(t, creator.titles, "no network call for invalid input")
	assert.Empty(t, answers.questions)
}

func TestSubmitCreateFailureAppendsNothing(t *testing.T) {
	state := session.New()
	answers := &fakeAnswers{answers: []string{"unused"}}
	persister := &countingPersister{}
	ctrl := newController(state, &fakeCreator{err: errors.New("store down")}, answers, persister)

	_, err := ctrl.Submit(context.Background(), "Q")
	require.ErrorIs(t, err, ErrConversationCreateFailed)
	assert.Contains(t, err.Error(), "store down")
	assert.Empty(t, state.Messages())
	assert.Empty(t, state.ConversationID())
	assert.False(t, state.Pending())
	assert.Empty(t, answers.questions)
	assert.Zero(t, persister.count())
}

func TestSubmitFallsBackWhenAnswerServiceFails(t *testing.T) {
	state := session.New()
	state.Reset("conv-1", nil)
	persister := &countingPersister{}
	ctrl := newController(state, &fakeCreator{}, &fakeAnswers{err: errors.New("connection refused")}, persister)

	turn, err := ctrl.Submit(context.Background(), "牛顿第一定律是什么")
	require.NoError(t, err)

	assert.True(t, turn.Fallback)
	assert.Contains(t, turn.Answer.Text, "惯性定律")
	assert.Len(t, state.Messages(), 2)
	assert.False(t, state.Pending())
	assert.Equal(t, 1, persister.count())
}

func TestSubmitFallsBackWhenAnswerServicePanics(t *testing.T) {
	state := session.New()
	state.Reset("conv-1", nil)
	ctrl := newController(state, &fakeCreator{}, panickingAnswers{}, &countingPersister{})

	turn, err := ctrl.Submit(context.Background(), "加速度怎么算")
	require.NoError(t, err)
	assert.True(t, turn.Fallback)
	assert.False(t, state.Pending())
}

func TestRequestsExcludedWhilePending(t *testing.T) {
	state, _, bot := seeded(t)
	answers := &fakeAnswers{
		answers: []string{"A2"},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	ctrl := newController(state, &fakeCreator{}, answers, &countingPersister{})

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Submit(context.Background(), "Q2")
		done <- err
	}()

	select {
	case <-answers.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("answer service was never called")
	}
	require.True(t, state.Pending())
	before := state.Messages()

	_, err := ctrl.Submit(context.Background(), "Q3")
	assert.ErrorIs(t, err, ErrRequestPending)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ctrl.Regenerate(context.Background(), bot.ID)
	assert.ErrorIs(t, err, ErrRequestPending)

	assert.Equal(t, before, state.Messages())

	close(answers.block)
	require.NoError(t, <-done)
	assert.False(t, state.Pending())
	assert.Len(t, state.Messages(), 4)
}

func TestRegenerateReplacesLatestAnswer(t *testing.T) {
	state, question, bot := seeded(t)
	answers := &fakeAnswers{answers: []string{"A1-new"}}
	persister := &countingPersister{}
	ctrl := newController(state, &fakeCreator{}, answers, persister)

	turn, err := ctrl.Regenerate(context.Background(), bot.ID)
	require.NoError(t, err)

	msgs := state.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, question.ID, msgs[0].ID)
	assert.Equal(t, "Q1", msgs[0].Text)
	assert.Equal(t, "A1-new", msgs[1].Text)
	assert.NotEqual(t, bot.ID, msgs[1].ID)
	assert.Equal(t, turn.Answer.ID, msgs[1].ID)
	assert.Equal(t, []string{"Q1"}, answers.questions)
	assert.Equal(t, 1, persister.count())

	latest, _ := state.LatestBotMessageID()
	assert.Equal(t, msgs[1].ID, latest)
}

func TestRegenerateUsesNearestPrecedingQuestion(t *testing.T) {
	state := session.New()
	state.Reset("conv-1", nil)
	state.Append(chat.SenderUser, "Q1")
	state.Append(chat.SenderBot, "A1")
	state.Append(chat.SenderUser, "Q2")
	target := state.Append(chat.SenderBot, "A2")
	answers := &fakeAnswers{answers: []string{"A2-new"}}
	ctrl := newController(state, &fakeCreator{}, answers, &countingPersister{})

	_, err := ctrl.Regenerate(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Q2"}, answers.questions)
	assert.Len(t, state.Messages(), 4)
}

func TestRegenerateRejectsUserMessage(t *testing.T) {
	state, question, _ := seeded(t)
	answers := &fakeAnswers{answers: []string{"unused"}}
	ctrl := newController(state, &fakeCreator{}, answers, &countingPersister{})
	before := state.Messages()

	_, err := ctrl.Regenerate(context.Background(), question.ID)
	assert.ErrorIs(t, err, ErrUnknownMessage)
	assert.Equal(t, before, state.Messages())
	assert.False(t, state.Pending())
	assert.Empty(t, answers.questions)
}

func TestRegenerateRejectsMissingMessage(t *testing.T) {
	state, _, _ := seeded(t)
	ctrl := newController(state, &fakeCreator{}, &fakeAnswers{}, &countingPersister{})

	_, err := ctrl.Regenerate(context.Background(), "msg-missing")
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestRegenerateWithoutPrecedingQuestion(t *testing.T) {
	state := session.New()
	state.Reset("conv-1", []chat.Message{{ID: "m1", Sender: chat.SenderBot, Text: "welcome"}})
	ctrl := newController(state, &fakeCreator{}, &fakeAnswers{}, &countingPersister{})

	_, err := ctrl.Regenerate(context.Background(), "m1")
	assert.ErrorIs(t, err, ErrNoPrecedingQuestion)
	assert.Len(t, state.Messages(), 1)
	assert.False(t, state.Pending())
}

func TestRegenerateFallsBack(t *testing.T) {
	state, _, bot := seeded(t)
	ctrl := newController(state, &fakeCreator{}, &fakeAnswers{err: errors.New("503")}, &countingPersister{})

	turn, err := ctrl.Regenerate(context.Background(), bot.ID)
	require.NoError(t, err)
	assert.True(t, turn.Fallback)
	assert.Len(t, state.Messages(), 2)
}

func TestAnswerDroppedWhenConversationReplaced(t *testing.T) {
	state, _, _ := seeded(t)
	answers := &fakeAnswers{
		answers: []string{"late"},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	persister := &countingPersister{}
	ctrl := newController(state, &fakeCreator{}, answers, persister)

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Submit(context.Background(), "Q2")
		done <- err
	}()
	<-answers.entered

	state.Reset("conv-2", nil)
	close(answers.block)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.Empty(t, state.Messages())
	assert.Equal(t, "conv-2", state.ConversationID())
	assert.False(t, state.Pending())
	assert.Zero(t, persister.count())
}
