// Package turn runs the question/answer and regenerate protocols against the session
// state, one request at a time.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zhouzirui/edu-agent/internal/model/chat"
	"github.com/zhouzirui/edu-agent/internal/session"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	// ErrRequestPending is the in-flight conflict; it also matches ErrInvalidInput.
	ErrRequestPending           = fmt.Errorf("%w: a request is already in flight", ErrInvalidInput)
	ErrConversationCreateFailed = errors.New("conversation could not be created")
	ErrUnknownMessage           = errors.New("message is not a bot message in this conversation")
	ErrNoPrecedingQuestion      = errors.New("no question precedes this message")
	// ErrSuperseded means the conversation was replaced while the request was in flight.
	ErrSuperseded = errors.New("conversation changed while the request was in flight")
)

// ConversationCreator creates conversations in the remote store.
type ConversationCreator interface {
	CreateConversation(ctx context.Context, title string) (string, error)
}

// AnswerService generates an answer for a question.
type AnswerService interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Responder answers locally when the answer service fails.
type Responder interface {
	Respond(question string) string
}

// Persister reflects the current state to the store without blocking the caller.
type Persister interface {
	Persist()
}

// Turn is the outcome of a submit or regenerate.
type Turn struct {
	ConversationID string
	Question       chat.Message
	Answer         chat.Message
	// Fallback is set when the answer came from the local responder.
	Fallback bool
}

// Controller enforces the single in-flight request rule.
type Controller struct {
	state     *session.State
	creator   ConversationCreator
	answers   AnswerService
	fallback  Responder
	persister Persister
	logger    *log.Logger
	now       func() time.Time
}

// New wires a controller. A nil logger logs to the standard logger.
func New(state *session.State, creator ConversationCreator, answers AnswerService, fallback Responder, persister Persister, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		state:     state,
		creator:   creator,
		answers:   answers,
		fallback:  fallback,
		persister: persister,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit appends the question, obtains an answer (or a fallback) and appends it.
// If no conversation is active one is created first.
func (c *Controller) Submit(ctx context.Context, text string) (Turn, error) {
	question := strings.TrimSpace(text)
	if question == "" {
		return Turn{}, fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}

	ticket, err := c.state.BeginRequest()
	if err != nil {
		return Turn{}, ErrRequestPending
	}
	defer c.state.EndRequest(ticket)

	if c.state.ConversationID() == "" {
		if err := c.createConversation(ctx, ticket); err != nil {
			return Turn{}, err
		}
	}

	userMsg, ok := c.state.AppendFor(ticket, chat.SenderUser, question)
	if !ok {
		return Turn{}, ErrSuperseded
	}

	return c.complete(ctx, ticket, userMsg)
}

// Regenerate replaces the bot message messageID with a fresh answer to the user
// message that precedes it. It never adds a user turn.
func (c *Controller) Regenerate(ctx context.Context, messageID string) (Turn, error) {
	ticket, err := c.state.BeginRequest()
	if err != nil {
		return Turn{}, ErrRequestPending
	}
	defer c.state.EndRequest(ticket)

	question, err := precedingQuestion(c.state.Messages(), messageID)
	if err != nil {
		return Turn{}, err
	}

	if !c.state.RemoveFor(ticket, messageID) {
		return Turn{}, ErrSuperseded
	}

	return c.complete(ctx, ticket, question)
}

// complete runs the answer/fallback/append/persist tail shared by both protocols.
func (c *Controller) complete(ctx context.Context, ticket session.Ticket, question chat.Message) (Turn, error) {
	answer, fellBack := c.answer(ctx, question.Text)

	botMsg, ok := c.state.AppendFor(ticket, chat.SenderBot, answer)
	if !ok {
		c.logger.Printf("[turn] dropping answer for %s: conversation changed", question.ID)
		return Turn{}, ErrSuperseded
	}

	c.persister.Persist()

	return Turn{
		ConversationID: c.state.ConversationID(),
		Question:       question,
		Answer:         botMsg,
		Fallback:       fellBack,
	}, nil
}

// answer asks the answer service and falls back to the local responder on any failure.
func (c *Controller) answer(ctx context.Context, question string) (text string, fellBack bool) {
	text, err := c.ask(ctx, question)
	if err == nil {
		return text, false
	}
	c.logger.Printf("[turn] answer service failed, using local responder: %v", err)
	return c.fallback.Respond(question), true
}

func (c *Controller) ask(ctx context.Context, question string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("answer service panicked: %v", r)
		}
	}()
	return c.answers.Ask(ctx, question)
}

func (c *Controller) createConversation(ctx context.Context, ticket session.Ticket) error {
	title := "对话 " + localeTimestamp(c.now())
	id, err := c.creator.CreateConversation(ctx, title)
	if err != nil {
		c.logger.Printf("[turn] failed to create conversation: %v", err)
		return fmt.Errorf("%w: %w", ErrConversationCreateFailed, err)
	}
	if !c.state.Adopt(ticket, id) {
		return ErrSuperseded
	}
	c.logger.Printf("[turn] created conversation %s", id)
	return nil
}

// precedingQuestion finds the bot message and the nearest user message before it.
func precedingQuestion(messages []chat.Message, botID string) (chat.Message, error) {
	idx := -1
	for i, msg := range messages {
		if msg.ID == botID {
			idx = i
			break
		}
	}
	if idx < 0 || messages[idx].Sender != chat.SenderBot {
		return chat.Message{}, ErrUnknownMessage
	}

	for i := idx - 1; i >= 0; i-- {
		if messages[i].Sender == chat.SenderUser {
			return messages[i], nil
		}
	}
	return chat.Message{}, ErrNoPrecedingQuestion
}

// localeTimestamp renders t the way a zh-CN locale prints a date and time.
func localeTimestamp(t time.Time) string {
	return t.Local().Format("2006/1/2 15:04:05")
}
