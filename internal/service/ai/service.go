package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/edu-agent/internal/config"
)

// ErrEmptyAnswer is returned when the model replies with no content.
var ErrEmptyAnswer = errors.New("model returned an empty answer")

// Knowledge supplies reference passages for a question.
type Knowledge interface {
	Passages(ctx context.Context, question string) ([]string, error)
}

// Service answers student questions through an eino chain: knowledge lookup and system
// prompt, then the prompt template, then the chat model.
type Service struct {
	chain compose.Runnable[map[string]any, *schema.Message]
	kb    Knowledge
}

// NewService builds the chat model from configuration and compiles the answer chain.
// kb may be nil, in which case answers use the tutor prompt alone.
func NewService(ctx context.Context, cfg config.AIConfig, kb Knowledge) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, PhysicsTeacherPrompt, kb)
}

// NewServiceWithModel compiles the answer chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel, tmpl PromptTemplate, kb Knowledge) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	// A failed lookup degrades to the plain tutor prompt rather than failing the answer.
	withReferences := compose.InvokableLambda(func(ctx context.Context, in map[string]any) (map[string]any, error) {
		query, _ := in["query"].(string)
		var passages []string
		if kb != nil {
			found, err := kb.Passages(ctx, query)
			if err != nil {
				log.Printf("[ai] knowledge lookup failed, answering without references: %v", err)
			} else {
				passages = found
			}
		}
		return map[string]any{
			"system": tmpl.BuildSystemPrompt(passages...),
			"query":  query,
		}, nil
	})

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendLambda(withReferences)
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile answer chain: %w", err)
	}

	return &Service{chain: runnable, kb: kb}, nil
}

// Answer runs the chain for a single question.
func (s *Service) Answer(ctx context.Context, question string) (string, error) {
	response, err := s.chain.Invoke(ctx, map[string]any{"query": question})
	if err != nil {
		return "", fmt.Errorf("failed to run answer chain: %w", err)
	}

	answer := strings.TrimSpace(response.Content)
	if answer == "" {
		return "", ErrEmptyAnswer
	}

	log.Printf("[ai] answered question (len=%d) with %d chars", len([]rune(question)), len([]rune(answer)))
	return answer, nil
}

// HasKnowledge reports whether answers draw on a knowledge base.
func (s *Service) HasKnowledge() bool {
	return s.kb != nil
}
