// Package answer decides how /api/ask questions are answered: through the language model when
// it is configured, otherwise from the local demo responder.
package answer

import (
	"context"
	"log"

	"github.com/zhouzirui/edu-agent/internal/service/fallback"
)

// Mode names the answering backend reported by /api/status.
type Mode string

const (
	ModeProduction Mode = "production"
	ModeDemo       Mode = "demo"
)

// Knowledge base states reported by /api/status.
const (
	KnowledgeLoaded = "loaded"
	KnowledgeNone   = "none"
	KnowledgeDemo   = "demo_data"
)

// Generator produces an answer for one question.
type Generator interface {
	Answer(ctx context.Context, question string) (string, error)
}

// knowledgeReporter is implemented by generators that may draw on a knowledge base.
type knowledgeReporter interface {
	HasKnowledge() bool
}

// Service answers questions in production or demo mode.
type Service struct {
	gen  Generator
	demo *fallback.Responder
}

// NewProduction answers through gen.
func NewProduction(gen Generator) *Service {
	return &Service{gen: gen}
}

// NewDemo answers from canned demo responses.
func NewDemo(demo *fallback.Responder) *Service {
	if demo == nil {
		demo = fallback.Demo()
	}
	return &Service{demo: demo}
}

// Answer returns the answer for question. Demo mode never fails.
func (s *Service) Answer(ctx context.Context, question string) (string, error) {
	if s.gen == nil {
		return s.demo.Respond(question), nil
	}
	answer, err := s.gen.Answer(ctx, question)
	if err != nil {
		log.Printf("[answer] generation failed: %v", err)
		return "", err
	}
	return answer, nil
}

// Mode reports which backend serves answers.
func (s *Service) Mode() Mode {
	if s.gen == nil {
		return ModeDemo
	}
	return ModeProduction
}

// KnowledgeBase describes the answer source for status reporting: demo data, a loaded
// knowledge base, or none.
func (s *Service) KnowledgeBase() string {
	if s.gen == nil {
		return KnowledgeDemo
	}
	if kr, ok := s.gen.(knowledgeReporter); ok && kr.HasKnowledge() {
		return KnowledgeLoaded
	}
	return KnowledgeNone
}
