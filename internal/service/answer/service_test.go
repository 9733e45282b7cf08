package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubGenerator struct {
	answer string
	err    error
}

func (s stubGenerator) Answer(context.Context, string) (string, error) {
	return s.answer, s.err
}

func TestProductionMode(t *testing.T) {
	svc := NewProduction(stubGenerator{answer: "加速度描述速度变化的快慢。"})

	got, err := svc.Answer(context.Background(), "什么是加速度？")
	if err != nil {
		t.Fatalf("Answer err: %v", err)
	}
	if got != "加速度描述速度变化的快慢。" {
		t.Fatalf("unexpected answer: %q", got)
	}
	if svc.Mode() != ModeProduction || svc.KnowledgeBase() != KnowledgeNone {
		t.Fatalf("unexpected mode %s / %s", svc.Mode(), svc.KnowledgeBase())
	}
}

func TestProductionErrorSurfaces(t *testing.T) {
	boom := errors.New("model offline")
	svc := NewProduction(stubGenerator{err: boom})

	if _, err := svc.Answer(context.Background(), "q"); !errors.Is(err, boom) {
		t.Fatalf("expected model error, got %v", err)
	}
}

func TestDemoMode(t *testing.T) {
	svc := NewDemo(nil)

	got, err := svc.Answer(context.Background(), "量子纠缠是什么")
	if err != nil {
		t.Fatalf("Answer err: %v", err)
	}
	if !strings.Contains(got, "量子纠缠是什么") {
		t.Fatalf("demo answer should echo the question: %q", got)
	}
	if svc.Mode() != ModeDemo || svc.KnowledgeBase() != "demo_data" {
		t.Fatalf("unexpected mode %s / %s", svc.Mode(), svc.KnowledgeBase())
	}
}

type knowledgeGenerator struct {
	stubGenerator
	loaded bool
}

func (k knowledgeGenerator) HasKnowledge() bool { return k.loaded }

func TestKnowledgeBaseReportsLoadedOnlyWithKnowledge(t *testing.T) {
	cases := []struct {
		name string
		gen  Generator
		want string
	}{
		{"plain generator", stubGenerator{answer: "a"}, KnowledgeNone},
		{"generator without knowledge", knowledgeGenerator{loaded: false}, KnowledgeNone},
		{"generator with knowledge", knowledgeGenerator{loaded: true}, KnowledgeLoaded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewProduction(tc.gen).KnowledgeBase(); got != tc.want {
				t.Fatalf("KnowledgeBase() = %q, want %q", got, tc.want)
			}
		})
	}
}
