package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/d0rc/scribe-agents/engines"
	"github.com/rs/zerolog"
)

func TestDocumentReduceCarriesNotes(t *testing.T) {
	prompts := make([]string, 0)
	gen := engines.GeneratorFunc(func(_ context.Context, messages []engines.Message, _ engines.GenerationSettings) (*engines.Message, error) {
		prompts = append(prompts, messages[1].Content)
		msg := engines.NewMessage(engines.ChatRoleAssistant, fmt.Sprintf("<think>hmm</think>notes v%d", len(prompts)))
		return &msg, nil
	})

	reducer := NewDocumentReducer(gen, "test-model")
	reducer.SnippetTokens = 8
	reducer.Log = zerolog.Nop()

	document := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 6)
	notes, err := reducer.Reduce(context.Background(), document, "what does the fox do?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prompts) < 2 {
		t.Fatalf("expected the document to be split, got %d prompts", len(prompts))
	}
	if notes != fmt.Sprintf("notes v%d", len(prompts)) {
		t.Errorf("expected the last notes, got %q", notes)
	}
	if strings.Contains(prompts[0], "Notes so far") || !strings.Contains(prompts[1], "Notes so far:\nnotes v1") {
		t.Errorf("notes were not carried over:\n%s", prompts[1])
	}
}

func TestDocumentReduceFailures(t *testing.T) {
	calls := 0
	gen := engines.GeneratorFunc(func(_ context.Context, _ []engines.Message, _ engines.GenerationSettings) (*engines.Message, error) {
		calls++
		return nil, errors.New("model is down")
	})

	reducer := NewDocumentReducer(gen, "")
	reducer.Log = zerolog.Nop()
	if _, err := reducer.Reduce(context.Background(), "short page", "q"); err == nil {
		t.Errorf("expected an error when nothing was reduced")
	}
	if calls != reducer.MaxAttempts {
		t.Errorf("expected %d attempts, got %d", reducer.MaxAttempts, calls)
	}

	if notes, err := reducer.Reduce(context.Background(), "   ", "q"); err != nil || notes != "" {
		t.Errorf("empty document must reduce to nothing, got %q, %v", notes, err)
	}
}
