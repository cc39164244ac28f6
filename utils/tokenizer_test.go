package utils

import (
	"strings"
	"testing"
)

func TestSplitTokens(t *testing.T) {
	text := strings.Repeat("hello world, this is a test. ", 10)

	snippets := SplitTokens(text, 7)
	if len(snippets) < 2 {
		t.Fatalf("expected several snippets, got %d", len(snippets))
	}
	if joined := strings.Join(snippets, ""); !strings.Contains(joined, "hello world") {
		t.Errorf("snippets lost the text: %q", joined)
	}

	if got := SplitTokens("short", 100); len(got) != 1 || got[0] != "short" {
		t.Errorf("unexpected split of a short text: %q", got)
	}
	if SplitTokens("", 10) != nil {
		t.Errorf("expected nil for empty text")
	}
}
