package composer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/d0rc/scribe-agents/engines"
	"github.com/d0rc/scribe-agents/personas"
	"github.com/rs/zerolog"
)

func newTestComposer(gen engines.GeneratorFunc) *Composer {
	c := NewComposer(gen)
	c.Log = zerolog.Nop()
	return c
}

func TestCompose(t *testing.T) {
	var seen []engines.Message
	var temperature float32
	c := newTestComposer(func(_ context.Context, messages []engines.Message, gs engines.GenerationSettings) (*engines.Message, error) {
		seen = messages
		temperature = gs.Temperature
		msg := engines.NewMessage(engines.ChatRoleAssistant, "<think>counting syllables</think>\nold pond\nfrog leaps in\nsplash\n")
		return &msg, nil
	})

	text, err := c.Compose(context.Background(), NewRequest("Poet", "Haiku", "  autumn rain "))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "old pond\nfrog leaps in\nsplash" {
		t.Errorf("unexpected text %q", text)
	}
	if temperature != DefaultTemperature {
		t.Errorf("expected default temperature, got %v", temperature)
	}
	if len(seen) != 2 || seen[0].Role != engines.ChatRoleSystem || seen[1].Content != "Theme: autumn rain" {
		t.Errorf("unexpected prompt %+v", seen)
	}
}

func TestComposeRejectsBadRequests(t *testing.T) {
	calls := 0
	c := newTestComposer(func(_ context.Context, _ []engines.Message, _ engines.GenerationSettings) (*engines.Message, error) {
		calls++
		msg := engines.NewMessage(engines.ChatRoleAssistant, "text")
		return &msg, nil
	})

	_, err := c.Compose(context.Background(), NewRequest("Poet", "Haiku", "   "))
	if !errors.Is(err, personas.ErrEmptyTheme) {
		t.Errorf("expected ErrEmptyTheme, got %v", err)
	}

	_, err = c.Compose(context.Background(), NewRequest("Poet", "Limerick", "cats"))
	var unknown *personas.UnknownTemplateError
	if !errors.As(err, &unknown) {
		t.Errorf("expected UnknownTemplateError, got %v", err)
	}

	req := NewRequest("Poet", "Haiku", "cats")
	req.Temperature = 1.5
	_, err = c.Compose(context.Background(), req)
	var tempErr *TemperatureError
	if !errors.As(err, &tempErr) {
		t.Errorf("expected TemperatureError, got %v", err)
	}

	if calls != 0 {
		t.Errorf("model must not be called for invalid requests, called %d times", calls)
	}
}

func TestComposeTimeout(t *testing.T) {
	c := newTestComposer(func(ctx context.Context, _ []engines.Message, _ engines.GenerationSettings) (*engines.Message, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	c.Timeout = 20 * time.Millisecond

	_, err := c.Compose(context.Background(), NewRequest("Poet", "Haiku", "cats"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestComposeEmptyReply(t *testing.T) {
	c := newTestComposer(func(_ context.Context, _ []engines.Message, _ engines.GenerationSettings) (*engines.Message, error) {
		msg := engines.NewMessage(engines.ChatRoleAssistant, "<think>never finished")
		return &msg, nil
	})

	if _, err := c.Compose(context.Background(), NewRequest("Poet", "Haiku", "cats")); err == nil {
		t.Errorf("expected an error for an empty reply")
	}
}

func TestDownloadFileName(t *testing.T) {
	tests := []struct {
		persona, literature, theme, want string
	}{
		{"Poet", "Haiku", "autumn rain", "Poet_Haiku_autumn_rain.txt"},
		{"Novelist", "Short Story", "a hero's last stand at dawn", "Novelist_Short Story_a_hero's_last_stand_.txt"},
		{"Poet", "Sonnet", "../../x", "Poet_Sonnet_.._.._x.txt"},
		{"Poet", "Sonnet", `..\..\x`, "Poet_Sonnet_.._.._x.txt"},
	}

	for _, tt := range tests {
		if got := DownloadFileName(tt.persona, tt.literature, tt.theme); got != tt.want {
			t.Errorf("DownloadFileName(%q) = %q, want %q", tt.theme, got, tt.want)
		}
	}
	for _, theme := range []string{"../../../../tmp/pwn", "/etc/passwd", ".."} {
		name := DownloadFileName("Poet", "Sonnet", theme)
		if dir := filepath.Dir(filepath.Join("out", name)); dir != "out" {
			t.Errorf("theme %q escapes the output directory: %q", theme, name)
		}
	}
	if !strings.HasSuffix(DownloadFileName("P", "L", ""), "_.txt") {
		t.Errorf("unexpected name for empty theme")
	}
}
