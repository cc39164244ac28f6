package engines

import (
	"context"
	"crypto/sha512"

	"github.com/google/uuid"
)

type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleSystem    ChatRole = "system"
	ChatRoleAssistant ChatRole = "assistant"
)

func (r ChatRole) Valid() bool {
	switch r {
	case ChatRoleUser, ChatRoleSystem, ChatRoleAssistant:
		return true
	}
	return false
}

type Message struct {
	ID      string   `json:"id,omitempty"`
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

func NewMessage(role ChatRole, content string) Message {
	return Message{
		ID:      GenerateMessageId(content),
		Role:    role,
		Content: content,
	}
}

// GenerateMessageId derives a stable id from the message body, so identical
// prompts share ids across runs.
func GenerateMessageId(body string) string {
	return uuid.NewHash(sha512.New(), uuid.Nil, []byte(body), 5).String()
}

type GenerationSettings struct {
	Model       string   `json:"model"`
	Temperature float32  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	StopTokens  []string `json:"stop_tokens"`
}

// Generator is the language-model collaborator: role-tagged messages in,
// one assistant message out.
type Generator interface {
	Generate(ctx context.Context, messages []Message, settings GenerationSettings) (*Message, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(ctx context.Context, messages []Message, settings GenerationSettings) (*Message, error)

func (f GeneratorFunc) Generate(ctx context.Context, messages []Message, settings GenerationSettings) (*Message, error) {
	return f(ctx, messages, settings)
}
