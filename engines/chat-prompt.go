package engines

import (
	"strings"
)

type PromptStyle string

const (
	PSAlpaca PromptStyle = "alpaca"
	PSChatML PromptStyle = "chat-ml"
)

// ChatPrompt flattens role-tagged messages into a single raw prompt for
// completion-only endpoints.
type ChatPrompt struct {
	messages []Message
}

func NewChatPrompt() *ChatPrompt {
	return &ChatPrompt{
		messages: make([]Message, 0),
	}
}

func NewChatPromptWithMessages(messages []Message) *ChatPrompt {
	return &ChatPrompt{
		messages: append([]Message(nil), messages...),
	}
}

func (p *ChatPrompt) AddSystem(systemMessage string) *ChatPrompt {
	p.messages = append(p.messages, Message{Role: ChatRoleSystem, Content: systemMessage})
	return p
}

func (p *ChatPrompt) AddUser(userMessage string) *ChatPrompt {
	p.messages = append(p.messages, Message{Role: ChatRoleUser, Content: userMessage})
	return p
}

func (p *ChatPrompt) AddAssistant(assistantMessage string) *ChatPrompt {
	p.messages = append(p.messages, Message{Role: ChatRoleAssistant, Content: assistantMessage})
	return p
}

func (p *ChatPrompt) Messages() []Message {
	return append([]Message(nil), p.messages...)
}

func (p *ChatPrompt) DefString() string {
	return p.String(PSChatML)
}

func (p *ChatPrompt) String(style PromptStyle) string {
	finalPrompt := strings.Builder{}
	if style == PSChatML {
		for _, m := range p.messages {
			finalPrompt.WriteString("<|im_start|>")
			finalPrompt.WriteString(string(m.Role))
			finalPrompt.WriteString("\n")
			finalPrompt.WriteString(m.Content)
			finalPrompt.WriteString("<|im_end|>\n")
		}
		finalPrompt.WriteString("<|im_start|>assistant\n")

		return finalPrompt.String()
	}

	// following well known ### Instruction ### Assistant ### User format
	for _, m := range p.messages {
		switch m.Role {
		case ChatRoleSystem:
			finalPrompt.WriteString("### Instruction:\n")
		case ChatRoleAssistant:
			finalPrompt.WriteString("### Assistant:\n")
		case ChatRoleUser:
			finalPrompt.WriteString("### User:\n")
		}

		finalPrompt.WriteString(m.Content)
		finalPrompt.WriteString("\n")
	}
	finalPrompt.WriteString("### Assistant:\n")

	return finalPrompt.String()
}

// StopTokens returns the markers a model may emit when it starts writing the
// next turn by itself.
func (style PromptStyle) StopTokens() []string {
	if style == PSChatML {
		return []string{"<|im_end|>", "<|im_start|>"}
	}
	return []string{"### User:", "### Instruction:"}
}
