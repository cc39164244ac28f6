package agency

import (
	"fmt"

	"github.com/d0rc/scribe-agents/engines"
)

// scratchpad keeps past steps and replays them as a conversation: the raw
// model reply as the assistant turn, the observation as the user turn.
type scratchpad struct {
	steps []Step
}

func (s *scratchpad) add(step Step) {
	s.steps = append(s.steps, step)
}

func (s *scratchpad) conversation(systemMessage, goal string, parser ResponseParser) []engines.Message {
	messages := make([]engines.Message, 0, 2+2*len(s.steps))
	messages = append(messages,
		engines.NewMessage(engines.ChatRoleSystem, systemMessage),
		engines.NewMessage(engines.ChatRoleUser, fmt.Sprintf("Goal: %s", goal)),
	)

	for _, step := range s.steps {
		messages = append(messages, engines.NewMessage(engines.ChatRoleAssistant, step.Raw))
		if step.Action == "" {
			messages = append(messages, engines.NewMessage(engines.ChatRoleUser, step.Observation))
			continue
		}
		messages = append(messages, engines.NewMessage(engines.ChatRoleUser,
			parser.FormatObservation(step.Action, step.Observation)))
	}

	return messages
}
