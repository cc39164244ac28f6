package agency

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/d0rc/scribe-agents/tools"
	"github.com/tidwall/gjson"
)

// Command is a parsed model decision: which tool to run, with which args.
type Command struct {
	Thought string
	Name    string
	Args    gjson.Result
}

// ResponseParser turns raw model output into a Command and describes the
// expected output format to the model.
type ResponseParser interface {
	Parse(raw string, toolset *Toolset) (*Command, error)
	FormatInstructions(toolset *Toolset) string
	FormatObservation(command, observation string) string
	StopTokens() []string
}

// JSONParser expects {"thoughts": ..., "command": {"name": ..., "args": {...}}}.
type JSONParser struct{}

func (JSONParser) Parse(raw string, _ *Toolset) (*Command, error) {
	raw = tools.StripThinkBlocks(raw)

	var parsed gjson.Result
	err := tools.ParseJSON(raw, func(candidate string) error {
		if !gjson.Valid(candidate) {
			return errors.New("invalid json")
		}
		result := gjson.Parse(candidate)
		if !result.IsObject() {
			return errors.New("not a json object")
		}
		if result.Get("command.name").Type != gjson.String {
			return errors.New("command.name is missing")
		}
		parsed = result
		return nil
	})
	if err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}

	return &Command{
		Thought: strings.TrimSpace(parsed.Get("thoughts").String()),
		Name:    strings.TrimSpace(parsed.Get("command.name").String()),
		Args:    parsed.Get("command.args"),
	}, nil
}

func (JSONParser) FormatInstructions(toolset *Toolset) string {
	jsonBuffer := &strings.Builder{}
	tools.RenderJsonString([]tools.MapKV{
		{Key: "thoughts", Value: "your reasoning about what to do next"},
		{Key: "command", InnerMap: []tools.MapKV{
			{Key: "name", Value: "one of: " + strings.Join(toolset.Names(), ", ")},
			{Key: "args", Value: "object with the command arguments"},
		}},
	}, jsonBuffer, 0)

	return fmt.Sprintf("Respond always with exactly one command in the following JSON format:\n```json\n%s```\n",
		jsonBuffer.String())
}

func (JSONParser) FormatObservation(command, observation string) string {
	return fmt.Sprintf("Command `%s` output:\n%s", command, observation)
}

func (JSONParser) StopTokens() []string {
	return nil
}

var (
	reactThought     = regexp.MustCompile(`(?s)Thought\s*:\s*(.*?)(?:\n\s*(?:Action|Final Answer)\s*:|$)`)
	reactAction      = regexp.MustCompile(`(?m)^\s*Action\s*:\s*(.+?)\s*$`)
	reactActionInput = regexp.MustCompile(`(?s)Action\s+Input\s*:\s*(.*?)(?:\n\s*Observation\s*:|$)`)
	reactFinalAnswer = regexp.MustCompile(`(?s)Final\s+Answer\s*:\s*(.*)$`)
)

// ReActParser reads the plain-text Thought / Action / Action Input protocol.
// "Final Answer: ..." is mapped to the submission tool with no sources.
type ReActParser struct{}

func (ReActParser) Parse(raw string, toolset *Toolset) (*Command, error) {
	raw = tools.StripThinkBlocks(raw)

	thought := ""
	if m := reactThought.FindStringSubmatch(raw); m != nil {
		thought = strings.TrimSpace(m[1])
	}

	actionMatch := reactAction.FindStringSubmatch(raw)
	if m := reactFinalAnswer.FindStringSubmatch(raw); m != nil {
		if actionMatch != nil {
			return nil, &ParseError{Raw: raw, Err: errors.New("reply has both an Action and a Final Answer, give only one of them")}
		}
		answer := strings.TrimSpace(m[1])
		if answer == "" {
			return nil, &ParseError{Raw: raw, Err: errors.New("final answer is empty")}
		}
		args, err := json.Marshal(map[string]interface{}{
			"answer":  answer,
			"sources": []Source{},
		})
		if err != nil {
			return nil, &ParseError{Raw: raw, Err: err}
		}

		return &Command{
			Thought: thought,
			Name:    toolset.Submission().Name(),
			Args:    gjson.ParseBytes(args),
		}, nil
	}

	if actionMatch == nil {
		return nil, &ParseError{Raw: raw, Err: errors.New("no Action or Final Answer found")}
	}
	name := strings.Trim(actionMatch[1], "`\"' ")

	input := ""
	if m := reactActionInput.FindStringSubmatch(raw); m != nil {
		input = strings.TrimSpace(m[1])
	}

	args, err := reactArguments(name, input, toolset)
	if err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}

	return &Command{
		Thought: thought,
		Name:    name,
		Args:    args,
	}, nil
}

// reactArguments accepts a JSON object, or a plain string when the tool
// has a single required string argument.
func reactArguments(name, input string, toolset *Toolset) (gjson.Result, error) {
	if strings.HasPrefix(strings.TrimLeft(input, "`json \n"), "{") {
		var args gjson.Result
		err := tools.ParseJSON(input, func(candidate string) error {
			if !gjson.Valid(candidate) {
				return errors.New("invalid json")
			}
			args = gjson.Parse(candidate)
			return nil
		})
		if err == nil && args.IsObject() {
			return args, nil
		}
	}

	declared, known := toolset.Arguments(name)
	if !known {
		// the loop reports unknown tools with the list of valid ones
		return gjson.Result{}, nil
	}

	var target *Argument
	for idx := range declared {
		if declared[idx].Required && declared[idx].Type == ArgString {
			if target != nil {
				return gjson.Result{}, fmt.Errorf("%s takes several arguments, Action Input must be a JSON object", name)
			}
			target = &declared[idx]
		}
	}
	if target == nil {
		return gjson.Result{}, fmt.Errorf("%s does not take a plain text input, Action Input must be a JSON object", name)
	}

	value := strings.Trim(input, "`\" \n")
	wrapped, err := json.Marshal(map[string]string{target.Name: value})
	if err != nil {
		return gjson.Result{}, err
	}

	return gjson.ParseBytes(wrapped), nil
}

func (ReActParser) FormatInstructions(toolset *Toolset) string {
	names := make([]string, 0)
	for _, name := range toolset.Names() {
		if !toolset.IsSubmission(name) {
			names = append(names, name)
		}
	}

	return fmt.Sprintf(`Use the following format:

Thought: think about what to do next
Action: the action to take, one of [%s]
Action Input: the input to the action
Observation: the result of the action
... (Thought/Action/Action Input/Observation can repeat)
Thought: I now know the final answer
Final Answer: the final answer to the original question

Write one Action per reply and stop after Action Input.
`, strings.Join(names, ", "))
}

func (ReActParser) FormatObservation(_, observation string) string {
	return "Observation: " + observation
}

func (ReActParser) StopTokens() []string {
	return []string{"\nObservation:"}
}
