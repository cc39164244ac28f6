package agency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

type State string

const (
	StateThinking  State = "THINKING"
	StateActing    State = "ACTING"
	StateDone      State = "DONE"
	StateExhausted State = "EXHAUSTED"
	StateFailed    State = "FAILED"
)

func (s State) Terminal() bool {
	return s == StateDone || s == StateExhausted || s == StateFailed
}

type Source struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// AgentResponse is the loop's final artifact.
type AgentResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Step is one entry of the scratchpad. Failed steps are parse failures,
// tool errors and rejected submissions.
type Step struct {
	Iteration   int    `json:"iteration"`
	Thought     string `json:"thought,omitempty"`
	Action      string `json:"action,omitempty"`
	Args        string `json:"args,omitempty"`
	Observation string `json:"observation"`
	Failed      bool   `json:"failed"`
	Raw         string `json:"-"`
}

type Outcome struct {
	RunId      string
	State      State
	Response   *AgentResponse
	Reason     string
	Iterations int
	Steps      []Step
}

var ErrIterationsExhausted = errors.New("iteration budget exhausted without a submission")

type LoopFailedError struct {
	Reason string
	Err    error
}

func (e *LoopFailedError) Error() string {
	return fmt.Sprintf("agent loop failed: %s", e.Reason)
}

func (e *LoopFailedError) Unwrap() error {
	return e.Err
}

// ParseError means the model's reply could not be turned into a command.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse model reply: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type ToolArgumentError struct {
	Tool     string
	Argument string
	Reason   string
}

func (e *ToolArgumentError) Error() string {
	if e.Argument == "" {
		return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("invalid argument %q for %s: %s", e.Argument, e.Tool, e.Reason)
}

type SubmissionValidationError struct {
	Reason string
}

func (e *SubmissionValidationError) Error() string {
	return fmt.Sprintf("submission rejected: %s", e.Reason)
}

// SubmissionFromArgs reads {"answer": ..., "sources": [{"url", "title"}]}.
// A bare string in sources is taken as a url without a title.
func SubmissionFromArgs(args gjson.Result) AgentResponse {
	response := AgentResponse{
		Answer:  args.Get("answer").String(),
		Sources: make([]Source, 0),
	}

	for _, item := range args.Get("sources").Array() {
		if item.Type == gjson.String {
			response.Sources = append(response.Sources, Source{URL: item.String()})
			continue
		}
		response.Sources = append(response.Sources, Source{
			URL:   item.Get("url").String(),
			Title: item.Get("title").String(),
		})
	}

	return response
}

// SanitizeResponse trims the submission and drops sources with a blank url
// or title. A blank answer is rejected.
func SanitizeResponse(response AgentResponse) (*AgentResponse, error) {
	answer := strings.TrimSpace(response.Answer)
	if answer == "" {
		return nil, &SubmissionValidationError{Reason: "answer is empty"}
	}

	sanitized := &AgentResponse{
		Answer:  answer,
		Sources: make([]Source, 0, len(response.Sources)),
	}
	for _, source := range response.Sources {
		source.URL = strings.TrimSpace(source.URL)
		source.Title = strings.TrimSpace(source.Title)
		if source.URL == "" || source.Title == "" {
			continue
		}
		sanitized.Sources = append(sanitized.Sources, source)
	}

	return sanitized, nil
}
