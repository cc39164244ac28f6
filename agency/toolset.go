package agency

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// AgentTool is a capability the model may invoke. Run returns the
// observation text shown to the model.
type AgentTool interface {
	Name() string
	ContextDescription() string
	Arguments() []Argument
	Run(ctx context.Context, args gjson.Result) (string, error)
}

// SubmissionTool is the terminal action: a validated submission ends the
// loop.
type SubmissionTool interface {
	Name() string
	ContextDescription() string
	Arguments() []Argument
	Submit(ctx context.Context, args gjson.Result) (*AgentResponse, error)
}

// Toolset is the fixed set of tools of one loop. Every toolset has exactly
// one submission tool.
type Toolset struct {
	submission SubmissionTool
	tools      []AgentTool
	byName     map[string]AgentTool
}

func NewToolset(submission SubmissionTool, tools ...AgentTool) (*Toolset, error) {
	if submission == nil {
		return nil, fmt.Errorf("toolset needs a submission tool")
	}
	submitName := strings.TrimSpace(submission.Name())
	if submitName == "" {
		return nil, fmt.Errorf("submission tool has an empty name")
	}

	ts := &Toolset{
		submission: submission,
		tools:      make([]AgentTool, 0, len(tools)),
		byName:     make(map[string]AgentTool, len(tools)),
	}
	for idx, tool := range tools {
		if tool == nil {
			return nil, fmt.Errorf("tool #%d is nil", idx)
		}
		name := strings.TrimSpace(tool.Name())
		if name == "" {
			return nil, fmt.Errorf("tool #%d has an empty name", idx)
		}
		if _, exists := ts.byName[name]; exists || name == submitName {
			return nil, fmt.Errorf("duplicate tool name %q", name)
		}
		ts.byName[name] = tool
		ts.tools = append(ts.tools, tool)
	}

	return ts, nil
}

func (ts *Toolset) Submission() SubmissionTool {
	return ts.submission
}

func (ts *Toolset) Lookup(name string) (AgentTool, bool) {
	tool, exists := ts.byName[name]
	return tool, exists
}

func (ts *Toolset) IsSubmission(name string) bool {
	return name == ts.submission.Name()
}

// Names lists ordinary tools first and the submission tool last.
func (ts *Toolset) Names() []string {
	names := make([]string, 0, len(ts.tools)+1)
	for _, tool := range ts.tools {
		names = append(names, tool.Name())
	}
	return append(names, ts.submission.Name())
}

func (ts *Toolset) Arguments(name string) ([]Argument, bool) {
	if ts.IsSubmission(name) {
		return ts.submission.Arguments(), true
	}
	if tool, exists := ts.byName[name]; exists {
		return tool.Arguments(), true
	}
	return nil, false
}

// ContextDescription renders the tool list for the system prompt.
func (ts *Toolset) ContextDescription() string {
	result := strings.Builder{}
	result.WriteString("Available tools:\n")

	describe := func(name, description string, args []Argument, last bool) {
		result.WriteString("- ")
		result.WriteString(name)
		result.WriteString(" - ")
		result.WriteString(description)
		result.WriteString(", ")
		result.WriteString(describeArguments(args))
		if last {
			result.WriteString(".\n")
		} else {
			result.WriteString(";\n")
		}
	}

	for _, tool := range ts.tools {
		describe(tool.Name(), tool.ContextDescription(), tool.Arguments(), false)
	}
	describe(ts.submission.Name(), ts.submission.ContextDescription(), ts.submission.Arguments(), true)

	return result.String()
}
