package agency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/d0rc/scribe-agents/engines"
	"github.com/tidwall/gjson"
)

type echoTool struct {
	runs int
	fail error
}

func (e *echoTool) Name() string               { return "web-search" }
func (e *echoTool) ContextDescription() string { return "searches the web" }
func (e *echoTool) Arguments() []Argument {
	return []Argument{{Name: "query", Type: ArgString, Required: true, Description: "search query"}}
}

func (e *echoTool) Run(_ context.Context, args gjson.Result) (string, error) {
	e.runs++
	if e.fail != nil {
		return "", e.fail
	}
	return "results for " + args.Get("query").String(), nil
}

type reportTool struct{}

func (reportTool) Name() string               { return "submit-report" }
func (reportTool) ContextDescription() string { return "delivers the final answer" }
func (reportTool) Arguments() []Argument {
	return []Argument{
		{Name: "answer", Type: ArgString, Required: true, Description: "the answer"},
		{Name: "sources", Type: ArgArray, Description: "list of {url, title}"},
	}
}

func (reportTool) Submit(_ context.Context, args gjson.Result) (*AgentResponse, error) {
	return SanitizeResponse(SubmissionFromArgs(args))
}

// scripted replays replies in order, repeating the last one.
type scripted struct {
	mu       sync.Mutex
	replies  []string
	calls    int
	lastSeen []engines.Message
}

func (s *scripted) Generate(_ context.Context, messages []engines.Message, _ engines.GenerationSettings) (*engines.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = messages
	reply := s.replies[len(s.replies)-1]
	if s.calls < len(s.replies) {
		reply = s.replies[s.calls]
	}
	s.calls++
	msg := engines.NewMessage(engines.ChatRoleAssistant, reply)
	return &msg, nil
}

func newTestLoop(t *testing.T, gen engines.Generator, tool *echoTool, opts ...Option) *Loop {
	t.Helper()
	toolset, err := NewToolset(reportTool{}, tool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return NewLoop(gen, toolset, opts...)
}

const searchReply = `{"thoughts": "need data", "command": {"name": "web-search", "args": {"query": "golang"}}}`

func TestLoopSubmitsOnFirstIteration(t *testing.T) {
	gen := &scripted{replies: []string{
		`{"thoughts": "I know this", "command": {"name": "submit-report", "args": {"answer": "Go is great", "sources": [{"url": "https://a.com", "title": "A"}]}}}`,
	}}
	loop := newTestLoop(t, gen, &echoTool{})

	outcome, err := loop.Run(context.Background(), "what is go?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.State != StateDone {
		t.Fatalf("expected DONE, got %s", outcome.State)
	}
	if outcome.Response.Answer != "Go is great" || len(outcome.Response.Sources) != 1 {
		t.Errorf("unexpected response %+v", outcome.Response)
	}
	if outcome.Response.Sources[0] != (Source{URL: "https://a.com", Title: "A"}) {
		t.Errorf("unexpected source %+v", outcome.Response.Sources[0])
	}
	if outcome.Iterations != 1 || gen.calls != 1 {
		t.Errorf("expected one iteration and one call, got %d and %d", outcome.Iterations, gen.calls)
	}
	if outcome.RunId == "" {
		t.Errorf("run id is empty")
	}
}

func TestLoopExhaustsIterations(t *testing.T) {
	tool := &echoTool{}
	gen := &scripted{replies: []string{searchReply}}
	loop := newTestLoop(t, gen, tool, WithMaxIterations(4))

	outcome, err := loop.Run(context.Background(), "never ending research")
	if !errors.Is(err, ErrIterationsExhausted) {
		t.Fatalf("expected ErrIterationsExhausted, got %v", err)
	}
	if outcome.State != StateExhausted {
		t.Errorf("expected EXHAUSTED, got %s", outcome.State)
	}
	if tool.runs != 4 || outcome.Iterations != 4 {
		t.Errorf("expected exactly 4 tool executions, got %d (iterations %d)", tool.runs, outcome.Iterations)
	}
	if outcome.Response != nil {
		t.Errorf("exhausted run must not carry a response")
	}

	// observations are fed back to the model
	last := gen.lastSeen[len(gen.lastSeen)-1]
	if last.Role != engines.ChatRoleUser || !strings.Contains(last.Content, "results for golang") {
		t.Errorf("observation not in conversation: %+v", last)
	}
}

func TestLoopFailsOnUnparseableOutput(t *testing.T) {
	gen := &scripted{replies: []string{"I am not sure what to do."}}
	loop := newTestLoop(t, gen, &echoTool{}, WithMaxParseAttempts(3))

	outcome, err := loop.Run(context.Background(), "anything")
	var failed *LoopFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected LoopFailedError, got %v", err)
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected the ParseError to be wrapped, got %v", err)
	}
	if outcome.State != StateFailed || outcome.Reason == "" {
		t.Errorf("expected FAILED with a reason, got %s %q", outcome.State, outcome.Reason)
	}
	if gen.calls != 3 || outcome.Iterations != 0 {
		t.Errorf("expected 3 attempts and no iterations, got %d and %d", gen.calls, outcome.Iterations)
	}
	if len(outcome.Steps) != 3 || !outcome.Steps[0].Failed {
		t.Errorf("parse failures must be recorded as failed steps: %+v", outcome.Steps)
	}
}

func TestRecoveredParseFailureDoesNotCountAsIteration(t *testing.T) {
	gen := &scripted{replies: []string{
		"garbage",
		`{"command": {"name": "no-such-tool", "args": {}}}`,
		`{"command": {"name": "web-search", "args": {"q": "missing query"}}}`,
		`{"command": {"name": "submit-report", "args": {"answer": "done"}}}`,
	}}
	loop := newTestLoop(t, gen, &echoTool{}, WithMaxParseAttempts(5))

	outcome, err := loop.Run(context.Background(), "goal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Iterations != 1 {
		t.Errorf("expected 1 iteration, got %d", outcome.Iterations)
	}
	if !strings.Contains(outcome.Steps[1].Observation, "unknown command") {
		t.Errorf("expected unknown command notice, got %q", outcome.Steps[1].Observation)
	}
	if !strings.Contains(outcome.Steps[2].Observation, `"query"`) {
		t.Errorf("expected argument error notice, got %q", outcome.Steps[2].Observation)
	}
}

func TestSourcesWithoutUrlAreDropped(t *testing.T) {
	gen := &scripted{replies: []string{
		`{"command": {"name": "submit-report", "args": {"answer": "x", "sources": [{"title": "no url"}, {"url": "https://b.com", "title": "B"}, {"url": "https://c.com"}]}}}`,
	}}
	loop := newTestLoop(t, gen, &echoTool{})

	outcome, err := loop.Run(context.Background(), "goal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Response.Sources) != 1 || outcome.Response.Sources[0].URL != "https://b.com" {
		t.Errorf("expected only the well-formed source, got %+v", outcome.Response.Sources)
	}
}

type rejectingReport struct {
	reportTool
}

func (rejectingReport) Submit(context.Context, gjson.Result) (*AgentResponse, error) {
	return nil, &SubmissionValidationError{Reason: "at least one source is required"}
}

func TestRejectedSubmissionEscalates(t *testing.T) {
	gen := &scripted{replies: []string{
		`{"command": {"name": "submit-report", "args": {"answer": "trust me"}}}`,
	}}
	toolset, err := NewToolset(rejectingReport{}, &echoTool{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outcome, err := NewLoop(gen, toolset).Run(context.Background(), "goal")
	var validation *SubmissionValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected SubmissionValidationError, got %v", err)
	}
	if outcome.State != StateFailed || outcome.Iterations != 2 {
		t.Errorf("expected FAILED after 2 rejected submissions, got %s after %d", outcome.State, outcome.Iterations)
	}
	if !strings.Contains(outcome.Steps[0].Observation, "source is required") {
		t.Errorf("rejection must be shown to the model, got %q", outcome.Steps[0].Observation)
	}
}

func TestBlankAnswerIsAnArgumentError(t *testing.T) {
	gen := &scripted{replies: []string{
		`{"command": {"name": "submit-report", "args": {"answer": "   "}}}`,
	}}
	loop := newTestLoop(t, gen, &echoTool{})

	outcome, err := loop.Run(context.Background(), "goal")
	var argErr *ToolArgumentError
	if !errors.As(err, &argErr) || argErr.Argument != "answer" {
		t.Fatalf("expected ToolArgumentError for answer, got %v", err)
	}
	if outcome.Iterations != 0 || gen.calls != DefaultMaxParseAttempts {
		t.Errorf("argument errors are parse failures, got %d iterations after %d calls", outcome.Iterations, gen.calls)
	}
}

func TestToolFailureEscalates(t *testing.T) {
	tool := &echoTool{fail: errors.New("rate limited")}
	gen := &scripted{replies: []string{searchReply}}
	loop := newTestLoop(t, gen, tool, WithMaxToolFailures(2))

	outcome, err := loop.Run(context.Background(), "goal")
	var failed *LoopFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected LoopFailedError, got %v", err)
	}
	if tool.runs != 2 {
		t.Errorf("expected failure on the second tool error, got %d runs", tool.runs)
	}
	if !outcome.Steps[0].Failed || !strings.Contains(outcome.Steps[0].Observation, "rate limited") {
		t.Errorf("first failure must be recorded as an observation: %+v", outcome.Steps[0])
	}
}

func TestGenerationFailuresEscalate(t *testing.T) {
	calls := 0
	gen := engines.GeneratorFunc(func(ctx context.Context, _ []engines.Message, _ engines.GenerationSettings) (*engines.Message, error) {
		calls++
		return nil, &engines.GenerationError{Endpoint: "stub", StatusCode: 500, Err: errors.New("boom")}
	})
	loop := newTestLoop(t, gen, &echoTool{})

	outcome, err := loop.Run(context.Background(), "goal")
	var genErr *engines.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError to be wrapped, got %v", err)
	}
	if outcome.State != StateFailed || calls != DefaultMaxGenerationFailures {
		t.Errorf("expected FAILED after %d calls, got %s after %d", DefaultMaxGenerationFailures, outcome.State, calls)
	}
}

func TestCancellationBetweenIterations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &scripted{replies: []string{searchReply}}
	loop := newTestLoop(t, gen, &echoTool{}, WithStepCallback(func(step Step) {
		if step.Iteration == 2 {
			cancel()
		}
	}))

	outcome, err := loop.Run(ctx, "goal")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if outcome.State != StateFailed || outcome.Iterations != 2 {
		t.Errorf("expected FAILED after 2 iterations, got %s after %d", outcome.State, outcome.Iterations)
	}
}

func TestSlowGeneratorTimesOut(t *testing.T) {
	gen := engines.GeneratorFunc(func(ctx context.Context, _ []engines.Message, _ engines.GenerationSettings) (*engines.Message, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	loop := newTestLoop(t, gen, &echoTool{}, WithCallTimeout(20*time.Millisecond))

	outcome, err := loop.Run(context.Background(), "goal")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if outcome.State != StateFailed {
		t.Errorf("expected FAILED, got %s", outcome.State)
	}
}

func TestSystemPromptVariables(t *testing.T) {
	gen := &scripted{replies: []string{`{"command": {"name": "submit-report", "args": {"answer": "ok"}}}`}}
	loop := newTestLoop(t, gen, &echoTool{},
		WithSystemPrompt("Find {{ role }} jobs in {{ location }}. Finish with {{ submit }}.",
			map[string]any{"role": "Go developer", "location": "Berlin"}))

	if _, err := loop.Run(context.Background(), "jobs"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	system := gen.lastSeen[0].Content
	if !strings.HasPrefix(system, "Find Go developer jobs in Berlin. Finish with submit-report.") {
		t.Errorf("unexpected system prompt %q", system)
	}
	if !strings.Contains(system, "web-search - searches the web") {
		t.Errorf("tool description missing from system prompt")
	}
	if gen.lastSeen[1].Content != "Goal: jobs" {
		t.Errorf("unexpected goal message %q", gen.lastSeen[1].Content)
	}
}

func TestEmptyGoalFails(t *testing.T) {
	loop := newTestLoop(t, &scripted{replies: []string{"x"}}, &echoTool{})
	outcome, err := loop.Run(context.Background(), "  ")
	if err == nil || outcome.State != StateFailed {
		t.Errorf("expected FAILED for blank goal, got %v", err)
	}
}

func TestReActLoop(t *testing.T) {
	gen := &scripted{replies: []string{
		"Thought: I should search\nAction: web-search\nAction Input: LangChain creator",
		"Thought: I now know the final answer\nFinal Answer: Harrison Chase created LangChain.",
	}}
	tool := &echoTool{}
	loop := newTestLoop(t, gen, tool, WithParser(ReActParser{}))

	outcome, err := loop.Run(context.Background(), "Who created LangChain?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Response.Answer != "Harrison Chase created LangChain." {
		t.Errorf("unexpected answer %q", outcome.Response.Answer)
	}
	if tool.runs != 1 {
		t.Errorf("expected one search, got %d", tool.runs)
	}
	if !strings.HasPrefix(gen.lastSeen[len(gen.lastSeen)-1].Content, "Observation: results for LangChain creator") {
		t.Errorf("unexpected observation message %q", gen.lastSeen[len(gen.lastSeen)-1].Content)
	}
}

func TestReActLoopRepromptsMixedReply(t *testing.T) {
	gen := &scripted{replies: []string{
		"Thought: search\nAction: web-search\nAction Input: golang\nObservation: invented\nFinal Answer: made up",
		"Thought: I now know the final answer\nFinal Answer: Go is a language.",
	}}
	tool := &echoTool{}
	loop := newTestLoop(t, gen, tool, WithParser(ReActParser{}))

	outcome, err := loop.Run(context.Background(), "What is Go?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Response.Answer != "Go is a language." {
		t.Errorf("unexpected answer %q", outcome.Response.Answer)
	}
	if tool.runs != 0 || outcome.Iterations != 1 {
		t.Errorf("mixed reply must not run tools or count, got %d runs, %d iterations", tool.runs, outcome.Iterations)
	}
	if !outcome.Steps[0].Failed || !strings.Contains(outcome.Steps[0].Observation, "both an Action and a Final Answer") {
		t.Errorf("expected a correction step, got %+v", outcome.Steps[0])
	}
}

func TestToolsetRejectsDuplicates(t *testing.T) {
	if _, err := NewToolset(reportTool{}, &echoTool{}, &echoTool{}); err == nil {
		t.Errorf("expected duplicate tool error")
	}
	if _, err := NewToolset(nil, &echoTool{}); err == nil {
		t.Errorf("expected missing submission tool error")
	}
	if _, err := NewToolset(reportTool{}, nil); err == nil {
		t.Errorf("expected nil tool error")
	}
}

func ExampleLoop_Run() {
	gen := engines.GeneratorFunc(func(_ context.Context, _ []engines.Message, _ engines.GenerationSettings) (*engines.Message, error) {
		msg := engines.NewMessage(engines.ChatRoleAssistant,
			`{"command": {"name": "submit-report", "args": {"answer": "42"}}}`)
		return &msg, nil
	})
	toolset, _ := NewToolset(reportTool{})

	outcome, _ := NewLoop(gen, toolset).Run(context.Background(), "the answer")
	fmt.Println(outcome.State, outcome.Response.Answer)
	// Output: DONE 42
}
