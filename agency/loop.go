package agency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/d0rc/scribe-agents/engines"
	"github.com/d0rc/scribe-agents/metrics"
	"github.com/d0rc/scribe-agents/tools"
	"github.com/flosch/pongo2/v6"
	"github.com/google/uuid"
	"github.com/logrusorgru/aurora"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

func init() {
	pongo2.SetAutoescape(false)
}

// Loop drives the reason-act-observe cycle for one toolset. A Loop holds no
// per-run state, so one value may serve concurrent Run calls.
type Loop struct {
	generator engines.Generator
	toolset   *Toolset
	parser    ResponseParser

	systemPrompt string
	promptVars   map[string]any
	temperature  float32
	model        string

	maxIterations         int
	maxParseAttempts      int
	maxToolFailures       int
	maxGenerationFailures int
	callTimeout           time.Duration
	observationLimit      int

	lg     zerolog.Logger
	onStep func(Step)
}

func NewLoop(generator engines.Generator, toolset *Toolset, opts ...Option) *Loop {
	loop := &Loop{
		generator:             generator,
		toolset:               toolset,
		parser:                JSONParser{},
		systemPrompt:          DefaultSystemPrompt,
		temperature:           DefaultTemperature,
		maxIterations:         DefaultMaxIterations,
		maxParseAttempts:      DefaultMaxParseAttempts,
		maxToolFailures:       DefaultMaxToolFailures,
		maxGenerationFailures: DefaultMaxGenerationFailures,
		callTimeout:           DefaultCallTimeout,
		observationLimit:      DefaultObservationLimit,
		lg:                    zlog.Logger,
	}
	for _, opt := range opts {
		opt(loop)
	}

	return loop
}

// runState is the mutable part of a single Run.
type runState struct {
	outcome            *Outcome
	pad                *scratchpad
	lg                 zerolog.Logger
	toolFailures       map[string]int
	generationFailures int
	parseAttempts      int
}

// Run works towards goal until the submission tool accepts a result (DONE),
// the iteration budget is spent (EXHAUSTED, ErrIterationsExhausted) or the
// run cannot continue (FAILED, *LoopFailedError). The outcome is returned in
// every case.
func (l *Loop) Run(ctx context.Context, goal string) (*Outcome, error) {
	runId := uuid.New().String()
	rs := &runState{
		outcome:      &Outcome{RunId: runId, State: StateThinking, Steps: make([]Step, 0)},
		pad:          &scratchpad{},
		lg:           l.lg.With().Str("run-id", runId).Logger(),
		toolFailures: make(map[string]int),
	}

	goal = strings.TrimSpace(goal)
	if goal == "" {
		return l.fail(rs, "goal is empty", nil)
	}
	if l.generator == nil || l.toolset == nil {
		return l.fail(rs, "loop has no generator or toolset", nil)
	}

	systemMessage, err := l.renderSystemPrompt(goal)
	if err != nil {
		return l.fail(rs, "error rendering system prompt", err)
	}

	metrics.Tick(metrics.LoopRuns, 1)
	rs.lg.Info().Msgf("starting agent loop, goal: %s", aurora.BrightWhite(goal))

	for {
		if err := ctx.Err(); err != nil {
			return l.fail(rs, "run cancelled", err)
		}

		if rs.outcome.Iterations >= l.maxIterations {
			rs.outcome.State = StateExhausted
			rs.outcome.Reason = fmt.Sprintf("no submission after %d iterations", rs.outcome.Iterations)
			rs.lg.Warn().Msg(rs.outcome.Reason)
			return rs.outcome, ErrIterationsExhausted
		}

		rs.outcome.State = StateThinking
		raw, err := l.generate(ctx, rs.pad.conversation(systemMessage, goal, l.parser))
		if err != nil {
			if ctx.Err() != nil {
				return l.fail(rs, "run cancelled", ctx.Err())
			}
			rs.generationFailures++
			rs.lg.Warn().Err(err).
				Int("consecutive-failures", rs.generationFailures).
				Msg("language model call failed")
			if rs.generationFailures >= l.maxGenerationFailures {
				return l.fail(rs, fmt.Sprintf("language model failed %d times in a row", rs.generationFailures), err)
			}
			continue
		}
		rs.generationFailures = 0

		command, err := l.resolveCommand(raw)
		if err != nil {
			rs.parseAttempts++
			metrics.Tick(metrics.LoopParseFailures, 1)
			rs.lg.Warn().Err(err).Int("attempt", rs.parseAttempts).Msg("unusable model reply")
			l.record(rs, Step{
				Iteration:   rs.outcome.Iterations + 1,
				Observation: correctionNotice(err),
				Failed:      true,
				Raw:         raw,
			})
			if rs.parseAttempts >= l.maxParseAttempts {
				return l.fail(rs, fmt.Sprintf("no usable reply after %d attempts", rs.parseAttempts), err)
			}
			continue
		}
		rs.parseAttempts = 0

		rs.outcome.State = StateActing
		rs.outcome.Iterations++
		metrics.Tick(metrics.LoopIterations, 1)
		rs.lg.Info().Msgf("[%d] command: %s, args: %s", rs.outcome.Iterations,
			aurora.BrightYellow(command.Name), aurora.BrightWhite(command.Args.Raw))

		step := Step{
			Iteration: rs.outcome.Iterations,
			Thought:   command.Thought,
			Action:    command.Name,
			Args:      command.Args.Raw,
			Raw:       raw,
		}

		if l.toolset.IsSubmission(command.Name) {
			response, err := l.submit(ctx, command)
			if err == nil {
				step.Observation = "submission accepted"
				l.record(rs, step)
				rs.outcome.State = StateDone
				rs.outcome.Response = response
				rs.lg.Info().Int("sources", len(response.Sources)).Msgf("agent loop %s", aurora.BrightGreen(StateDone))
				return rs.outcome, nil
			}

			step.Observation = err.Error()
			step.Failed = true
			l.record(rs, step)
			if l.toolFailed(rs, command.Name, err) {
				return l.fail(rs, fmt.Sprintf("submission rejected %d times", rs.toolFailures[command.Name]), err)
			}
			continue
		}

		observation, err := l.execute(ctx, command)
		if err != nil {
			if ctx.Err() != nil {
				return l.fail(rs, "run cancelled", ctx.Err())
			}
			step.Observation = fmt.Sprintf("error: %v", err)
			step.Failed = true
			l.record(rs, step)
			if l.toolFailed(rs, command.Name, err) {
				return l.fail(rs, fmt.Sprintf("tool %s failed %d times", command.Name, rs.toolFailures[command.Name]), err)
			}
			continue
		}

		step.Observation = tools.Truncate(observation, l.observationLimit)
		l.record(rs, step)
	}
}

func (l *Loop) renderSystemPrompt(goal string) (string, error) {
	tpl, err := pongo2.FromString(l.systemPrompt)
	if err != nil {
		return "", err
	}

	vars := pongo2.Context{}
	for k, v := range l.promptVars {
		vars[k] = v
	}
	vars["goal"] = goal
	vars["date"] = time.Now().Format("2006-01-02")
	vars["submit"] = l.toolset.Submission().Name()

	systemMessage, err := tpl.Execute(vars)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s\n\n%s\n%s", strings.TrimSpace(systemMessage),
		l.toolset.ContextDescription(), l.parser.FormatInstructions(l.toolset)), nil
}

func (l *Loop) generate(ctx context.Context, messages []engines.Message) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, l.callTimeout)
	defer cancel()

	reply, err := l.generator.Generate(callCtx, messages, engines.GenerationSettings{
		Model:       l.model,
		Temperature: l.temperature,
		StopTokens:  l.parser.StopTokens(),
	})
	if err != nil {
		return "", err
	}
	if reply == nil || strings.TrimSpace(reply.Content) == "" {
		return "", errors.New("empty reply from language model")
	}

	return reply.Content, nil
}

// resolveCommand parses a reply and checks the command against the
// toolset, so everything it rejects is a recoverable parse failure.
func (l *Loop) resolveCommand(raw string) (*Command, error) {
	command, err := l.parser.Parse(raw, l.toolset)
	if err != nil {
		return nil, err
	}

	declared, known := l.toolset.Arguments(command.Name)
	if !known {
		return nil, &ParseError{
			Raw: raw,
			Err: fmt.Errorf("unknown command %q, use one of: %s", command.Name, strings.Join(l.toolset.Names(), ", ")),
		}
	}
	if err := ValidateArguments(command.Name, declared, command.Args); err != nil {
		return nil, err
	}

	return command, nil
}

func (l *Loop) execute(ctx context.Context, command *Command) (observation string, err error) {
	tool, _ := l.toolset.Lookup(command.Name)

	callCtx, cancel := context.WithTimeout(ctx, l.callTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", command.Name, r)
		}
	}()

	observation, err = tool.Run(callCtx, command.Args)
	if err == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("tool %s timed out after %s", command.Name, l.callTimeout)
	}

	return observation, err
}

func (l *Loop) submit(ctx context.Context, command *Command) (response *AgentResponse, err error) {
	callCtx, cancel := context.WithTimeout(ctx, l.callTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("submission panicked: %v", r)
		}
	}()

	response, err = l.toolset.Submission().Submit(callCtx, command.Args)
	if err == nil && response == nil {
		err = &SubmissionValidationError{Reason: "empty submission"}
	}

	return response, err
}

func (l *Loop) toolFailed(rs *runState, name string, err error) bool {
	metrics.Tick(metrics.LoopToolFailures, 1)
	rs.toolFailures[name]++
	rs.lg.Warn().Err(err).
		Str("tool", name).
		Int("failures", rs.toolFailures[name]).
		Msg("tool failed")

	return rs.toolFailures[name] >= l.maxToolFailures
}

func (l *Loop) record(rs *runState, step Step) {
	rs.outcome.Steps = append(rs.outcome.Steps, step)
	rs.pad.add(step)
	if l.onStep != nil {
		l.onStep(step)
	}
}

func (l *Loop) fail(rs *runState, reason string, err error) (*Outcome, error) {
	rs.outcome.State = StateFailed
	rs.outcome.Reason = reason
	if err != nil {
		rs.outcome.Reason = fmt.Sprintf("%s: %v", reason, err)
	}
	rs.lg.Error().Err(err).Msgf("agent loop %s: %s", aurora.BrightRed(StateFailed), reason)

	return rs.outcome, &LoopFailedError{Reason: rs.outcome.Reason, Err: err}
}

func correctionNotice(err error) string {
	return fmt.Sprintf("Your last reply could not be used: %v. Reply again with exactly one command, strictly following the response format.", err)
}
