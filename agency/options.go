package agency

import (
	"time"

	"github.com/d0rc/scribe-agents/settings"
	"github.com/rs/zerolog"
)

type Option func(*Loop)

func WithMaxIterations(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

func WithMaxParseAttempts(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxParseAttempts = n
		}
	}
}

func WithMaxToolFailures(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxToolFailures = n
		}
	}
}

func WithMaxGenerationFailures(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxGenerationFailures = n
		}
	}
}

func WithCallTimeout(timeout time.Duration) Option {
	return func(l *Loop) {
		if timeout > 0 {
			l.callTimeout = timeout
		}
	}
}

func WithObservationLimit(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.observationLimit = n
		}
	}
}

// WithSystemPrompt replaces the default system prompt. The template is
// rendered with vars plus goal, date and submit.
func WithSystemPrompt(template string, vars map[string]any) Option {
	return func(l *Loop) {
		l.systemPrompt = template
		l.promptVars = vars
	}
}

func WithTemperature(temperature float32) Option {
	return func(l *Loop) {
		l.temperature = temperature
	}
}

func WithModel(model string) Option {
	return func(l *Loop) {
		l.model = model
	}
}

func WithParser(parser ResponseParser) Option {
	return func(l *Loop) {
		if parser != nil {
			l.parser = parser
		}
	}
}

func WithLogger(lg zerolog.Logger) Option {
	return func(l *Loop) {
		l.lg = lg
	}
}

// WithStepCallback is called synchronously after every recorded step.
func WithStepCallback(callback func(Step)) Option {
	return func(l *Loop) {
		l.onStep = callback
	}
}

// WithSettings applies the agent section of a configuration file.
func WithSettings(config *settings.ConfigurationFile) Option {
	return func(l *Loop) {
		if config == nil {
			return
		}
		for _, opt := range []Option{
			WithMaxIterations(config.Agent.MaxIterations),
			WithMaxParseAttempts(config.Agent.MaxParseAttempts),
			WithMaxToolFailures(config.Agent.MaxToolFailures),
			WithMaxGenerationFailures(config.Agent.MaxGenerationFailures),
			WithCallTimeout(config.CallTimeout()),
			WithObservationLimit(config.Agent.ObservationLimit),
		} {
			opt(l)
		}
	}
}
