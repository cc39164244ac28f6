// Package composer renders a persona template for a theme and asks the model
// to write the piece.
package composer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/d0rc/scribe-agents/engines"
	"github.com/d0rc/scribe-agents/metrics"
	"github.com/d0rc/scribe-agents/personas"
	"github.com/d0rc/scribe-agents/tools"
	"github.com/logrusorgru/aurora"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

const DefaultTemperature = 0.8
const DefaultTimeout = 60 * time.Second

type Request struct {
	Persona        string
	LiteratureType string
	Theme          string
	Temperature    float32
}

// NewRequest fills in the default temperature.
func NewRequest(persona, literatureType, theme string) Request {
	return Request{
		Persona:        persona,
		LiteratureType: literatureType,
		Theme:          theme,
		Temperature:    DefaultTemperature,
	}
}

type TemperatureError struct {
	Temperature float32
}

func (e *TemperatureError) Error() string {
	return fmt.Sprintf("temperature %.2f is outside of [0, 1]", e.Temperature)
}

type Composer struct {
	Registry  *personas.Registry
	Generator engines.Generator
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Log       zerolog.Logger
}

func NewComposer(generator engines.Generator) *Composer {
	return &Composer{
		Registry:  personas.Default(),
		Generator: generator,
		Timeout:   DefaultTimeout,
		Log:       zlog.Logger,
	}
}

// Compose resolves the template, renders the theme into it and returns the
// model's text with any <think> blocks removed.
func (c *Composer) Compose(ctx context.Context, req Request) (string, error) {
	if req.Temperature < 0 || req.Temperature > 1 {
		return "", &TemperatureError{Temperature: req.Temperature}
	}

	tpl, err := c.Registry.Resolve(req.Persona, req.LiteratureType)
	if err != nil {
		return "", err
	}
	messages, err := personas.Render(tpl, req.Theme)
	if err != nil {
		return "", err
	}
	if c.Generator == nil {
		return "", fmt.Errorf("no generator configured")
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ts := time.Now()
	c.Log.Info().Msgf("%s is consulting the muse on %s",
		aurora.BrightYellow(tpl),
		aurora.Cyan(tools.Truncate(strings.TrimSpace(req.Theme), 40)))

	reply, err := c.Generator.Generate(callCtx, messages, engines.GenerationSettings{
		Model:       c.Model,
		Temperature: req.Temperature,
		MaxTokens:   c.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("error composing %s: %w", tpl, err)
	}

	text := strings.TrimSpace(tools.StripThinkBlocks(reply.Content))
	if text == "" {
		return "", fmt.Errorf("model returned an empty %s", tpl)
	}

	metrics.Tick(metrics.CompositionsIssued, 1)
	c.Log.Info().Msgf("%s done in %s", aurora.BrightYellow(tpl), aurora.BrightCyan(time.Since(ts)))

	return text, nil
}

var separatorReplacer = strings.NewReplacer("/", "_", "\\", "_")
var themeReplacer = strings.NewReplacer("/", "_", "\\", "_", " ", "_")

// DownloadFileName names the file a composition is saved to: persona,
// literature type and the first 20 characters of the theme, spaces replaced.
// Path separators are replaced too, so the name never leaves its directory.
func DownloadFileName(persona, literatureType, theme string) string {
	prefix := []rune(theme)
	if len(prefix) > 20 {
		prefix = prefix[:20]
	}

	name := fmt.Sprintf("%s_%s_%s.txt",
		separatorReplacer.Replace(persona),
		separatorReplacer.Replace(literatureType),
		themeReplacer.Replace(string(prefix)))
	return filepath.Base(name)
}
