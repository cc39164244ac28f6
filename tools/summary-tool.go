package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/d0rc/scribe-agents/engines"
	"github.com/d0rc/scribe-agents/utils"
	"github.com/logrusorgru/aurora"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

const DefaultSnippetTokens = 1500

// DocumentReducer walks a long document snippet by snippet, carrying the
// notes relevant to a question from one snippet to the next.
type DocumentReducer struct {
	Generator     engines.Generator
	Model         string
	SnippetTokens int
	MaxAttempts   int
	Log           zerolog.Logger
}

func NewDocumentReducer(generator engines.Generator, model string) *DocumentReducer {
	return &DocumentReducer{
		Generator:     generator,
		Model:         model,
		SnippetTokens: DefaultSnippetTokens,
		MaxAttempts:   2,
		Log:           zlog.Logger,
	}
}

// Reduce returns the notes the model took on document while looking for an
// answer to question. A snippet the model could not process is skipped.
func (r *DocumentReducer) Reduce(ctx context.Context, document, question string) (string, error) {
	document = strings.TrimSpace(document)
	if document == "" {
		return "", nil
	}

	ts := time.Now()
	snippets := utils.SplitTokens(document, r.SnippetTokens)
	systemPrompt := fmt.Sprintf("You are an AI that seeks to answer the following question:\n%s\n"+
		"Write down every fact from the source data that helps to answer it, merged with the notes you already have. "+
		"Reply with the notes only.", question)

	currentSummary := ""
	success := false
	for idx, snippet := range snippets {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		prompt := fmt.Sprintf("Source data:\n\n%s", strings.TrimSpace(snippet))
		if currentSummary != "" {
			prompt = fmt.Sprintf("%s\n\nNotes so far:\n%s", prompt, currentSummary)
		}
		messages := []engines.Message{
			engines.NewMessage(engines.ChatRoleSystem, systemPrompt),
			engines.NewMessage(engines.ChatRoleUser, prompt),
		}

		for attempt := 0; attempt < r.attempts(); attempt++ {
			reply, err := r.Generator.Generate(ctx, messages, engines.GenerationSettings{
				Model:       r.Model,
				Temperature: 0.3,
			})
			if err != nil {
				r.Log.Error().Err(err).
					Int("snippet_idx", idx).
					Msg("failed to get response from LLM")
				continue
			}

			if notes := strings.TrimSpace(StripThinkBlocks(reply.Content)); notes != "" {
				currentSummary = notes
				success = true
				break
			}
		}

		r.Log.Debug().Msgf("[reduce] %s %02d/%02d, %s: %s",
			aurora.BrightGreen("snippet"), idx+1, len(snippets),
			aurora.BrightYellow("question"), aurora.White(Truncate(question, 30)))
	}

	if !success {
		return "", fmt.Errorf("failed to reduce a document of %d snippets", len(snippets))
	}

	r.Log.Info().
		Dur("took", time.Since(ts)).
		Int("snippet_count", len(snippets)).
		Msg("document reduced")

	return currentSummary, nil
}

func (r *DocumentReducer) attempts() int {
	if r.MaxAttempts <= 0 {
		return 1
	}
	return r.MaxAttempts
}
