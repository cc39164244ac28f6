// Package search wraps web search providers behind one interface:
//
//   - Tavily: JSON API, needs a key, basic/advanced depth
//   - SerpApi: Google results through serpapi.com, needs a key
//   - DuckDuckGo: scrapes lite.duckduckgo.com, no key
package search

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/d0rc/scribe-agents/settings"
	"github.com/rs/zerolog"
)

type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher returns at most limit results, best first.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

type SearchError struct {
	Provider string
	Query    string
	Err      error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("%s search for %q failed: %v", e.Provider, e.Query, e.Err)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

const defaultTimeout = 15 * time.Second
const maxBackoff = 30 * time.Second

// New builds the provider named in the configuration.
func New(config *settings.ConfigurationFile, token string, lg zerolog.Logger) (Searcher, error) {
	client := &http.Client{Timeout: defaultTimeout}
	lg = lg.With().Str("search", config.Search.Provider).Logger()

	switch config.Search.Provider {
	case settings.SearchTavily:
		tavily := NewTavily(token, config.Search.Depth, client)
		tavily.Log = lg
		return tavily, nil
	case settings.SearchSerpApi:
		serp := NewSerpApi(token)
		serp.Location = config.Search.Location
		serp.Lang = config.Search.Lang
		serp.Country = config.Search.Country
		serp.Log = lg
		return serp, nil
	case settings.SearchDuckDuckGo:
		ddg := NewDuckDuckGo(client)
		ddg.Log = lg
		return ddg, nil
	}

	return nil, fmt.Errorf("unsupported search provider %q", config.Search.Provider)
}

// waitBackoff sleeps for delay unless ctx ends first, and returns the next
// delay.
func waitBackoff(ctx context.Context, delay time.Duration) (time.Duration, error) {
	select {
	case <-ctx.Done():
		return delay, ctx.Err()
	case <-time.After(delay):
	}
	if delay < maxBackoff {
		delay *= 2
	}

	return delay, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 5
	}
	return limit
}
