package search

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/d0rc/scribe-agents/metrics"
	"github.com/rs/zerolog"
	g "github.com/serpapi/google-search-results-golang"
)

// SerpApi runs Google searches through serpapi.com.
type SerpApi struct {
	APIKey   string
	Location string
	Lang     string
	Country  string
	Log      zerolog.Logger

	fetch func(parameter map[string]string, apiKey string) (map[string]interface{}, error)
}

func NewSerpApi(apiKey string) *SerpApi {
	return &SerpApi{
		APIKey: apiKey,
		fetch:  googleSearch,
	}
}

func googleSearch(parameter map[string]string, apiKey string) (map[string]interface{}, error) {
	search := g.NewGoogleSearch(parameter, apiKey)
	return search.GetJSON()
}

type serpResult struct {
	results []Result
	err     error
}

func (s *SerpApi) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	metrics.Tick(metrics.SearchQueries, 1)
	limit = clampLimit(limit)

	fail := func(err error) ([]Result, error) {
		metrics.Tick(metrics.SearchFailures, 1)
		s.Log.Error().Err(err).Msgf("serp-api search failed: %s", query)
		return nil, &SearchError{Provider: "serp-api", Query: query, Err: err}
	}

	if strings.TrimSpace(s.APIKey) == "" {
		return fail(errors.New("api key is missing"))
	}
	if strings.TrimSpace(query) == "" {
		return fail(errors.New("query is empty"))
	}

	parameter := map[string]string{
		"q":             query,
		"google_domain": "google.com",
		"start":         "0",
		"num":           strconv.Itoa(limit),
	}
	if s.Location != "" {
		parameter["location"] = s.Location
	}
	if s.Lang != "" {
		parameter["hl"] = s.Lang
	}
	if s.Country != "" {
		parameter["gl"] = s.Country
	}

	// the client library is blocking and knows nothing about contexts
	ch := make(chan serpResult, 1)
	go func() {
		searchResults, err := s.fetch(parameter, s.APIKey)
		if err != nil {
			ch <- serpResult{err: err}
			return
		}
		ch <- serpResult{results: organicResults(searchResults, limit)}
	}()

	select {
	case <-ctx.Done():
		return fail(ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return fail(res.err)
		}
		return res.results, nil
	}
}

func organicResults(searchResults map[string]interface{}, limit int) []Result {
	results := make([]Result, 0, limit)

	organic, ok := searchResults["organic_results"].([]interface{})
	if !ok {
		return results
	}

	for _, item := range organic {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		link, okLink := entry["link"].(string)
		title, okTitle := entry["title"].(string)
		if !okLink || !okTitle {
			continue
		}
		snippet, _ := entry["snippet"].(string)

		results = append(results, Result{Title: title, URL: link, Snippet: snippet})
		if len(results) >= limit {
			break
		}
	}

	return results
}
