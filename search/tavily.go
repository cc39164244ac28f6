package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/d0rc/scribe-agents/metrics"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const TavilyEndpoint = "https://api.tavily.com/search"

type Tavily struct {
	APIKey     string
	Depth      string
	Endpoint   string
	RetryDelay time.Duration
	MaxRetries int
	Log        zerolog.Logger

	client *http.Client
}

func NewTavily(apiKey, depth string, client *http.Client) *Tavily {
	if depth == "" {
		depth = "basic"
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	return &Tavily{
		APIKey:     apiKey,
		Depth:      depth,
		Endpoint:   TavilyEndpoint,
		RetryDelay: time.Second,
		MaxRetries: 5,
		client:     client,
	}
}

func (t *Tavily) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	metrics.Tick(metrics.SearchQueries, 1)
	results, err := t.search(ctx, query, clampLimit(limit))
	if err != nil {
		metrics.Tick(metrics.SearchFailures, 1)
		t.Log.Error().Err(err).Msgf("tavily search failed: %s", query)
		return nil, &SearchError{Provider: "tavily", Query: query, Err: err}
	}

	t.Log.Debug().Int("results", len(results)).Msgf("tavily search: %s", query)
	return results, nil
}

func (t *Tavily) search(ctx context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(t.APIKey) == "" {
		return nil, errors.New("api key is missing")
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}

	payload, err := json.Marshal(map[string]any{
		"query":        query,
		"search_depth": t.Depth,
		"max_results":  limit,
	})
	if err != nil {
		return nil, err
	}

	var body []byte
	delay := t.RetryDelay
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+t.APIKey)

		resp, err := t.client.Do(req)
		if err != nil {
			return nil, err
		}
		body, err = io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusOK {
			break
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= t.MaxRetries {
			return nil, fmt.Errorf("tavily http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		t.Log.Warn().Dur("delay", delay).Msg("tavily rate limit, backing off")
		if delay, err = waitBackoff(ctx, delay); err != nil {
			return nil, err
		}
	}

	if !gjson.ValidBytes(body) {
		return nil, errors.New("malformed tavily response")
	}

	results := make([]Result, 0, limit)
	for _, r := range gjson.GetBytes(body, "results").Array() {
		results = append(results, Result{
			Title:   r.Get("title").String(),
			URL:     r.Get("url").String(),
			Snippet: r.Get("content").String(),
		})
		if len(results) >= limit {
			break
		}
	}

	return results, nil
}
