package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/d0rc/scribe-agents/metrics"
	"github.com/rs/zerolog"
)

const DuckDuckGoEndpoint = "https://lite.duckduckgo.com/lite/"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DuckDuckGo scrapes the lite HTML page. Queries of one instance are spaced
// at least MinInterval apart.
type DuckDuckGo struct {
	Endpoint    string
	MinInterval time.Duration
	RetryDelay  time.Duration
	MaxRetries  int
	Log         zerolog.Logger

	client   *http.Client
	rateLock sync.Mutex
	last     time.Time
}

func NewDuckDuckGo(client *http.Client) *DuckDuckGo {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	return &DuckDuckGo{
		Endpoint:    DuckDuckGoEndpoint,
		MinInterval: time.Second,
		RetryDelay:  time.Second,
		MaxRetries:  3,
		client:      client,
	}
}

func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	metrics.Tick(metrics.SearchQueries, 1)
	results, err := d.search(ctx, query, clampLimit(limit))
	if err != nil {
		metrics.Tick(metrics.SearchFailures, 1)
		d.Log.Error().Err(err).Msgf("duckduckgo search failed: %s", query)
		return nil, &SearchError{Provider: "duckduckgo", Query: query, Err: err}
	}

	return results, nil
}

func (d *DuckDuckGo) search(ctx context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}
	if err := d.waitTurn(ctx); err != nil {
		return nil, err
	}

	formData := url.Values{}
	formData.Set("q", query)

	var resp *http.Response
	delay := d.RetryDelay
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, strings.NewReader(formData.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err = d.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= d.MaxRetries {
			break
		}
		_ = resp.Body.Close()

		if delay, err = waitBackoff(ctx, delay); err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return parseLiteResults(doc, limit), nil
}

func (d *DuckDuckGo) waitTurn(ctx context.Context) error {
	d.rateLock.Lock()
	defer d.rateLock.Unlock()

	if wait := time.Until(d.last.Add(d.MinInterval)); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d.last = time.Now()

	return nil
}

// parseLiteResults pairs every a.result-link with the n-th td.result-snippet.
func parseLiteResults(doc *goquery.Document, limit int) []Result {
	snippets := doc.Find("td.result-snippet")
	results := make([]Result, 0, limit)

	doc.Find("a.result-link").EachWithBreak(func(i int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		target := resolveRedirect(strings.TrimSpace(href))
		title := strings.TrimSpace(link.Text())
		if target == "" || title == "" {
			return true
		}

		results = append(results, Result{
			Title:   title,
			URL:     target,
			Snippet: strings.TrimSpace(snippets.Eq(i).Text()),
		})

		return len(results) < limit
	})

	return results
}

// resolveRedirect unwraps //duckduckgo.com/l/?uddg=<target> links.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}

	return href
}
