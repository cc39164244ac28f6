package agent_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/d0rc/scribe-agents/agency"
	"github.com/d0rc/scribe-agents/search"
	"github.com/tidwall/gjson"
)

type WebSearch struct {
	Searcher   search.Searcher
	MaxResults int
}

func NewWebSearch(searcher search.Searcher, maxResults int) *WebSearch {
	if maxResults <= 0 {
		maxResults = 5
	}

	return &WebSearch{
		Searcher:   searcher,
		MaxResults: maxResults,
	}
}

func (w *WebSearch) Name() string {
	return "web-search"
}

func (w *WebSearch) ContextDescription() string {
	return "use it to search the web, returns titles, urls and snippets of the best matches"
}

func (w *WebSearch) Arguments() []agency.Argument {
	return []agency.Argument{
		{Name: "query", Type: agency.ArgString, Required: true, Description: "search keywords or question"},
	}
}

func (w *WebSearch) Run(ctx context.Context, args gjson.Result) (string, error) {
	if w.Searcher == nil {
		return "", fmt.Errorf("no search provider configured")
	}

	query := strings.TrimSpace(args.Get("query").String())
	results, err := w.Searcher.Search(ctx, query, w.MaxResults)
	if err != nil {
		return "", err
	}

	return formatResults(query, results), nil
}

func formatResults(query string, results []search.Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", query)
	}

	sb := strings.Builder{}
	for idx, r := range results {
		sb.WriteString(fmt.Sprintf("%d. %s\n   URL: %s\n", idx+1, r.Title, r.URL))
		if snippet := strings.TrimSpace(r.Snippet); snippet != "" {
			sb.WriteString("   ")
			sb.WriteString(strings.ReplaceAll(snippet, "\n", " "))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
