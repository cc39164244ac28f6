package agent_tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/d0rc/scribe-agents/agency"
	"github.com/d0rc/scribe-agents/metrics"
	"github.com/d0rc/scribe-agents/tools"
	"github.com/dustin/go-humanize"
	"github.com/logrusorgru/aurora"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const maxPageSize = 2 << 20

// BrowseSite reads a page as markdown. With a Reducer set, pages longer
// than MaxLength are reduced to notes on the question instead of cut.
type BrowseSite struct {
	Client    *http.Client
	MaxLength int
	Reducer   *tools.DocumentReducer
	Log       zerolog.Logger
}

func NewBrowseSite(client *http.Client) *BrowseSite {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &BrowseSite{
		Client:    client,
		MaxLength: 6000,
		Log:       zlog.Logger,
	}
}

func (b *BrowseSite) Name() string {
	return "browse-site"
}

func (b *BrowseSite) ContextDescription() string {
	return "use it to read a specific URL, returns the page as markdown"
}

func (b *BrowseSite) Arguments() []agency.Argument {
	return []agency.Argument{
		{Name: "url", Type: agency.ArgString, Required: true, Description: "absolute http(s) url"},
		{Name: "question", Type: agency.ArgString, Description: "question to look answer for"},
	}
}

func (b *BrowseSite) Run(ctx context.Context, args gjson.Result) (string, error) {
	pageUrl := strings.TrimSpace(args.Get("url").String())
	parsed, err := url.Parse(pageUrl)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("not an absolute http(s) url: %q", pageUrl)
	}

	ts := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageUrl, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; scribe-agents/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain")

	resp, err := b.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s answered with http %d", pageUrl, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", err
	}
	metrics.Tick(metrics.PagesBrowsed, 1)
	b.Log.Info().Msgf("downloaded %s (%s) in %s",
		aurora.Cyan(noLongerThen(pageUrl, 45)),
		humanize.Bytes(uint64(len(body))),
		aurora.BrightCyan(time.Since(ts)))

	content := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "html") || strings.HasPrefix(strings.TrimSpace(content), "<") {
		content, err = renderMarkdown(content, parsed.Host)
		if err != nil {
			return "", fmt.Errorf("error rendering %s: %w", pageUrl, err)
		}
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Sprintf("Page %s has no readable text.", pageUrl), nil
	}

	question := strings.TrimSpace(args.Get("question").String())
	if b.Reducer != nil && question != "" && len(content) > b.MaxLength {
		notes, err := b.Reducer.Reduce(ctx, content, question)
		if err == nil {
			return fmt.Sprintf("Notes on %s regarding %q:\n\n%s", pageUrl, question, tools.Truncate(notes, b.MaxLength)), nil
		}
		b.Log.Warn().Err(err).Msgf("falling back to truncated page %s", pageUrl)
	}

	return fmt.Sprintf("Page %s:\n\n%s", pageUrl, tools.Truncate(content, b.MaxLength)), nil
}

func ignoreDataUrls(_ string, selec *goquery.Selection, _ *md.Options) *string {
	if src, _ := selec.Attr("src"); strings.HasPrefix(src, "data:") {
		emptyString := ""
		return &emptyString
	}

	return nil
}

func renderMarkdown(rawData, domain string) (string, error) {
	converter := md.NewConverter(domain, true, nil)
	converter.Remove("script", "style", "noscript", "iframe", "svg", "nav", "footer")
	converter.AddRules(md.Rule{
		Filter:      []string{"img"},
		Replacement: ignoreDataUrls,
	})

	return converter.ConvertString(rawData)
}

func noLongerThen(u string, i int) string {
	if len(u) > i {
		return u[:i] + "..."
	}

	return u
}
