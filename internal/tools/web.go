package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"agentdesk/internal/agent"

	bravesearch "github.com/cnosuke/go-brave-search"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultResultCount = 2
	maxResultCount     = 10
	duckDuckGoURL      = "https://api.duckduckgo.com/"
)

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

type SearchResult struct {
	Title string
	Body  string
}

// Searcher is the web search provider.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}

// WebSearch returns the bodies of the top results for the raw user message.
type WebSearch struct {
	searcher Searcher
	count    int
}

func NewWebSearch(searcher Searcher, count int) *WebSearch {
	if count <= 0 {
		count = defaultResultCount
	}
	if count > maxResultCount {
		count = maxResultCount
	}
	return &WebSearch{searcher: searcher, count: count}
}

func (w *WebSearch) Kind() agent.ToolKind { return agent.KindWebSearch }

func (w *WebSearch) Invoke(ctx context.Context, query string) (string, error) {
	slog.Debug("web: searching", "query", query, "count", w.count)

	results, err := w.searcher.Search(ctx, query, w.count)
	if err != nil {
		return "", fmt.Errorf("performing web search: %w", err)
	}
	if len(results) > w.count {
		results = results[:w.count]
	}

	bodies := make([]string, 0, len(results))
	for _, r := range results {
		if body := strings.TrimSpace(r.Body); body != "" {
			bodies = append(bodies, body)
		}
	}
	if len(bodies) == 0 {
		return "No web results found.", nil
	}

	slog.Debug("web: search done", "query", query, "results", len(bodies))
	return truncate(strings.Join(bodies, "\n")), nil
}

// BraveSearcher queries the Brave Search API.
type BraveSearcher struct {
	brave *bravesearch.Client
}

func NewBraveSearcher(apiKey string) (*BraveSearcher, error) {
	client, err := bravesearch.NewClient(apiKey)
	if err != nil {
		return nil, fmt.Errorf("creating brave client: %w", err)
	}
	return &BraveSearcher{brave: client}, nil
}

func (b *BraveSearcher) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	resp, err := b.brave.WebSearch(ctx, query, &bravesearch.WebSearchParams{
		Count: count,
	})
	if err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}

	var out []SearchResult
	for _, r := range resp.GetWebResults() {
		out = append(out, SearchResult{
			Title: r.Title,
			Body:  htmlTagRe.ReplaceAllString(r.Description, ""),
		})
	}
	return out, nil
}

// DuckDuckGoSearcher uses the DuckDuckGo Instant Answer API, which needs no
// key. The abstract, when present, is the first result; related topics follow.
type DuckDuckGoSearcher struct {
	baseURL    string
	httpClient *http.Client
}

func NewDuckDuckGoSearcher(baseURL string) *DuckDuckGoSearcher {
	if baseURL == "" {
		baseURL = duckDuckGoURL
	}
	return &DuckDuckGoSearcher{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type ddgTopic struct {
	FirstURL string     `json:"FirstURL"`
	Text     string     `json:"Text"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Heading       string     `json:"Heading"`
	AbstractText  string     `json:"AbstractText"`
	Answer        string     `json:"Answer"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

func (d *DuckDuckGoSearcher) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	params := url.Values{
		"q":             {query},
		"format":        {"json"},
		"no_html":       {"1"},
		"skip_disambig": {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "agentdesk/1.0")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DuckDuckGo returned status %d", resp.StatusCode)
	}

	var ddg ddgResponse
	if err := json.NewDecoder(resp.Body).Decode(&ddg); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	var results []SearchResult
	if ddg.Answer != "" {
		results = append(results, SearchResult{Title: ddg.Heading, Body: ddg.Answer})
	}
	if ddg.AbstractText != "" {
		results = append(results, SearchResult{Title: ddg.Heading, Body: ddg.AbstractText})
	}

	// Grouped topics nest one level deep.
	var walk func([]ddgTopic)
	walk = func(topics []ddgTopic) {
		for _, t := range topics {
			if len(results) >= count {
				return
			}
			if len(t.Topics) > 0 {
				walk(t.Topics)
				continue
			}
			if t.Text != "" {
				results = append(results, SearchResult{Title: t.FirstURL, Body: t.Text})
			}
		}
	}
	walk(ddg.RelatedTopics)

	if len(results) > count {
		results = results[:count]
	}
	return results, nil
}
