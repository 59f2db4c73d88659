// Package wikipedia is a small client for the MediaWiki action API that
// returns short plain-text page summaries.
package wikipedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/html"
)

const (
	defaultLanguage = "en"
	apiURLFormat    = "https://%s.wikipedia.org/w/api.php"
	userAgent       = "agentdesk/1.0 (+https://www.mediawiki.org/wiki/API:Etiquette)"
	maxOptions      = 20
)

// ErrPageNotFound is returned when no page matches the topic.
var ErrPageNotFound = errors.New("wikipedia: page not found")

// DisambiguationError is returned when the topic resolves to a disambiguation
// page. Options holds the candidate article titles in the order the page
// lists them, at most maxOptions.
type DisambiguationError struct {
	Title   string
	Options []string
}

func (e *DisambiguationError) Error() string {
	return fmt.Sprintf("wikipedia: %q may refer to %d pages", e.Title, len(e.Options))
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithBaseURL points the client at another api.php endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(language string, opts ...Option) *Client {
	if language == "" {
		language = defaultLanguage
	}
	c := &Client{
		baseURL: fmt.Sprintf(apiURLFormat, language),
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type page struct {
	Title     string            `json:"title"`
	Missing   bool              `json:"missing"`
	Invalid   bool              `json:"invalid"`
	Extract   string            `json:"extract"`
	PageProps map[string]string `json:"pageprops"`
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type queryResponse struct {
	Query struct {
		Pages  []page `json:"pages"`
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
	Error *apiError `json:"error"`
}

type parseResponse struct {
	Parse struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	} `json:"parse"`
	Error *apiError `json:"error"`
}

// Summary returns the first sentences of the article for topic. An exact title
// match is tried first; otherwise the top search hit is used.
func (c *Client) Summary(ctx context.Context, topic string, sentences int) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", ErrPageNotFound
	}
	if sentences <= 0 {
		sentences = 2
	}

	p, err := c.page(ctx, topic, sentences)
	if err != nil {
		return "", err
	}
	if p == nil {
		title, err := c.search(ctx, topic)
		if err != nil {
			return "", err
		}
		if title == "" {
			return "", ErrPageNotFound
		}
		if p, err = c.page(ctx, title, sentences); err != nil {
			return "", err
		}
		if p == nil {
			return "", ErrPageNotFound
		}
	}

	if _, ok := p.PageProps["disambiguation"]; ok {
		options, err := c.options(ctx, p.Title)
		if err != nil {
			return "", err
		}
		return "", &DisambiguationError{Title: p.Title, Options: options}
	}

	extract := strings.TrimSpace(p.Extract)
	if extract == "" {
		return "", ErrPageNotFound
	}
	return extract, nil
}

// page fetches the intro extract for an exact title. It returns nil when the
// page does not exist.
func (c *Client) page(ctx context.Context, title string, sentences int) (*page, error) {
	resp, err := c.query(ctx, url.Values{
		"prop":        {"extracts|pageprops"},
		"exintro":     {"1"},
		"explaintext": {"1"},
		"exsentences": {strconv.Itoa(sentences)},
		"ppprop":      {"disambiguation"},
		"redirects":   {"1"},
		"titles":      {title},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Query.Pages) == 0 {
		return nil, nil
	}
	p := resp.Query.Pages[0]
	if p.Missing || p.Invalid {
		return nil, nil
	}
	return &p, nil
}

func (c *Client) search(ctx context.Context, topic string) (string, error) {
	resp, err := c.query(ctx, url.Values{
		"list":     {"search"},
		"srsearch": {topic},
		"srlimit":  {"1"},
		"srprop":   {""},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Query.Search) == 0 {
		return "", nil
	}
	return resp.Query.Search[0].Title, nil
}

// options returns the article links of a disambiguation page in document
// order. prop=links is sorted by title, so the rendered page is parsed instead.
func (c *Client) options(ctx context.Context, title string) ([]string, error) {
	var resp parseResponse
	err := c.get(ctx, url.Values{
		"action":             {"parse"},
		"page":               {title},
		"prop":               {"text"},
		"disableeditsection": {"1"},
	}, &resp, func() *apiError { return resp.Error })
	if err != nil {
		return nil, err
	}
	return listItemLinks(resp.Parse.Text)
}

// listItemLinks collects the first article link of every list item, skipping
// table-of-contents entries, red links and other namespaces.
func listItemLinks(doc string) ([]string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parsing page html: %w", err)
	}

	var (
		options []string
		seen    = map[string]bool{}
		walk    func(n *html.Node)
	)
	walk = func(n *html.Node) {
		if len(options) >= maxOptions {
			return
		}
		if n.Type == html.ElementNode && n.Data == "li" && !strings.Contains(attr(n, "class"), "tocsection") {
			if t := firstArticleLink(n); t != "" && !seen[t] {
				seen[t] = true
				options = append(options, t)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return options, nil
}

// firstArticleLink returns the title of the first link in n when it points at
// a main-namespace article, and "" otherwise. Nested lists are not searched.
func firstArticleLink(n *html.Node) string {
	a := firstLink(n)
	if a == nil {
		return ""
	}
	href := attr(a, "href")
	if !strings.HasPrefix(href, "/wiki/") || slices.Contains(strings.Fields(attr(a, "class")), "new") {
		return ""
	}
	if ns, _, ok := strings.Cut(strings.TrimPrefix(href, "/wiki/"), ":"); ok && nonArticleNamespaces[strings.ToLower(ns)] {
		return ""
	}
	if t := attr(a, "title"); t != "" {
		return t
	}
	return linkText(a)
}

var nonArticleNamespaces = map[string]bool{
	"category": true, "draft": true, "file": true, "help": true, "image": true,
	"mediawiki": true, "module": true, "portal": true, "special": true,
	"talk": true, "template": true, "user": true, "wikipedia": true,
	"wikt": true, "wiktionary": true,
}

func firstLink(n *html.Node) *html.Node {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode || child.Data == "li" {
			continue
		}
		if child.Data == "a" {
			return child
		}
		if a := firstLink(child); a != nil {
			return a
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func linkText(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
	}
	collect(n)
	return strings.TrimSpace(b.String())
}

func (c *Client) query(ctx context.Context, params url.Values) (*queryResponse, error) {
	params.Set("action", "query")
	var out queryResponse
	if err := c.get(ctx, params, &out, func() *apiError { return out.Error }); err != nil {
		return nil, err
	}
	return &out, nil
}

// get issues one api.php call and decodes the body into out. apiErr reports
// the error envelope after decoding.
func (c *Client) get(ctx context.Context, params url.Values, out any, apiErr func() *apiError) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wikipedia returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if e := apiErr(); e != nil {
		return fmt.Errorf("wikipedia api error %s: %s", e.Code, e.Info)
	}
	return nil
}
