// ABOUTME: Web search backend for the search tool, scraping DuckDuckGo's HTML endpoint
// ABOUTME: Returns a short plain-text result list suitable for a chat reply

package wacloud

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Searcher answers free-text queries against DuckDuckGo's HTML search page.
type Searcher struct {
	baseURL    string
	maxResults int
	userAgent  string
	http       *http.Client
	logger     *slog.Logger
}

// NewSearcher creates a searcher. baseURL may be empty for the public
// endpoint.
func NewSearcher(baseURL string, maxResults int, logger *slog.Logger) *Searcher {
	if baseURL == "" {
		baseURL = "https://html.duckduckgo.com/html/"
	}
	if maxResults <= 0 {
		maxResults = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		baseURL:    baseURL,
		maxResults: maxResults,
		userAgent:  "charla/1.0",
		http:       &http.Client{Timeout: 20 * time.Second},
		logger:     logger.With("component", "wacloud.searcher"),
	}
}

// Search runs the query and renders the top results as numbered lines.
func (s *Searcher) Search(ctx context.Context, query string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return "", fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("searching %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search rejected: status %d", resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("parsing search results: %w", err)
	}

	titles := collectResultTitles(doc, s.maxResults)
	if len(titles) == 0 {
		return "", nil
	}

	var b strings.Builder
	for i, title := range titles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, title)
	}
	return strings.TrimSpace(b.String()), nil
}

// collectResultTitles walks the parsed page gathering the text of result
// title anchors (class "result__a"), up to max entries.
func collectResultTitles(root *html.Node, max int) []string {
	var titles []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(titles) >= max {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result__a") {
			if text := strings.TrimSpace(nodeText(n)); text != "" {
				titles = append(titles, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return titles
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}
