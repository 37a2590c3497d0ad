// Package websearch finds supporting mathematical content on the public
// web. It queries the DuckDuckGo HTML endpoint, ranks hits by source
// trustworthiness, and extracts page text for use as generation context.
//
// Transport and parse failures are reported inside the Response rather
// than as errors, so callers can always fall through to the next
// evidence tier.
package websearch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mathsage/mathsage/pkg/logging"
)

const (
	defaultSearchURL  = "https://html.duckduckgo.com/html/"
	defaultMaxResults = 3
	defaultTimeout    = 10 * time.Second

	// extractLimit caps extracted page text so a single source cannot
	// dominate the generation context.
	extractLimit = 1000

	// enrichLimit is how many of the ranked hits get full page extraction.
	enrichLimit = 2

	userAgent = "Mozilla/5.0 (Educational Bot)"
)

// Result is a single ranked and enriched search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Content string `json:"content"`
	Trusted bool   `json:"is_trusted"`
}

// Response reports the outcome of a search. Success is false when the
// search transport failed or returned nothing usable; Message explains why.
type Response struct {
	Success    bool     `json:"success"`
	Results    []Result `json:"results"`
	TotalFound int      `json:"total_found"`
	Message    string   `json:"message"`
}

// Agent performs math-focused web searches.
type Agent struct {
	client     *http.Client
	searchURL  string
	maxResults int
	logger     *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithHTTPClient overrides the HTTP client used for search and extraction.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Agent) { a.client = c }
}

// WithSearchURL overrides the search endpoint.
func WithSearchURL(u string) Option {
	return func(a *Agent) { a.searchURL = u }
}

// WithMaxResults sets how many raw hits to consider before ranking.
func WithMaxResults(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxResults = n
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates a web search agent.
func New(opts ...Option) *Agent {
	a := &Agent{
		client:     &http.Client{Timeout: defaultTimeout},
		searchURL:  defaultSearchURL,
		maxResults: defaultMaxResults,
		logger:     logging.WithComponent("websearch"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var trustedDomains = []string{
	"khanacademy.org",
	"mathworld.wolfram.com",
	"wikipedia.org",
	"brilliant.org",
	"mathisfun.com",
	"math.stackexchange.com",
	"coursera.org",
	"mit.edu",
	"stanford.edu",
}

var (
	eduKeywords  = []string{"tutorial", "explanation", "learn", "guide", "how to", "step by step"}
	mathKeywords = []string{"formula", "equation", "theorem", "proof", "solution", "calculate"}
	queryContext = []string{"mathematics", "math", "explanation", "how to"}
)

var (
	wordPattern       = regexp.MustCompile(`\w+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Search looks up mathematical content for the query. The top ranked hits
// get full page extraction; hits whose pages yield no text are dropped.
func (a *Agent) Search(ctx context.Context, query string) *Response {
	enhanced := enhanceQuery(query)

	raw, err := a.fetchResults(ctx, enhanced)
	if err != nil {
		a.logger.Warn("search failed", "query", query, "error", err)
		return &Response{Success: false, Message: fmt.Sprintf("Search error: %v", err)}
	}
	if len(raw) == 0 {
		return &Response{Success: false, Message: "No search results found"}
	}

	ranked := rankResults(raw)

	var enriched []Result
	for _, r := range ranked {
		if len(enriched) >= enrichLimit {
			break
		}
		content := a.extractContent(ctx, r.URL)
		if content == "" {
			continue
		}
		r.Content = content
		r.Trusted = isTrustedDomain(r.URL)
		enriched = append(enriched, r)
	}

	a.logger.Debug("search completed",
		"query", query, "raw_hits", len(raw), "enriched", len(enriched))

	return &Response{
		Success:    true,
		Results:    enriched,
		TotalFound: len(raw),
		Message:    fmt.Sprintf("Found %d relevant sources", len(enriched)),
	}
}

// ValidateAnswerExists reports whether any result plausibly answers the
// query: at least half of the query's terms must appear in the result's
// combined title, snippet, and content.
func ValidateAnswerExists(query string, results []Result) bool {
	if len(results) == 0 {
		return false
	}

	terms := map[string]struct{}{}
	for _, w := range wordPattern.FindAllString(strings.ToLower(query), -1) {
		terms[w] = struct{}{}
	}
	if len(terms) == 0 {
		return false
	}

	for _, r := range results {
		text := strings.ToLower(r.Title + " " + r.Snippet + " " + r.Content)
		matches := 0
		for term := range terms {
			if strings.Contains(text, term) {
				matches++
			}
		}
		if float64(matches) >= float64(len(terms))*0.5 {
			return true
		}
	}
	return false
}

// FormatContext renders results as a numbered context block for the
// generator, badging trusted sources.
func FormatContext(results []Result) string {
	if len(results) == 0 {
		return ""
	}

	parts := make([]string, 0, len(results))
	for i, r := range results {
		badge := ""
		if r.Trusted {
			badge = " [TRUSTED SOURCE]"
		}
		content := r.Content
		if content == "" {
			content = r.Snippet
		}
		parts = append(parts, fmt.Sprintf(
			"Source %d%s:\nTitle: %s\nURL: %s\nContent: %s\n",
			i+1, badge, r.Title, r.URL, content))
	}
	return strings.Join(parts, "\n\n")
}

// enhanceQuery adds math context keywords unless the query already
// carries them.
func enhanceQuery(query string) string {
	lower := strings.ToLower(query)
	for _, kw := range queryContext {
		if strings.Contains(lower, kw) {
			return query
		}
	}
	return fmt.Sprintf("mathematics %s explanation", query)
}

// rankResults orders hits by trustworthiness and educational signal.
func rankResults(results []Result) []Result {
	type scored struct {
		score  int
		result Result
	}

	ranked := make([]scored, 0, len(results))
	for _, r := range results {
		score := 0
		urlLower := strings.ToLower(r.URL)
		text := strings.ToLower(r.Title + " " + r.Snippet)

		if isTrustedDomain(urlLower) {
			score += 10
		}
		for _, kw := range eduKeywords {
			if strings.Contains(text, kw) {
				score += 2
			}
		}
		for _, kw := range mathKeywords {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if strings.Contains(urlLower, "forum") || strings.Contains(urlLower, "reddit") {
			score -= 5
		}

		ranked = append(ranked, scored{score, r})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]Result, len(ranked))
	for i, s := range ranked {
		out[i] = s.result
	}
	return out
}

func isTrustedDomain(u string) bool {
	lower := strings.ToLower(u)
	for _, d := range trustedDomains {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

// fetchResults queries the DuckDuckGo HTML endpoint and parses result
// anchors and snippets.
func (a *Agent) fetchResults(ctx context.Context, query string) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		a.searchURL+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	var results []Result
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find(".result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		results = append(results, Result{
			Title:   strings.TrimSpace(link.Text()),
			URL:     resolveRedirect(href),
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").First().Text()),
		})
		return len(results) < a.maxResults
	})
	return results, nil
}

// resolveRedirect unwraps DuckDuckGo redirect links of the form
// //duckduckgo.com/l/?uddg=<encoded-url>.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if uddg := u.Query().Get("uddg"); uddg != "" {
		if target, err := url.QueryUnescape(uddg); err == nil {
			return target
		}
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

// extractContent pulls readable text from a page, skipping navigation
// chrome and capping the length. Returns "" on any failure.
func (a *Agent) extractContent(ctx context.Context, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, header").Remove()

	var parts []string
	doc.Find("p, div").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			parts = append(parts, t)
		}
		return i < 9
	})

	text := whitespacePattern.ReplaceAllString(strings.Join(parts, " "), " ")
	text = strings.TrimSpace(text)
	if len(text) > extractLimit {
		text = text[:extractLimit] + "..."
	}
	return text
}
