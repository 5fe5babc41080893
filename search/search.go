// Package search provides web search for the concierge, backed by the Google
// Custom Search API with a DuckDuckGo HTML fallback.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/vinoflow/concierge/cache"
)

const (
	googleEndpoint = "https://www.googleapis.com/customsearch/v1"
	duckDuckGoURL  = "https://html.duckduckgo.com/html/"

	cacheTTL      = 24 * time.Hour
	cacheCapacity = 512

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	redirectTimeout = 5 * time.Second
	contentTimeout  = 10 * time.Second
)

// Result is a single search hit.
type Result struct {
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	Snippet   string     `json:"snippet"`
	Source    string     `json:"source"`
	Timestamp *time.Time `json:"timestamp"`
}

// ToMap converts the result to a generic map. The timestamp becomes an
// RFC 3339 string, or nil when unset.
func (r Result) ToMap() map[string]any {
	m := map[string]any{
		"title":     r.Title,
		"url":       r.URL,
		"snippet":   r.Snippet,
		"source":    r.Source,
		"timestamp": nil,
	}
	if r.Timestamp != nil {
		m["timestamp"] = r.Timestamp.Format(time.RFC3339Nano)
	}
	return m
}

// ResultFromMap reconstructs a Result from a map produced by ToMap. Missing
// fields default to empty strings, with source defaulting to "web".
func ResultFromMap(m map[string]any) Result {
	r := Result{
		Title:   stringField(m, "title"),
		URL:     stringField(m, "url"),
		Snippet: stringField(m, "snippet"),
		Source:  "web",
	}
	if s := stringField(m, "source"); s != "" {
		r.Source = s
	}
	if ts := stringField(m, "timestamp"); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			r.Timestamp = &t
		}
	}
	return r
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Searcher performs web searches with a 24 hour result cache.
type Searcher struct {
	apiKey         string
	searchEngineID string
	googleURL      string
	duckURL        string
	client         *http.Client
	resultCache    *cache.Cache[[]Result]
	contentCache   *cache.Cache[string]
	now            func() time.Time
}

// NewSearcher creates a Searcher. Both API credentials may be empty, in which
// case every search goes through the scraping fallback.
func NewSearcher(apiKey, searchEngineID string) *Searcher {
	return &Searcher{
		apiKey:         apiKey,
		searchEngineID: searchEngineID,
		googleURL:      googleEndpoint,
		duckURL:        duckDuckGoURL,
		client:         &http.Client{Timeout: 15 * time.Second},
		resultCache:    cache.New[[]Result](cacheCapacity, cacheTTL),
		contentCache:   cache.New[string](cacheCapacity, cacheTTL),
		now:            time.Now,
	}
}

// Search returns up to numResults hits for query. The Google Custom Search
// API is tried first when configured; on failure or when unconfigured the
// DuckDuckGo HTML endpoint is scraped instead.
func (s *Searcher) Search(ctx context.Context, query string, numResults int) ([]Result, error) {
	if numResults <= 0 {
		numResults = 5
	}

	cacheKey := fmt.Sprintf("search_%s_%d", query, numResults)
	if results, ok := s.resultCache.Get(cacheKey); ok {
		return results, nil
	}

	var results []Result
	var err error
	if s.apiKey != "" && s.searchEngineID != "" {
		results, err = s.searchAPI(ctx, query, numResults)
		if err != nil {
			log.Printf("search: API failed for %q, falling back to scraping: %v", query, err)
			results, err = s.searchScrape(ctx, query, numResults)
		}
	} else {
		results, err = s.searchScrape(ctx, query, numResults)
	}
	if err != nil {
		return nil, err
	}

	s.resultCache.Put(cacheKey, results)
	return results, nil
}

type googleSearchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

func (s *Searcher) searchAPI(ctx context.Context, query string, numResults int) ([]Result, error) {
	// The free tier caps a single request at 10 results.
	num := numResults
	if num > 10 {
		num = 10
	}

	q := url.Values{}
	q.Set("key", s.apiKey)
	q.Set("cx", s.searchEngineID)
	q.Set("q", query)
	q.Set("num", fmt.Sprint(num))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.googleURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling search API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	var payload googleSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	now := s.now()
	results := make([]Result, 0, len(payload.Items))
	for _, item := range payload.Items {
		if len(results) >= numResults {
			break
		}
		ts := now
		results = append(results, Result{
			Title:     item.Title,
			URL:       item.Link,
			Snippet:   item.Snippet,
			Source:    "google",
			Timestamp: &ts,
		})
	}
	return results, nil
}

func (s *Searcher) searchScrape(ctx context.Context, query string, numResults int) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.duckURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating scrape request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching search page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing search page: %w", err)
	}

	now := s.now()
	var results []Result
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(results) >= numResults {
			return false
		}

		titleElem := sel.Find(".result__a").First()
		urlElem := sel.Find(".result__url").First()
		if titleElem.Length() == 0 || urlElem.Length() == 0 {
			return true
		}

		href, _ := urlElem.Attr("href")
		href = cleanResultURL(href)

		ts := now
		results = append(results, Result{
			Title:     strings.TrimSpace(titleElem.Text()),
			URL:       s.resolveRedirect(ctx, href),
			Snippet:   strings.TrimSpace(sel.Find(".result__snippet").First().Text()),
			Source:    "duckduckgo",
			Timestamp: &ts,
		})
		return true
	})

	return results, nil
}

// cleanResultURL normalizes the scheme-relative and site-relative hrefs the
// results page uses.
func cleanResultURL(href string) string {
	switch {
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	case strings.HasPrefix(href, "/"):
		return "https://duckduckgo.com" + href
	}
	return href
}

// resolveRedirect follows redirects with a HEAD request and returns the final
// URL. On any failure the input URL is returned unchanged.
func (s *Searcher) resolveRedirect(ctx context.Context, rawURL string) string {
	ctx, cancel := context.WithTimeout(ctx, redirectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return rawURL
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return rawURL
	}
	defer resp.Body.Close()

	return resp.Request.URL.String()
}

// PageContent fetches a page and extracts its readable text, preferring the
// main, article, or .content element, truncated to maxLength bytes. Content
// is cached for 24 hours.
func (s *Searcher) PageContent(ctx context.Context, pageURL string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = 5000
	}

	if text, ok := s.contentCache.Get("content_" + pageURL); ok {
		return truncate(text, maxLength), nil
	}

	ctx, cancel := context.WithTimeout(ctx, contentTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating content request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %q: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page %q returned status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", pageURL, err)
	}

	doc.Find("script, style, nav, footer, header").Remove()

	main := doc.Find("main").First()
	if main.Length() == 0 {
		main = doc.Find("article").First()
	}
	if main.Length() == 0 {
		main = doc.Find("div.content").First()
	}
	if main.Length() == 0 {
		main = doc.Selection
	}

	text := strings.Join(strings.Fields(main.Text()), " ")
	s.contentCache.Put("content_"+pageURL, text)

	return truncate(text, maxLength), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
