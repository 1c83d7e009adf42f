package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/vestigolabs/vestigo/internal/common"
	"github.com/vestigolabs/vestigo/internal/interfaces"
)

const defaultEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGoService implements WebSearchService against the DuckDuckGo HTML
// endpoint. The HTML front end needs no API key, which keeps search usable
// in unattended runs.
type DuckDuckGoService struct {
	endpoint   string
	maxResults int
	client     *http.Client
	logger     arbor.ILogger
}

// NewDuckDuckGoService creates a search service from configuration.
func NewDuckDuckGoService(cfg *common.SearchConfig, logger arbor.ILogger) *DuckDuckGoService {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 8
	}

	return &DuckDuckGoService{
		endpoint:   endpoint,
		maxResults: maxResults,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Enabled reports that the provider can serve queries.
func (s *DuckDuckGoService) Enabled() bool {
	return true
}

// Search runs one query and returns up to limit results. Zero results is a
// valid outcome, not an error.
func (s *DuckDuckGoService) Search(ctx context.Context, query string, limit int) ([]interfaces.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if limit <= 0 || limit > s.maxResults {
		limit = s.maxResults
	}

	searchURL := s.endpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; vestigo/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	results, err := parseResults(string(body), limit)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("Web search completed")

	return results, nil
}

// parseResults extracts result links from the DuckDuckGo HTML page.
func parseResults(htmlBody string, limit int) ([]interfaces.SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	results := make([]interfaces.SearchResult, 0, limit)
	seen := make(map[string]bool)

	doc.Find("div.result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		anchor := sel.Find("a.result__a").First()
		href, ok := anchor.Attr("href")
		if !ok {
			return true
		}

		resultURL := unwrapRedirect(href)
		if resultURL == "" || seen[resultURL] {
			return true
		}
		seen[resultURL] = true

		results = append(results, interfaces.SearchResult{
			Title:   strings.TrimSpace(anchor.Text()),
			URL:     resultURL,
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").First().Text()),
		})
		return len(results) < limit
	})

	return results, nil
}

// unwrapRedirect resolves DuckDuckGo's /l/?uddg=<encoded> redirect links to
// the destination URL. Direct http(s) links pass through; everything else is
// dropped.
func unwrapRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	if target := parsed.Query().Get("uddg"); target != "" {
		decoded, err := url.QueryUnescape(target)
		if err != nil {
			return ""
		}
		href = decoded
	}

	if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
		return ""
	}
	return href
}
