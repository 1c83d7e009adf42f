package interfaces

import (
	"context"
)

// SearchResult is one hit from a web search provider
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// WebSearchService issues public web searches for frontier expansion.
// Zero results is a valid outcome, not an error.
type WebSearchService interface {
	// Search runs a single query and returns up to limit results
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)

	// Enabled reports whether the provider can serve queries
	Enabled() bool
}
