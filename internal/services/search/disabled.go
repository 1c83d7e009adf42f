package search

import (
	"context"

	"github.com/vestigolabs/vestigo/internal/interfaces"
)

// DisabledService is the no-op search implementation. The crawler checks
// Enabled() before attempting frontier expansion.
type DisabledService struct{}

// NewDisabledService creates the no-op search service.
func NewDisabledService() *DisabledService {
	return &DisabledService{}
}

// Search always returns no results.
func (s *DisabledService) Search(ctx context.Context, query string, limit int) ([]interfaces.SearchResult, error) {
	return nil, nil
}

// Enabled reports that no provider is configured.
func (s *DisabledService) Enabled() bool {
	return false
}
