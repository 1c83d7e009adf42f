package search

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/vestigolabs/vestigo/internal/common"
	"github.com/vestigolabs/vestigo/internal/interfaces"
)

// NewSearchService creates the web search implementation selected by
// search.provider.
func NewSearchService(cfg *common.SearchConfig, logger arbor.ILogger) (interfaces.WebSearchService, error) {
	switch cfg.Provider {
	case "duckduckgo":
		return NewDuckDuckGoService(cfg, logger), nil
	case "disabled", "":
		return NewDisabledService(), nil
	default:
		return nil, fmt.Errorf("unsupported search provider '%s': must be 'duckduckgo' or 'disabled'", cfg.Provider)
	}
}
