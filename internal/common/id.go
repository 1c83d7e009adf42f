package common

import (
	"github.com/google/uuid"
)

// NewCrawlID generates a unique crawl run ID with the "crawl_" prefix
func NewCrawlID() string {
	return "crawl_" + uuid.New().String()
}

// NewResearchID generates a unique research run ID with the "research_" prefix
func NewResearchID() string {
	return "research_" + uuid.New().String()
}

// NewRankingID generates a unique ranking run ID with the "rank_" prefix
func NewRankingID() string {
	return "rank_" + uuid.New().String()
}
