package models

import (
	"fmt"
	"strings"
	"time"
)

// ItemKind classifies a content item for windowing and signal scoring
type ItemKind string

const (
	KindEvent   ItemKind = "event"
	KindPaper   ItemKind = "paper"
	KindPost    ItemKind = "post"
	KindWeb     ItemKind = "web"
	KindInsight ItemKind = "insight"
)

// ContentItem is one candidate entering the ranking pipeline
type ContentItem struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Summary     string     `json:"summary,omitempty"`
	Kind        ItemKind   `json:"kind"`
	SourceName  string     `json:"source_name,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"` // event items: the event date; nil when unknown
}

// Validate checks the minimum identity a rankable item needs
func (c *ContentItem) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("content item requires a URL")
	}
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("content item requires a title")
	}
	return nil
}

// IsEvent reports whether the item is windowed on a future date
func (c *ContentItem) IsEvent() bool {
	return c.Kind == KindEvent
}

// ScoredContentItem carries the component scores alongside the item
type ScoredContentItem struct {
	ContentItem
	Freshness        float64 `json:"freshness"`
	Authority        float64 `json:"authority"`
	Signal           float64 `json:"signal"`
	DiversityPenalty float64 `json:"diversity_penalty"`
	FinalScore       float64 `json:"final_score"`
}

// RankingWindow bounds item eligibility and freshness normalization for one
// content kind. Lookback applies to past timestamps, lookahead to future ones.
type RankingWindow struct {
	LookbackDays  int `json:"lookback_days"`
	LookaheadDays int `json:"lookahead_days"`
}

// Span is the freshness normalization divisor: the wider window side, floor 1
func (w RankingWindow) Span() float64 {
	span := w.LookbackDays
	if w.LookaheadDays > span {
		span = w.LookaheadDays
	}
	if span < 1 {
		span = 1
	}
	return float64(span)
}

// RankRequest is one batch submitted to the ranking pipeline
type RankRequest struct {
	Items          []ContentItem              `json:"items"`
	Now            time.Time                  `json:"now,omitempty"`             // zero value means time.Now at ranking time
	Windows        map[ItemKind]RankingWindow `json:"windows,omitempty"`         // per-kind overrides; missing kinds use configuration
	AuthorityTable map[string]float64         `json:"authority_table,omitempty"` // source name or domain -> [0,10]
	KeywordWeights map[string]float64         `json:"keyword_weights,omitempty"` // term -> weight; bonus is (weight-1)*10
}
