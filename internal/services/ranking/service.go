package ranking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/vestigolabs/vestigo/internal/common"
	"github.com/vestigolabs/vestigo/internal/models"
)

const (
	signalBaseEvent   = 4.0
	signalBaseDefault = 3.5
	eventKindBonus    = 1.5
	insightKindBonus  = 1.0
	defaultAuthority  = 5.0
	neutralFreshness  = 5.0
)

// Service is the content ranking pipeline: eligibility windowing, global
// de-duplication, component scoring, and diversity-aware selection. Given
// identical inputs and configuration the output is bit-for-bit reproducible;
// randomness lives only in the fetch layer's backoff jitter, never here.
type Service struct {
	config *common.RankingConfig
	logger arbor.ILogger
}

// NewService creates a ranking service.
func NewService(config *common.RankingConfig, logger arbor.ILogger) *Service {
	return &Service{config: config, logger: logger}
}

// Rank scores and orders one batch of content items. An empty batch is the
// only caller-visible error; everything else degrades to a smaller output.
func (s *Service) Rank(ctx context.Context, req models.RankRequest) ([]models.ScoredContentItem, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("ranking batch cannot be empty")
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	eligible := s.filterEligible(req.Items, now, req.Windows)
	eligible = dedupe(eligible)

	scored := make([]models.ScoredContentItem, len(eligible))
	for i, item := range eligible {
		scored[i] = models.ScoredContentItem{
			ContentItem: item,
			Freshness:   s.freshness(item, now, s.window(item.Kind, req.Windows)),
			Authority:   authority(item, req.AuthorityTable),
			Signal:      s.signal(item, req.KeywordWeights),
		}
	}

	// Selection order: strongest signal first. Stable sorts throughout keep
	// exact ties in original batch order, which is what makes the output
	// reproducible.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Signal != scored[j].Signal {
			return scored[i].Signal > scored[j].Signal
		}
		if scored[i].Authority != scored[j].Authority {
			return scored[i].Authority > scored[j].Authority
		}
		return scored[i].Freshness > scored[j].Freshness
	})

	selected := s.applyDiversity(scored)

	for i := range selected {
		item := &selected[i]
		final := item.Freshness*s.config.FreshnessWeight +
			item.Authority*s.config.AuthorityWeight +
			item.Signal*s.config.SignalWeight -
			item.DiversityPenalty
		item.FinalScore = clamp(final, 0, 10)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].FinalScore > selected[j].FinalScore
	})

	if len(selected) > s.config.OutputCap {
		selected = selected[:s.config.OutputCap]
	}

	s.logger.Info().
		Int("batch", len(req.Items)).
		Int("eligible", len(eligible)).
		Int("ranked", len(selected)).
		Msg("Ranking batch completed")

	return selected, nil
}

// window resolves the time window for one item kind: request override first,
// configured per-kind window second, the global fallback last.
func (s *Service) window(kind models.ItemKind, overrides map[models.ItemKind]models.RankingWindow) models.RankingWindow {
	if win, ok := overrides[kind]; ok {
		return win
	}
	if win, ok := s.config.Windows[string(kind)]; ok {
		return models.RankingWindow{LookbackDays: win.LookbackDays, LookaheadDays: win.LookaheadDays}
	}
	return models.RankingWindow{LookbackDays: s.config.LookbackDays, LookaheadDays: s.config.LookaheadDays}
}

// filterEligible applies the per-kind time windows. Event items need a
// resolvable future timestamp; other kinds without a timestamp survive only
// when unknown age is permitted.
func (s *Service) filterEligible(items []models.ContentItem, now time.Time, overrides map[models.ItemKind]models.RankingWindow) []models.ContentItem {
	eligible := make([]models.ContentItem, 0, len(items))
	for _, item := range items {
		if err := item.Validate(); err != nil {
			continue
		}

		if item.PublishedAt == nil {
			if item.IsEvent() || !s.config.PermitUnknownAge {
				continue
			}
			eligible = append(eligible, item)
			continue
		}

		win := s.window(item.Kind, overrides)
		days := item.PublishedAt.Sub(now).Hours() / 24
		if item.IsEvent() {
			// Past events are noise; far-future events are unconfirmed.
			if days <= 0 || days > float64(win.LookaheadDays) {
				continue
			}
		} else if days < -float64(win.LookbackDays) || days > float64(win.LookaheadDays) {
			continue
		}

		eligible = append(eligible, item)
	}
	return eligible
}

// dedupe drops later occurrences of (URL without query, lower-cased title).
func dedupe(items []models.ContentItem) []models.ContentItem {
	seen := make(map[string]bool, len(items))
	deduped := make([]models.ContentItem, 0, len(items))
	for _, item := range items {
		key := urlSansQuery(item.URL) + "|" + strings.ToLower(strings.TrimSpace(item.Title))
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, item)
	}
	return deduped
}

// urlSansQuery strips the query and fragment from a URL for de-duplication.
func urlSansQuery(rawURL string) string {
	trimmed := rawURL
	if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.ToLower(strings.TrimSuffix(trimmed, "/"))
}

// freshness maps the distance between now and the item timestamp onto [0,10],
// with 10 at zero distance and 0 at the far edge of the kind's wider window side.
func (s *Service) freshness(item models.ContentItem, now time.Time, win models.RankingWindow) float64 {
	if item.PublishedAt == nil {
		return neutralFreshness
	}

	days := item.PublishedAt.Sub(now).Hours() / 24
	if days < 0 {
		days = -days
	}
	return clamp(10*(1-days/win.Span()), 0, 10)
}

// authority looks the source up in the authority table, by source name first
// and registrable domain second.
func authority(item models.ContentItem, table map[string]float64) float64 {
	if table != nil {
		if score, ok := table[item.SourceName]; ok && item.SourceName != "" {
			return clamp(score, 0, 10)
		}
		if domain := common.RegistrableDomain(common.HostOf(item.URL)); domain != "" {
			if score, ok := table[domain]; ok {
				return clamp(score, 0, 10)
			}
		}
	}
	return defaultAuthority
}

// signal is the kind base plus weighted keyword bonuses over title and
// summary, plus a fixed bonus when the text matches the kind's own keyword
// list. Weighted keywords are applied in sorted order so float accumulation
// is reproducible.
func (s *Service) signal(item models.ContentItem, weights map[string]float64) float64 {
	base := signalBaseDefault
	if item.IsEvent() {
		base = signalBaseEvent
	}

	haystack := strings.ToLower(item.Title + " " + item.Summary)
	score := base

	keywords := make([]string, 0, len(weights))
	for keyword := range weights {
		keywords = append(keywords, keyword)
	}
	sort.Strings(keywords)
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(keyword)) {
			score += (weights[keyword] - 1) * 10
		}
	}

	if item.IsEvent() {
		if containsAny(haystack, s.config.EventKeywords) {
			score += eventKindBonus
		}
	} else if containsAny(haystack, s.config.InsightKeywords) {
		score += insightKindBonus
	}

	return clamp(score, 0, 10)
}

func containsAny(haystack string, terms []string) bool {
	for _, term := range terms {
		if term != "" && strings.Contains(haystack, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// applyDiversity walks the selection-ordered items applying the hard
// per-domain caps and the escalating per-occurrence penalty.
func (s *Service) applyDiversity(items []models.ScoredContentItem) []models.ScoredContentItem {
	domainCounts := make(map[string]int)
	selected := make([]models.ScoredContentItem, 0, len(items))

	for _, item := range items {
		domain := common.RegistrableDomain(common.HostOf(item.URL))
		if domain == "" {
			domain = item.URL
		}

		domainCap := s.config.MaxInsightDomain
		if item.IsEvent() {
			domainCap = s.config.MaxEventsDomain
		}

		// Events and non-events are capped independently per domain.
		key := domain
		if item.IsEvent() {
			key = domain + "|event"
		}

		occurrence := domainCounts[key]
		if occurrence >= domainCap {
			continue
		}
		domainCounts[key] = occurrence + 1

		penalty := s.config.DiversityStep * float64(occurrence)
		if penalty > s.config.DiversityCap {
			penalty = s.config.DiversityCap
		}
		item.DiversityPenalty = penalty
		selected = append(selected, item)
	}
	return selected
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
