package crawler

import (
	"sort"
	"strings"

	"github.com/vestigolabs/vestigo/internal/common"
	"github.com/vestigolabs/vestigo/internal/models"
)

// ScoreRule is one additive term in the relevance score. Match returns a
// quantity (0 or 1 for predicates, a count for accumulating rules); the
// rule contributes Weight*quantity, bounded by Cap when Cap is positive.
type ScoreRule struct {
	Name   string
	Weight float64
	Cap    float64
	Match  func(page *models.EvidencePage, subject *models.Subject) float64
}

// Scorer evaluates a declarative rule table over evidence pages
type Scorer struct {
	rules []ScoreRule
}

// expansionDiscoveries are discovery tags earning the search/registry
// expansion bonus
var expansionDiscoveries = map[string]bool{
	models.DiscoverySearch:       true,
	models.DiscoveryRegistrySite: true,
	models.DiscoveryRegistryLink: true,
}

// DefaultScoreRules returns the standard rule table. Weights are tunable
// starting points, not calibrated against ground truth.
func DefaultScoreRules(hintKeywords, noisePhrases []string) []ScoreRule {
	return []ScoreRule{
		{
			Name:   "subject_in_content",
			Weight: 2.4,
			Match: func(page *models.EvidencePage, subject *models.Subject) float64 {
				name := strings.ToLower(strings.TrimSpace(subject.Name))
				if name == "" {
					return 0
				}
				haystack := strings.ToLower(page.Title + " " + page.Excerpt)
				if strings.Contains(haystack, name) {
					return 1
				}
				return 0
			},
		},
		{
			Name:   "internal_page",
			Weight: 2.0,
			Match: func(page *models.EvidencePage, _ *models.Subject) float64 {
				if page.Class == models.PageClassInternal {
					return 1
				}
				return 0
			},
		},
		{
			Name:   "non_registry",
			Weight: 1.6,
			Match: func(page *models.EvidencePage, _ *models.Subject) float64 {
				if page.Class != models.PageClassRegistry {
					return 1
				}
				return 0
			},
		},
		{
			Name:   "expansion_discovery",
			Weight: 0.9,
			Match: func(page *models.EvidencePage, _ *models.Subject) float64 {
				if expansionDiscoveries[page.Discovery] {
					return 1
				}
				return 0
			},
		},
		{
			Name:   "keyword_hits",
			Weight: 0.18,
			Cap:    2.0,
			Match: func(page *models.EvidencePage, _ *models.Subject) float64 {
				return float64(page.KeywordHits)
			},
		},
		{
			Name:   "noise_phrases",
			Weight: -0.9,
			Match: func(page *models.EvidencePage, _ *models.Subject) float64 {
				text := strings.ToLower(page.Excerpt)
				hits := 0.0
				for _, phrase := range noisePhrases {
					if strings.Contains(text, strings.ToLower(phrase)) {
						hits++
					}
				}
				return hits
			},
		},
	}
}

// NewScorer creates a scorer over the given rule table
func NewScorer(rules []ScoreRule) *Scorer {
	return &Scorer{rules: rules}
}

// Score evaluates all rules for one page
func (s *Scorer) Score(page *models.EvidencePage, subject *models.Subject) float64 {
	total := 0.0
	for _, rule := range s.rules {
		contribution := rule.Weight * rule.Match(page, subject)
		if rule.Cap > 0 {
			if contribution > rule.Cap {
				contribution = rule.Cap
			} else if contribution < -rule.Cap {
				contribution = -rule.Cap
			}
		}
		total += contribution
	}
	return total
}

// CountKeywordHits counts hint keyword occurrences in lowercased text
func CountKeywordHits(text string, keywords []string) int {
	lowered := strings.ToLower(text)
	hits := 0
	for _, keyword := range keywords {
		hits += strings.Count(lowered, strings.ToLower(keyword))
	}
	return hits
}

// Prioritize scores pages, sorts them by score descending with longer
// extracted text breaking ties, then re-caps per source domain to force
// diversity in the returned set.
func (s *Scorer) Prioritize(pages []*models.EvidencePage, subject *models.Subject, perDomainCap int) []*models.EvidencePage {
	for _, page := range pages {
		page.Score = s.Score(page, subject)
	}

	sorted := make([]*models.EvidencePage, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].ContentChars > sorted[j].ContentChars
	})

	if perDomainCap <= 0 {
		return sorted
	}

	perDomain := make(map[string]int)
	capped := make([]*models.EvidencePage, 0, len(sorted))
	for _, page := range sorted {
		domain := common.RegistrableDomain(common.HostOf(page.URL))
		if perDomain[domain] >= perDomainCap {
			continue
		}
		perDomain[domain]++
		capped = append(capped, page)
	}
	return capped
}
