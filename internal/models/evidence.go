package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/vestigolabs/vestigo/internal/common"
)

// PageClass identifies which budget an evidence page counts against
type PageClass string

const (
	PageClassInternal PageClass = "internal"
	PageClassRegistry PageClass = "registry"
	PageClassExternal PageClass = "external"
)

// Discovery methods record how a URL entered the frontier
const (
	DiscoverySeed           = "official_seed"
	DiscoveryParent         = "official_parent"
	DiscoverySitemap        = "official_sitemap"
	DiscoveryExtraURL       = "extra_url"
	DiscoveryInternalLink   = "official_internal"
	DiscoveryHintLink       = "hint_link"
	DiscoveryParentRoute    = "parent_route"
	DiscoveryRegistrySite   = "registry_official"
	DiscoveryRegistryLink   = "registry_related"
	DiscoveryExternalSignal = "external_signal"
	DiscoverySearch         = "public_search"
)

// Crawl step statuses
const (
	StepOK                 = "ok"
	StepFetchFailed        = "fetch_failed"
	StepContentTooShort    = "content_too_short"
	StepDuplicateTitle     = "duplicate_title"
	StepRegistryIrrelevant = "registry_irrelevant"
	StepRegistryCap        = "registry_cap"
	StepExternalCap        = "external_cap"
	StepInternalCap        = "internal_cap"
	StepNotFoundPage       = "not_found_page"
	StepStopByTimeout      = "stop_by_timeout"
	StepEnqueueSearch      = "enqueue_public_search"
)

// Subject is the entity evidence is collected about
type Subject struct {
	Name       string   `json:"name"`
	URL        string   `json:"url,omitempty"`
	Identifier string   `json:"identifier,omitempty"` // registry identifier, when known
	Keywords   []string `json:"keywords,omitempty"`
	ExtraURLs  []string `json:"extra_urls,omitempty"`
}

// Validate checks that the subject carries enough identity to crawl for
func (s *Subject) Validate() error {
	if strings.TrimSpace(s.Name) == "" && strings.TrimSpace(s.URL) == "" {
		return fmt.Errorf("subject requires a name or a URL")
	}
	return nil
}

// EvidencePage is an accepted page with extracted content
type EvidencePage struct {
	URL          string            `json:"url"`
	Title        string            `json:"title"`
	Excerpt      string            `json:"excerpt"`
	Text         string            `json:"text"`
	Markdown     string            `json:"markdown,omitempty"`
	Class        PageClass         `json:"class"`
	Discovery    string            `json:"discovery"`
	Depth        int               `json:"depth"`
	Score        float64           `json:"score"`
	ContentChars int               `json:"content_chars"`
	KeywordHits  int               `json:"keyword_hits"`
	Facts        map[string]string `json:"facts,omitempty"` // registry facts: identifier, representative, address, capital, founded
	FromCache    bool              `json:"from_cache,omitempty"`
}

// Signature returns the near-duplicate identity of a page: title plus the
// first 180 characters of the excerpt, lowercased
func (p *EvidencePage) Signature() string {
	excerpt := common.TruncateRunesafe(p.Excerpt, 180)
	return strings.ToLower(strings.TrimSpace(p.Title)) + "|" + strings.ToLower(strings.TrimSpace(excerpt))
}

// EvidenceSet is the ordered output of a crawl, best pages first
type EvidenceSet struct {
	Subject Subject         `json:"subject"`
	Pages   []*EvidencePage `json:"pages"`
}

// CrawlStep records the disposition of one frontier entry
type CrawlStep struct {
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	Class     PageClass `json:"class,omitempty"`
	Discovery string    `json:"discovery,omitempty"`
	Depth     int       `json:"depth"`
	Note      string    `json:"note,omitempty"`
}

// CrawlTrace is the full diagnostic record of a crawl run
type CrawlTrace struct {
	RunID         string         `json:"run_id"`
	Visited       int            `json:"visited"`
	AcceptedPages int            `json:"accepted_pages"`
	InternalPages int            `json:"internal_pages"`
	ExternalPages int            `json:"external_pages"`
	RegistryPages int            `json:"registry_pages"`
	SourceDomains []string       `json:"source_domains"`
	Elapsed       time.Duration  `json:"elapsed"`
	UsedWebSearch bool           `json:"used_web_search"`
	Steps         []CrawlStep    `json:"steps"`
	StatusSummary map[string]int `json:"status_summary"`
}

// AddStep appends a step and maintains the status summary
func (t *CrawlTrace) AddStep(step CrawlStep) {
	if t.StatusSummary == nil {
		t.StatusSummary = make(map[string]int)
	}
	t.Steps = append(t.Steps, step)
	t.StatusSummary[step.Status]++
}
