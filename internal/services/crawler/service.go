package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/vestigolabs/vestigo/internal/common"
	"github.com/vestigolabs/vestigo/internal/interfaces"
	"github.com/vestigolabs/vestigo/internal/models"
)

// Fetcher is the fetch capability the crawler depends on
type Fetcher interface {
	Fetch(ctx context.Context, req models.FetchRequest) models.FetchOutcome
}

// Budgets bound one crawl run. All values are hard ceilings except
// MinRuntime, which pads fast runs to a consistent floor.
type Budgets struct {
	MaxPages        int
	MinPages        int
	MinRuntime      time.Duration
	MaxRuntime      time.Duration
	MaxDepth        int
	MaxLinksPerPage int
	MaxSitemapURLs  int
	MaxInternal     int
	MaxExternal     int
	MaxRegistry     int
	PerDomainCap    int
	FrontierSize    int
	MinContentChars int
}

// BudgetsFromConfig derives run budgets from crawl configuration
func BudgetsFromConfig(config *common.CrawlConfig) Budgets {
	return Budgets{
		MaxPages:        config.MaxPages,
		MinPages:        config.MinPages,
		MinRuntime:      config.MinRuntime,
		MaxRuntime:      config.MaxRuntime,
		MaxDepth:        config.MaxDepth,
		MaxLinksPerPage: config.MaxLinksPerPage,
		MaxSitemapURLs:  config.MaxSitemapURLs,
		MaxInternal:     config.MaxInternalPages,
		MaxExternal:     config.MaxExternalPages,
		MaxRegistry:     config.MaxRegistryPages,
		PerDomainCap:    config.PerDomainCap,
		FrontierSize:    config.FrontierMultiplier * config.MaxPages,
		MinContentChars: config.MinContentChars,
	}
}

// CollectRequest describes one evidence collection run
type CollectRequest struct {
	Subject models.Subject
	Budgets *Budgets // nil means budgets derived from configuration
}

// Service is the frontier crawler: a bounded, de-duplicated, budget-aware
// BFS crawl producing a ranked evidence set for one subject. One Service is
// reusable across runs; all run state is local to CollectEvidence.
type Service struct {
	fetcher Fetcher
	search  interfaces.WebSearchService
	config  *common.CrawlConfig
	scorer  *Scorer
	logger  arbor.ILogger
}

// NewService creates a crawler service. searchService may be nil or disabled;
// search expansion is then skipped.
func NewService(fetchService Fetcher, searchService interfaces.WebSearchService, config *common.CrawlConfig, logger arbor.ILogger) *Service {
	return &Service{
		fetcher: fetchService,
		search:  searchService,
		config:  config,
		scorer:  NewScorer(DefaultScoreRules(config.HintKeywords, config.NoisePhrases)),
		logger:  logger,
	}
}

// CollectEvidence runs a bounded crawl for the subject. It never returns an
// error: invalid input yields an empty evidence set with a diagnostic trace.
func (s *Service) CollectEvidence(ctx context.Context, req CollectRequest) (*models.EvidenceSet, *models.CrawlTrace) {
	start := time.Now()

	budgets := BudgetsFromConfig(s.config)
	if req.Budgets != nil {
		budgets = *req.Budgets
	}

	trace := &models.CrawlTrace{
		RunID:         common.NewCrawlID(),
		StatusSummary: make(map[string]int),
	}

	subject := req.Subject
	if err := subject.Validate(); err != nil {
		trace.AddStep(models.CrawlStep{Status: models.StepFetchFailed, Note: err.Error()})
		trace.Elapsed = time.Since(start)
		return &models.EvidenceSet{Subject: subject}, trace
	}

	frontier := NewFrontier(budgets.FrontierSize)
	primary := s.seedFrontier(ctx, frontier, &subject, budgets)
	classifier := NewClassifier(primary, s.config)

	if frontier.Len() == 0 && !s.searchAvailable() {
		trace.AddStep(models.CrawlStep{Status: models.StepFetchFailed, Note: "no crawlable seed URLs"})
		trace.Elapsed = time.Since(start)
		return &models.EvidenceSet{Subject: subject}, trace
	}

	run := &crawlRun{
		subject:    &subject,
		budgets:    budgets,
		classifier: classifier,
		signatures: make(map[string]bool),
		classCount: make(map[models.PageClass]int),
	}

	s.crawlLoop(ctx, run, frontier, trace, start)

	// Pad fast runs to the minimum runtime floor
	if remaining := budgets.MinRuntime - time.Since(start); remaining > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(remaining):
		}
	}

	pages := s.scorer.Prioritize(run.accepted, &subject, budgets.PerDomainCap)

	trace.AcceptedPages = len(pages)
	trace.InternalPages = run.classCount[models.PageClassInternal]
	trace.ExternalPages = run.classCount[models.PageClassExternal]
	trace.RegistryPages = run.classCount[models.PageClassRegistry]
	trace.SourceDomains = sourceDomains(pages)
	trace.Elapsed = time.Since(start)

	s.logger.Info().
		Str("run_id", trace.RunID).
		Str("subject", subject.Name).
		Int("visited", trace.Visited).
		Int("accepted", trace.AcceptedPages).
		Dur("elapsed", trace.Elapsed).
		Msg("Evidence collection finished")

	return &models.EvidenceSet{Subject: subject, Pages: pages}, trace
}

// crawlRun holds the mutable state of one crawl invocation
type crawlRun struct {
	subject    *models.Subject
	budgets    Budgets
	classifier *Classifier
	accepted   []*models.EvidencePage
	signatures map[string]bool
	classCount map[models.PageClass]int
	searchUsed bool
}

func (s *Service) crawlLoop(ctx context.Context, run *crawlRun, frontier *Frontier, trace *models.CrawlTrace, start time.Time) {
	for {
		if ctx.Err() != nil || time.Since(start) > run.budgets.MaxRuntime {
			trace.AddStep(models.CrawlStep{Status: models.StepStopByTimeout})
			return
		}
		if len(run.accepted) >= run.budgets.MaxPages {
			return
		}

		entry, ok := frontier.Pop()
		if !ok {
			// A drained frontier ends the run once the minimum page
			// floor is met. Below the floor the one-shot search
			// expansion refills it.
			if len(run.accepted) < run.budgets.MinPages && !run.searchUsed && s.searchAvailable() {
				run.searchUsed = true
				trace.UsedWebSearch = true
				s.expandViaSearch(ctx, run, frontier, trace)
				continue
			}
			return
		}

		trace.Visited++
		s.processEntry(ctx, run, frontier, trace, entry)
	}
}

func (s *Service) processEntry(ctx context.Context, run *crawlRun, frontier *Frontier, trace *models.CrawlTrace, entry FrontierEntry) {
	step := models.CrawlStep{
		URL:       entry.URL,
		Discovery: entry.Discovery,
		Depth:     entry.Depth,
	}

	outcome := s.fetcher.Fetch(ctx, models.FetchRequest{URL: entry.URL})
	if !outcome.OK {
		step.Status = models.StepFetchFailed
		step.Note = outcome.Error
		trace.AddStep(step)
		return
	}

	content, err := ExtractContent(entry.URL, outcome.Body, run.budgets.MaxLinksPerPage)
	if err != nil || len(content.Text) < run.budgets.MinContentChars {
		step.Status = models.StepContentTooShort
		trace.AddStep(step)
		return
	}
	if content.NotFound {
		step.Status = models.StepNotFoundPage
		trace.AddStep(step)
		return
	}

	class := run.classifier.Classify(entry.URL)
	step.Class = class

	if status, capped := run.classCapStatus(class); capped {
		step.Status = status
		trace.AddStep(step)
		return
	}

	if class == models.PageClassRegistry && !RegistryRelevant(entry.URL, content, run.subject) {
		step.Status = models.StepRegistryIrrelevant
		trace.AddStep(step)
		return
	}

	page := &models.EvidencePage{
		URL:          entry.URL,
		Title:        content.Title,
		Excerpt:      content.Excerpt,
		Text:         content.Text,
		Markdown:     content.Markdown,
		Class:        class,
		Discovery:    entry.Discovery,
		Depth:        entry.Depth,
		ContentChars: len(content.Text),
		KeywordHits:  CountKeywordHits(content.Title+" "+content.Text, combinedKeywords(s.config.HintKeywords, run.subject.Keywords)),
		FromCache:    outcome.FromCache,
	}
	if class == models.PageClassRegistry {
		page.Facts = ExtractRegistryFacts(content.Text)
	}

	signature := page.Signature()
	if run.signatures[signature] {
		step.Status = models.StepDuplicateTitle
		trace.AddStep(step)
		return
	}
	run.signatures[signature] = true

	run.accepted = append(run.accepted, page)
	run.classCount[class]++
	step.Status = models.StepOK
	trace.AddStep(step)

	s.enqueueLinks(run, frontier, entry, content, class)
}

// classCapStatus checks the per-classification hard ceilings
func (run *crawlRun) classCapStatus(class models.PageClass) (string, bool) {
	switch class {
	case models.PageClassInternal:
		if run.classCount[class] >= run.budgets.MaxInternal {
			return models.StepInternalCap, true
		}
	case models.PageClassExternal:
		if run.classCount[class] >= run.budgets.MaxExternal {
			return models.StepExternalCap, true
		}
	case models.PageClassRegistry:
		if run.classCount[class] >= run.budgets.MaxRegistry {
			return models.StepRegistryCap, true
		}
	}
	return "", false
}

// enqueueLinks pushes outbound links of an accepted page: same-domain links
// at depth+1 within the depth budget, keyword-hinted links regardless of
// domain, trusted external domains unconditionally, and registry
// official-site/related-record links.
func (s *Service) enqueueLinks(run *crawlRun, frontier *Frontier, entry FrontierEntry, content *PageContent, class models.PageClass) {
	nextDepth := entry.Depth + 1

	for _, link := range content.Links {
		if link.URL == "" {
			continue
		}

		linkClass := run.classifier.Classify(link.URL)

		if class == models.PageClassRegistry {
			if linkClass == models.PageClassRegistry && strings.Contains(link.URL, "no=") {
				frontier.Push(link.URL, nextDepth, models.DiscoveryRegistryLink)
				continue
			}
			if linkClass != models.PageClassRegistry {
				frontier.Push(link.URL, nextDepth, models.DiscoveryRegistrySite)
				continue
			}
		}

		switch {
		case linkClass == models.PageClassInternal && nextDepth <= run.budgets.MaxDepth:
			frontier.Push(link.URL, nextDepth, models.DiscoveryInternalLink)
		case s.matchesHint(link):
			frontier.Push(link.URL, nextDepth, models.DiscoveryHintLink)
		case run.classifier.IsTrustedDomain(link.URL):
			frontier.Push(link.URL, nextDepth, models.DiscoveryExternalSignal)
		}
	}
}

func (s *Service) matchesHint(link Link) bool {
	anchor := strings.ToLower(link.Anchor)
	lowered := strings.ToLower(link.URL)
	for _, keyword := range s.config.HintKeywords {
		hint := strings.ToLower(keyword)
		if strings.Contains(anchor, hint) || strings.Contains(lowered, hint) {
			return true
		}
	}
	return false
}

// expandViaSearch runs the one-shot public search expansion with a small
// bounded query set built from the subject name and its keywords
func (s *Service) expandViaSearch(ctx context.Context, run *crawlRun, frontier *Frontier, trace *models.CrawlTrace) {
	for _, query := range buildSearchQueries(run.subject) {
		results, err := s.search.Search(ctx, query, s.config.MaxPages)
		if err != nil {
			s.logger.Warn().Err(err).Str("query", query).Msg("Search expansion query failed")
			continue
		}
		enqueued := 0
		for _, result := range results {
			if frontier.Push(result.URL, 0, models.DiscoverySearch) {
				enqueued++
			}
		}
		trace.AddStep(models.CrawlStep{
			Status:    models.StepEnqueueSearch,
			Discovery: models.DiscoverySearch,
			Note:      fmt.Sprintf("query=%q enqueued=%d", query, enqueued),
		})
	}
}

func buildSearchQueries(subject *models.Subject) []string {
	name := strings.TrimSpace(subject.Name)
	if name == "" {
		return nil
	}

	queries := []string{fmt.Sprintf("%q", name)}
	for _, keyword := range subject.Keywords {
		if len(queries) >= 3 {
			break
		}
		queries = append(queries, name+" "+keyword)
	}
	if len(queries) < 2 {
		queries = append(queries, name+" company profile")
	}
	return queries
}

func (s *Service) searchAvailable() bool {
	return s.search != nil && s.search.Enabled()
}

func combinedKeywords(base, extra []string) []string {
	combined := make([]string, 0, len(base)+len(extra))
	combined = append(combined, base...)
	combined = append(combined, extra...)
	return combined
}

func sourceDomains(pages []*models.EvidencePage) []string {
	seen := make(map[string]bool)
	var domains []string
	for _, page := range pages {
		domain := common.RegistrableDomain(common.HostOf(page.URL))
		if domain == "" || seen[domain] {
			continue
		}
		seen[domain] = true
		domains = append(domains, domain)
	}
	return domains
}
