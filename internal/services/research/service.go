package research

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/vestigolabs/vestigo/internal/common"
	"github.com/vestigolabs/vestigo/internal/interfaces"
	"github.com/vestigolabs/vestigo/internal/models"
	"github.com/vestigolabs/vestigo/internal/services/crawler"
	"github.com/vestigolabs/vestigo/internal/services/llm"
)

// EvidenceCollector is the crawl dependency of the orchestrator. Satisfied
// by *crawler.Service.
type EvidenceCollector interface {
	CollectEvidence(ctx context.Context, req crawler.CollectRequest) (*models.EvidenceSet, *models.CrawlTrace)
}

// ResearchRequest describes one research run
type ResearchRequest struct {
	Subject  models.Subject
	SeedURLs []string // evidence URLs from a prior collection run, added to every task's frontier
}

// Service orchestrates the five research tasks across a bounded worker pool.
// Task failures degrade to placeholder results; only an unresolvable subject
// is a caller-visible error.
type Service struct {
	collector   EvidenceCollector
	search      interfaces.WebSearchService
	llm         interfaces.LLMService
	config      *common.ResearchConfig
	crawlConfig *common.CrawlConfig
	logger      arbor.ILogger
}

// NewService creates a research orchestrator.
func NewService(collector EvidenceCollector, searchService interfaces.WebSearchService, llmService interfaces.LLMService, config *common.ResearchConfig, crawlConfig *common.CrawlConfig, logger arbor.ILogger) *Service {
	return &Service{
		collector:   collector,
		search:      searchService,
		llm:         llmService,
		config:      config,
		crawlConfig: crawlConfig,
		logger:      logger,
	}
}

// RunResearch runs all built-in tasks for the subject and aggregates their
// results into a report.
func (s *Service) RunResearch(ctx context.Context, req ResearchRequest) (*models.ResearchReport, error) {
	start := time.Now()

	subject := req.Subject
	if strings.TrimSpace(subject.Name) == "" && strings.TrimSpace(subject.URL) == "" {
		return nil, fmt.Errorf("subject must have a name or a URL")
	}

	tasks := BuiltinTasks()
	workers := s.config.MaxWorkers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	if workers < 1 {
		workers = 1
	}

	taskCh := make(chan models.ResearchTask)
	resultCh := make(chan models.TaskResult, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				resultCh <- s.runTask(ctx, subject, req.SeedURLs, task)
			}
		}()
	}

	go func() {
		for _, task := range tasks {
			taskCh <- task
		}
		close(taskCh)
		wg.Wait()
		close(resultCh)
	}()

	results := make([]models.TaskResult, 0, len(tasks))
	for result := range resultCh {
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].TaskID < results[j].TaskID
	})

	report := &models.ResearchReport{
		RunID:     common.NewResearchID(),
		Subject:   subject,
		Tasks:     results,
		Citations: mergeCitations(results),
		CreatedAt: time.Now().UTC(),
	}

	for _, result := range results {
		if result.UsedLLM {
			report.UsedLLM = true
		}
	}

	report.Synthesis = s.synthesizeReport(ctx, subject, results)
	report.Elapsed = time.Since(start)

	s.logger.Info().
		Str("run_id", report.RunID).
		Str("subject", subject.Name).
		Int("tasks", len(results)).
		Bool("used_llm", report.UsedLLM).
		Dur("elapsed", report.Elapsed).
		Msg("Research run finished")

	return report, nil
}

// runTask executes one line of inquiry. A panic inside the task becomes a
// placeholder result rather than taking down the run.
func (s *Service) runTask(ctx context.Context, subject models.Subject, seedURLs []string, task models.ResearchTask) (result models.TaskResult) {
	taskStart := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn().
				Str("task", task.Name).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Research task panicked")
			result = placeholderResult(task, fmt.Sprintf("task panicked: %v", r))
		}
		result.Elapsed = time.Since(taskStart)
	}()

	queries := s.buildQueries(subject, task)
	urls := append([]string{}, seedURLs...)
	urls = append(urls, s.searchRound(ctx, queries)...)

	evidence := s.collect(ctx, subject, subject.URL, task, urls)

	for round := 2; round <= s.config.SearchRounds; round++ {
		expanded := s.expandQueries(ctx, subject, task, evidence)
		if len(expanded) == 0 {
			break
		}
		more := s.searchRound(ctx, expanded)
		if len(more) == 0 {
			break
		}
		evidence = append(evidence, s.collect(ctx, subject, "", task, more)...)
	}

	evidence = s.keepTop(dedupePages(evidence), task)

	return s.synthesizeTask(ctx, subject, task, evidence)
}

// buildQueries renders the task's query templates plus an optional
// site-scoped query against the subject's own domain.
func (s *Service) buildQueries(subject models.Subject, task models.ResearchTask) []string {
	name := strings.TrimSpace(subject.Name)
	if name == "" {
		name = common.HostOf(subject.URL)
	}

	queries := make([]string, 0, len(task.QueryTemplates)+1)
	for _, template := range task.QueryTemplates {
		queries = append(queries, fmt.Sprintf(template, name))
	}

	if task.SiteScoped && subject.URL != "" {
		if host := common.HostOf(subject.URL); host != "" {
			queries = append(queries, fmt.Sprintf("%s site:%s", strings.Join(task.Keywords[:min(2, len(task.Keywords))], " "), host))
		}
	}
	return queries
}

// searchRound issues each query once and returns the discovered URLs.
// Search failures are logged and skipped; a round can come back empty.
func (s *Service) searchRound(ctx context.Context, queries []string) []string {
	if s.search == nil || !s.search.Enabled() {
		return nil
	}

	var urls []string
	for _, query := range queries {
		results, err := s.search.Search(ctx, query, s.config.ResultsPerQuery)
		if err != nil {
			s.logger.Warn().Err(err).Str("query", query).Msg("Search query failed")
			continue
		}
		for _, result := range results {
			urls = append(urls, result.URL)
		}
	}
	return urls
}

// collect runs a bounded crawl over the given URLs for one task.
func (s *Service) collect(ctx context.Context, subject models.Subject, primaryURL string, task models.ResearchTask, urls []string) []*models.EvidencePage {
	if primaryURL == "" && len(urls) == 0 {
		return nil
	}

	budgets := s.taskBudgets()
	set, _ := s.collector.CollectEvidence(ctx, crawler.CollectRequest{
		Subject: models.Subject{
			Name:       subject.Name,
			URL:        primaryURL,
			Identifier: subject.Identifier,
			Keywords:   task.Keywords,
			ExtraURLs:  urls,
		},
		Budgets: &budgets,
	})
	if set == nil {
		return nil
	}
	return set.Pages
}

// taskBudgets derives the tight per-task budgets from the crawl defaults.
func (s *Service) taskBudgets() crawler.Budgets {
	budgets := crawler.BudgetsFromConfig(s.crawlConfig)
	budgets.MaxPages = s.config.MaxPagesPerTask
	budgets.MaxInternal = s.config.MaxPagesPerTask
	budgets.MaxExternal = s.config.MaxPagesPerTask
	budgets.MaxDepth = 1
	budgets.MinPages = 0 // the research rounds do their own search expansion
	budgets.MinRuntime = 0
	budgets.FrontierSize = s.crawlConfig.FrontierMultiplier * s.config.MaxPagesPerTask
	return budgets
}

// expandQueries asks the LLM for follow-up queries seeded with the evidence
// gathered so far, falling back to keyword templates when the LLM is
// unavailable or returns garbage.
func (s *Service) expandQueries(ctx context.Context, subject models.Subject, task models.ResearchTask, evidence []*models.EvidencePage) []string {
	if s.llm != nil && s.llm.Enabled() {
		if queries := s.expandViaLLM(ctx, subject, task, evidence); len(queries) > 0 {
			return queries
		}
	}

	// Template fallback: pair the subject with task keywords not already
	// covered by the first-round templates.
	name := strings.TrimSpace(subject.Name)
	if name == "" {
		return nil
	}
	var queries []string
	for _, keyword := range task.Keywords {
		if len(queries) >= 2 {
			break
		}
		covered := false
		for _, template := range task.QueryTemplates {
			if strings.Contains(strings.ToLower(template), strings.ToLower(keyword)) {
				covered = true
				break
			}
		}
		if !covered {
			queries = append(queries, fmt.Sprintf("%s %s", name, keyword))
		}
	}
	return queries
}

func (s *Service) expandViaLLM(ctx context.Context, subject models.Subject, task models.ResearchTask, evidence []*models.EvidencePage) []string {
	var titles []string
	for _, page := range evidence {
		if page.Title != "" {
			titles = append(titles, page.Title)
		}
		if len(titles) >= 8 {
			break
		}
	}

	prompt := fmt.Sprintf(
		"You are researching %q with objective: %s.\nPages found so far:\n%s\nPropose up to 3 web search queries that would surface information the pages above do not cover. Respond with a JSON object: {\"queries\": [\"...\"]}.",
		subject.Name, task.Objective, "- "+strings.Join(titles, "\n- "),
	)

	response, err := s.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: "You write precise web search queries. Respond only with JSON."},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("task", task.Name).Msg("Query expansion failed, using template queries")
		return nil
	}

	var parsed struct {
		Queries []string `json:"queries"`
	}
	if err := llm.ExtractJSON(response, &parsed); err != nil {
		s.logger.Warn().Err(err).Str("task", task.Name).Msg("Query expansion returned unusable output")
		return nil
	}

	var queries []string
	for _, query := range parsed.Queries {
		if query = strings.TrimSpace(query); query != "" {
			queries = append(queries, query)
		}
		if len(queries) >= 3 {
			break
		}
	}
	return queries
}

// keepTop scores pages against the task keywords and keeps the best N.
func (s *Service) keepTop(pages []*models.EvidencePage, task models.ResearchTask) []*models.EvidencePage {
	if len(pages) <= s.config.KeepTopPages {
		return pages
	}

	type scored struct {
		page *models.EvidencePage
		hits int
	}
	ranked := make([]scored, len(pages))
	for i, page := range pages {
		ranked[i] = scored{
			page: page,
			hits: crawler.CountKeywordHits(page.Title+" "+page.Excerpt, task.Keywords),
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].hits != ranked[j].hits {
			return ranked[i].hits > ranked[j].hits
		}
		return ranked[i].page.ContentChars > ranked[j].page.ContentChars
	})

	kept := make([]*models.EvidencePage, 0, s.config.KeepTopPages)
	for _, entry := range ranked[:s.config.KeepTopPages] {
		kept = append(kept, entry.page)
	}
	return kept
}

// dedupePages drops later occurrences of the same URL.
func dedupePages(pages []*models.EvidencePage) []*models.EvidencePage {
	seen := make(map[string]bool, len(pages))
	deduped := make([]*models.EvidencePage, 0, len(pages))
	for _, page := range pages {
		key := common.DedupURLKey(page.URL)
		if key == "" {
			key = page.URL
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, page)
	}
	return deduped
}

// placeholderResult stands in for a task that errored or panicked.
func placeholderResult(task models.ResearchTask, reason string) models.TaskResult {
	return models.TaskResult{
		TaskID:   task.ID,
		TaskName: task.Name,
		Summary:  fmt.Sprintf("The %s inquiry could not be completed.", task.Name),
		Gaps:     []string{reason},
		Error:    reason,
	}
}

// mergeCitations flattens task citations, keeping the first occurrence of
// each URL in task order.
func mergeCitations(results []models.TaskResult) []models.Citation {
	seen := make(map[string]bool)
	var merged []models.Citation
	for _, result := range results {
		for _, citation := range result.Citations {
			if citation.URL == "" || seen[citation.URL] {
				continue
			}
			seen[citation.URL] = true
			merged = append(merged, citation)
		}
	}
	return merged
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
