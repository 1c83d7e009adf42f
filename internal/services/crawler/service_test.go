package crawler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/vestigolabs/vestigo/internal/common"
	"github.com/vestigolabs/vestigo/internal/interfaces"
	"github.com/vestigolabs/vestigo/internal/models"
)

// stubFetcher serves canned bodies keyed by normalized URL
type stubFetcher struct {
	pages map[string]string
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{pages: make(map[string]string)}
}

func (f *stubFetcher) add(url, body string) {
	f.pages[common.DedupURLKey(url)] = body
}

func (f *stubFetcher) Fetch(ctx context.Context, req models.FetchRequest) models.FetchOutcome {
	body, ok := f.pages[common.DedupURLKey(req.URL)]
	if !ok {
		return models.FetchOutcome{URL: req.URL, OK: false, Error: "connection refused"}
	}
	return models.FetchOutcome{URL: req.URL, OK: true, StatusCode: 200, Body: body, Attempts: 1}
}

// stubSearch returns fixed results for any query
type stubSearch struct {
	results []interfaces.SearchResult
	queries []string
}

func (s *stubSearch) Search(ctx context.Context, query string, limit int) ([]interfaces.SearchResult, error) {
	s.queries = append(s.queries, query)
	return s.results, nil
}

func (s *stubSearch) Enabled() bool { return true }

func page(title, body string, links ...string) string {
	// Links live outside <main> so the excerpt carries body text only
	html := "<html><head><title>" + title + "</title></head><body><main><p>" + body + "</p></main>"
	for _, link := range links {
		html += `<a href="` + link + `">` + link + `</a>`
	}
	return html + "</body></html>"
}

func testCrawlConfig() *common.CrawlConfig {
	config := common.NewDefaultConfig().Crawl
	config.MinRuntime = 0
	config.MaxRuntime = 10 * time.Second
	config.ContentPaths = nil
	config.MaxSitemapURLs = 0
	config.RegistryDomains = []string{"registry.example"}
	config.TrustedDomains = []string{"github.com"}
	return &config
}

func newTestCrawler(config *common.CrawlConfig, fetch Fetcher, search interfaces.WebSearchService) *Service {
	return NewService(fetch, search, config, arbor.NewLogger())
}

const filler = "This body carries well over the eighty character minimum required for page acceptance by the crawler."

func TestCollectEvidenceInternalCap(t *testing.T) {
	// Scenario: 3 internal pages beyond the root, cap of 2 internal pages total
	fetch := newStubFetcher()
	fetch.add("https://acme.example", page("Acme Robotics Home", "Acme Robotics. "+filler, "/a", "/b", "/c"))
	fetch.add("https://acme.example/a", page("Acme Robotics A", "Acme Robotics alpha. "+filler))
	fetch.add("https://acme.example/b", page("Acme Robotics B", "Acme Robotics beta. "+filler))
	fetch.add("https://acme.example/c", page("Acme Robotics C", "Acme Robotics gamma. "+filler))

	config := testCrawlConfig()
	config.MaxInternalPages = 2

	service := newTestCrawler(config, fetch, nil)
	evidence, trace := service.CollectEvidence(context.Background(), CollectRequest{
		Subject: models.Subject{Name: "Acme Robotics", URL: "https://acme.example"},
	})

	assert.Equal(t, 2, trace.InternalPages)
	assert.Len(t, evidence.Pages, 2)
	assert.Equal(t, 2, trace.StatusSummary[models.StepInternalCap])
}

func TestCollectEvidenceRegistryIrrelevant(t *testing.T) {
	// Scenario: registry-like page without the subject name or identifier
	fetch := newStubFetcher()
	fetch.add("https://acme.example", page("Acme Robotics", "Acme Robotics official site. "+filler))
	fetch.add("https://registry.example/search", page("Company Search", "Results for unrelated entities. "+filler))

	service := newTestCrawler(testCrawlConfig(), fetch, nil)
	evidence, trace := service.CollectEvidence(context.Background(), CollectRequest{
		Subject: models.Subject{
			Name:      "Acme Robotics",
			URL:       "https://acme.example",
			ExtraURLs: []string{"https://registry.example/search"},
		},
	})

	assert.Equal(t, 1, trace.StatusSummary[models.StepRegistryIrrelevant])
	assert.Equal(t, 0, trace.RegistryPages)
	for _, p := range evidence.Pages {
		assert.NotEqual(t, models.PageClassRegistry, p.Class)
	}
}

func TestCollectEvidenceRegistryRelevantByIdentifier(t *testing.T) {
	fetch := newStubFetcher()
	fetch.add("https://acme.example", page("Acme Robotics", "Acme Robotics official site. "+filler))
	fetch.add("https://registry.example/record", page("Record 991234", "Company Number: AB-991234. Representative: J Doe. "+filler))

	service := newTestCrawler(testCrawlConfig(), fetch, nil)
	evidence, trace := service.CollectEvidence(context.Background(), CollectRequest{
		Subject: models.Subject{
			Name:       "Acme Robotics",
			URL:        "https://acme.example",
			Identifier: "AB-991234",
			ExtraURLs:  []string{"https://registry.example/record"},
		},
	})

	assert.Equal(t, 1, trace.RegistryPages)

	var registry *models.EvidencePage
	for _, p := range evidence.Pages {
		if p.Class == models.PageClassRegistry {
			registry = p
		}
	}
	require.NotNil(t, registry)
	assert.Equal(t, "AB-991234", registry.Facts["identifier"])
}

func TestCollectEvidenceDuplicateSignature(t *testing.T) {
	fetch := newStubFetcher()
	fetch.add("https://acme.example", page("Acme Robotics", "Acme Robotics news. "+filler, "/copy"))
	// Same title and excerpt under a different URL
	fetch.add("https://acme.example/copy", page("Acme Robotics", "Acme Robotics news. "+filler))

	service := newTestCrawler(testCrawlConfig(), fetch, nil)
	evidence, trace := service.CollectEvidence(context.Background(), CollectRequest{
		Subject: models.Subject{Name: "Acme Robotics", URL: "https://acme.example"},
	})

	assert.Len(t, evidence.Pages, 1)
	assert.Equal(t, 1, trace.StatusSummary[models.StepDuplicateTitle])
}

func TestCollectEvidenceMaxPagesBudget(t *testing.T) {
	fetch := newStubFetcher()
	var links []string
	for i := 0; i < 10; i++ {
		links = append(links, fmt.Sprintf("/p%d", i))
	}
	fetch.add("https://acme.example", page("Acme Robotics", "Acme Robotics root. "+filler, links...))
	for i := 0; i < 10; i++ {
		fetch.add(fmt.Sprintf("https://acme.example/p%d", i),
			page(fmt.Sprintf("Acme Robotics %d", i), fmt.Sprintf("Acme Robotics page %d. ", i)+filler))
	}

	config := testCrawlConfig()
	config.MaxPages = 3
	config.PerDomainCap = 10

	service := newTestCrawler(config, fetch, nil)
	evidence, trace := service.CollectEvidence(context.Background(), CollectRequest{
		Subject: models.Subject{Name: "Acme Robotics", URL: "https://acme.example"},
	})

	assert.Len(t, evidence.Pages, 3)
	assert.Equal(t, 3, trace.StatusSummary[models.StepOK])
}

func TestCollectEvidenceSearchExpansionOnce(t *testing.T) {
	fetch := newStubFetcher()
	fetch.add("https://found.example/profile", page("Acme Robotics Profile", "Profile of Acme Robotics. "+filler))

	search := &stubSearch{results: []interfaces.SearchResult{
		{Title: "Acme Robotics Profile", URL: "https://found.example/profile"},
	}}

	// Subject with no crawlable site: everything must come from search
	service := newTestCrawler(testCrawlConfig(), fetch, search)
	evidence, trace := service.CollectEvidence(context.Background(), CollectRequest{
		Subject: models.Subject{Name: "Acme Robotics"},
	})

	assert.True(t, trace.UsedWebSearch)
	assert.NotEmpty(t, search.queries)
	assert.Greater(t, trace.StatusSummary[models.StepEnqueueSearch], 0)
	require.Len(t, evidence.Pages, 1)
	assert.Equal(t, models.DiscoverySearch, evidence.Pages[0].Discovery)
}

func TestCollectEvidenceSkipsSearchAboveMinPages(t *testing.T) {
	fetch := newStubFetcher()
	fetch.add("https://acme.example", page("Acme Robotics", "Acme Robotics site. "+filler))

	search := &stubSearch{results: []interfaces.SearchResult{
		{Title: "Unwanted", URL: "https://unwanted.example/x"},
	}}

	config := testCrawlConfig()
	config.MinPages = 1

	// The seed alone satisfies the page floor, so the frontier draining
	// must end the run without touching search.
	service := newTestCrawler(config, fetch, search)
	evidence, trace := service.CollectEvidence(context.Background(), CollectRequest{
		Subject: models.Subject{Name: "Acme Robotics", URL: "https://acme.example"},
	})

	assert.False(t, trace.UsedWebSearch)
	assert.Empty(t, search.queries)
	assert.Len(t, evidence.Pages, 1)
}

func TestCollectEvidenceSearchBelowMinPages(t *testing.T) {
	fetch := newStubFetcher()
	fetch.add("https://acme.example", page("Acme Robotics", "Acme Robotics site. "+filler))
	fetch.add("https://found.example/news", page("Acme Robotics News", "Acme Robotics raised a round. "+filler))

	search := &stubSearch{results: []interfaces.SearchResult{
		{Title: "Acme Robotics News", URL: "https://found.example/news"},
	}}

	config := testCrawlConfig()
	config.MinPages = 2

	service := newTestCrawler(config, fetch, search)
	evidence, trace := service.CollectEvidence(context.Background(), CollectRequest{
		Subject: models.Subject{Name: "Acme Robotics", URL: "https://acme.example"},
	})

	assert.True(t, trace.UsedWebSearch)
	assert.Len(t, evidence.Pages, 2)
}

func TestCollectEvidenceEmptySeed(t *testing.T) {
	service := newTestCrawler(testCrawlConfig(), newStubFetcher(), nil)
	evidence, trace := service.CollectEvidence(context.Background(), CollectRequest{
		Subject: models.Subject{},
	})

	assert.Empty(t, evidence.Pages)
	require.NotNil(t, trace)
	assert.NotEmpty(t, trace.Steps)
}

func TestCollectEvidenceMinRuntimeFloor(t *testing.T) {
	fetch := newStubFetcher()
	fetch.add("https://acme.example", page("Acme Robotics", "Acme Robotics site. "+filler))

	config := testCrawlConfig()
	config.MinRuntime = 60 * time.Millisecond

	service := newTestCrawler(config, fetch, nil)
	start := time.Now()
	_, trace := service.CollectEvidence(context.Background(), CollectRequest{
		Subject: models.Subject{Name: "Acme Robotics", URL: "https://acme.example"},
	})

	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.GreaterOrEqual(t, trace.Elapsed, 60*time.Millisecond)
}

func TestCollectEvidenceNoDuplicateURLs(t *testing.T) {
	fetch := newStubFetcher()
	// Root links to itself and to /a twice with tracking noise
	fetch.add("https://acme.example", page("Acme Robotics", "Acme Robotics root. "+filler, "/", "/a", "/a?utm_source=x"))
	fetch.add("https://acme.example/a", page("Acme Robotics A", "Acme Robotics alpha. "+filler))

	service := newTestCrawler(testCrawlConfig(), fetch, nil)
	evidence, _ := service.CollectEvidence(context.Background(), CollectRequest{
		Subject: models.Subject{Name: "Acme Robotics", URL: "https://acme.example"},
	})

	seen := make(map[string]bool)
	for _, p := range evidence.Pages {
		key := common.DedupURLKey(p.URL)
		assert.False(t, seen[key], "duplicate URL in evidence: %s", p.URL)
		seen[key] = true
	}
	assert.Len(t, evidence.Pages, 2)
}
