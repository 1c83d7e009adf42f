package ranking

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/vestigolabs/vestigo/internal/common"
	"github.com/vestigolabs/vestigo/internal/models"
)

func testRankingConfig() *common.RankingConfig {
	return &common.RankingConfig{
		FreshnessWeight:  0.35,
		AuthorityWeight:  0.25,
		SignalWeight:     0.40,
		DiversityStep:    1.0,
		DiversityCap:     3.0,
		MaxEventsDomain:  12,
		MaxInsightDomain: 5,
		LookbackDays:     45,
		LookaheadDays:    90,
		OutputCap:        40,
		PermitUnknownAge: true,
	}
}

func newTestService(cfg *common.RankingConfig) *Service {
	return NewService(cfg, arbor.NewLogger())
}

var rankNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ts(t time.Time) *time.Time { return &t }

func TestRank_EmptyBatchIsAnError(t *testing.T) {
	svc := newTestService(testRankingConfig())
	_, err := svc.Rank(context.Background(), models.RankRequest{Now: rankNow})
	assert.Error(t, err)
}

func TestRank_EventEligibilityWindows(t *testing.T) {
	svc := newTestService(testRankingConfig())

	items := []models.ContentItem{
		{Title: "Upcoming summit", URL: "https://a.example.com/summit", Kind: models.KindEvent, PublishedAt: ts(rankNow.AddDate(0, 0, 14))},
		{Title: "Past meetup", URL: "https://a.example.com/past", Kind: models.KindEvent, PublishedAt: ts(rankNow.AddDate(0, 0, -3))},
		{Title: "Distant expo", URL: "https://a.example.com/expo", Kind: models.KindEvent, PublishedAt: ts(rankNow.AddDate(0, 0, 200))},
		{Title: "Undated event", URL: "https://a.example.com/undated", Kind: models.KindEvent},
	}

	ranked, err := svc.Rank(context.Background(), models.RankRequest{Items: items, Now: rankNow})
	require.NoError(t, err)

	require.Len(t, ranked, 1)
	assert.Equal(t, "Upcoming summit", ranked[0].Title)
}

func TestRank_UnknownAgeNeutralFreshness(t *testing.T) {
	cfg := testRankingConfig()
	svc := newTestService(cfg)

	items := []models.ContentItem{
		{Title: "Undated post", URL: "https://a.example.com/post", Kind: models.KindPost},
	}

	ranked, err := svc.Rank(context.Background(), models.RankRequest{Items: items, Now: rankNow})
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.InDelta(t, 5.0, ranked[0].Freshness, 0.001)

	cfg.PermitUnknownAge = false
	ranked, err = svc.Rank(context.Background(), models.RankRequest{
		Items: append(items, models.ContentItem{
			Title: "Dated post", URL: "https://a.example.com/dated", Kind: models.KindPost,
			PublishedAt: ts(rankNow.AddDate(0, 0, -1)),
		}),
		Now: rankNow,
	})
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "Dated post", ranked[0].Title)
}

func TestRank_StaleItemsDropped(t *testing.T) {
	svc := newTestService(testRankingConfig())

	ranked, err := svc.Rank(context.Background(), models.RankRequest{
		Items: []models.ContentItem{
			{Title: "Fresh", URL: "https://a.example.com/fresh", Kind: models.KindWeb, PublishedAt: ts(rankNow.AddDate(0, 0, -10))},
			{Title: "Stale", URL: "https://a.example.com/stale", Kind: models.KindWeb, PublishedAt: ts(rankNow.AddDate(0, 0, -120))},
		},
		Now: rankNow,
	})
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "Fresh", ranked[0].Title)
}

func TestRank_PerKindWindows(t *testing.T) {
	cfg := testRankingConfig()
	cfg.Windows = map[string]common.RankingWindowConfig{
		"paper": {LookbackDays: 14},
		"post":  {LookbackDays: 7},
		"event": {LookaheadDays: 60},
	}
	svc := newTestService(cfg)

	ranked, err := svc.Rank(context.Background(), models.RankRequest{
		Items: []models.ContentItem{
			{Title: "Recent paper", URL: "https://papers.example.com/a", Kind: models.KindPaper, PublishedAt: ts(rankNow.AddDate(0, 0, -10))},
			{Title: "Old paper", URL: "https://papers.example.com/b", Kind: models.KindPaper, PublishedAt: ts(rankNow.AddDate(0, 0, -20))},
			{Title: "Recent post", URL: "https://blog.example.com/a", Kind: models.KindPost, PublishedAt: ts(rankNow.AddDate(0, 0, -5))},
			{Title: "Old post", URL: "https://blog.example.com/b", Kind: models.KindPost, PublishedAt: ts(rankNow.AddDate(0, 0, -10))},
			{Title: "Near event", URL: "https://events.example.com/a", Kind: models.KindEvent, PublishedAt: ts(rankNow.AddDate(0, 0, 30))},
			{Title: "Far event", URL: "https://events.example.com/b", Kind: models.KindEvent, PublishedAt: ts(rankNow.AddDate(0, 0, 70))},
		},
		Now: rankNow,
	})
	require.NoError(t, err)

	var titles []string
	for _, item := range ranked {
		titles = append(titles, item.Title)
	}
	assert.ElementsMatch(t, []string{"Recent paper", "Recent post", "Near event"}, titles)
}

func TestRank_PerKindFreshnessSpan(t *testing.T) {
	svc := newTestService(testRankingConfig())

	// Seven days out: a 14-day paper window halves, a 90-day window barely moves.
	item := models.ContentItem{PublishedAt: ts(rankNow.AddDate(0, 0, -7))}
	narrow := svc.freshness(item, rankNow, models.RankingWindow{LookbackDays: 14})
	wide := svc.freshness(item, rankNow, models.RankingWindow{LookbackDays: 45, LookaheadDays: 90})

	assert.InDelta(t, 5.0, narrow, 0.01)
	assert.InDelta(t, 10*(1-7.0/90.0), wide, 0.01)
}

func TestRank_RequestWindowsOverrideConfig(t *testing.T) {
	cfg := testRankingConfig()
	cfg.Windows = map[string]common.RankingWindowConfig{
		"post": {LookbackDays: 30},
	}
	svc := newTestService(cfg)

	items := []models.ContentItem{
		{Title: "Two weeks old", URL: "https://blog.example.com/a", Kind: models.KindPost, PublishedAt: ts(rankNow.AddDate(0, 0, -14))},
	}

	ranked, err := svc.Rank(context.Background(), models.RankRequest{Items: items, Now: rankNow})
	require.NoError(t, err)
	assert.Len(t, ranked, 1)

	ranked, err = svc.Rank(context.Background(), models.RankRequest{
		Items:   items,
		Now:     rankNow,
		Windows: map[models.ItemKind]models.RankingWindow{models.KindPost: {LookbackDays: 7}},
	})
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestRank_Deduplication(t *testing.T) {
	svc := newTestService(testRankingConfig())

	published := ts(rankNow.AddDate(0, 0, -2))
	ranked, err := svc.Rank(context.Background(), models.RankRequest{
		Items: []models.ContentItem{
			{Title: "Launch Report", URL: "https://a.example.com/report?utm=1", Kind: models.KindWeb, PublishedAt: published},
			{Title: "launch report", URL: "https://a.example.com/report", Kind: models.KindWeb, PublishedAt: published},
			{Title: "Different", URL: "https://a.example.com/report", Kind: models.KindWeb, PublishedAt: published},
		},
		Now: rankNow,
	})
	require.NoError(t, err)
	assert.Len(t, ranked, 2)
}

func TestRank_FreshnessDecay(t *testing.T) {
	svc := newTestService(testRankingConfig())

	// maxSpan is 90 days; 45 days out decays to 5.0, 9 days to 9.0.
	win := models.RankingWindow{LookbackDays: 45, LookaheadDays: 90}
	near := svc.freshness(models.ContentItem{PublishedAt: ts(rankNow.AddDate(0, 0, -9))}, rankNow, win)
	mid := svc.freshness(models.ContentItem{PublishedAt: ts(rankNow.AddDate(0, 0, -45))}, rankNow, win)

	assert.InDelta(t, 9.0, near, 0.01)
	assert.InDelta(t, 5.0, mid, 0.01)
}

func TestAuthority_LookupAndClamp(t *testing.T) {
	table := map[string]float64{
		"TechCrunch":  14.0,
		"example.com": 7.5,
	}

	assert.InDelta(t, 10.0, authority(models.ContentItem{SourceName: "TechCrunch", URL: "https://techcrunch.example.org/x"}, table), 0.001)
	assert.InDelta(t, 7.5, authority(models.ContentItem{URL: "https://news.example.com/x"}, table), 0.001)
	assert.InDelta(t, 5.0, authority(models.ContentItem{URL: "https://unknown.example.org/x"}, table), 0.001)
}

func TestSignal_BasesAndKeywordBonuses(t *testing.T) {
	svc := newTestService(testRankingConfig())
	weights := map[string]float64{
		"funding": 1.2,
		"series":  1.1,
	}

	event := svc.signal(models.ContentItem{Title: "Plain meetup", Kind: models.KindEvent}, weights)
	assert.InDelta(t, 4.0, event, 0.001)

	post := svc.signal(models.ContentItem{Title: "Funding round announced", Kind: models.KindPost}, weights)
	assert.InDelta(t, 3.5+2.0, post, 0.001)

	both := svc.signal(models.ContentItem{Title: "Series B funding", Kind: models.KindPost, Summary: "round"}, weights)
	assert.InDelta(t, 3.5+2.0+1.0, both, 0.001)

	capped := svc.signal(models.ContentItem{Title: "funding series", Kind: models.KindEvent}, map[string]float64{
		"funding": 2.0, "series": 2.0,
	})
	assert.InDelta(t, 10.0, capped, 0.001)
}

func TestSignal_KindKeywordBonuses(t *testing.T) {
	cfg := testRankingConfig()
	cfg.EventKeywords = []string{"summit", "meetup"}
	cfg.InsightKeywords = []string{"benchmark", "paper"}
	svc := newTestService(cfg)

	// Event text matching an event keyword earns the fixed 1.5 bonus.
	event := svc.signal(models.ContentItem{Title: "AI Summit Taipei", Kind: models.KindEvent}, nil)
	assert.InDelta(t, 4.0+1.5, event, 0.001)

	// Non-event text matching an insight keyword earns 1.0.
	paper := svc.signal(models.ContentItem{Title: "New benchmark results", Kind: models.KindPaper}, nil)
	assert.InDelta(t, 3.5+1.0, paper, 0.001)

	// Event keywords never apply to non-events and vice versa.
	plain := svc.signal(models.ContentItem{Title: "Summit coverage", Kind: models.KindPost}, nil)
	assert.InDelta(t, 3.5, plain, 0.001)
}

func TestRank_DomainCapExcludesOverflow(t *testing.T) {
	cfg := testRankingConfig()
	cfg.MaxEventsDomain = 4
	svc := newTestService(cfg)

	var items []models.ContentItem
	for i := 0; i < 6; i++ {
		items = append(items, models.ContentItem{
			Title:       fmt.Sprintf("Domain A event %d", i),
			URL:         fmt.Sprintf("https://a.example.com/event/%d", i),
			Kind:        models.KindEvent,
			PublishedAt: ts(rankNow.AddDate(0, 0, i+1)),
		})
	}
	for i := 0; i < 4; i++ {
		items = append(items, models.ContentItem{
			Title:       fmt.Sprintf("Domain B event %d", i),
			URL:         fmt.Sprintf("https://b.example.org/event/%d", i),
			Kind:        models.KindEvent,
			PublishedAt: ts(rankNow.AddDate(0, 0, i+1)),
		})
	}

	ranked, err := svc.Rank(context.Background(), models.RankRequest{Items: items, Now: rankNow})
	require.NoError(t, err)

	require.Len(t, ranked, 8)
	counts := map[string]int{}
	for _, item := range ranked {
		counts[common.RegistrableDomain(common.HostOf(item.URL))]++
	}
	assert.Equal(t, 4, counts["example.com"])
	assert.Equal(t, 4, counts["example.org"])
}

func TestRank_DiversityPenaltyEscalates(t *testing.T) {
	svc := newTestService(testRankingConfig())

	var items []models.ContentItem
	for i := 0; i < 5; i++ {
		items = append(items, models.ContentItem{
			Title:       fmt.Sprintf("Insight %d", i),
			URL:         fmt.Sprintf("https://a.example.com/insight/%d", i),
			Kind:        models.KindInsight,
			PublishedAt: ts(rankNow.AddDate(0, 0, -1)),
		})
	}

	ranked, err := svc.Rank(context.Background(), models.RankRequest{Items: items, Now: rankNow})
	require.NoError(t, err)
	require.Len(t, ranked, 5)

	penalties := make(map[float64]int)
	for _, item := range ranked {
		penalties[item.DiversityPenalty]++
	}
	assert.Equal(t, 1, penalties[0.0])
	assert.Equal(t, 1, penalties[1.0])
	assert.Equal(t, 1, penalties[2.0])
	// Step 3 and 4 both clamp at the cap.
	assert.Equal(t, 2, penalties[3.0])
}

func TestRank_FinalScoreComposition(t *testing.T) {
	svc := newTestService(testRankingConfig())

	ranked, err := svc.Rank(context.Background(), models.RankRequest{
		Items: []models.ContentItem{
			{Title: "Solo post", URL: "https://a.example.com/solo", Kind: models.KindPost, PublishedAt: ts(rankNow)},
		},
		Now:            rankNow,
		AuthorityTable: map[string]float64{"example.com": 8.0},
	})
	require.NoError(t, err)
	require.Len(t, ranked, 1)

	item := ranked[0]
	expected := item.Freshness*0.35 + item.Authority*0.25 + item.Signal*0.40
	assert.InDelta(t, expected, item.FinalScore, 0.0001)
	assert.InDelta(t, 10.0, item.Freshness, 0.001)
	assert.InDelta(t, 8.0, item.Authority, 0.001)
}

func TestRank_OutputCap(t *testing.T) {
	cfg := testRankingConfig()
	cfg.OutputCap = 3
	cfg.MaxInsightDomain = 10
	svc := newTestService(cfg)

	var items []models.ContentItem
	for i := 0; i < 8; i++ {
		items = append(items, models.ContentItem{
			Title:       fmt.Sprintf("Post %d", i),
			URL:         fmt.Sprintf("https://s%d.example.com/post", i),
			Kind:        models.KindPost,
			PublishedAt: ts(rankNow.AddDate(0, 0, -i)),
		})
	}

	ranked, err := svc.Rank(context.Background(), models.RankRequest{Items: items, Now: rankNow})
	require.NoError(t, err)
	assert.Len(t, ranked, 3)
}

func TestRank_Deterministic(t *testing.T) {
	svc := newTestService(testRankingConfig())

	var items []models.ContentItem
	for i := 0; i < 20; i++ {
		items = append(items, models.ContentItem{
			Title:       fmt.Sprintf("Item %d funding news", i),
			URL:         fmt.Sprintf("https://s%d.example.com/item", i%5),
			Kind:        models.KindPost,
			PublishedAt: ts(rankNow.AddDate(0, 0, -(i % 7))),
		})
	}
	req := models.RankRequest{
		Items:          items,
		Now:            rankNow,
		AuthorityTable: map[string]float64{"s0.example.com": 9.0, "s1.example.com": 2.0},
		KeywordWeights: map[string]float64{"funding": 1.15, "news": 1.05},
	}

	first, err := svc.Rank(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Rank(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRank_TiesKeepBatchOrder(t *testing.T) {
	svc := newTestService(testRankingConfig())

	published := ts(rankNow.AddDate(0, 0, -1))
	ranked, err := svc.Rank(context.Background(), models.RankRequest{
		Items: []models.ContentItem{
			{Title: "First", URL: "https://one.example/a", Kind: models.KindPost, PublishedAt: published},
			{Title: "Second", URL: "https://two.example/a", Kind: models.KindPost, PublishedAt: published},
			{Title: "Third", URL: "https://three.example/a", Kind: models.KindPost, PublishedAt: published},
		},
		Now: rankNow,
	})
	require.NoError(t, err)

	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"First", "Second", "Third"}, []string{ranked[0].Title, ranked[1].Title, ranked[2].Title})
}
