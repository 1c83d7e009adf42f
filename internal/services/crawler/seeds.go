package crawler

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/vestigolabs/vestigo/internal/common"
	"github.com/vestigolabs/vestigo/internal/models"
)

var sitemapLocPattern = regexp.MustCompile(`<loc>\s*([^<\s]+)\s*</loc>`)

// maxSitemapDocs bounds nested sitemap fetches per run
const maxSitemapDocs = 6

// seedFrontier loads the initial frontier: the sanitized primary URL, its
// structural parents, curated likely-content paths on the same domain, the
// domain's sitemap URLs, and any extra seed URLs with their parents.
// Returns the sanitized primary URL ("" when the subject has none).
func (s *Service) seedFrontier(ctx context.Context, frontier *Frontier, subject *models.Subject, budgets Budgets) string {
	primary := common.SanitizeURL(subject.URL)
	if primary != "" {
		frontier.Push(primary, 0, models.DiscoverySeed)

		for _, parent := range common.ParentURLs(primary) {
			frontier.Push(parent, 0, models.DiscoveryParent)
		}

		root := siteRoot(primary)
		if root != "" {
			for _, path := range s.config.ContentPaths {
				frontier.Push(root+path, 0, models.DiscoverySeed)
			}
			for _, sitemapURL := range s.discoverSitemapURLs(ctx, root, budgets.MaxSitemapURLs) {
				frontier.Push(sitemapURL, 0, models.DiscoverySitemap)
			}
		}
	}

	for _, extra := range subject.ExtraURLs {
		sanitized := common.SanitizeURL(extra)
		if sanitized == "" {
			continue
		}
		frontier.Push(sanitized, 0, models.DiscoveryExtraURL)
		for _, parent := range common.ParentURLs(sanitized) {
			frontier.Push(parent, 0, models.DiscoveryParentRoute)
		}
	}

	return primary
}

// discoverSitemapURLs fetches /sitemap.xml and collects page URLs, following
// nested sitemap indexes to a bounded number of sitemap documents.
func (s *Service) discoverSitemapURLs(ctx context.Context, root string, limit int) []string {
	if limit <= 0 {
		return nil
	}

	pending := []string{root + "/sitemap.xml"}
	fetched := 0
	var pages []string

	for len(pending) > 0 && fetched < maxSitemapDocs && len(pages) < limit {
		sitemapURL := pending[0]
		pending = pending[1:]
		fetched++

		outcome := s.fetcher.Fetch(ctx, models.FetchRequest{URL: sitemapURL, NoCache: true})
		if !outcome.OK {
			continue
		}

		for _, match := range sitemapLocPattern.FindAllStringSubmatch(outcome.Body, -1) {
			loc := strings.TrimSpace(match[1])
			if loc == "" {
				continue
			}
			if strings.HasSuffix(strings.ToLower(loc), ".xml") {
				pending = append(pending, loc)
				continue
			}
			pages = append(pages, loc)
			if len(pages) >= limit {
				break
			}
		}
	}

	return pages
}

// siteRoot returns scheme://host for a URL
func siteRoot(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}
