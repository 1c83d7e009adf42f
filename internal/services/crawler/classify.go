package crawler

import (
	"regexp"
	"strings"

	"github.com/vestigolabs/vestigo/internal/common"
	"github.com/vestigolabs/vestigo/internal/models"
)

// registry fact label patterns, matched against "Label: value" text runs
var registryFactPatterns = map[string]*regexp.Regexp{
	"identifier":     regexp.MustCompile(`(?i)(?:registration\s+(?:no|number)|company\s+(?:id|number)|business\s+(?:id|number))\s*[:#]?\s*([A-Z0-9-]{4,20})`),
	"representative": regexp.MustCompile(`(?i)(?:representative|director|principal|ceo)\s*[:]\s*([^\n,;|:]{2,60})`),
	"address":        regexp.MustCompile(`(?i)(?:registered\s+address|address)\s*[:]\s*([^\n;|]{5,120})`),
	"capital":        regexp.MustCompile(`(?i)(?:paid-?in\s+capital|capital)\s*[:]\s*([^\n;|]{1,40})`),
	"founded":        regexp.MustCompile(`(?i)(?:founded|established|incorporated|registered)\s*(?:on|date)?\s*[:]\s*([0-9]{4}[-/.][0-9]{1,2}[-/.][0-9]{1,2}|[0-9]{4})`),
}

// Classifier assigns pages to budget classes relative to a primary domain
type Classifier struct {
	primaryDomain   string
	registryDomains map[string]bool
	trustedDomains  map[string]bool
}

// NewClassifier builds a classifier for one crawl run. primaryURL may be
// empty when the subject has no official site.
func NewClassifier(primaryURL string, config *common.CrawlConfig) *Classifier {
	c := &Classifier{
		registryDomains: make(map[string]bool),
		trustedDomains:  make(map[string]bool),
	}
	if primaryURL != "" {
		c.primaryDomain = common.RegistrableDomain(common.HostOf(primaryURL))
	}
	for _, domain := range config.RegistryDomains {
		c.registryDomains[strings.ToLower(domain)] = true
	}
	for _, domain := range config.TrustedDomains {
		c.trustedDomains[strings.ToLower(domain)] = true
	}
	return c
}

// Classify returns the budget class of a URL
func (c *Classifier) Classify(pageURL string) models.PageClass {
	domain := common.RegistrableDomain(common.HostOf(pageURL))
	if c.registryDomains[domain] {
		return models.PageClassRegistry
	}
	if c.primaryDomain != "" && domain == c.primaryDomain {
		return models.PageClassInternal
	}
	return models.PageClassExternal
}

// IsRegistryDomain reports whether a URL points at a curated registry site
func (c *Classifier) IsRegistryDomain(pageURL string) bool {
	return c.registryDomains[common.RegistrableDomain(common.HostOf(pageURL))]
}

// IsTrustedDomain reports whether a URL points at a curated trusted external site
func (c *Classifier) IsTrustedDomain(pageURL string) bool {
	return c.trustedDomains[common.RegistrableDomain(common.HostOf(pageURL))]
}

// RegistryRelevant checks that a registry-like page literally mentions the
// subject: either its name in the extracted text, or its stable identifier
// in the text or URL.
func RegistryRelevant(pageURL string, content *PageContent, subject *models.Subject) bool {
	name := strings.ToLower(strings.TrimSpace(subject.Name))
	if name != "" {
		haystack := strings.ToLower(content.Title + " " + content.Text)
		if strings.Contains(haystack, name) {
			return true
		}
	}
	if subject.Identifier != "" {
		if strings.Contains(content.Text, subject.Identifier) ||
			strings.Contains(pageURL, subject.Identifier) {
			return true
		}
	}
	return false
}

// ExtractRegistryFacts pulls labeled structured facts out of registry page text
func ExtractRegistryFacts(text string) map[string]string {
	facts := make(map[string]string)
	for name, pattern := range registryFactPatterns {
		if match := pattern.FindStringSubmatch(text); len(match) > 1 {
			facts[name] = strings.TrimSpace(match[1])
		}
	}
	if len(facts) == 0 {
		return nil
	}
	return facts
}
