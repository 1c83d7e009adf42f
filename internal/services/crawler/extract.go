package crawler

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/vestigolabs/vestigo/internal/common"
)

// Link is one outbound link with its anchor text
type Link struct {
	URL    string
	Anchor string
}

// PageContent is the extracted, cleaned content of one fetched page
type PageContent struct {
	Title    string
	Text     string
	Excerpt  string
	Markdown string
	Links    []Link
	NotFound bool
}

// notFoundSignatures mark soft-404 pages served with a 200 status. Bare
// "404" is too loose: it matches street addresses and version strings.
var notFoundSignatures = []string{
	"404 not found", "error 404", "404 error", "page not found",
	"page doesn't exist", "page does not exist",
	"no longer available", "nothing was found",
}

const excerptLength = 300

// ExtractContent parses HTML and extracts title, visible text, a markdown
// rendition of the main content, and up to maxLinks outbound links resolved
// against the page URL.
func ExtractContent(pageURL, htmlBody string, maxLinks int) (*PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	content := &PageContent{}

	content.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if content.Title == "" {
		content.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	// Strip non-content elements before text extraction
	doc.Find("script, style, noscript, iframe, svg").Remove()

	main := mainContent(doc)
	content.Text = normalizeWhitespace(main.Text())
	content.Excerpt = excerptOf(content.Text)

	if mainHTML, err := main.Html(); err == nil {
		converter := md.NewConverter(pageURL, true, nil)
		if markdown, err := converter.ConvertString(mainHTML); err == nil {
			content.Markdown = strings.TrimSpace(markdown)
		}
	}

	content.NotFound = looksNotFound(content.Title, content.Text)

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(content.Links) >= maxLinks {
			return false
		}
		href, _ := sel.Attr("href")
		resolved := common.ResolveLink(pageURL, href)
		if resolved == "" {
			return true
		}
		content.Links = append(content.Links, Link{
			URL:    resolved,
			Anchor: normalizeWhitespace(sel.Text()),
		})
		return true
	})

	return content, nil
}

// mainContent prefers semantic content containers over the full body
func mainContent(doc *goquery.Document) *goquery.Selection {
	for _, selector := range []string{"main", "article", "[role=main]", "#content", ".content"} {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return sel
		}
	}
	// Drop chrome when falling back to the whole body
	body := doc.Find("body").First()
	body.Find("nav, header, footer, aside").Remove()
	return body
}

func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func excerptOf(text string) string {
	return common.TruncateRunesafe(text, excerptLength)
}

func looksNotFound(title, text string) bool {
	probe := strings.ToLower(title)
	if len(text) < 400 {
		probe += " " + strings.ToLower(text)
	}
	for _, signature := range notFoundSignatures {
		if strings.Contains(probe, signature) {
			return true
		}
	}
	return false
}
