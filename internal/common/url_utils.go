package common

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters stripped during URL sanitization
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"ref":    true,
	"source": true,
	"trk":    true,
}

// nonWebSchemes are link schemes that can never be crawled
var nonWebSchemes = map[string]bool{
	"mailto":     true,
	"javascript": true,
	"tel":        true,
	"sms":        true,
	"ftp":        true,
	"file":       true,
	"data":       true,
	"about":      true,
	"blob":       true,
	"ws":         true,
	"wss":        true,
}

// secondLevelLabels are labels that form a compound public suffix when
// followed by a two-letter country code (e.g. com.tw, co.uk)
var secondLevelLabels = map[string]bool{
	"com": true,
	"org": true,
	"net": true,
	"gov": true,
	"edu": true,
	"ac":  true,
	"co":  true,
}

// SanitizeURL normalizes a URL for crawling: ensures an http(s) scheme,
// lowercases the host, drops the fragment, and strips tracking parameters.
// Returns empty string for URLs that cannot be crawled.
func SanitizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		// Scheme-only forms like mailto: or javascript: never get a
		// host prefix grafted onto them.
		if idx := strings.Index(raw, ":"); idx > 0 && nonWebSchemes[strings.ToLower(raw[:idx])] {
			return ""
		}
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	if parsed.Host == "" {
		return ""
	}

	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	query := parsed.Query()
	for key := range query {
		if trackingParams[strings.ToLower(key)] || strings.HasPrefix(strings.ToLower(key), "utm_") {
			query.Del(key)
		}
	}
	parsed.RawQuery = query.Encode()

	return parsed.String()
}

// ParentURLs returns the ancestor URLs of a page, nearest first, ending at
// the site root. The input URL itself is not included.
func ParentURLs(raw string) []string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return nil
	}

	root := parsed.Scheme + "://" + parsed.Host
	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return nil
	}

	segments := strings.Split(path, "/")
	parents := make([]string, 0, len(segments))
	for i := len(segments) - 1; i >= 1; i-- {
		parents = append(parents, root+"/"+strings.Join(segments[:i], "/"))
	}
	parents = append(parents, root)
	return parents
}

// RegistrableDomain returns the eTLD+1 for a host using a simplified public
// suffix heuristic: compound suffixes like com.tw and co.uk keep three labels,
// everything else keeps two. Full URLs are accepted and reduced to their host.
func RegistrableDomain(host string) string {
	if strings.Contains(host, "://") {
		host = HostOf(host)
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if idx := strings.Index(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	if idx := strings.IndexAny(host, "/?#"); idx >= 0 {
		host = host[:idx]
	}
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	tld := parts[len(parts)-1]
	sld := parts[len(parts)-2]
	if len(tld) == 2 && secondLevelLabels[sld] {
		return strings.Join(parts[len(parts)-3:], ".")
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

// SameRegistrableDomain reports whether two URLs share the same eTLD+1
func SameRegistrableDomain(a, b string) bool {
	pa, errA := url.Parse(a)
	pb, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	da := RegistrableDomain(pa.Host)
	return da != "" && da == RegistrableDomain(pb.Host)
}

// DedupURLKey produces the identity key used for URL-level deduplication:
// lowercase scheme://host/path with the query and fragment dropped and any
// trailing slash removed.
func DedupURLKey(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	key := strings.ToLower(parsed.Scheme + "://" + parsed.Host + parsed.Path)
	return strings.TrimSuffix(key, "/")
}

// HostOf returns the lowercase host of a URL, or empty string if unparsable
func HostOf(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Host)
}

// ResolveLink resolves href against a base page URL and sanitizes the result
func ResolveLink(baseURL, href string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	rel, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return SanitizeURL(base.ResolveReference(rel).String())
}
