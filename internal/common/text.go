package common

import "unicode/utf8"

// TruncateRunesafe cuts text to at most max bytes without splitting a
// multi-byte UTF-8 sequence.
func TruncateRunesafe(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
