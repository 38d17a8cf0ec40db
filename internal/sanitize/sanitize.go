// Package sanitize strips markup and script payloads from free-form text
// fields before they are stored or echoed back.
package sanitize

import (
	"html"
	"regexp"
	"strings"
)

var (
	// scriptPattern also matches malformed closers like "</script >".
	scriptPattern = regexp.MustCompile(`(?is)<script[^>]*>.*?</script\s*>`)
	tagPattern    = regexp.MustCompile(`<[^>]+>`)
	// handlerPattern catches javascript: URLs and inline event handlers.
	handlerPattern = regexp.MustCompile(`(?i)javascript:|on\w+\s*=`)
)

// Text removes script blocks, javascript: URLs, event handler attributes and
// remaining HTML tags, escapes what is left, and trims whitespace. Escaping
// runs last so the removal patterns see the raw markup.
func Text(s string) string {
	s = scriptPattern.ReplaceAllString(s, "")
	s = handlerPattern.ReplaceAllString(s, "")
	s = tagPattern.ReplaceAllString(s, "")
	s = html.EscapeString(s)
	return strings.TrimSpace(s)
}

// TextN sanitizes like Text and then truncates to at most maxLen runes.
// A non-positive maxLen means unlimited.
func TextN(s string, maxLen int) string {
	s = Text(s)
	if maxLen > 0 {
		if runes := []rune(s); len(runes) > maxLen {
			s = string(runes[:maxLen])
		}
	}
	return s
}
