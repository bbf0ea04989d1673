// Package sanitize cleans free text stored with jobs before it is echoed
// to MCP clients, so a job description cannot smuggle markup or prompt
// structure into a client's context.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxDescriptionLength caps a sanitized description in bytes.
const MaxDescriptionLength = 500

var (
	reTag       = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)
	reHeading   = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reRule      = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	reFence     = regexp.MustCompile("`{3,}")
	reBlankRuns = regexp.MustCompile(`\n{3,}`)
)

// Description returns s without control characters, markup tags, markdown
// headings, rules or code fences, truncated to MaxDescriptionLength.
func Description(s string) string {
	if s == "" {
		return ""
	}
	s = stripControl(s, true)
	s = reTag.ReplaceAllString(s, "")
	s = reHeading.ReplaceAllString(s, "- ")
	s = reRule.ReplaceAllString(s, "")
	s = reFence.ReplaceAllString(s, "`")
	s = reBlankRuns.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)
	return truncate(s, MaxDescriptionLength)
}

// InlineCode returns s fit for a single markdown code span: one line, no
// backticks.
func InlineCode(s string) string {
	s = stripControl(s, false)
	return strings.ReplaceAll(s, "`", "'")
}

// stripControl drops ASCII control characters. Newlines and tabs survive
// when keepLines is set; otherwise they become spaces.
func stripControl(s string, keepLines bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			if keepLines {
				b.WriteRune(r)
			} else {
				b.WriteByte(' ')
			}
		case r < 0x20 || r == 0x7f:
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// truncate cuts s to at most n bytes on a rune boundary and marks the cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
