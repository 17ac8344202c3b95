// Package sanitize cleans model- and user-supplied text before it is stored
// or sent to a lead.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	htmlTagRegex  = regexp.MustCompile(`<[^>]*>`)
	spaceRunRegex = regexp.MustCompile(`[ \t\f\v]+`)
	blankRunRegex = regexp.MustCompile(`\n{3,}`)

	entityReplacer = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&quot;", "\"",
		"&#39;", "'",
		"&nbsp;", " ",
	)
)

// StripHTML removes HTML tags, decodes the common entities and strips again
// so encoded tags do not survive.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = entityReplacer.Replace(result)
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Line is for single-line fields such as titles and subjects: tags are
// stripped and every whitespace run, newlines included, becomes one space.
func Line(s string) string {
	return strings.Join(strings.Fields(StripHTML(s)), " ")
}

// Truncate shortens s to at most max runes, marking the cut with an ellipsis.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}

// Text is for multi-line bodies. Line breaks are kept, spaces inside a line
// are collapsed and more than one blank line in a row is squeezed to one.
func Text(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(StripHTML(s), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRunRegex.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(blankRunRegex.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
