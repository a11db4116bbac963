package sanitize

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxSubjectLength bounds sanitized query and label text in reports.
const MaxSubjectLength = 200

// StrictPolicy removes all HTML tags and attributes.
// Search queries and page titles come from third parties and are rendered
// in dashboards, so they only ever pass through as plain text.
var StrictPolicy = bluemonday.StrictPolicy()

// Text strips all HTML tags and returns plain text.
func Text(input string) string {
	return StrictPolicy.Sanitize(input)
}

// Subject strips HTML, collapses runs of whitespace and truncates the result
// to MaxSubjectLength runes. Used for anomaly subjects and extracted link text.
// The result is plain text, not HTML: entities the policy emits are decoded
// so "rent & aid" stays as typed. Callers rendering it as HTML must escape it.
func Subject(input string) string {
	clean := strings.Join(strings.Fields(html.UnescapeString(Text(input))), " ")
	if utf8.RuneCountInString(clean) <= MaxSubjectLength {
		return clean
	}
	runes := []rune(clean)
	return string(runes[:MaxSubjectLength])
}
