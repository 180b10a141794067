package llm

import (
	"regexp"
	"strings"
)

var (
	// openingFence matches a leading fence with an optional language tag
	// (```json, ```sql) and the whitespace after it.
	openingFence = regexp.MustCompile("(?i)^```(?:json|sql)?\\s*")
	// closingFence matches a trailing fence and the whitespace before it.
	closingFence = regexp.MustCompile("\\s*```$")
)

// StripCodeFences removes a markdown code fence wrapped around a model
// response and trims surrounding whitespace. Only a fence at the very start
// or end is removed; fence text inside the response is left alone.
func StripCodeFences(response string) string {
	text := strings.TrimSpace(response)
	text = openingFence.ReplaceAllString(text, "")
	text = closingFence.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
