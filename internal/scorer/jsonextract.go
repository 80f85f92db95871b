package scorer

import "regexp"

// LLMs wrap JSON in markdown fences and leave trailing commas often enough
// that parsing the raw response directly loses valid verdicts.
var (
	jsonBlockPattern     = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	jsonObjectPattern    = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// extractJSON pulls a JSON object out of an LLM response, preferring a
// fenced code block over a bare object. Returns "" when none is found.
func extractJSON(content string) string {
	raw := ""
	if matches := jsonBlockPattern.FindStringSubmatch(content); len(matches) > 1 {
		raw = matches[1]
	} else {
		raw = jsonObjectPattern.FindString(content)
	}
	if raw == "" {
		return ""
	}
	return trailingCommaPattern.ReplaceAllString(raw, "$1")
}
