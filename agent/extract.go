package agent

import (
	"fmt"
	"strings"
)

// ExtractJSONObject pulls a JSON object out of a free-form model
// response. Models occasionally wrap the object in markdown fences or
// surrounding prose, so this takes the first '{' through the last '}'
// rather than requiring the whole response to parse.
func ExtractJSONObject(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object found in response: %s", truncate(text, 200))
	}
	return []byte(text[start : end+1]), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
