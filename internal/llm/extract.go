package llm

import (
	"errors"
	"strings"
)

// ErrNoJSONObject is returned when a reply carries no JSON object.
var ErrNoJSONObject = errors.New("llm: reply contains no JSON object")

// ExtractJSONObject returns the outermost JSON object in text, tolerating
// Markdown code fences and prose around it.
func ExtractJSONObject(text string) (string, error) {
	content := StripCodeFence(text)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSONObject
	}
	return content[start : end+1], nil
}

// StripCodeFence removes a surrounding ``` or ```json fence.
func StripCodeFence(text string) string {
	content := strings.TrimSpace(text)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if nl := strings.IndexByte(content, '\n'); nl >= 0 {
		// drop the language tag line
		if tag := strings.TrimSpace(content[:nl]); !strings.ContainsAny(tag, "{[") {
			content = content[nl+1:]
		}
	}
	content = strings.TrimSpace(content)
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
