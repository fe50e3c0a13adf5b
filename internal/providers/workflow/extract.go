package workflow

import "strings"

// Extractor pulls reply text out of one known response shape, returning false
// when the shape does not match. Extractors are tried in order, so new
// backend shapes can be added without touching the dispatch logic.
type Extractor func(v any) (string, bool)

// DefaultExtractors covers the reply shapes the workflow engine is known to
// produce, in precedence order: a flat text/output/message field, the first
// element of an array (nested content.parts, flat text, flat output), and a
// top-level nested content.parts.
func DefaultExtractors() []Extractor {
	return []Extractor{
		flatField("text"),
		flatField("output"),
		flatField("message"),
		firstArrayElement(
			contentParts,
			flatField("text"),
			flatField("output"),
		),
		contentParts,
	}
}

// ExtractReply tries each extractor in order against the parsed response.
func ExtractReply(v any, extractors []Extractor) (string, bool) {
	for _, extract := range extractors {
		if text, ok := extract(v); ok {
			return text, true
		}
	}
	return "", false
}

func flatField(key string) Extractor {
	return func(v any) (string, bool) {
		m, ok := v.(map[string]any)
		if !ok {
			return "", false
		}
		return nonEmptyString(m[key])
	}
}

func firstArrayElement(inner ...Extractor) Extractor {
	return func(v any) (string, bool) {
		arr, ok := v.([]any)
		if !ok || len(arr) == 0 {
			return "", false
		}
		return ExtractReply(arr[0], inner)
	}
}

// contentParts matches {content: {parts: [{text: ...}]}}.
func contentParts(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	content, ok := m["content"].(map[string]any)
	if !ok {
		return "", false
	}
	parts, ok := content["parts"].([]any)
	if !ok || len(parts) == 0 {
		return "", false
	}
	part, ok := parts[0].(map[string]any)
	if !ok {
		return "", false
	}
	return nonEmptyString(part["text"])
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
