package services

import (
	"encoding/json"
	"strings"

	"github.com/verityops/compliance-backend/internal/platform/apperr"
)

// stripCodeFences removes a surrounding markdown code block from a model
// response. Models wrap JSON in ```json fences often enough that this runs
// on every structured response.
func stripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	lines := strings.Split(content, "\n")
	if len(lines) > 2 {
		content = strings.Join(lines[1:len(lines)-1], "\n")
	}
	content = strings.ReplaceAll(content, "```json", "")
	content = strings.ReplaceAll(content, "```", "")
	return strings.TrimSpace(content)
}

// decodeObjectArray parses a model response expected to be a JSON array of
// objects. Anything else, including a bare object or invalid JSON, is a
// MalformedResponseError so callers can retry the completion.
func decodeObjectArray(content string) ([]map[string]any, error) {
	cleaned := stripCodeFences(content)

	var raw any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, &apperr.MalformedResponseError{Msg: "response is not valid JSON", Err: err}
	}

	arr, ok := raw.([]any)
	if !ok {
		return nil, &apperr.MalformedResponseError{Msg: "response is not a JSON array"}
	}

	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out, nil
}

func stringField(obj map[string]any, key, fallback string) string {
	if v, ok := obj[key].(string); ok {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return fallback
}

func boolField(obj map[string]any, key string) bool {
	v, _ := obj[key].(bool)
	return v
}
