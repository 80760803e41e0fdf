package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// DecodeJSON parses a model completion into T. Models wrap JSON in code
// fences, truncate it, or leave trailing commas; stripping plus jsonrepair
// recovers the common failure shapes before giving up.
func DecodeJSON[T any](raw string) (T, error) {
	var out T
	text := stripFences(raw)
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}
	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return out, fmt.Errorf("decode llm json: repair failed: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return out, fmt.Errorf("decode llm json: %w", err)
	}
	return out, nil
}

// stripFences removes a leading ```json (or bare ```) fence and its closing
// fence, plus any prose before the first brace or bracket.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	s = strings.TrimSpace(s)
	// Drop leading prose such as "Here is the plan:".
	obj := strings.IndexAny(s, "{[")
	if obj > 0 {
		s = s[obj:]
	}
	return s
}
