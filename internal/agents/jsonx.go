package agents

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Model output rarely arrives as clean JSON. DecodeInto works through a
// sequence of extraction strategies before giving up: the whole text,
// fenced code blocks, then brace-delimited spans, each tried raw and
// again after sanitizing common model artifacts.

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// DecodeInto extracts a JSON object from content and unmarshals it.
func DecodeInto(content string, out any) error {
	for _, candidate := range candidates(content) {
		if err := json.Unmarshal([]byte(candidate), out); err == nil {
			return nil
		}
		if err := json.Unmarshal([]byte(sanitize(candidate)), out); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no JSON object found in %d bytes of output", len(content))
}

// ExtractObject is DecodeInto for callers that want a generic map.
func ExtractObject(content string) (map[string]any, error) {
	var obj map[string]any
	if err := DecodeInto(content, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// candidates returns possible JSON payloads in decreasing likelihood.
func candidates(content string) []string {
	var out []string

	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") {
		out = append(out, trimmed)
	}

	for _, m := range fencedBlock.FindAllStringSubmatch(content, -1) {
		out = append(out, m[1])
	}

	if span := braceSpan(content); span != "" {
		out = append(out, span)
	}

	return out
}

// braceSpan returns the first balanced top-level object in content,
// ignoring braces inside string literals.
func braceSpan(content string) string {
	start := strings.Index(content, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = inString
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return content[start : i+1]
				}
			}
		}
	}
	return ""
}

// sanitize fixes the model artifacts that most often break parsing:
// trailing commas and typographic quotes.
func sanitize(s string) string {
	s = trailingComma.ReplaceAllString(s, "$1")
	replacer := strings.NewReplacer(
		"“", `"`,
		"”", `"`,
		"‘", "'",
		"’", "'",
	)
	return replacer.Replace(s)
}
