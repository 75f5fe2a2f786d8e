package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when no decodable JSON value can be recovered
var ErrNoJSON = errors.New("no JSON value found")

var (
	fencedBlock   = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	bareKey       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
	controlChars  = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
)

// ParseAIJSON decodes a JSON object produced by a language model into target.
// Models wrap JSON in markdown fences, surround it with prose and leave
// trailing commas or unquoted keys; each of those is tried in turn.
func ParseAIJSON(input string, target any) error {
	input = strings.TrimSpace(strings.TrimPrefix(input, "\ufeff"))
	if input == "" {
		return fmt.Errorf("empty model output: %w", ErrNoJSON)
	}

	candidates := []string{input}
	if m := fencedBlock.FindStringSubmatch(input); len(m) > 1 {
		candidates = append(candidates, m[1])
	}
	if obj := firstObject(input); obj != "" {
		candidates = append(candidates, obj)
	}

	for _, c := range candidates {
		if json.Unmarshal([]byte(c), target) == nil {
			return nil
		}
		if json.Unmarshal([]byte(repairJSON(c)), target) == nil {
			return nil
		}
	}

	return fmt.Errorf("%w in model output: %s", ErrNoJSON, truncate(input, 100))
}

// repairJSON fixes the mistakes models make most often
func repairJSON(s string) string {
	s = controlChars.ReplaceAllString(s, "")
	s = trailingComma.ReplaceAllString(s, "$1")
	s = bareKey.ReplaceAllString(s, `$1"$2"$3`)
	return s
}

// firstObject returns the first brace-balanced {...} span, ignoring braces inside strings
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
