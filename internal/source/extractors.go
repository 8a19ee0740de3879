package source

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Extractor pulls a presence label out of an HTTP response.
//
// Extractors are pure functions. An empty result means no label was found.
type Extractor func(body []byte, statusCode int) string

// JSONField returns an [Extractor] that reads a string field using dot
// notation, e.g. "presence.availability" for
// {"presence": {"availability": "Busy"}}.
//
// Numbers and booleans are rendered with their JSON spelling. Missing
// fields, objects, arrays and invalid JSON yield "".
func JSONField(path string) Extractor {
	parts := strings.Split(path, ".")

	return func(body []byte, statusCode int) string {
		var data interface{}
		if err := json.Unmarshal(body, &data); err != nil {
			return ""
		}
		return extractJSONPath(data, parts)
	}
}

// extractJSONPath walks a JSON structure using dot notation parts.
func extractJSONPath(data interface{}, parts []string) string {
	current := data

	for _, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current, ok = obj[part]
		if !ok {
			return ""
		}
	}

	switch v := current.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// Regex returns an [Extractor] that returns the first capture group of
// pattern matched against the body.
//
// Returns an error if the pattern is invalid or has no capture group.
func Regex(pattern string) (Extractor, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("pattern %q must contain a capture group", pattern)
	}

	return func(body []byte, statusCode int) string {
		matches := re.FindSubmatch(body)
		if len(matches) < 2 {
			return ""
		}
		return string(matches[1])
	}, nil
}

// Text returns an [Extractor] that uses the whole body, trimmed of
// surrounding whitespace, as the label.
func Text() Extractor {
	return func(body []byte, statusCode int) string {
		return strings.TrimSpace(string(body))
	}
}

// FirstMatch returns an [Extractor] that tries extractors in order and
// returns the first non-empty label.
func FirstMatch(extractors ...Extractor) Extractor {
	return func(body []byte, statusCode int) string {
		for _, extractor := range extractors {
			if label := extractor(body, statusCode); label != "" {
				return label
			}
		}
		return ""
	}
}

// Default tries a JSON "status" field, then "availability", then the raw
// body text.
var Default = FirstMatch(
	JSONField("status"),
	JSONField("availability"),
	Text(),
)

// ParseExtractor builds an extractor from its shorthand form:
//
//   - "" or "default" → [Default]
//   - "text" → [Text]
//   - "json:path" → [JSONField]
//   - "regex:pattern" → [Regex]
func ParseExtractor(s string) (Extractor, error) {
	s = strings.TrimSpace(s)

	if idx := strings.Index(s, ":"); idx != -1 {
		kind, value := s[:idx], s[idx+1:]
		switch kind {
		case "json":
			if value == "" {
				return nil, fmt.Errorf("extractor %q requires a path", s)
			}
			return JSONField(value), nil
		case "regex":
			return Regex(value)
		default:
			return nil, fmt.Errorf("unknown extractor type %q", kind)
		}
	}

	switch s {
	case "", "default":
		return Default, nil
	case "text":
		return Text(), nil
	default:
		return nil, fmt.Errorf("unknown extractor %q (expected 'default', 'text', 'json:path', or 'regex:pattern')", s)
	}
}
