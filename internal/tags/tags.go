// Package tags normalizes free-form tag input.
//
// Tag values reach the board in three legacy shapes: a JSON array, a string
// holding a JSON array, or a comma-separated string. Normalize accepts the raw
// JSON of a request field and recognizes, in order:
//
//  1. absent (no bytes)            -> empty
//  2. null                         -> empty
//  3. array                        -> each element stringified, trimmed, blanks dropped
//  4. string starting with "["     -> parsed as a JSON array (case 3); on failure case 5
//  5. any other string             -> split on commas, trimmed, blanks dropped
//
// The persisted form is always a JSON array string (Encode). Decode reverses it
// and treats anything unparseable as an empty list.
package tags

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Normalize converts raw JSON of unknown shape into a clean tag list.
// The result is never nil.
func Normalize(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []string{}
	}

	switch raw[0] {
	case '[':
		if list, ok := parseArray(raw); ok {
			return list
		}
		return []string{}
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return []string{}
		}
		return FromString(s)
	case '{':
		return []string{}
	default:
		// Bare numbers and booleans are treated as their literal text.
		return FromString(string(raw))
	}
}

// FromString normalizes a plain string: a JSON array when it looks like one
// and parses, otherwise a comma-separated list.
func FromString(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}
	if strings.HasPrefix(s, "[") {
		if list, ok := parseArray([]byte(s)); ok {
			return list
		}
	}
	return FromValues(strings.Split(s, ","))
}

// FromValues trims each value and drops blanks.
func FromValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Encode returns the persisted JSON array form of a tag list.
func Encode(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// Decode reads a persisted tag column. Unparseable or non-array values yield
// an empty list, never an error.
func Decode(stored string) []string {
	list, ok := parseArray([]byte(strings.TrimSpace(stored)))
	if !ok {
		return []string{}
	}
	return list
}

// Distinct returns the unique values of list in first-seen order.
func Distinct(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, t := range list {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// parseArray decodes a JSON array and stringifies its elements.
func parseArray(data []byte) ([]string, bool) {
	if len(data) == 0 || data[0] != '[' {
		return nil, false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, false
	}
	values := make([]string, 0, len(elems))
	for _, e := range elems {
		if s, ok := stringify(e); ok {
			values = append(values, s)
		}
	}
	return FromValues(values), true
}

// stringify renders one array element. Strings are unquoted, null is skipped,
// and other values keep their compact JSON text.
func stringify(elem json.RawMessage) (string, bool) {
	elem = bytes.TrimSpace(elem)
	if len(elem) == 0 || bytes.Equal(elem, []byte("null")) {
		return "", false
	}
	if elem[0] == '"' {
		var s string
		if err := json.Unmarshal(elem, &s); err != nil {
			return "", false
		}
		return s, true
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, elem); err != nil {
		return "", false
	}
	return buf.String(), true
}
