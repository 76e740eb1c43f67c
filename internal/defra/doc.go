package defra

import (
	"time"
)

// Documents come back from the GraphQL endpoint as decoded JSON, so fields
// arrive as string, float64, []any or nil. The helpers below read them
// leniently and fall back to the zero value.

// String returns a string field.
func String(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}

// Int returns a numeric field as an int.
func Int(doc map[string]any, key string) int {
	switch v := doc[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

// Strings returns a list-of-strings field. Non-string entries are skipped.
func Strings(doc map[string]any, key string) []string {
	switch v := doc[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Time parses an RFC 3339 timestamp field.
func Time(doc map[string]any, key string) time.Time {
	s := String(doc, key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
