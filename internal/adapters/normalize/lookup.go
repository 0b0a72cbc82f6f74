// Package normalize turns adapter-native raw payloads into domain.Offer
// values. Payloads arrive as map[string]any because the upstream sources
// disagree wildly on field names and nesting, so lookups are tolerant
// alias chains rather than strict per-adapter structs.
package normalize

import (
	"strconv"
	"strings"
)

// lookupAny does a safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns the string at path, or "" if absent or not a string.
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// firstNonEmptyAlias returns the first non-empty string found across the
// alias paths registered for key.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return s
		}
	}
	return ""
}

// firstFloatFlexible reads a number from several candidate paths, accepting
// float64, int, or numeric strings (including comma decimal separators).
func firstFloatFlexible(m map[string]any, paths ...string) (float64, bool) {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// firstBoolFlexible reads a bool from several candidate paths, accepting
// a native bool or a "true"/"false"/"1"/"0" string.
func firstBoolFlexible(m map[string]any, paths ...string) bool {
	for _, p := range paths {
		switch v := lookupAny(m, p).(type) {
		case bool:
			return v
		case string:
			b, err := strconv.ParseBool(v)
			if err == nil {
				return b
			}
		}
	}
	return false
}

// firstIntFlexible reads an int from several candidate paths.
func firstIntFlexible(m map[string]any, paths ...string) (int, bool) {
	f, ok := firstFloatFlexible(m, paths...)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// firstSlice returns the first []any found across the given paths.
func firstSlice(m map[string]any, paths ...string) []any {
	for _, k := range paths {
		if raw, ok := lookupAny(m, k).([]any); ok && len(raw) > 0 {
			return raw
		}
	}
	return nil
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
