package utils

import (
	"strconv"
	"strings"
)

// ParseFloat attempts to extract a float64 from a raw payload value.
// External providers deliver numbers as JSON numbers, quoted strings or the
// sentinel strings "None"/"null"; any of those sentinels, an absent value or
// an unparseable value reports ok=false.
func ParseFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		if lower := strings.ToLower(trimmed); lower == "none" || lower == "null" || lower == "n/a" || lower == "-" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// CoerceFloat converts a raw payload value to a float64, returning def for
// anything that is absent, a null sentinel or unparseable. It never panics;
// every numeric field read from an external payload must pass through here
// before it reaches a metric record.
func CoerceFloat(raw interface{}, def float64) float64 {
	if parsed, ok := ParseFloat(raw); ok {
		return parsed
	}
	return def
}
