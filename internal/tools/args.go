// In file: internal/tools/args.go
package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	defaultLimit = 5
	maxLimit     = 20
)

// Args is the loosely typed argument object the model produced for a call.
// Accessors are permissive: a missing or unusable value reads as absent.
type Args map[string]any

// ParseArgs decodes raw JSON arguments. Anything that is not a JSON object,
// including malformed input, yields an empty Args so the tool runs on defaults.
func ParseArgs(raw string) Args {
	args := Args{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return Args{}
	}
	return args
}

// String returns the trimmed string value of key, or "" when absent.
func (a Args) String(key string) string {
	switch v := a[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	return ""
}

// Float returns the numeric value of key. Numeric strings are accepted.
func (a Args) Float(key string) (float64, bool) {
	switch v := a[key].(type) {
	case float64:
		return v, !math.IsNaN(v) && !math.IsInf(v, 0)
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// Int returns the value of key truncated to an integer.
func (a Args) Int(key string) (int, bool) {
	f, ok := a.Float(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Limit returns the "limit" argument, defaulting to 5 and clamped to [1, 20].
func (a Args) Limit() int {
	n, ok := a.Int("limit")
	if !ok {
		return defaultLimit
	}
	if n < 1 {
		return 1
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}

func mustBeOneOf(field string, allowed []string) error {
	return failed(fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")), nil)
}
