package types

import (
	"math"
	"strconv"
)

// GetString returns params[key] if it is a string, else ""
func GetString(params map[string]interface{}, key string) string {
	if val, ok := params[key].(string); ok {
		return val
	}
	return ""
}

// GetInt returns params[key] as an int. JSON numbers arrive as float64;
// numeric strings are accepted too. Missing or malformed values return def.
func GetInt(params map[string]interface{}, key string, def int) int {
	switch v := params[key].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return def
		}
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// GetBool returns params[key] if it is a bool, else def
func GetBool(params map[string]interface{}, key string, def bool) bool {
	switch v := params[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// GetStrings returns params[key] as a string slice, skipping non-string items
func GetStrings(params map[string]interface{}, key string) []string {
	switch v := params[key].(type) {
	case []string:
		return v
	case []interface{}:
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
