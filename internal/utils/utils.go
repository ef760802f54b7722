// Package utils holds small helpers shared across the library, adapted
// from the teacher's internal/utils.
package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// ExpandUser expands a leading "~" into the current user's home directory.
// tokencache.Open calls this on its path argument so a configured token
// cache location like "~/.dxlstream/tokens.db" resolves correctly
// regardless of the caller's working directory.
func ExpandUser(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

func truncateLongStrings(obj any, n int) any {
	switch v := obj.(type) {
	case map[string]any:
		result := make(map[string]any, len(v))
		for k, val := range v {
			result[k] = truncateLongStrings(val, n)
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			result[i] = truncateLongStrings(val, n)
		}
		return result
	case string:
		if len(v) > n {
			return v[:n]
		}
		return v
	default:
		return v
	}
}

// TruncateLongStrings renders v as JSON with any string longer than n
// truncated, used when logging consumed records at debug level so
// large payloads do not flood logs.
func TruncateLongStrings(v any, n int) string {
	b, _ := json.Marshal(v)
	var generic any
	_ = json.Unmarshal(b, &generic)
	truncated := truncateLongStrings(generic, n)
	out, _ := json.Marshal(truncated)
	return string(out)
}
