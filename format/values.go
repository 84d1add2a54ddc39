package format

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type unsupportedValueError struct {
	path   string
	reason string
}

func (e *unsupportedValueError) Error() string {
	if e.path == "" {
		return e.reason
	}
	return fmt.Sprintf("%s: %s", e.path, e.reason)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

// findNil returns the path of the first nil leaf, walking keys in order.
func findNil(path string, v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return path, true
	case map[string]any:
		for _, k := range sortedKeys(val) {
			if p, ok := findNil(joinPath(path, k), val[k]); ok {
				return p, true
			}
		}
	case []any:
		for i, item := range val {
			if p, ok := findNil(fmt.Sprintf("%s[%d]", path, i), item); ok {
				return p, true
			}
		}
	}
	return "", false
}

// scalarFromText maps the textual form of an unquoted scalar to a Go value:
// null, booleans, integers and floats; anything else stays a string.
func scalarFromText(s string) any {
	switch strings.TrimSpace(s) {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		if int64(int(i)) == i {
			return int(i)
		}
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
