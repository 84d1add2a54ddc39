package node

import (
	"strings"

	"github.com/knadh/koanf/maps"
)

// Paths are resolved against the raw tree rather than koanf's flattened key
// map, so keys that contain the delimiter stay addressable. At every level
// the longest run of segments naming an existing key wins: in
// {"log.level": "x"} the path log.level is that key, not log -> level.

func splitPath(path, delim string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, delim)
}

// locate returns the map holding the value at parts and its key there.
func locate(m map[string]any, parts []string, delim string) (map[string]any, string, bool) {
	for i := len(parts); i > 0; i-- {
		key := strings.Join(parts[:i], delim)
		v, ok := m[key]
		if !ok {
			continue
		}
		if i == len(parts) {
			return m, key, true
		}
		if sub, isMap := v.(map[string]any); isMap {
			if owner, k, found := locate(sub, parts[i:], delim); found {
				return owner, k, true
			}
		}
	}
	return nil, "", false
}

// Lookup returns the value at path in tree. An empty path is the tree.
func Lookup(tree map[string]any, path, delim string) (any, bool) {
	parts := splitPath(path, delim)
	if len(parts) == 0 {
		return tree, tree != nil
	}
	owner, key, ok := locate(tree, parts, delim)
	if !ok {
		return nil, false
	}
	return owner[key], true
}

// setIn stores value at parts, creating maps for missing segments and
// replacing non map values in the way.
func setIn(m map[string]any, parts []string, delim string, value any) {
	if owner, key, ok := locate(m, parts, delim); ok {
		owner[key] = value
		return
	}
	for i := len(parts) - 1; i > 0; i-- {
		if sub, ok := m[strings.Join(parts[:i], delim)].(map[string]any); ok {
			setIn(sub, parts[i:], delim, value)
			return
		}
	}
	if len(parts) == 1 {
		m[parts[0]] = value
		return
	}
	sub := map[string]any{}
	m[parts[0]] = sub
	setIn(sub, parts[1:], delim, value)
}

// deleteIn removes the value at parts and any map left empty by it.
func deleteIn(m map[string]any, parts []string, delim string) bool {
	for i := len(parts); i > 0; i-- {
		key := strings.Join(parts[:i], delim)
		v, ok := m[key]
		if !ok {
			continue
		}
		if i == len(parts) {
			delete(m, key)
			return true
		}
		sub, isMap := v.(map[string]any)
		if !isMap || !deleteIn(sub, parts[i:], delim) {
			continue
		}
		if len(sub) == 0 {
			delete(m, key)
		}
		return true
	}
	return false
}

// mergeInto deep merges src into dst: maps merge, anything else replaces.
func mergeInto(dst, src map[string]any) {
	maps.Merge(src, dst)
}
