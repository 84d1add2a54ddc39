package solvers

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/copystructure"
)

type ConfigSolver interface {
	Solve(config *koanf.Koanf) *koanf.Koanf
}

func ToString(v any) string {
	return fmt.Sprintf("%v", reflect.ValueOf(v))
}

type delimiters struct {
	Start string
	End   string
}

// Defaults returns the ${path} variables solver followed by the {{ expr }}
// expression solver.
func Defaults() []ConfigSolver {
	return []ConfigSolver{
		NewVariablesSolver("${", "}"),
		NewExpressionSolver("{{", "}}"),
	}
}

// Run applies every solver in order, repeating up to passes times until a
// pass leaves the tree unchanged. It returns the number of passes run.
func Run(k *koanf.Koanf, passes int, slvrs ...ConfigSolver) int {
	if k == nil || len(slvrs) == 0 {
		return 0
	}
	if passes < 1 {
		passes = 1
	}

	run := 0
	for run < passes {
		run++
		before, ok := snapshot(k)
		for _, s := range slvrs {
			if s != nil {
				s.Solve(k)
			}
		}
		if ok && reflect.DeepEqual(before, k.Raw()) {
			break
		}
	}
	return run
}

// walk applies fn to every string in v, descending into lists and maps
// nested in lists, which koanf does not flatten. Changed containers are
// returned as copies.
func walk(v any, fn func(string) (any, bool)) (any, bool) {
	switch val := v.(type) {
	case string:
		return fn(val)
	case []any:
		var out []any
		for i, item := range val {
			next, changed := walk(item, fn)
			if !changed {
				continue
			}
			if out == nil {
				out = append([]any(nil), val...)
			}
			out[i] = next
		}
		if out == nil {
			return v, false
		}
		return out, true
	case map[string]any:
		var out map[string]any
		for key, item := range val {
			next, changed := walk(item, fn)
			if !changed {
				continue
			}
			if out == nil {
				out = make(map[string]any, len(val))
				for k, vv := range val {
					out[k] = vv
				}
			}
			out[key] = next
		}
		if out == nil {
			return v, false
		}
		return out, true
	default:
		return v, false
	}
}

// rewriteFunc maps a string found at path to its replacement. drop asks
// for the top most value holding the string to be removed.
type rewriteFunc func(path, s string) (value any, changed, drop bool)

// rewrite applies fn to every string in m, keys in sorted order, and writes
// results back in place so later keys see earlier results. Keys are taken
// as they are, so keys holding the delimiter are rewritten where they live.
func rewrite(m map[string]any, prefix, delim string, fn rewriteFunc) bool {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	changed := false
	for _, key := range keys {
		path := key
		if prefix != "" {
			path = prefix + delim + key
		}
		if sub, ok := m[key].(map[string]any); ok {
			if rewrite(sub, path, delim, fn) {
				changed = true
			}
			continue
		}

		drop := false
		next, ok := walk(m[key], func(str string) (any, bool) {
			v, c, d := fn(path, str)
			drop = drop || d
			return v, c
		})
		switch {
		case drop:
			delete(m, key)
			changed = true
		case ok:
			m[key] = next
			changed = true
		}
	}
	return changed
}

// store replaces the whole content of k with tree.
func store(k *koanf.Koanf, tree map[string]any) {
	k.Delete("")
	if len(tree) > 0 {
		_ = k.Load(confmap.Provider(tree, ""), nil)
	}
}

func snapshot(k *koanf.Koanf) (any, bool) {
	cloned, err := copystructure.Copy(k.Raw())
	if err != nil {
		return nil, false
	}
	return cloned, true
}
