package solvers

import (
	"os"
	"strings"

	"github.com/goliatone/go-cfgfilter/node"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/copystructure"
)

// EnvReferencePrefix marks a reference resolved from the process
// environment instead of the tree, e.g. ${env:HOME}.
const EnvReferencePrefix = "env:"

type variables struct {
	delimiters *delimiters
	lookupEnv  func(string) (string, bool)
}

// VariablesOption configures the variables solver.
type VariablesOption func(*variables)

// WithEnvLookup replaces os.LookupEnv for env: references.
func WithEnvLookup(fn func(string) (string, bool)) VariablesOption {
	return func(v *variables) {
		if fn != nil {
			v.lookupEnv = fn
		}
	}
}

// NewVariablesSolver resolves references to other keys, ${path} by default.
// A value made of a single reference takes the referenced value with its
// type; references embedded in text are interpolated as strings. Unknown
// references are left untouched.
func NewVariablesSolver(start, end string, opts ...VariablesOption) ConfigSolver {
	if start == "" {
		start = "${"
	}
	if end == "" {
		end = "}"
	}
	v := &variables{
		delimiters: &delimiters{Start: start, End: end},
		lookupEnv:  os.LookupEnv,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Solve rewrites every string leaf that carries references.
func (s variables) Solve(k *koanf.Koanf) *koanf.Koanf {
	if k == nil {
		return k
	}
	tree, delim := k.Raw(), k.Delim()
	changed := rewrite(tree, "", delim, func(_ string, str string) (any, bool, bool) {
		v, ok := s.resolve(str, tree, delim)
		return v, ok, false
	})
	if changed {
		store(k, tree)
	}
	return k
}

func (s variables) resolve(val string, tree map[string]any, delim string) (any, bool) {
	refs := s.references(val)
	if len(refs) == 0 {
		return val, false
	}

	if len(refs) == 1 && refs[0].start == 0 && refs[0].end == len(val) {
		return s.lookup(refs[0].path, tree, delim)
	}

	var b strings.Builder
	changed := false
	last := 0
	for _, ref := range refs {
		b.WriteString(val[last:ref.start])
		if v, ok := s.lookup(ref.path, tree, delim); ok {
			b.WriteString(ToString(v))
			changed = true
		} else {
			b.WriteString(val[ref.start:ref.end])
		}
		last = ref.end
	}
	b.WriteString(val[last:])
	return b.String(), changed
}

// lookup returns a copy of the referenced value, so maps and lists are not
// shared between keys.
func (s variables) lookup(path string, tree map[string]any, delim string) (any, bool) {
	if name, ok := strings.CutPrefix(path, EnvReferencePrefix); ok {
		return s.lookupEnv(name)
	}
	v, ok := node.Lookup(tree, path, delim)
	if !ok {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
		if cp, err := copystructure.Copy(v); err == nil {
			return cp, true
		}
	}
	return v, true
}

type reference struct {
	path       string
	start, end int
}

// references lists the delimited references in val, left to right.
func (s variables) references(val string) []reference {
	var out []reference
	open, closing := s.delimiters.Start, s.delimiters.End
	offset := 0
	for offset < len(val) {
		i := strings.Index(val[offset:], open)
		if i < 0 {
			break
		}
		start := offset + i
		j := strings.Index(val[start+len(open):], closing)
		if j < 0 {
			break
		}
		end := start + len(open) + j + len(closing)
		path := strings.TrimSpace(val[start+len(open) : end-len(closing)])
		if path != "" {
			out = append(out, reference{path: path, start: start, end: end})
		}
		offset = end
	}
	return out
}
