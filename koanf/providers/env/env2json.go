package env

import (
	"errors"
	"os"
	"sort"
	"strings"

	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"
)

// Env implements an environment variables provider.
type Env struct {
	prefix  string
	delim   string
	cb      func(key string, value string) (string, any)
	environ func() []string
	coerce  bool
}

// Option configures the provider.
type Option func(*Env)

// WithEnviron replaces os.Environ as the source of variables.
func WithEnviron(fn func() []string) Option {
	return func(e *Env) {
		if fn != nil {
			e.environ = fn
		}
	}
}

// WithScalarCoercion turns values that read as YAML booleans or numbers
// into typed values, so PORT=8080 loads as an int.
func WithScalarCoercion() Option {
	return func(e *Env) {
		e.coerce = true
	}
}

// Provider works like built it env provider but with support for
// arrays:
// APP_DATABASE__0__PASSWORD=password_1
// APP_DATABASE__1__PASSWORD=password_2
//
// The nesting hierarchy of keys is defined by delim. If prefix is
// specified (case-sensitive), only the env vars with the prefix are
// captured. cb optionally renames variables; an empty name drops the
// variable.
func Provider(prefix, delim string, cb func(s string) string, opts ...Option) *Env {
	var vcb func(string, string) (string, any)
	if cb != nil {
		vcb = func(key string, value string) (string, any) {
			return cb(key), value
		}
	}
	return ProviderWithValue(prefix, delim, vcb, opts...)
}

// ProviderWithValue works exactly the same as Provider except the callback
// takes a (key, value) with the variable name and value and allows you
// to modify both.
func ProviderWithValue(prefix, delim string, cb func(key string, value string) (string, any), opts ...Option) *Env {
	e := &Env{
		prefix:  prefix,
		delim:   delim,
		cb:      cb,
		environ: os.Environ,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// ReadBytes renders the matching variables as a JSON document.
func (e *Env) ReadBytes() ([]byte, error) {
	var vars []string
	for _, kv := range e.environ() {
		if e.prefix == "" || strings.HasPrefix(kv, e.prefix) {
			vars = append(vars, kv)
		}
	}
	// array indexes must be set in order
	sort.Strings(vars)

	out := "{}"
	for _, kv := range vars {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}

		key, value := name, any(raw)
		if e.cb != nil {
			key, value = e.cb(name, raw)
			if key == "" {
				continue
			}
		}
		if s, isString := value.(string); isString && e.coerce {
			value = coerce(s)
		}

		path := key
		if e.delim != "" {
			path = strings.ReplaceAll(key, e.delim, ".")
		}

		var err error
		if out, err = sjson.Set(out, path, value); err != nil {
			return []byte{}, err
		}
	}

	return []byte(out), nil
}

func coerce(s string) any {
	if strings.TrimSpace(s) == "" {
		return s
	}
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case bool, int, float64:
		return v
	default:
		return s
	}
}

// Read is not supported by the env provider.
func (e *Env) Read() (map[string]any, error) {
	return nil, errors.New("env provider does not support this method")
}
