// Package node holds the in-memory configuration tree that format adapters
// produce and consume.
//
// A Node is a thin wrapper around a koanf instance: the tree is a nested
// map[string]any whose leaves are lists ([]any) or scalars, and paths use the
// koanf delimiter (default "."). The root of a tree is always a mapping.
package node

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/copystructure"
)

var DefaultDelimiter = "."

type Option func(*Node)

// WithDelimiter changes the path delimiter used by Get/Set/Delete.
func WithDelimiter(delim string) Option {
	return func(n *Node) {
		if delim != "" {
			n.delim = delim
		}
	}
}

type Node struct {
	k     *koanf.Koanf
	delim string
}

// New returns an empty tree.
func New(opts ...Option) *Node {
	n := &Node{delim: DefaultDelimiter}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	n.k = koanf.NewWithConf(koanf.Conf{Delim: n.delim})
	return n
}

// FromMap builds a tree from a nested map. The map is copied; keys that
// contain the delimiter are kept as-is and not split into sub trees.
func FromMap(m map[string]any, opts ...Option) (*Node, error) {
	n := New(opts...)
	if len(m) == 0 {
		return n, nil
	}
	if err := n.store(m); err != nil {
		return nil, err
	}
	return n, nil
}

// Koanf exposes the backing instance, used by solvers that operate on koanf.
func (n *Node) Koanf() *koanf.Koanf {
	return n.k
}

func (n *Node) Delimiter() string {
	return n.delim
}

// Get returns the value at path, or the whole tree when path is empty.
func (n *Node) Get(path string) any {
	v, _ := Lookup(n.k.Raw(), path, n.delim)
	return v
}

func (n *Node) String(path string) string {
	switch v := n.Get(path).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (n *Node) Int64(path string) int64 {
	var out int64
	_ = DecodeValue(n.Get(path), &out)
	return out
}

func (n *Node) Float64(path string) float64 {
	var out float64
	_ = DecodeValue(n.Get(path), &out)
	return out
}

func (n *Node) Bool(path string) bool {
	var out bool
	_ = DecodeValue(n.Get(path), &out)
	return out
}

func (n *Node) Exists(path string) bool {
	if path == "" {
		return false
	}
	_, ok := Lookup(n.k.Raw(), path, n.delim)
	return ok
}

// Set replaces the value at path. Intermediate maps are created as needed and
// an existing map at path is replaced, not merged.
func (n *Node) Set(path string, value any) error {
	parts := splitPath(path, n.delim)
	if len(parts) == 0 {
		m, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("the tree root must be a map, got %T", value)
		}
		return n.store(m)
	}
	tree := n.k.Raw()
	setIn(tree, parts, n.delim, value)
	return n.store(tree)
}

// Delete removes path and any sub tree under it.
func (n *Node) Delete(path string) {
	tree := n.k.Raw()
	if deleteIn(tree, splitPath(path, n.delim), n.delim) {
		_ = n.store(tree)
	}
}

// Merge deep merges m into the tree; maps are merged, everything else in m
// overrides the current value.
func (n *Node) Merge(m map[string]any) error {
	return n.MergeAt("", m)
}

// MergeAt deep merges m into the map at path. A missing or non map value
// at path is replaced by m.
func (n *Node) MergeAt(path string, m map[string]any) error {
	if len(m) == 0 {
		return nil
	}
	cloned, err := copystructure.Copy(m)
	if err != nil {
		return err
	}
	src := cloned.(map[string]any)

	tree := n.k.Raw()
	if path == "" {
		mergeInto(tree, src)
		return n.store(tree)
	}
	parts := splitPath(path, n.delim)
	if owner, key, ok := locate(tree, parts, n.delim); ok {
		if dst, isMap := owner[key].(map[string]any); isMap {
			mergeInto(dst, src)
			return n.store(tree)
		}
	}
	setIn(tree, parts, n.delim, src)
	return n.store(tree)
}

// store swaps the whole tree in. Keys are loaded as they are, without
// splitting on the delimiter.
func (n *Node) store(tree map[string]any) error {
	n.k.Delete("")
	if len(tree) == 0 {
		return nil
	}
	return n.k.Load(confmap.Provider(tree, ""), nil)
}

// Keys returns the sorted top level keys.
func (n *Node) Keys() []string {
	raw := n.k.Raw()
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Paths returns every leaf path in the tree.
func (n *Node) Paths() []string {
	return n.k.Keys()
}

func (n *Node) Len() int {
	return len(n.k.Raw())
}

// Raw returns a copy of the underlying tree.
func (n *Node) Raw() map[string]any {
	raw := n.k.Raw()
	if raw == nil {
		return map[string]any{}
	}
	return raw
}

// Copy returns a deep copy that shares nothing with n.
func (n *Node) Copy() (*Node, error) {
	cloned, err := copystructure.Copy(n.k.Raw())
	if err != nil {
		return nil, err
	}
	m, _ := cloned.(map[string]any)
	return FromMap(m, WithDelimiter(n.delim))
}

// Equal reports whether both trees hold deep-equal values.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	return reflect.DeepEqual(n.Raw(), other.Raw())
}
