package filter

import (
	"fmt"

	"github.com/goliatone/go-cfgfilter/node"
)

// Mutator edits a parsed tree in place before it is serialised again.
type Mutator func(*node.Node) error

// Chain runs mutators in order and stops at the first error. Nil entries
// are skipped; a chain of nothing is nil.
func Chain(mutators ...Mutator) Mutator {
	var list []Mutator
	for _, m := range mutators {
		if m != nil {
			list = append(list, m)
		}
	}
	switch len(list) {
	case 0:
		return nil
	case 1:
		return list[0]
	}
	return func(n *node.Node) error {
		for i, m := range list {
			if err := m(n); err != nil {
				return fmt.Errorf("mutator %d: %w", i, err)
			}
		}
		return nil
	}
}

// Noop leaves the tree untouched.
func Noop(*node.Node) error {
	return nil
}

// safeMutate turns a mutator panic into an error.
func safeMutate(m Mutator, n *node.Node) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return m(n)
}
