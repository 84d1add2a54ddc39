// Package edits compiles declarative tree edits into filter mutators.
//
// Edits come from manifests and command line flags:
//
//	set      path value   replace the value at path
//	delete   path         remove path and everything under it
//	merge    [path] map   deep merge a map at path, or at the root
//	eval     path expr    store the result of an expression over the tree
//	resolve               expand ${path}, ${env:NAME} and {{ expr }} values
package edits

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-cfgfilter/filter"
	"github.com/goliatone/go-cfgfilter/koanf/solvers"
	"github.com/goliatone/go-cfgfilter/node"
	"github.com/goliatone/go-errors"
	opts "github.com/goliatone/go-options"
	"gopkg.in/yaml.v3"
)

type Op string

const (
	OpSet     Op = "set"
	OpDelete  Op = "delete"
	OpMerge   Op = "merge"
	OpEval    Op = "eval"
	OpResolve Op = "resolve"
)

// ResolvePasses bounds how many times resolve re-runs the solvers to
// follow chained references.
var ResolvePasses = 3

func (o Op) String() string {
	return string(o)
}

// Edit is a single declarative change to a tree.
type Edit struct {
	Op    Op     `koanf:"op" json:"op" yaml:"op"`
	Path  string `koanf:"path" json:"path,omitempty" yaml:"path,omitempty"`
	Value any    `koanf:"value" json:"value,omitempty" yaml:"value,omitempty"`
	Expr  string `koanf:"expr" json:"expr,omitempty" yaml:"expr,omitempty"`
}

func (e Edit) String() string {
	switch e.Op {
	case OpDelete:
		return fmt.Sprintf("delete %s", e.Path)
	case OpEval:
		return fmt.Sprintf("eval %s = %s", e.Path, e.Expr)
	case OpResolve:
		return "resolve"
	default:
		if e.Path == "" {
			return fmt.Sprintf("%s %v", e.Op, e.Value)
		}
		return fmt.Sprintf("%s %s = %v", e.Op, e.Path, e.Value)
	}
}

// Validate checks that the edit carries what its operation needs.
func (e Edit) Validate() error {
	switch e.Op {
	case OpSet, OpDelete:
		if e.Path == "" {
			return invalidEdit(e, "path is required")
		}
	case OpMerge:
		if _, ok := e.Value.(map[string]any); !ok {
			return invalidEdit(e, "value must be a map")
		}
	case OpEval:
		if e.Path == "" || strings.TrimSpace(e.Expr) == "" {
			return invalidEdit(e, "path and expr are required")
		}
	case OpResolve:
	default:
		return invalidEdit(e, "unknown operation")
	}
	return nil
}

func invalidEdit(e Edit, reason string) error {
	return errors.New("invalid edit: "+reason, errors.CategoryValidation).
		WithTextCode("INVALID_EDIT").
		WithMetadata(map[string]any{
			"op":   string(e.Op),
			"path": e.Path,
			"valid_ops": []string{
				string(OpSet), string(OpDelete), string(OpMerge), string(OpEval), string(OpResolve),
			},
		})
}

// Apply runs the edit against n.
func (e Edit) Apply(n *node.Node) error {
	switch e.Op {
	case OpSet:
		return n.Set(e.Path, e.Value)
	case OpDelete:
		n.Delete(e.Path)
		return nil
	case OpMerge:
		return e.merge(n)
	case OpEval:
		return e.eval(n)
	case OpResolve:
		return resolve(n)
	default:
		return e.Validate()
	}
}

func (e Edit) merge(n *node.Node) error {
	m, ok := e.Value.(map[string]any)
	if !ok {
		return e.Validate()
	}
	return n.MergeAt(e.Path, m)
}

func (e Edit) eval(n *node.Node) error {
	result, err := opts.NewExprEvaluator().Evaluate(opts.RuleContext{Snapshot: n.Raw()}, strings.TrimSpace(e.Expr))
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "expression evaluation failed").
			WithTextCode("EVAL_FAILED").
			WithMetadata(map[string]any{"path": e.Path, "expr": e.Expr})
	}
	return n.Set(e.Path, result)
}

func resolve(n *node.Node) error {
	var failures []error
	solvers.Run(n.Koanf(), ResolvePasses,
		solvers.NewVariablesSolver("${", "}"),
		solvers.NewExpressionSolverWithEvaluator("{{", "}}", nil, solvers.OnEvalCollect(&failures)),
	)
	if len(failures) > 0 {
		return errors.Wrap(failures[0], errors.CategoryOperation, "resolve failed").
			WithTextCode("RESOLVE_FAILED").
			WithMetadata(map[string]any{"failures": len(failures)})
	}
	return nil
}

// Compile validates every edit and returns a mutator applying them in
// order. No edits compile to a nil mutator.
func Compile(list ...Edit) (filter.Mutator, error) {
	if len(list) == 0 {
		return nil, nil
	}
	compiled := make([]Edit, len(list))
	for i, e := range list {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("edit %d: %w", i, err)
		}
		compiled[i] = e
	}
	return func(n *node.Node) error {
		for i, e := range compiled {
			if err := e.Apply(n); err != nil {
				return fmt.Errorf("edit %d (%s): %w", i, e, err)
			}
		}
		return nil
	}, nil
}

// ParseAssignment reads "path=value" into a set edit. The value is read as
// a YAML scalar or flow collection, so "port=8080" sets an int and
// "tags=[a, b]" a list.
func ParseAssignment(s string) (Edit, error) {
	path, raw, ok := strings.Cut(s, "=")
	path = strings.TrimSpace(path)
	if !ok || path == "" {
		return Edit{}, errors.New("assignment must look like path=value", errors.CategoryBadInput).
			WithTextCode("INVALID_ASSIGNMENT").
			WithMetadata(map[string]any{"input": s})
	}
	return Edit{Op: OpSet, Path: path, Value: ParseValue(raw)}, nil
}

// ParseValue reads s as YAML, falling back to the raw string. Mappings are
// normalised to map[string]any and an explicit null (null, ~) is nil.
func ParseValue(s string) any {
	if strings.TrimSpace(s) == "" {
		return s
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil || len(doc.Content) == 0 {
		return s
	}
	var v any
	if err := doc.Content[0].Decode(&v); err != nil {
		return s
	}
	return normalize(v)
}

func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	default:
		return v
	}
}
