package solvers

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-cfgfilter/logger"
	opts "github.com/goliatone/go-options"
	"github.com/knadh/koanf/v2"
)

// EvalErrorHandler is called for every expression that fails to evaluate,
// with the path holding it. For expressions inside lists the path is the
// list's path. It reports whether the value at path should be removed;
// otherwise the value is left as it was.
type EvalErrorHandler func(key string, expr string, err error) bool

type expression struct {
	delimiters *delimiters
	evaluator  opts.Evaluator
	onError    EvalErrorHandler
}

// NewExpressionSolver evaluates values made of a single delimited
// expression, {{ expr }} by default. Top level keys of the tree are the
// expression's variables: {{ server.port + 1 }}.
func NewExpressionSolver(start, end string) ConfigSolver {
	return NewExpressionSolverWithEvaluator(start, end, nil, nil)
}

// NewExpressionSolverWithEvaluator uses eval instead of the default expr
// evaluator and onErr for failures. Nil arguments take the defaults.
func NewExpressionSolverWithEvaluator(start, end string, eval opts.Evaluator, onErr EvalErrorHandler) ConfigSolver {
	if start == "" {
		start = "{{"
	}
	if end == "" {
		end = "}}"
	}
	if eval == nil {
		eval = opts.NewExprEvaluator()
	}
	if onErr == nil {
		onErr = OnEvalLeaveUnchanged()
	}

	return &expression{
		delimiters: &delimiters{Start: start, End: end},
		evaluator:  eval,
		onError:    onErr,
	}
}

// Solve evaluates keys in sorted order, so an expression sees the results
// of the keys sorted before it.
func (s expression) Solve(k *koanf.Koanf) *koanf.Koanf {
	if k == nil {
		return k
	}
	tree := k.Raw()
	changed := rewrite(tree, "", k.Delim(), func(path, str string) (any, bool, bool) {
		return s.eval(path, str, tree)
	})
	if changed {
		store(k, tree)
	}
	return k
}

func (s expression) eval(key, val string, tree map[string]any) (any, bool, bool) {
	body, ok := strings.CutPrefix(val, s.delimiters.Start)
	if !ok {
		return val, false, false
	}
	body, ok = strings.CutSuffix(body, s.delimiters.End)
	if !ok {
		return val, false, false
	}

	expr := strings.TrimSpace(body)
	result, err := s.evaluator.Evaluate(opts.RuleContext{Snapshot: tree}, expr)
	if err != nil {
		return val, false, s.onError(key, expr, err)
	}
	return result, true, false
}

// OnEvalLog logs the failure and keeps the original value.
func OnEvalLog(l logger.Logger) EvalErrorHandler {
	if l == nil {
		l = logger.NopLogger{}
	}
	return func(key string, expr string, err error) bool {
		l.Warn("expression evaluation failed for %s: %s (%v)", key, expr, err)
		return false
	}
}

// EvalError reports an expression that could not be evaluated.
type EvalError struct {
	Key  string
	Expr string
	Err  error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("expression %q at %s: %v", e.Expr, e.Key, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// OnEvalCollect keeps the original value and appends the failure to errs.
func OnEvalCollect(errs *[]error) EvalErrorHandler {
	return func(key string, expr string, err error) bool {
		if errs != nil {
			*errs = append(*errs, &EvalError{Key: key, Expr: expr, Err: err})
		}
		return false
	}
}

// OnEvalLeaveUnchanged keeps the original value.
func OnEvalLeaveUnchanged() EvalErrorHandler {
	return func(string, string, error) bool {
		return false
	}
}

// OnEvalRemove deletes the failing key. Inside a list that drops the whole
// list.
func OnEvalRemove() EvalErrorHandler {
	return func(string, string, error) bool {
		return true
	}
}
