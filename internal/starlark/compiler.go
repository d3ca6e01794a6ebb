package starlark

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"go.starlark.net/starlark"

	"github.com/leapstack-labs/leapdq/pkg/rules"
)

// checkFuncName is the function each expression source is wrapped in.
const checkFuncName = "check"

// maxEvalSteps caps the Starlark computation per row so a runaway
// expression fails the rule instead of stalling the run.
const maxEvalSteps = 100_000

// Compiler compiles expression sources into reusable predicates.
// Compiled expressions are cached by source, so re-running a rule
// does not re-parse it. Safe for concurrent use.
type Compiler struct {
	mu    sync.RWMutex
	cache map[string]*Expr
}

var _ rules.ExprCompiler = (*Compiler)(nil)

// NewCompiler creates an expression compiler with an empty cache.
func NewCompiler() *Compiler {
	return &Compiler{cache: make(map[string]*Expr)}
}

// Compile wraps the expression in a check(row) function and executes
// the wrapper once to resolve it. The returned predicate is safe for
// concurrent Eval calls.
func (c *Compiler) Compile(src string) (rules.CompiledExpr, error) {
	c.mu.RLock()
	expr, ok := c.cache[src]
	c.mu.RUnlock()
	if ok {
		return expr, nil
	}

	expr, err := compile(src)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[src] = expr
	c.mu.Unlock()
	return expr, nil
}

func compile(src string) (*Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty expression")
	}

	name := exprName(src)
	thread := newThread(name)

	globals, err := starlark.ExecFile(thread, name, wrapExpr(src), Predeclared()) //nolint:staticcheck // SA1019: will migrate to ExecFileOptions later
	if err != nil {
		return nil, &EvalError{Expr: src, Message: err.Error()}
	}

	fn, ok := globals[checkFuncName].(starlark.Callable)
	if !ok {
		return nil, &EvalError{Expr: src, Message: "expression did not produce a callable"}
	}

	// Frozen globals make the compiled function safe to call from
	// multiple goroutines.
	globals.Freeze()

	return &Expr{name: name, fn: fn}, nil
}

// wrapExpr turns a bare boolean expression into a function body. The
// parentheses keep multi-line expressions and trailing comments legal.
func wrapExpr(src string) string {
	return "def " + checkFuncName + "(row):\n    return (" + src + "\n    )\n"
}

// exprName derives a stable identifier for error reporting and thread
// naming.
func exprName(src string) string {
	sum := sha256.Sum256([]byte(src))
	return "expr-" + hex.EncodeToString(sum[:4])
}

func newThread(name string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, _ string) {
			// Expressions should not print - this is a no-op
		},
	}
	thread.SetMaxExecutionSteps(maxEvalSteps)
	return thread
}

// Expr is a compiled expression predicate.
type Expr struct {
	name string
	fn   starlark.Callable
}

// Eval applies the expression to one row and reports its truth value.
// A fresh thread per call keeps the per-row step budget independent.
func (e *Expr) Eval(row map[string]any) (bool, error) {
	v, err := e.call(row)
	if err != nil {
		return false, err
	}
	return bool(v.Truth()), nil
}

// EvalValue applies the expression to one row and returns the result
// as a plain Go value. Used by the console to try expressions.
func (e *Expr) EvalValue(row map[string]any) (any, error) {
	v, err := e.call(row)
	if err != nil {
		return nil, err
	}
	return ToGo(v)
}

func (e *Expr) call(row map[string]any) (starlark.Value, error) {
	dict, err := RowToDict(row)
	if err != nil {
		return nil, &EvalError{Expr: e.name, Message: err.Error()}
	}

	thread := newThread(e.name)
	v, err := starlark.Call(thread, e.fn, starlark.Tuple{dict}, nil)
	if err != nil {
		return nil, &EvalError{Expr: e.name, Message: err.Error()}
	}
	return v, nil
}

// EvalError represents an error during expression evaluation.
type EvalError struct {
	Expr    string
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("error evaluating %q: %s", e.Expr, e.Message)
}
