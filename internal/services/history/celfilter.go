package historysvc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/rzbill/tablehistory/internal/history"
)

// celFilter wraps a compiled CEL program evaluated against revisions during
// history scans. When disabled, Eval always returns true.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("key", cel.StringType),
		cel.Variable("ts", cel.IntType),
		cel.Variable("deleted", cel.BoolType),
		cel.Variable("attribution", cel.StringType),
		// parsed JSON document, null for tombstones
		cel.Variable("doc", cel.DynType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, fmt.Errorf("%w: filter: %v", history.ErrInvalidArgument, iss.Err())
	}
	prog, err := env.Program(ast)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the expression against a revision. Evaluation errors, such
// as a missing document field, and non-bool results count as a mismatch.
func (f celFilter) Eval(e history.Entry) bool {
	if !f.enabled {
		return true
	}
	var doc any
	if !e.Deleted {
		_ = json.Unmarshal(e.Doc, &doc)
	}
	out, _, err := f.prog.Eval(map[string]any{
		"key":         e.Key,
		"ts":          e.Ts,
		"deleted":     e.Deleted,
		"attribution": string(e.Attribution),
		"doc":         doc,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// predicate returns the engine filter, nil when disabled.
func (f celFilter) predicate() func(history.Entry) bool {
	if !f.enabled {
		return nil
	}
	return f.Eval
}
