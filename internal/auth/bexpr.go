package auth

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-bexpr"
)

// bexprCache stores compiled go-bexpr evaluators.
// Key: expression string, Value: *bexpr.Evaluator
var bexprCache = &sync.Map{}

// CompileBexpr compiles and caches an expression, reporting syntax errors.
// An empty expression compiles to nil and matches everything.
func CompileBexpr(expr string) (*bexpr.Evaluator, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	if cached, ok := bexprCache.Load(expr); ok {
		return cached.(*bexpr.Evaluator), nil
	}

	evaluator, err := bexpr.CreateEvaluator(expr)
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", expr, err)
	}
	bexprCache.Store(expr, evaluator)
	return evaluator, nil
}

// EvaluateBexpr evaluates expr against datum (a map or tagged struct).
// Empty expressions match. Invalid expressions and evaluation errors do not.
func EvaluateBexpr(expr string, datum any) bool {
	evaluator, err := CompileBexpr(expr)
	if err != nil {
		return false
	}
	if evaluator == nil {
		return true
	}

	matches, err := evaluator.Evaluate(datum)
	if err != nil {
		return false
	}
	return matches
}
