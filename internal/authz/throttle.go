package authz

import (
	"context"
	"fmt"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/db/models"
	"github.com/venicegeo/pz-idam/internal/logging"
)

// CountReader reads the current window's invocation count.
type CountReader interface {
	CurrentCount(ctx context.Context, username string, component models.ThrottleComponent) (int, error)
}

// ThrottleAuthorizer denies throttlable actions once the caller's job count
// for the current window exceeds the ceiling. The throttlable set is a
// go-bexpr expression over Method and Resource.
type ThrottleAuthorizer struct {
	counts     CountReader
	ceiling    int
	expression string
}

// NewThrottleAuthorizer compiles expression and returns the authorizer. An
// empty expression throttles every action.
func NewThrottleAuthorizer(counts CountReader, ceiling int, expression string) (*ThrottleAuthorizer, error) {
	if _, err := auth.CompileBexpr(expression); err != nil {
		return nil, fmt.Errorf("throttle expression: %w", err)
	}
	return &ThrottleAuthorizer{counts: counts, ceiling: ceiling, expression: expression}, nil
}

func (a *ThrottleAuthorizer) Name() string { return "throttle" }

// Throttlable reports whether the action is subject to the ceiling.
func (a *ThrottleAuthorizer) Throttlable(action auth.Action) bool {
	return auth.EvaluateBexpr(a.expression, map[string]any{
		"Method":   action.Method,
		"Resource": action.Resource,
	})
}

// CanPerform never returns an error. A failed count lookup is logged and
// the action is allowed.
func (a *ThrottleAuthorizer) CanPerform(ctx context.Context, check auth.Check) (auth.Response, error) {
	if !a.Throttlable(*check.Action) {
		return auth.Allow(), nil
	}

	count, err := a.counts.CurrentCount(ctx, check.Username, models.ThrottleComponentJob)
	if err != nil {
		logging.Errorf("Error checking Throttle for User %s, the action %s will be allowed: %v", check.Username, check.Action, err)
		return auth.Allow(), nil
	}

	if count > a.ceiling {
		return auth.Deny("Number of Jobs for user %s has been exceeded (%d). Please try again tomorrow.", check.Username, count), nil
	}
	return auth.Allow(), nil
}
