// Package authz decides whether an authenticated caller may perform an action.
package authz

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/logging"
	"github.com/venicegeo/pz-idam/internal/telemetry"
)

//go:generate mockgen -destination=mocks/mock_authorizer.go -package=mocks -source=authorizer.go Authorizer

// Authorizer decides one independent aspect of whether a check may proceed.
//
// Return values:
//   - (Response{Success: true}, nil): this authorizer has no objection
//   - (Response{Success: false}, nil): denied, Details carries the reason
//   - (Response{}, error): the decision could not be made
type Authorizer interface {
	// Name identifies the authorizer in logs and metrics.
	Name() string
	CanPerform(ctx context.Context, check auth.Check) (auth.Response, error)
}

// Pipeline runs a fixed, ordered list of authorizers and stops at the first
// denial. Later authorizers are never invoked once an earlier one denies.
type Pipeline struct {
	authorizers []Authorizer
}

// NewPipeline creates a pipeline evaluating authorizers in the given order.
func NewPipeline(authorizers ...Authorizer) *Pipeline {
	return &Pipeline{authorizers: authorizers}
}

// Authorize evaluates the check. An authorizer error stops evaluation and is
// returned to the caller, which must treat it as a denial.
func (p *Pipeline) Authorize(ctx context.Context, check auth.Check) (auth.Response, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerAuthz, "authz.Pipeline.Authorize",
		attribute.String(telemetry.AttrUsername, check.Username))
	defer span.End()

	if check.Action == nil {
		return auth.Response{}, fmt.Errorf("authorization check for %s carries no action", check.Username)
	}
	span.SetAttributes(attribute.String(telemetry.AttrAction, check.Action.KeyName()))

	for _, a := range p.authorizers {
		resp, err := a.CanPerform(ctx, check)
		if err != nil {
			telemetry.RecordError(span, err)
			return auth.Response{}, fmt.Errorf("%s authorizer: %w", a.Name(), err)
		}
		telemetry.Identity().RecordAuthz(ctx, a.Name(), resp.Success)
		if !resp.Success {
			logging.Infof("%s denied by %s authorizer: %s", check, a.Name(), resp.Details)
			telemetry.RecordDecision(ctx, false, a.Name(), resp.Details)
			return resp, nil
		}
	}

	telemetry.RecordDecision(ctx, true, "", "")
	return auth.Allow(), nil
}
