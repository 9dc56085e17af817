package authz

import (
	"context"

	"github.com/venicegeo/pz-idam/internal/auth"
)

// DefaultRole is the role assigned to callers when none is configured.
const DefaultRole = "admin"

// EndpointAuthorizer checks the action against the caller's profile
// template. A key missing from the template and a key mapped to false both
// deny.
type EndpointAuthorizer struct {
	templates *TemplateStore
	role      string
}

// NewEndpointAuthorizer creates an authorizer that evaluates every caller
// under role.
func NewEndpointAuthorizer(templates *TemplateStore, role string) *EndpointAuthorizer {
	if role == "" {
		role = DefaultRole
	}
	return &EndpointAuthorizer{templates: templates, role: role}
}

func (a *EndpointAuthorizer) Name() string { return "endpoint" }

func (a *EndpointAuthorizer) CanPerform(_ context.Context, check auth.Check) (auth.Response, error) {
	key := check.Action.KeyName()

	defined, allowed, err := a.templates.Decide(a.role, key)
	if err != nil {
		return auth.Response{}, err
	}
	if !defined {
		return auth.Deny("The %s endpoint does not have a defined Permission.", key), nil
	}
	if !allowed {
		return auth.Deny("The user does not have the ability to access the %s endpoint.", key), nil
	}
	return auth.Allow(), nil
}
