package authn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/logging"
	"github.com/venicegeo/pz-idam/internal/telemetry"
)

// Router dispatches every authentication to the single configured variant
// and reconciles the caller's profile on success.
type Router struct {
	variant       string
	authenticator Authenticator
	profiles      ProfileReconciler
}

// NewRouter creates a router over one authenticator. variant names it in
// logs and metrics.
func NewRouter(variant string, authenticator Authenticator, profiles ProfileReconciler) *Router {
	return &Router{variant: variant, authenticator: authenticator, profiles: profiles}
}

// Variant returns the configured authenticator name.
func (r *Router) Variant() string {
	return r.variant
}

// AttributeSource returns the variant's attribute lookup, if it has one.
func (r *Router) AttributeSource() (AttributeSource, bool) {
	src, ok := r.authenticator.(AttributeSource)
	return src, ok
}

// CodeAuthenticator returns the variant's OAuth code login, if it has one.
func (r *Router) CodeAuthenticator() (CodeAuthenticator, bool) {
	ca, ok := r.authenticator.(CodeAuthenticator)
	return ca, ok
}

// AuthenticateCredential authenticates a username and secret.
func (r *Router) AuthenticateCredential(ctx context.Context, username, secret string) (auth.Response, error) {
	return r.run(ctx, func(ctx context.Context) (Result, error) {
		return r.authenticator.AuthenticateCredential(ctx, username, secret)
	})
}

// AuthenticatePEM authenticates a client certificate.
func (r *Router) AuthenticatePEM(ctx context.Context, pem string) (auth.Response, error) {
	return r.run(ctx, func(ctx context.Context) (Result, error) {
		return r.authenticator.AuthenticatePEM(ctx, pem)
	})
}

// AuthenticateCode completes an OAuth login. Variants without a code flow
// reject it.
func (r *Router) AuthenticateCode(ctx context.Context, code string) (auth.Response, error) {
	ca, ok := r.CodeAuthenticator()
	if !ok {
		return auth.Deny("OAuth login is not enabled"), nil
	}
	return r.run(ctx, func(ctx context.Context) (Result, error) {
		return ca.AuthenticateCode(ctx, code)
	})
}

func (r *Router) run(ctx context.Context, authenticate func(context.Context) (Result, error)) (auth.Response, error) {
	start := time.Now()
	result, err := authenticate(ctx)
	elapsed := float64(time.Since(start).Milliseconds())

	switch {
	case errors.Is(err, ErrMalformedInput):
		telemetry.Identity().RecordAuthn(ctx, r.variant, telemetry.ResultInvalid, elapsed)
		return auth.Response{}, err
	case err != nil:
		telemetry.Identity().RecordAuthn(ctx, r.variant, telemetry.ResultError, elapsed)
		logging.Errorf("%s authentication failed: %v", r.variant, err)
		return auth.Response{}, err
	case !result.Success || result.Attributes == nil:
		telemetry.Identity().RecordAuthn(ctx, r.variant, telemetry.ResultRejected, elapsed)
		return auth.Response{Success: false, Details: result.Details}, nil
	}

	telemetry.Identity().RecordAuthn(ctx, r.variant, telemetry.ResultSuccess, elapsed)

	profile, err := r.profiles.Reconcile(ctx, *result.Attributes)
	if err != nil {
		return auth.Response{}, fmt.Errorf("reconcile profile for %s: %w", result.Attributes.Username, err)
	}
	return auth.Response{Success: true, Profile: profile}, nil
}
