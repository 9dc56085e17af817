package authn

import (
	"context"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/db/models"
)

//go:generate mockgen -destination=mocks/mock_authenticator.go -package=mocks -source=authenticator.go Authenticator,CodeAuthenticator,AttributeSource,ProfileReconciler

// Result is the decision of an authenticator variant.
type Result struct {
	Success bool
	Details string
	// Attributes is set on success
	Attributes *auth.Attributes
}

func rejected(details string) Result {
	return Result{Success: false, Details: details}
}

func accepted(attrs auth.Attributes) Result {
	return Result{Success: true, Attributes: &attrs}
}

// Authenticator checks credentials against an upstream identity provider.
//
// Implementations:
//   - DirectoryAuthenticator: LDAP bind
//   - ProviderAuthenticator: REST basic/PKI
//   - OAuthAuthenticator: rejects both, see AuthenticateCode
//
// Return values:
//   - (Result{Success: true}, nil): Authenticated, Attributes populated
//   - (Result{Success: false}, nil): Credentials rejected by the provider
//   - (Result{}, error): ErrMalformedInput or ErrUpstreamUnavailable (wrapped)
type Authenticator interface {
	AuthenticateCredential(ctx context.Context, username, secret string) (Result, error)
	AuthenticatePEM(ctx context.Context, pem string) (Result, error)
}

// CodeAuthenticator completes an OAuth authorization-code login.
type CodeAuthenticator interface {
	AuthenticateCode(ctx context.Context, code string) (Result, error)
}

// AttributeSource looks up the current attributes of a known user. It backs
// the periodic profile verification sweep.
type AttributeSource interface {
	LookupAttributes(ctx context.Context, username string) (auth.Attributes, error)
}

// ProfileReconciler persists the attributes of an authenticated user.
type ProfileReconciler interface {
	Reconcile(ctx context.Context, attrs auth.Attributes) (*models.UserProfile, error)
}
