// Package gateway is the entry point for every identity operation: key
// authentication, key issuance and revocation, and authorization checks.
package gateway

import (
	"context"
	"time"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/db/models"
)

// Service is the gateway façade consumed by the HTTP handlers and the CLI.
type Service interface {
	// AuthenticateKey validates key and attaches its owner's profile.
	//
	// Returns:
	//   - (Response{Success: true, Profile}, nil): key is valid
	//   - (Response{Success: false}, nil): unknown, expired or inactive
	//   - (Response{}, ErrMalformedInput): key is empty
	//   - (Response{}, error): persistence failure
	AuthenticateKey(ctx context.Context, key string) (auth.Response, error)

	// IssueKey authenticates the credentials and issues a fresh key,
	// replacing the caller's previous one. A rejected credential returns an
	// unsuccessful response and no key.
	IssueKey(ctx context.Context, creds auth.Credentials) (string, auth.Response, error)

	// IssueKeyForProfile issues a key for a profile that was already
	// authenticated and reconciled.
	IssueKeyForProfile(ctx context.Context, profile *models.UserProfile) (string, error)

	// IssueKeyForCode completes an OAuth login and issues a key.
	IssueKeyForCode(ctx context.Context, code string) (string, auth.Response, error)

	// ExistingKey authenticates the credentials and returns the caller's
	// current key without issuing one. Returns ErrNoKey when none exists.
	ExistingKey(ctx context.Context, creds auth.Credentials) (string, auth.Response, error)

	// RevokeKey deletes key. Unknown keys are ignored.
	RevokeKey(ctx context.Context, key string) error

	// Verify reports the owner of key and whether it is currently valid.
	Verify(ctx context.Context, key string) (string, bool, error)

	// Authorize resolves the caller's identity and runs the authorization
	// pipeline. Denials are returned as unsuccessful responses; errors mean
	// the decision could not be made and must be treated as a denial.
	Authorize(ctx context.Context, check auth.Check) (auth.Response, error)

	// Stats reports store-wide counts for the admin endpoint.
	Stats(ctx context.Context) (Stats, error)
}

// Stats are the counts reported on the admin endpoint.
type Stats struct {
	Profiles        int       `json:"profiles"`
	ActiveKeys      int       `json:"apiKeys"`
	ThrottledUsers  int       `json:"throttledUsers"`
	ThrottleCeiling int       `json:"throttleCeiling"`
	WindowStart     time.Time `json:"windowStart"`
	AuthnVariant    string    `json:"authnVariant"`
}
