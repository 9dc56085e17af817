package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/authn"
	"github.com/venicegeo/pz-idam/internal/db/models"
	"github.com/venicegeo/pz-idam/internal/logging"
	"github.com/venicegeo/pz-idam/internal/telemetry"
)

// KeyStore is the subset of the api key store the gateway uses.
type KeyStore interface {
	Issue(ctx context.Context, username string) (string, error)
	Validate(ctx context.Context, key string) (bool, error)
	GetOwner(ctx context.Context, key string) (string, bool, error)
	GetKeyFor(ctx context.Context, username string) (string, bool, error)
	Delete(ctx context.Context, key string) error
	Count(ctx context.Context) (int, error)
}

// ProfileStore reads reconciled profiles.
type ProfileStore interface {
	Get(ctx context.Context, username string) (*models.UserProfile, bool, error)
	Count(ctx context.Context) (int, error)
}

// Authenticator is the configured authentication router.
type Authenticator interface {
	Variant() string
	AuthenticateCredential(ctx context.Context, username, secret string) (auth.Response, error)
	AuthenticatePEM(ctx context.Context, pem string) (auth.Response, error)
	AuthenticateCode(ctx context.Context, code string) (auth.Response, error)
}

// Authorizer runs the authorization pipeline for a resolved identity.
type Authorizer interface {
	Authorize(ctx context.Context, check auth.Check) (auth.Response, error)
}

// ThrottleStats reports window-wide throttle figures.
type ThrottleStats interface {
	WindowStart() time.Time
	CountExceeding(ctx context.Context, component models.ThrottleComponent, ceiling int) (int, error)
}

// Dependencies contains everything the gateway coordinates.
type Dependencies struct {
	Authn    Authenticator
	Keys     KeyStore
	Profiles ProfileStore
	Authz    Authorizer
	Throttle ThrottleStats
	// Ceiling is reported in Stats and used to count throttled users.
	Ceiling int
}

type gatewayService struct {
	authn    Authenticator
	keys     KeyStore
	profiles ProfileStore
	authz    Authorizer
	throttle ThrottleStats
	ceiling  int
}

// NewService creates the gateway façade.
func NewService(deps Dependencies) (Service, error) {
	switch {
	case deps.Authn == nil:
		return nil, fmt.Errorf("gateway requires an authenticator")
	case deps.Keys == nil:
		return nil, fmt.Errorf("gateway requires a key store")
	case deps.Profiles == nil:
		return nil, fmt.Errorf("gateway requires a profile store")
	case deps.Authz == nil:
		return nil, fmt.Errorf("gateway requires an authorizer")
	case deps.Throttle == nil:
		return nil, fmt.Errorf("gateway requires throttle stats")
	}

	return &gatewayService{
		authn:    deps.Authn,
		keys:     deps.Keys,
		profiles: deps.Profiles,
		authz:    deps.Authz,
		throttle: deps.Throttle,
		ceiling:  deps.Ceiling,
	}, nil
}

func (s *gatewayService) AuthenticateKey(ctx context.Context, key string) (auth.Response, error) {
	if key == "" {
		return auth.Response{}, fmt.Errorf("%w: api key is empty", ErrMalformedInput)
	}

	valid, err := s.keys.Validate(ctx, key)
	if err != nil {
		return auth.Response{}, fmt.Errorf("validate api key: %w", err)
	}
	if !valid {
		logging.Infof("Unable to verify API Key.")
		return auth.Response{Success: false}, nil
	}

	owner, found, err := s.keys.GetOwner(ctx, key)
	if err != nil {
		return auth.Response{}, fmt.Errorf("resolve api key owner: %w", err)
	}
	if !found {
		// Revoked between validation and lookup
		return auth.Response{Success: false}, nil
	}

	profile, err := s.profileFor(ctx, owner)
	if err != nil {
		return auth.Response{}, err
	}

	logging.Infow("verified api key", "username", owner)
	return auth.Response{Success: true, Profile: profile}, nil
}

// profileFor returns the stored profile, or a bare one carrying only the
// username for keys issued before profiles were kept.
func (s *gatewayService) profileFor(ctx context.Context, username string) (*models.UserProfile, error) {
	profile, found, err := s.profiles.Get(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("load profile for %s: %w", username, err)
	}
	if !found {
		return &models.UserProfile{Username: username}, nil
	}
	return profile, nil
}

func (s *gatewayService) authenticate(ctx context.Context, creds auth.Credentials) (auth.Response, error) {
	var (
		resp auth.Response
		err  error
	)
	if creds.IsPEM() {
		resp, err = s.authn.AuthenticatePEM(ctx, creds.PEM)
	} else {
		resp, err = s.authn.AuthenticateCredential(ctx, creds.Username, creds.Secret)
	}

	if errors.Is(err, authn.ErrUpstreamUnavailable) {
		logging.Warnf("Authentication for user %s could not reach the %s provider: %v", creds.Username, s.authn.Variant(), err)
		return auth.Deny("Authentication failed for user %s", creds.Username), nil
	}
	if err != nil {
		return auth.Response{}, err
	}
	if !resp.Success {
		if resp.Details == "" {
			resp.Details = fmt.Sprintf("Authentication failed for user %s", creds.Username)
		}
		return resp, nil
	}
	if resp.Profile == nil || resp.Profile.Username == "" {
		return auth.Response{}, fmt.Errorf("authenticator accepted credentials without an identity")
	}
	return resp, nil
}

func (s *gatewayService) IssueKey(ctx context.Context, creds auth.Credentials) (string, auth.Response, error) {
	resp, err := s.authenticate(ctx, creds)
	if err != nil || !resp.Success {
		logging.Infof("Failed to generate key for user %s", creds.Username)
		return "", resp, err
	}

	key, err := s.IssueKeyForProfile(ctx, resp.Profile)
	if err != nil {
		return "", auth.Response{}, err
	}
	return key, resp, nil
}

func (s *gatewayService) IssueKeyForProfile(ctx context.Context, profile *models.UserProfile) (string, error) {
	if profile == nil || profile.Username == "" {
		return "", fmt.Errorf("%w: profile has no username", ErrMalformedInput)
	}

	key, err := s.keys.Issue(ctx, profile.Username)
	if err != nil {
		return "", fmt.Errorf("issue api key for %s: %w", profile.Username, err)
	}
	return key, nil
}

func (s *gatewayService) IssueKeyForCode(ctx context.Context, code string) (string, auth.Response, error) {
	if code == "" {
		return "", auth.Response{}, fmt.Errorf("%w: authorization code is empty", ErrMalformedInput)
	}

	resp, err := s.authn.AuthenticateCode(ctx, code)
	if errors.Is(err, authn.ErrUpstreamUnavailable) {
		logging.Warnf("OAuth login could not reach the provider: %v", err)
		return "", auth.Deny("OAuth login failed"), nil
	}
	if err != nil || !resp.Success {
		return "", resp, err
	}

	key, err := s.IssueKeyForProfile(ctx, resp.Profile)
	if err != nil {
		return "", auth.Response{}, err
	}
	return key, resp, nil
}

func (s *gatewayService) ExistingKey(ctx context.Context, creds auth.Credentials) (string, auth.Response, error) {
	resp, err := s.authenticate(ctx, creds)
	if err != nil || !resp.Success {
		return "", resp, err
	}

	key, found, err := s.keys.GetKeyFor(ctx, resp.Profile.Username)
	if err != nil {
		return "", auth.Response{}, fmt.Errorf("load api key for %s: %w", resp.Profile.Username, err)
	}
	if !found {
		return "", resp, ErrNoKey
	}
	return key, resp, nil
}

func (s *gatewayService) RevokeKey(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("%w: api key is empty", ErrMalformedInput)
	}
	if err := s.keys.Delete(ctx, key); err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	return nil
}

func (s *gatewayService) Verify(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, fmt.Errorf("%w: api key is empty", ErrMalformedInput)
	}

	owner, _, err := s.keys.GetOwner(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("resolve api key owner: %w", err)
	}
	valid, err := s.keys.Validate(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("validate api key: %w", err)
	}
	return owner, valid, nil
}

func (s *gatewayService) Authorize(ctx context.Context, check auth.Check) (auth.Response, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerGateway, "gateway.Authorize",
		attribute.String(telemetry.AttrUsername, check.Username))
	defer span.End()

	if check.Action == nil {
		return auth.Response{}, fmt.Errorf("%w: authorization check has no action", ErrMalformedInput)
	}
	if check.Username == "" && check.APIKey == "" {
		return auth.Response{}, fmt.Errorf("%w: authorization check names neither a username nor an api key", ErrMalformedInput)
	}

	logging.Infof("Checking Authorization for Action: %s", check)

	if check.APIKey != "" {
		valid, err := s.keys.Validate(ctx, check.APIKey)
		if err != nil {
			telemetry.RecordError(span, err)
			return auth.Response{}, fmt.Errorf("validate api key: %w", err)
		}
		if !valid {
			return s.denied(ctx, "Failed to Authenticate", check, "Invalid API Key."), nil
		}

		owner, found, err := s.keys.GetOwner(ctx, check.APIKey)
		if err != nil {
			telemetry.RecordError(span, err)
			return auth.Response{}, fmt.Errorf("resolve api key owner: %w", err)
		}
		if !found {
			return s.denied(ctx, "Failed to Authenticate", check, "Invalid API Key."), nil
		}
		if check.Username != "" && owner != check.Username {
			return s.denied(ctx, "Failed to Authenticate", check, "API Key identity does not match the authorization check username."), nil
		}
		check.Username = owner
	}

	resp, err := s.authz.Authorize(ctx, check)
	if err != nil {
		telemetry.RecordError(span, err)
		return auth.Response{}, fmt.Errorf("error checking authorization: %s: %w", check, err)
	}
	if !resp.Success {
		return s.denied(ctx, "Failed to Authorize", check, resp.Details), nil
	}

	logging.Infof("Passed authorization check: %s", check)
	telemetry.RecordDecision(ctx, true, "", "")
	return auth.Allow(), nil
}

func (s *gatewayService) denied(ctx context.Context, stage string, check auth.Check, details string) auth.Response {
	logging.Infof("Failed authorization check: %s: %s", check, details)
	telemetry.RecordDecision(ctx, false, stage, details)
	return auth.Deny("%s: %s", stage, details)
}

func (s *gatewayService) Stats(ctx context.Context) (Stats, error) {
	profiles, err := s.profiles.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count profiles: %w", err)
	}
	keys, err := s.keys.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count api keys: %w", err)
	}
	throttled, err := s.throttle.CountExceeding(ctx, models.ThrottleComponentJob, s.ceiling)
	if err != nil {
		return Stats{}, fmt.Errorf("count throttled users: %w", err)
	}

	return Stats{
		Profiles:        profiles,
		ActiveKeys:      keys,
		ThrottledUsers:  throttled,
		ThrottleCeiling: s.ceiling,
		WindowStart:     s.throttle.WindowStart(),
		AuthnVariant:    s.authn.Variant(),
	}, nil
}
