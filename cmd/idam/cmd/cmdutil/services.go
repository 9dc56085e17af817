// Package cmdutil wires configuration into the services shared by the CLI
// commands.
package cmdutil

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/authn"
	"github.com/venicegeo/pz-idam/internal/authz"
	"github.com/venicegeo/pz-idam/internal/config"
	"github.com/venicegeo/pz-idam/internal/db/bunx"
	"github.com/venicegeo/pz-idam/internal/gateway"
	"github.com/venicegeo/pz-idam/internal/repository"
	"github.com/venicegeo/pz-idam/internal/services/apikey"
	"github.com/venicegeo/pz-idam/internal/services/profile"
	"github.com/venicegeo/pz-idam/internal/services/throttle"
)

// Bundle holds the services built from one configuration together with the
// database connection they share.
type Bundle struct {
	DB           *bun.DB
	Keys         *apikey.Store
	Profiles     *profile.Reconciler
	Counter      *throttle.Counter
	Router       *authn.Router
	RelyingParty *auth.RelyingParty
	Gateway      gateway.Service

	profileRepo repository.UserProfileRepository
}

// Close releases the underlying database connection.
func (b *Bundle) Close() {
	if b == nil || b.DB == nil {
		return
	}
	_ = bunx.Close(b.DB)
}

// NewBundle connects to the database and constructs every service.
func NewBundle(ctx context.Context, cfg *config.Config) (*Bundle, error) {
	db, err := bunx.NewDB(ctx, cfg.DatabaseURL, bunx.Options{
		MaxOpenConns: cfg.MaxDBConnections,
		LogQueries:   cfg.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	b, err := newBundle(cfg, db)
	if err != nil {
		_ = bunx.Close(db)
		return nil, err
	}
	return b, nil
}

func newBundle(cfg *config.Config, db *bun.DB) (*Bundle, error) {
	profileRepo := repository.NewBunUserProfileRepository(db)

	keys := apikey.NewStore(repository.NewBunAPIKeyRepository(db)).
		WithLifetimes(cfg.APIKey.Expiration, cfg.APIKey.Inactivity)
	profiles := profile.NewReconciler(profileRepo)
	counter := throttle.NewCounter(repository.NewBunThrottleRepository(db)).
		WithWindow(cfg.Throttle.Window)

	variant, authenticator, rp, err := NewAuthenticator(cfg)
	if err != nil {
		return nil, err
	}
	router := authn.NewRouter(variant, authenticator, profiles)

	pipeline, err := NewPipeline(cfg, counter)
	if err != nil {
		return nil, err
	}

	svc, err := gateway.NewService(gateway.Dependencies{
		Authn:    router,
		Keys:     keys,
		Profiles: profiles,
		Authz:    pipeline,
		Throttle: counter,
		Ceiling:  cfg.Throttle.Ceiling,
	})
	if err != nil {
		return nil, err
	}

	return &Bundle{
		DB:           db,
		Keys:         keys,
		Profiles:     profiles,
		Counter:      counter,
		Router:       router,
		RelyingParty: rp,
		Gateway:      svc,
		profileRepo:  profileRepo,
	}, nil
}

// NewAuthenticator builds the single authenticator selected by
// cfg.Authn.Mode. The relying party is non-nil only in OAuth mode.
func NewAuthenticator(cfg *config.Config) (string, authn.Authenticator, *auth.RelyingParty, error) {
	timeout := cfg.Authn.UpstreamTimeout
	client := &http.Client{Timeout: timeout}

	switch cfg.Authn.Mode {
	case config.AuthnModeDirectory:
		return cfg.Authn.Mode, authn.NewDirectoryAuthenticator(cfg.Authn.Directory, timeout, cfg.Space), nil, nil
	case config.AuthnModeProvider:
		return cfg.Authn.Mode, authn.NewProviderAuthenticator(cfg.Authn.Provider, timeout, client), nil, nil
	case config.AuthnModeOAuth:
		rp, err := auth.NewRelyingParty(cfg.Authn.OAuth, cfg.Server.CookieSecure, client)
		if err != nil {
			return "", nil, nil, err
		}
		return cfg.Authn.Mode, authn.NewOAuthAuthenticator(rp, cfg.Authn.OAuth.ProfileURL, timeout), rp, nil
	default:
		return "", nil, nil, fmt.Errorf("unknown authentication mode %q", cfg.Authn.Mode)
	}
}

// NewPipeline builds the endpoint then throttle authorizers.
func NewPipeline(cfg *config.Config, counts authz.CountReader) (*authz.Pipeline, error) {
	templates, err := authz.NewTemplateStore(cfg.Authz.ProfilesDir, cfg.Authz.TemplateCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile templates: %w", err)
	}

	throttleAuthz, err := authz.NewThrottleAuthorizer(counts, cfg.Throttle.Ceiling, cfg.Throttle.Expression)
	if err != nil {
		return nil, err
	}

	return authz.NewPipeline(
		authz.NewEndpointAuthorizer(templates, cfg.Authz.DefaultRole),
		throttleAuthz,
	), nil
}

// Verifier returns the profile verification sweep when the configured
// authenticator can look attributes up.
func (b *Bundle) Verifier() (*profile.Verifier, bool) {
	source, ok := b.Router.AttributeSource()
	if !ok {
		return nil, false
	}
	return profile.NewVerifier(b.profileRepo, source, b.Keys), true
}

// NewRedisClient connects to the job event stream. Blocking reads honor
// context cancellation so the consumer can stop promptly.
func NewRedisClient(cfg config.RedisConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:                  cfg.Addr,
		Username:              cfg.Username,
		Password:              cfg.Password,
		DB:                    cfg.DB,
		DialTimeout:           cfg.DialTimeout,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		ContextTimeoutEnabled: true,
	})
}
