package cmdutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/config"
	"github.com/venicegeo/pz-idam/internal/db/dbtest"
)

func loadConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
	cfg, err := config.Load(config.New())
	require.NoError(t, err)
	return cfg
}

var (
	directoryEnv = map[string]string{
		"IDAM_AUTHN_MODE":              "directory",
		"IDAM_AUTHN_DIRECTORY_URL":     "ldap://ldap.example.com:389",
		"IDAM_AUTHN_DIRECTORY_USER_DN": "ou=people,dc=example,dc=com",
	}
	providerEnv = map[string]string{
		"IDAM_AUTHN_MODE":                   "provider",
		"IDAM_AUTHN_PROVIDER_BASIC_URL":     "https://gx.example.com/atnbasic",
		"IDAM_AUTHN_PROVIDER_CERT_URL":      "https://gx.example.com/atncert",
		"IDAM_AUTHN_PROVIDER_ATTRIBUTE_URL": "https://gx.example.com/ata",
	}
	oauthEnv = map[string]string{
		"IDAM_AUTHN_MODE":                   "oauth",
		"IDAM_AUTHN_OAUTH_CLIENT_ID":        "id",
		"IDAM_AUTHN_OAUTH_CLIENT_SECRET":    "secret",
		"IDAM_AUTHN_OAUTH_AUTH_URL":         "http://gx/authorize",
		"IDAM_AUTHN_OAUTH_TOKEN_URL":        "http://gx/tokens",
		"IDAM_AUTHN_OAUTH_PROFILE_URL":      "http://gx/me",
		"IDAM_AUTHN_OAUTH_REDIRECT_URI":     "http://idam/login",
		"IDAM_AUTHN_OAUTH_COOKIE_HASH_KEY":  "0123456789abcdef0123456789abcdef",
		"IDAM_AUTHN_OAUTH_COOKIE_BLOCK_KEY": "fedcba9876543210fedcba9876543210",
	}
)

func TestNewBundle_SelectsAuthenticator(t *testing.T) {
	tests := []struct {
		name         string
		env          map[string]string
		wantVariant  string
		wantRP       bool
		wantVerifier bool
	}{
		{name: "directory", env: directoryEnv, wantVariant: config.AuthnModeDirectory},
		{name: "provider", env: providerEnv, wantVariant: config.AuthnModeProvider, wantVerifier: true},
		{name: "oauth", env: oauthEnv, wantVariant: config.AuthnModeOAuth, wantRP: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadConfig(t, tt.env)

			b, err := newBundle(cfg, dbtest.New(t))
			require.NoError(t, err)

			assert.Equal(t, tt.wantVariant, b.Router.Variant())
			assert.Equal(t, tt.wantRP, b.RelyingParty != nil)

			_, ok := b.Verifier()
			assert.Equal(t, tt.wantVerifier, ok)

			_, ok = b.Router.CodeAuthenticator()
			assert.Equal(t, tt.wantRP, ok)
		})
	}
}

func TestNewBundle_GatewayRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := loadConfig(t, directoryEnv)

	b, err := newBundle(cfg, dbtest.New(t))
	require.NoError(t, err)

	key, err := b.Keys.Issue(ctx, "alice")
	require.NoError(t, err)

	resp, err := b.Gateway.Authorize(ctx, auth.Check{
		Username: "alice",
		APIKey:   key,
		Action:   &auth.Action{Method: "GET", Resource: "job"},
	})
	require.NoError(t, err)
	assert.True(t, resp.Success, resp.Details)

	stats, err := b.Gateway.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveKeys)
	assert.Equal(t, cfg.Throttle.Ceiling, stats.ThrottleCeiling)
	assert.Equal(t, config.AuthnModeDirectory, stats.AuthnVariant)
}

func TestNewPipeline_InvalidExpression(t *testing.T) {
	cfg := loadConfig(t, directoryEnv)
	cfg.Throttle.Expression = "Method =="

	_, err := NewPipeline(cfg, nil)
	assert.Error(t, err)
}

func TestNewAuthenticator_UnknownMode(t *testing.T) {
	cfg := loadConfig(t, directoryEnv)
	cfg.Authn.Mode = "kerberos"

	_, _, _, err := NewAuthenticator(cfg)
	assert.Error(t, err)
}

func TestConfigFrom(t *testing.T) {
	_, err := ConfigFrom(context.Background())
	assert.Error(t, err)

	cfg := &config.Config{Space: "int"}
	got, err := ConfigFrom(WithConfig(context.Background(), cfg))
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}
