package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/config"
	"github.com/venicegeo/pz-idam/internal/db/models"
	"github.com/venicegeo/pz-idam/internal/gateway"
)

// internalFailure reads like a driver error that must stay in the logs.
var internalFailure = errors.New(`pq: connection to "postgres://idam:hunter2@db:5432/idam" refused`)

// fakeGateway answers from fixed tables.
type fakeGateway struct {
	keys      map[string]string // key -> owner
	passwords map[string]string // username -> secret
	revoked   []string
	authzResp auth.Response
	authzErr  error
	lastCheck auth.Check
}

var _ gateway.Service = (*fakeGateway)(nil)

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		keys:      map[string]string{"key-alice": "alice"},
		passwords: map[string]string{"alice": "secret", "bob": "secret"},
		authzResp: auth.Allow(),
	}
}

func (f *fakeGateway) AuthenticateKey(_ context.Context, key string) (auth.Response, error) {
	if key == "explode" {
		return auth.Response{}, internalFailure
	}
	owner, ok := f.keys[key]
	if !ok {
		return auth.Response{Success: false}, nil
	}
	return auth.Response{Success: true, Profile: &models.UserProfile{Username: owner}}, nil
}

func (f *fakeGateway) login(creds auth.Credentials) (auth.Response, error) {
	if creds.IsPEM() {
		return auth.Response{}, gateway.ErrMalformedInput
	}
	if creds.Username == "explode" {
		return auth.Response{}, fmt.Errorf("lookup profile: %w", internalFailure)
	}
	if f.passwords[creds.Username] != creds.Secret {
		return auth.Deny("Invalid credentials"), nil
	}
	return auth.Response{Success: true, Profile: &models.UserProfile{Username: creds.Username}}, nil
}

func (f *fakeGateway) IssueKey(_ context.Context, creds auth.Credentials) (string, auth.Response, error) {
	resp, err := f.login(creds)
	if err != nil || !resp.Success {
		return "", resp, err
	}
	key := "key-" + creds.Username + "-new"
	f.keys[key] = creds.Username
	return key, resp, nil
}

func (f *fakeGateway) IssueKeyForProfile(_ context.Context, p *models.UserProfile) (string, error) {
	key := "key-" + p.Username + "-oauth"
	f.keys[key] = p.Username
	return key, nil
}

func (f *fakeGateway) IssueKeyForCode(ctx context.Context, code string) (string, auth.Response, error) {
	if code == "" {
		return "", auth.Response{}, gateway.ErrMalformedInput
	}
	if code != "good-code" {
		return "", auth.Deny("rejected"), nil
	}
	profile := &models.UserProfile{Username: "oauthuser"}
	key, err := f.IssueKeyForProfile(ctx, profile)
	return key, auth.Response{Success: true, Profile: profile}, err
}

func (f *fakeGateway) ExistingKey(_ context.Context, creds auth.Credentials) (string, auth.Response, error) {
	resp, err := f.login(creds)
	if err != nil || !resp.Success {
		return "", resp, err
	}
	for key, owner := range f.keys {
		if owner == creds.Username {
			return key, resp, nil
		}
	}
	return "", resp, gateway.ErrNoKey
}

func (f *fakeGateway) RevokeKey(_ context.Context, key string) error {
	if key == "" {
		return gateway.ErrMalformedInput
	}
	delete(f.keys, key)
	f.revoked = append(f.revoked, key)
	return nil
}

func (f *fakeGateway) Verify(_ context.Context, key string) (string, bool, error) {
	if key == "explode" {
		return "", false, internalFailure
	}
	owner, ok := f.keys[key]
	return owner, ok, nil
}

func (f *fakeGateway) Authorize(_ context.Context, check auth.Check) (auth.Response, error) {
	f.lastCheck = check
	if check.Action == nil || (check.Username == "" && check.APIKey == "") {
		return auth.Response{}, gateway.ErrMalformedInput
	}
	return f.authzResp, f.authzErr
}

func (f *fakeGateway) Stats(context.Context) (gateway.Stats, error) {
	return gateway.Stats{Profiles: 2, ActiveKeys: len(f.keys), ThrottleCeiling: 10000, AuthnVariant: "directory"}, nil
}

func newTestRouter(gw gateway.Service) http.Handler {
	return NewRouter(RouterOptions{
		Gateway: gw,
		Server:  config.ServerConfig{CookieName: "api_key", KeyRateLimit: 1000, LoginRedirect: "/app"},
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func basic(user, secret string) map[string]string {
	return map[string]string{"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+secret))}
}

func TestHealth(t *testing.T) {
	h := newTestRouter(newFakeGateway())

	rec := do(t, h, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, healthMessage, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleAuthenticateKey(t *testing.T) {
	h := newTestRouter(newFakeGateway())

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantOK     bool
		wantDetail string
	}{
		{name: "valid uuid", body: `{"uuid":"key-alice"}`, wantStatus: http.StatusOK, wantOK: true},
		{name: "valid apiKey field", body: `{"apiKey":"key-alice"}`, wantStatus: http.StatusOK, wantOK: true},
		{name: "unknown key", body: `{"uuid":"nope"}`, wantStatus: http.StatusUnauthorized},
		{name: "null key", body: `{"uuid":null}`, wantStatus: http.StatusBadRequest, wantDetail: "API Key is null."},
		{name: "missing key", body: `{}`, wantStatus: http.StatusBadRequest, wantDetail: "API Key is null."},
		{name: "store failure", body: `{"uuid":"explode"}`, wantStatus: http.StatusInternalServerError},
		{name: "bad json", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/authn", tt.body, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)

			resp := decode[auth.Response](t, rec)
			assert.Equal(t, tt.wantOK, resp.Success)
			if tt.wantOK {
				require.NotNil(t, resp.Profile)
				assert.Equal(t, "alice", resp.Profile.Username)
			}
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, resp.Details)
			}
		})
	}
}

func TestHandleVerification(t *testing.T) {
	h := newTestRouter(newFakeGateway())

	rec := do(t, h, http.MethodPost, "/v2/verification", `{"uuid":"key-alice"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[VerificationResponse](t, rec)
	assert.Equal(t, "alice", resp.Username)
	assert.True(t, resp.Authenticated)

	rec = do(t, h, http.MethodPost, "/v2/verification", `{"uuid":"nope"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[VerificationResponse](t, rec).Authenticated)

	rec = do(t, h, http.MethodPost, "/v2/verification", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleIssueKey(t *testing.T) {
	h := newTestRouter(newFakeGateway())

	rec := do(t, h, http.MethodGet, "/key", "", basic("alice", "secret"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, KeyResponse{Type: "uuid", UUID: "key-alice-new"}, decode[KeyResponse](t, rec))

	rec = do(t, h, http.MethodGet, "/key", "", basic("alice", "wrong"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication failed for user alice", decode[ErrorResponse](t, rec).Message)

	rec = do(t, h, http.MethodGet, "/key", "", map[string]string{"Authorization": "Basic !!!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/key", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	pem := base64.StdEncoding.EncodeToString([]byte("not a certificate"))
	rec = do(t, h, http.MethodGet, "/key", "", map[string]string{"Authorization": "Basic " + pem})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleExistingKey(t *testing.T) {
	h := newTestRouter(newFakeGateway())

	rec := do(t, h, http.MethodGet, "/v2/key", "", basic("alice", "secret"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "key-alice", decode[KeyResponse](t, rec).UUID)

	rec = do(t, h, http.MethodGet, "/v2/key", "", basic("bob", "secret"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/v2/key", "", basic("bob", "wrong"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInternalErrorsStayOutOfResponses(t *testing.T) {
	h := newTestRouter(newFakeGateway())

	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		header  map[string]string
		message string
	}{
		{name: "authenticate key", method: http.MethodPost, path: "/authn", body: `{"uuid":"explode"}`, message: "Error authenticating UUID."},
		{name: "verification", method: http.MethodPost, path: "/v2/verification", body: `{"uuid":"explode"}`, message: "Error authenticating UUID."},
		{name: "issue key", method: http.MethodGet, path: "/key", header: basic("explode", "secret"), message: "Error retrieving UUID."},
		{name: "existing key", method: http.MethodGet, path: "/v2/key", header: basic("explode", "secret"), message: "Error retrieving API Key."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body, tt.header)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
			assert.NotContains(t, rec.Body.String(), "postgres://")
			assert.NotContains(t, rec.Body.String(), "hunter2")
		})
	}
}

func TestHandleRevokeKey(t *testing.T) {
	gw := newFakeGateway()
	h := newTestRouter(gw)

	rec := do(t, h, http.MethodDelete, "/v2/key/key-alice", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"key-alice"}, gw.revoked)

	// Unknown keys are a no-op
	rec = do(t, h, http.MethodDelete, "/v2/key/unknown", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleAuthorize(t *testing.T) {
	check := `{"username":"alice","action":{"requestMethod":"POST","uri":"job"}}`

	t.Run("allowed", func(t *testing.T) {
		gw := newFakeGateway()
		h := newTestRouter(gw)
		for _, path := range []string{"/authz", "/authorization"} {
			rec := do(t, h, http.MethodPost, path, check, nil)
			assert.Equal(t, http.StatusOK, rec.Code, path)
			assert.True(t, decode[auth.Response](t, rec).Success)
		}
		require.NotNil(t, gw.lastCheck.Action)
		assert.Equal(t, "POST:job", gw.lastCheck.Action.KeyName())
	})

	t.Run("denied", func(t *testing.T) {
		gw := newFakeGateway()
		gw.authzResp = auth.Deny("Failed to Authorize: Number of Jobs for user alice has been exceeded (10001). Please try again tomorrow.")
		rec := do(t, newTestRouter(gw), http.MethodPost, "/authz", check, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		resp := decode[auth.Response](t, rec)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Details, "exceeded")
	})

	t.Run("error", func(t *testing.T) {
		gw := newFakeGateway()
		gw.authzErr = fmt.Errorf("load template: %w", internalFailure)
		rec := do(t, newTestRouter(gw), http.MethodPost, "/authz", check, nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decode[auth.Response](t, rec)
		assert.False(t, resp.Success)
		assert.Equal(t, "Error checking authorization.", resp.Details)
		assert.NotContains(t, rec.Body.String(), "postgres://")
	})

	t.Run("malformed", func(t *testing.T) {
		h := newTestRouter(newFakeGateway())
		rec := do(t, h, http.MethodPost, "/authz", `{"action":{"requestMethod":"GET","uri":"job"}}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(t, h, http.MethodPost, "/authz", `not json`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleStats(t *testing.T) {
	gw := newFakeGateway()
	h := newTestRouter(gw)

	rec := do(t, h, http.MethodGet, "/admin/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/admin/stats", "", basic("key-alice", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gw.lastCheck.Action)
	assert.Equal(t, "GET:admin/stats", gw.lastCheck.Action.KeyName())
	assert.Equal(t, "alice", gw.lastCheck.Username)
	stats := decode[gateway.Stats](t, rec)
	assert.Equal(t, 2, stats.Profiles)
	assert.Equal(t, "directory", stats.AuthnVariant)
}

func TestKeyRateLimit(t *testing.T) {
	h := NewRouter(RouterOptions{
		Gateway: newFakeGateway(),
		Server:  config.ServerConfig{CookieName: "api_key", KeyRateLimit: 2},
	})

	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, do(t, h, http.MethodGet, "/key", "", basic("alice", "secret")).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
