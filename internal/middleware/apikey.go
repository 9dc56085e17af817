// Package middleware guards HTTP routes with platform API keys.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/logging"
)

// KeyAuthorizer resolves key owners and runs the authorization pipeline.
type KeyAuthorizer interface {
	Verify(ctx context.Context, key string) (string, bool, error)
	Authorize(ctx context.Context, check auth.Check) (auth.Response, error)
}

// RequireAPIKey admits requests whose API key is valid and whose owner may
// perform the request method on resource. The owner's username is stored in
// the request context.
func RequireAPIKey(authz KeyAuthorizer, resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := auth.APIKeyFromRequest(r)
			if key == "" {
				unauthorized(w, "API Key is required.")
				return
			}

			ctx := r.Context()
			username, valid, err := authz.Verify(ctx, key)
			if err != nil {
				logging.Errorf("verify api key for %s %s: %v", r.Method, r.URL.Path, err)
				writeError(w, http.StatusInternalServerError, "Error authenticating API Key.")
				return
			}
			if !valid {
				unauthorized(w, "Invalid API Key.")
				return
			}

			resp, err := authz.Authorize(ctx, auth.Check{
				Username: username,
				APIKey:   key,
				Action:   &auth.Action{Method: r.Method, Resource: resource},
			})
			if err != nil {
				logging.Errorf("authorize %s for %s:%s: %v", username, r.Method, resource, err)
				writeError(w, http.StatusInternalServerError, "Error checking authorization.")
				return
			}
			if !resp.Success {
				logging.Infof("denied %s for %s:%s: %s", username, r.Method, resource, resp.Details)
				unauthorized(w, resp.Details)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.SetUsernameContext(ctx, username)))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, message)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"type":    "error",
		"message": message,
		"origin":  "IDAM",
	})
}
