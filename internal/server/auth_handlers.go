package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/config"
	"github.com/venicegeo/pz-idam/internal/gateway"
	"github.com/venicegeo/pz-idam/internal/logging"
)

// HandleOAuthLogin starts the authorization-code flow: it stores a state
// nonce in a signed cookie and redirects to the provider.
func HandleOAuthLogin(rpAuth *auth.RelyingParty) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := auth.GenerateNonce()
		if err != nil {
			logging.Errorf("OAuth login: failed to generate state: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to start login.")
			return
		}
		if err := rpAuth.SetStateCookie(w, state); err != nil {
			logging.Errorf("OAuth login: failed to set state cookie: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to start login.")
			return
		}
		http.Redirect(w, r, rpAuth.AuthCodeURL(state), http.StatusFound)
	}
}

// HandleOAuthCallback completes the login: it checks the state, exchanges
// the code, reconciles the profile, issues a key, stores it in the session
// cookie and redirects to the configured landing page.
func HandleOAuthCallback(rpAuth *auth.RelyingParty, svc gateway.Service, cfg config.ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if providerErr := query.Get("error"); providerErr != "" {
			logging.Warnf("OAuth callback: provider returned %s: %s", providerErr, query.Get("error_description"))
			writeError(w, http.StatusUnauthorized, "Login was not completed.")
			return
		}

		if err := rpAuth.VerifyStateCookie(w, r, query.Get("state")); err != nil {
			logging.Warnf("OAuth callback: %v", err)
			writeError(w, http.StatusUnauthorized, "Login state could not be verified.")
			return
		}

		key, resp, err := svc.IssueKeyForCode(r.Context(), query.Get("code"))
		switch {
		case errors.Is(err, gateway.ErrMalformedInput):
			writeError(w, http.StatusBadRequest, "Authorization code is missing.")
			return
		case err != nil:
			logging.Errorf("OAuth callback: %v", err)
			writeError(w, http.StatusInternalServerError, "Login failed.")
			return
		case !resp.Success:
			logging.Infof("OAuth callback rejected: %s", resp.Details)
			writeError(w, http.StatusUnauthorized, "Login failed.")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     cfg.CookieName,
			Value:    key,
			Path:     "/",
			HttpOnly: true,
			Secure:   cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})

		redirect := cfg.LoginRedirect
		if redirect == "" {
			redirect = "/"
		}
		http.Redirect(w, r, redirect, http.StatusFound)
	}
}

// HandleLogout revokes the key held in the session cookie and clears it.
func HandleLogout(svc gateway.Service, cfg config.ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(cfg.CookieName); err == nil && cookie.Value != "" {
			if err := svc.RevokeKey(r.Context(), cookie.Value); err != nil {
				logging.Errorf("Logout: failed to revoke key: %v", err)
				writeError(w, http.StatusInternalServerError, "Failed to revoke session.")
				return
			}
		}

		http.SetCookie(w, &http.Cookie{
			Name:     cfg.CookieName,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, map[string]string{"status": "Logged out."})
	}
}
