package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/gateway"
	"github.com/venicegeo/pz-idam/internal/logging"
)

// KeyResponse carries an issued or existing api key.
type KeyResponse struct {
	Type string `json:"type"`
	UUID string `json:"uuid"`
}

// VerificationResponse is the body of POST /v2/verification.
type VerificationResponse struct {
	Type          string `json:"type"`
	Username      string `json:"username"`
	Authenticated bool   `json:"authenticated"`
}

// keyRequest accepts the key under either of its historical names.
type keyRequest struct {
	UUID   *string `json:"uuid"`
	APIKey *string `json:"apiKey"`
}

func (k keyRequest) key() (string, bool) {
	switch {
	case k.UUID != nil:
		return *k.UUID, true
	case k.APIKey != nil:
		return *k.APIKey, true
	default:
		return "", false
	}
}

// HandleAuthenticateKey handles POST /authn.
func HandleAuthenticateKey(svc gateway.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req keyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, auth.Deny("Request body is not valid JSON."))
			return
		}
		key, ok := req.key()
		if !ok || key == "" {
			logging.Infof("Received a null API Key during verification.")
			writeJSON(w, http.StatusBadRequest, auth.Deny("API Key is null."))
			return
		}

		resp, err := svc.AuthenticateKey(r.Context(), key)
		if err != nil {
			logging.Errorf("Error authenticating UUID: %v", err)
			writeJSON(w, http.StatusInternalServerError, auth.Deny("Error authenticating UUID."))
			return
		}
		if !resp.Success {
			writeJSON(w, http.StatusUnauthorized, resp)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleVerification handles POST /v2/verification.
func HandleVerification(svc gateway.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req keyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Request body is not valid JSON.")
			return
		}
		key, ok := req.key()
		if !ok || key == "" {
			writeError(w, http.StatusBadRequest, "UUID is null!")
			return
		}

		username, valid, err := svc.Verify(r.Context(), key)
		if err != nil {
			logging.Errorf("Error authenticating UUID: %v", err)
			writeError(w, http.StatusInternalServerError, "Error authenticating UUID.")
			return
		}
		writeJSON(w, http.StatusOK, VerificationResponse{Type: "auth", Username: username, Authenticated: valid})
	}
}

// HandleIssueKey handles GET /key. The Authorization header carries either
// base64(username:secret) or a base64 PEM certificate.
func HandleIssueKey(svc gateway.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds, ok := parseCredentials(w, r)
		if !ok {
			return
		}

		key, resp, err := svc.IssueKey(r.Context(), creds)
		if !handleCredentialOutcome(w, creds, resp, err, "Error retrieving UUID") {
			return
		}
		writeJSON(w, http.StatusOK, KeyResponse{Type: "uuid", UUID: key})
	}
}

// HandleExistingKey handles GET /v2/key. It never issues a key.
func HandleExistingKey(svc gateway.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds, ok := parseCredentials(w, r)
		if !ok {
			return
		}

		key, resp, err := svc.ExistingKey(r.Context(), creds)
		if errors.Is(err, gateway.ErrNoKey) {
			writeError(w, http.StatusNotFound, "No API Key exists for this user. Request one with GET /key.")
			return
		}
		if !handleCredentialOutcome(w, creds, resp, err, "Error retrieving API Key") {
			return
		}
		writeJSON(w, http.StatusOK, KeyResponse{Type: "uuid", UUID: key})
	}
}

// HandleRevokeKey handles DELETE /v2/key/{key}.
func HandleRevokeKey(svc gateway.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if err := svc.RevokeKey(r.Context(), key); err != nil {
			if errors.Is(err, gateway.ErrMalformedInput) {
				writeError(w, http.StatusBadRequest, "API Key is null.")
				return
			}
			logging.Errorf("Error revoking API Key: %v", err)
			writeError(w, http.StatusInternalServerError, "Error revoking API Key.")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "API Key revoked."})
	}
}

func parseCredentials(w http.ResponseWriter, r *http.Request) (auth.Credentials, bool) {
	creds, err := auth.ParseAuthorizationHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Authorization header must carry base64(username:secret) or a base64 PEM certificate.")
		return auth.Credentials{}, false
	}
	return creds, true
}

// handleCredentialOutcome writes the error or rejection response, if any,
// and reports whether the caller should continue with a success response.
func handleCredentialOutcome(w http.ResponseWriter, creds auth.Credentials, resp auth.Response, err error, errPrefix string) bool {
	switch {
	case errors.Is(err, gateway.ErrMalformedInput):
		writeError(w, http.StatusBadRequest, "Malformed credentials.")
		return false
	case err != nil:
		logging.Errorf("%s: %v", errPrefix, err)
		writeError(w, http.StatusInternalServerError, errPrefix+".")
		return false
	case !resp.Success:
		username := creds.Username
		if resp.Profile != nil {
			username = resp.Profile.Username
		}
		logging.Infof("Failed to generate key for user %s: %s", username, resp.Details)
		writeError(w, http.StatusUnauthorized, "Authentication failed for user "+username)
		return false
	}
	return true
}
