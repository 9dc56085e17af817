package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/gateway"
	"github.com/venicegeo/pz-idam/internal/logging"
)

// HandleAuthorize handles POST /authz and POST /authorization.
func HandleAuthorize(svc gateway.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var check auth.Check
		if err := json.NewDecoder(r.Body).Decode(&check); err != nil {
			writeJSON(w, http.StatusBadRequest, auth.Deny("Request body is not a valid authorization check."))
			return
		}

		resp, err := svc.Authorize(r.Context(), check)
		switch {
		case errors.Is(err, gateway.ErrMalformedInput):
			writeJSON(w, http.StatusBadRequest, auth.Deny("An authorization check requires an action and a username or API Key."))
		case err != nil:
			logging.Errorf("Error checking authorization: %s: %v", check, err)
			writeJSON(w, http.StatusInternalServerError, auth.Deny("Error checking authorization."))
		case !resp.Success:
			writeJSON(w, http.StatusUnauthorized, resp)
		default:
			writeJSON(w, http.StatusOK, resp)
		}
	}
}
