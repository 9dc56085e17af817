package server

import (
	"encoding/json"
	"net/http"

	"github.com/venicegeo/pz-idam/internal/logging"
)

const componentName = "IDAM"

// ErrorResponse is the body of every non-decision error.
type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Origin  string `json:"origin"`
}

func newErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Type: "error", Message: message, Origin: componentName}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Warnf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, newErrorResponse(message))
}
