package auth

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// APIKeyFromRequest extracts the API key a platform client presents. Clients
// send the key as the user part of a Basic credential with an empty password;
// a Bearer token is accepted as well. Returns "" when neither is present.
func APIKeyFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	switch {
	case strings.HasPrefix(header, "Bearer "):
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	case strings.HasPrefix(header, "Basic "):
		return keyFromBasicAuth(header)
	default:
		return ""
	}
}

func keyFromBasicAuth(header string) string {
	payload := strings.TrimSpace(strings.TrimPrefix(header, "Basic "))
	if payload == "" {
		return ""
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ""
	}

	key, _, _ := strings.Cut(string(decoded), ":")
	return strings.TrimSpace(key)
}
