package auth

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrMalformedHeader is returned when the Authorization header cannot be decoded.
var ErrMalformedHeader = errors.New("malformed authorization header")

// Credentials are the raw secrets presented on the key endpoints: either a
// username/secret pair or a PEM certificate.
type Credentials struct {
	Username string
	Secret   string
	PEM      string
}

// IsPEM reports whether the credentials carry a certificate.
func (c Credentials) IsPEM() bool {
	return c.PEM != ""
}

// ParseAuthorizationHeader decodes "<scheme> base64(payload)". A payload
// without a colon is treated as a PEM certificate; "user:secret" as a basic
// credential. Any other shape is rejected.
func ParseAuthorizationHeader(header string) (Credentials, error) {
	scheme, payload, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || scheme == "" {
		return Credentials{}, ErrMalformedHeader
	}

	payload = strings.TrimSpace(payload)
	if payload == "" || strings.Contains(payload, " ") {
		return Credentials{}, ErrMalformedHeader
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Credentials{}, ErrMalformedHeader
	}

	parts := strings.Split(string(decoded), ":")
	switch len(parts) {
	case 1:
		if strings.TrimSpace(parts[0]) == "" {
			return Credentials{}, ErrMalformedHeader
		}
		return Credentials{PEM: parts[0]}, nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return Credentials{}, ErrMalformedHeader
		}
		return Credentials{Username: parts[0], Secret: parts[1]}, nil
	default:
		return Credentials{}, ErrMalformedHeader
	}
}
