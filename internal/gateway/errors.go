package gateway

import (
	"errors"

	"github.com/venicegeo/pz-idam/internal/authn"
)

var (
	// ErrNoKey is returned by ExistingKey when the caller holds no key.
	ErrNoKey = errors.New("no api key exists for user")

	// ErrMalformedInput is returned when a request lacks the identity or
	// action it needs. It is the same sentinel the authenticators use.
	ErrMalformedInput = authn.ErrMalformedInput
)
