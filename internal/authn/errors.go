package authn

import "errors"

var (
	// ErrUpstreamUnavailable is returned when the identity provider could not
	// be reached or did not answer in time.
	ErrUpstreamUnavailable = errors.New("identity provider unavailable")

	// ErrMalformedInput is returned for empty credentials or an unparseable
	// certificate, before any upstream call is made.
	ErrMalformedInput = errors.New("malformed credentials")
)
