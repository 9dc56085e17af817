package authn

import (
	"crypto/subtle"
	"strings"

	"github.com/venicegeo/pz-idam/internal/config"
)

var overrideEnvironments = map[string]struct{}{
	"int":   {},
	"stage": {},
	"test":  {},
}

// isTestOverride reports whether the directory bind may be skipped. This is
// the only place the bypass is decided.
func isTestOverride(env, username, secret string, approved []config.Credential) bool {
	return isTestOverrideEnvironment(env) && isApprovedTestIdentity(username, secret, approved)
}

func isTestOverrideEnvironment(env string) bool {
	_, ok := overrideEnvironments[strings.ToLower(strings.TrimSpace(env))]
	return ok
}

func isApprovedTestIdentity(username, secret string, approved []config.Credential) bool {
	match := 0
	for _, c := range approved {
		u := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username))
		s := subtle.ConstantTimeCompare([]byte(secret), []byte(c.Secret))
		match |= u & s
	}
	return match == 1
}
