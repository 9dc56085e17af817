package authn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/config"
	"github.com/venicegeo/pz-idam/internal/logging"
)

// binder is the subset of *ldap.Conn used for a simple bind.
type binder interface {
	Bind(username, password string) error
	SetTimeout(time.Duration)
}

// dialFunc opens a directory connection. The returned func closes it.
type dialFunc func(url string, timeout time.Duration) (binder, func(), error)

func dialLDAP(url string, timeout time.Duration) (binder, func(), error) {
	conn, err := ldap.DialURL(url, ldap.DialWithDialer(&net.Dialer{Timeout: timeout}))
	if err != nil {
		return nil, nil, err
	}
	return conn, func() { conn.Close() }, nil
}

// DirectoryAuthenticator authenticates with an LDAP simple bind as
// uid=<username>,<userDN>. The directory carries no organization attributes,
// so profiles created through it have empty country and codes.
type DirectoryAuthenticator struct {
	url            string
	userDN         string
	timeout        time.Duration
	env            string
	testIdentities []config.Credential
	dial           dialFunc
}

// NewDirectoryAuthenticator creates the LDAP variant. env is the deployment
// environment used by the test identity override.
func NewDirectoryAuthenticator(cfg config.DirectoryConfig, timeout time.Duration, env string) *DirectoryAuthenticator {
	return &DirectoryAuthenticator{
		url:            cfg.URL,
		userDN:         cfg.UserDN,
		timeout:        timeout,
		env:            env,
		testIdentities: cfg.TestIdentities,
		dial:           dialLDAP,
	}
}

func (d *DirectoryAuthenticator) bindDN(username string) string {
	return "uid=" + ldap.EscapeDN(username) + "," + d.userDN
}

// AuthenticateCredential binds to the directory with the given credentials.
func (d *DirectoryAuthenticator) AuthenticateCredential(ctx context.Context, username, secret string) (Result, error) {
	if username == "" || secret == "" {
		return Result{}, fmt.Errorf("%w: username and password are required", ErrMalformedInput)
	}

	bindDN := d.bindDN(username)
	attrs := auth.Attributes{Username: username, DistinguishedName: bindDN}

	if isTestOverride(d.env, username, secret, d.testIdentities) {
		logging.Infof("directory bind skipped for approved test identity %s in %s", username, d.env)
		return accepted(attrs), nil
	}

	timeout := d.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return Result{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, context.DeadlineExceeded)
	}

	conn, closeConn, err := d.dial(d.url, timeout)
	if err != nil {
		return Result{}, fmt.Errorf("%w: dial directory: %v", ErrUpstreamUnavailable, err)
	}
	defer closeConn()
	conn.SetTimeout(timeout)

	if err := conn.Bind(bindDN, secret); err != nil {
		var ldapErr *ldap.Error
		switch {
		case ldap.IsErrorWithCode(err, ldap.ErrorNetwork):
			return Result{}, fmt.Errorf("%w: bind: %v", ErrUpstreamUnavailable, err)
		case ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials):
			logging.Infof("directory rejected credentials for %s", username)
			return rejected("Invalid credentials"), nil
		case errors.As(err, &ldapErr):
			logging.Warnf("directory bind for %s failed: %v", username, err)
			return rejected("Invalid credentials"), nil
		default:
			return Result{}, fmt.Errorf("%w: bind: %v", ErrUpstreamUnavailable, err)
		}
	}

	logging.Infof("directory bind succeeded for %s", username)
	return accepted(attrs), nil
}

// AuthenticatePEM is not supported by the directory.
func (d *DirectoryAuthenticator) AuthenticatePEM(ctx context.Context, pem string) (Result, error) {
	return rejected("PKI authentication is not supported"), nil
}
