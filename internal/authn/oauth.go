package authn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/oauth2"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/logging"
)

// OAuthProfile is the provider's user profile resource.
type OAuthProfile struct {
	DN                             string `mapstructure:"DN"`
	UID                            string `mapstructure:"uid"`
	Username                       string `mapstructure:"username"`
	ServiceOrAgency                string `mapstructure:"serviceOrAgency"`
	AdministrativeOrganizationCode string `mapstructure:"AdministrativeOrganizationCode"`
	Email                          string `mapstructure:"email"`
	FirstName                      string `mapstructure:"firstname"`
	LastName                       string `mapstructure:"lastname"`
	MemberOf                       string `mapstructure:"memberof"`
	PersonaTypeCode                string `mapstructure:"personatypecode"`
}

// Identity returns the login name, preferring uid.
func (p OAuthProfile) Identity() string {
	if p.UID != "" {
		return p.UID
	}
	return p.Username
}

// Attributes converts the profile. The duty code is the administrative
// organization code; the profile resource carries no separate duty code.
func (p OAuthProfile) Attributes() auth.Attributes {
	return auth.Attributes{
		Username:          p.Identity(),
		DistinguishedName: p.DN,
		Country:           CountryFromDN(p.DN),
		ServiceOrAgency:   p.ServiceOrAgency,
		AdminCode:         p.AdministrativeOrganizationCode,
		DutyCode:          p.AdministrativeOrganizationCode,
	}
}

// CountryFromDN returns the value of the C= component of a distinguished
// name, or "" when there is none.
func CountryFromDN(dn string) string {
	for _, rdn := range strings.Split(dn, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(rdn), "=")
		if ok && strings.EqualFold(strings.TrimSpace(name), "C") {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// OAuthAuthenticator completes an authorization-code login and reads the
// user's profile resource with the issued access token.
type OAuthAuthenticator struct {
	rp         *auth.RelyingParty
	profileURL string
	timeout    time.Duration
}

// NewOAuthAuthenticator creates the OAuth variant.
func NewOAuthAuthenticator(rp *auth.RelyingParty, profileURL string, timeout time.Duration) *OAuthAuthenticator {
	return &OAuthAuthenticator{rp: rp, profileURL: profileURL, timeout: timeout}
}

// RelyingParty exposes the relying party for login initiation.
func (o *OAuthAuthenticator) RelyingParty() *auth.RelyingParty {
	return o.rp
}

// AuthenticateCredential is not supported; logins go through the browser flow.
func (o *OAuthAuthenticator) AuthenticateCredential(ctx context.Context, username, secret string) (Result, error) {
	return rejected("Credential authentication is not supported; use the OAuth login"), nil
}

// AuthenticatePEM is not supported; logins go through the browser flow.
func (o *OAuthAuthenticator) AuthenticatePEM(ctx context.Context, pem string) (Result, error) {
	return rejected("PKI authentication is not supported; use the OAuth login"), nil
}

// AuthenticateCode exchanges code for an access token and reads the profile.
func (o *OAuthAuthenticator) AuthenticateCode(ctx context.Context, code string) (Result, error) {
	if code == "" {
		return Result{}, fmt.Errorf("%w: authorization code is required", ErrMalformedInput)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	token, err := o.rp.Exchange(ctx, code)
	if err != nil {
		return exchangeFailure(err)
	}

	profile, err := o.fetchProfile(ctx, o.rp.Client(ctx, token))
	if err != nil {
		return Result{}, err
	}
	if profile == nil || profile.Identity() == "" || profile.DN == "" {
		logging.Errorf("profile resource did not identify the user")
		return rejected("Provider response did not identify the user"), nil
	}

	logging.Infow("oauth login succeeded", "username", profile.Identity(), "dn", profile.DN, "event", "userLoggedIn")
	return accepted(profile.Attributes()), nil
}

// exchangeFailure separates a code the provider refused (a 4xx from the token
// endpoint) from a provider that could not be reached or answered with
// something other than a token.
func exchangeFailure(err error) (Result, error) {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
		retrieveErr.Response.StatusCode < http.StatusInternalServerError {
		logging.Warnf("authorization code was refused: %v", err)
		return rejected("Authorization code was not accepted"), nil
	}
	return Result{}, fmt.Errorf("%w: token exchange: %v", ErrUpstreamUnavailable, err)
}

func (o *OAuthAuthenticator) fetchProfile(ctx context.Context, client *http.Client) (*OAuthProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.profileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: profile request: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: profile resource returned %d", ErrUpstreamUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		logging.Warnf("profile resource returned %d", resp.StatusCode)
		return nil, nil
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil || raw == nil {
		logging.Warnf("profile resource returned an unreadable body: %v", err)
		return nil, nil
	}

	var profile OAuthProfile
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &profile,
	})
	if err != nil {
		return nil, fmt.Errorf("create profile decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		logging.Warnf("profile resource has unexpected fields: %v", err)
		return nil, nil
	}
	return &profile, nil
}
