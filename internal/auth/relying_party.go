package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	httphelper "github.com/zitadel/oidc/v3/pkg/http"
	"github.com/zitadel/oidc/v3/pkg/oidc"
	"golang.org/x/oauth2"

	"github.com/venicegeo/pz-idam/internal/config"
)

const stateCookieName = "idam.state"

// RelyingParty drives the OAuth authorization-code flow against the upstream
// provider by wrapping the zitadel/oidc RelyingParty in plain OAuth2 mode
// (the provider publishes no discovery document and issues no ID token).
type RelyingParty struct {
	rp      rp.RelyingParty
	cookies *httphelper.CookieHandler
	client  *http.Client
}

// NewRelyingParty builds the relying party. Client credentials are sent to
// the token endpoint in the Authorization header. client bounds every
// upstream call; pass nil to use http.DefaultClient.
func NewRelyingParty(cfg config.OAuthConfig, secureCookies bool, client *http.Client) (*RelyingParty, error) {
	if client == nil {
		client = http.DefaultClient
	}

	cookieOpts := []httphelper.CookieHandlerOpt{}
	if !secureCookies {
		cookieOpts = append(cookieOpts, httphelper.WithUnsecure())
	}
	cookies := httphelper.NewCookieHandler([]byte(cfg.CookieHashKey), []byte(cfg.CookieBlockKey), cookieOpts...)

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.AuthURL,
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	relyingParty, err := rp.NewRelyingPartyOAuth(oauthConfig,
		rp.WithCookieHandler(cookies),
		rp.WithHTTPClient(client),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OAuth relying party: %w", err)
	}

	return &RelyingParty{rp: relyingParty, cookies: cookies, client: client}, nil
}

// AuthCodeURL returns the URL for the authorization endpoint.
func (r *RelyingParty) AuthCodeURL(state string) string {
	return rp.AuthURL(state, r.rp)
}

// ErrNoAccessToken is returned by Exchange when the token endpoint answered
// without an access token.
var ErrNoAccessToken = errors.New("token response carried no access token")

// Exchange trades an authorization code for an access token.
func (r *RelyingParty) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tokens, err := rp.CodeExchange[*oidc.IDTokenClaims](ctx, code, r.rp)
	if err != nil {
		return nil, err
	}
	if tokens == nil || tokens.Token == nil || tokens.AccessToken == "" {
		return nil, ErrNoAccessToken
	}
	return tokens.Token, nil
}

// Client returns an HTTP client that presents token as a bearer credential.
func (r *RelyingParty) Client(ctx context.Context, token *oauth2.Token) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)
	return r.rp.OAuthConfig().Client(ctx, token)
}

// SetStateCookie stores the state nonce in a signed and encrypted cookie.
func (r *RelyingParty) SetStateCookie(w http.ResponseWriter, state string) error {
	return r.cookies.SetCookie(w, stateCookieName, state)
}

// VerifyStateCookie checks the returned state against the cookie and clears it.
func (r *RelyingParty) VerifyStateCookie(w http.ResponseWriter, req *http.Request, state string) error {
	stored, err := r.cookies.CheckCookie(req, stateCookieName)
	if err != nil {
		return fmt.Errorf("state cookie not found")
	}
	r.cookies.DeleteCookie(w, stateCookieName)
	if state == "" || stored != state {
		return fmt.Errorf("invalid state")
	}
	return nil
}

// generateRandomBytes creates a slice of random bytes of a specified size.
func generateRandomBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	_, err := io.ReadFull(rand.Reader, b)
	if err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

// GenerateNonce generates a random nonce string.
func GenerateNonce() (string, error) {
	b, err := generateRandomBytes(32)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
