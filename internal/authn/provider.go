package authn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/config"
	"github.com/venicegeo/pz-idam/internal/logging"
)

const (
	certMechanism      = "GxCert"
	certHostIdentifier = "//OAMServlet/certprotected"
)

type basicRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	Mechanism      string `json:"mechanism"`
	HostIdentifier string `json:"hostIdentifier"`
}

type certRequest struct {
	PemCert        string `json:"pemCert"`
	Mechanism      string `json:"mechanism"`
	HostIdentifier string `json:"hostIdentifier"`
}

type principal struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type authnResponse struct {
	Successful bool `json:"successful"`
	Principals *struct {
		Principal []principal `json:"principal"`
	} `json:"principals"`
}

type attributeRequest struct {
	UID string `json:"uid"`
}

type attributeResponse struct {
	ServiceOrAgency     []string `json:"serviceoragency"`
	AdminOrgCode        []string `json:"gxadministrativeorganizationcode"`
	DutyOccupationCode  []string `json:"gxdutydodoccupationcode"`
	NationalityExtended []string `json:"nationalityextended"`
}

// ProviderAuthenticator authenticates against the provider's REST API and
// enriches successful logins from its attribute endpoint.
type ProviderAuthenticator struct {
	cfg     config.ProviderConfig
	timeout time.Duration
	client  *http.Client
}

// NewProviderAuthenticator creates the REST variant. A nil client gets one
// bounded by timeout.
func NewProviderAuthenticator(cfg config.ProviderConfig, timeout time.Duration, client *http.Client) *ProviderAuthenticator {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &ProviderAuthenticator{cfg: cfg, timeout: timeout, client: client}
}

// AuthenticateCredential checks a username and password.
func (p *ProviderAuthenticator) AuthenticateCredential(ctx context.Context, username, secret string) (Result, error) {
	if username == "" || secret == "" {
		return Result{}, fmt.Errorf("%w: username and password are required", ErrMalformedInput)
	}
	logging.Infow("performing credential check", "username", username, "event", "loginAttempt")

	var resp authnResponse
	ok, err := p.post(ctx, p.cfg.BasicURL, basicRequest{
		Username:       username,
		Password:       secret,
		Mechanism:      p.cfg.Mechanism,
		HostIdentifier: p.cfg.HostIdentifier,
	}, &resp)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return rejected("Authentication rejected by provider"), nil
	}
	return p.process(ctx, resp)
}

// AuthenticatePEM checks a client certificate.
func (p *ProviderAuthenticator) AuthenticatePEM(ctx context.Context, pem string) (Result, error) {
	cert, err := CanonicalPEM(pem)
	if err != nil {
		return Result{}, err
	}
	logging.Infow("performing certificate check", "event", "loginCertAttempt")

	var resp authnResponse
	ok, err := p.post(ctx, p.cfg.CertURL, certRequest{
		PemCert:        cert,
		Mechanism:      certMechanism,
		HostIdentifier: certHostIdentifier,
	}, &resp)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return rejected("Authentication rejected by provider"), nil
	}
	return p.process(ctx, resp)
}

func (p *ProviderAuthenticator) process(ctx context.Context, resp authnResponse) (Result, error) {
	if !resp.Successful {
		logging.Infow("provider rejected authentication", "event", "userFailedAuthentication")
		return rejected("Authentication rejected by provider"), nil
	}

	var username, dn string
	if resp.Principals != nil {
		for _, item := range resp.Principals.Principal {
			switch {
			case strings.EqualFold(item.Name, "UID"):
				username = item.Value
			case strings.EqualFold(item.Name, "DN"):
				dn = item.Value
			}
		}
	}
	if username == "" || dn == "" {
		logging.Errorf("provider authenticated but returned no identity (uid=%q, dn=%q)", username, dn)
		return rejected("Provider response did not identify the user"), nil
	}

	attrs, err := p.LookupAttributes(ctx, username)
	if err != nil {
		return Result{}, err
	}
	attrs.DistinguishedName = dn

	logging.Infow("provider authenticated user", "username", username, "dn", dn, "event", "userLoggedIn")
	return accepted(attrs), nil
}

// LookupAttributes fetches the organization attributes of a user. Missing
// values are left empty.
func (p *ProviderAuthenticator) LookupAttributes(ctx context.Context, username string) (auth.Attributes, error) {
	attrs := auth.Attributes{Username: username}

	var resp []attributeResponse
	ok, err := p.post(ctx, p.cfg.AttributeURL, attributeRequest{UID: username}, &resp)
	if err != nil {
		return attrs, err
	}
	if !ok || len(resp) == 0 {
		logging.Warnf("no attributes returned for %s", username)
		return attrs, nil
	}

	first := resp[0]
	attrs.Country = firstOf(first.NationalityExtended)
	attrs.ServiceOrAgency = firstOf(first.ServiceOrAgency)
	attrs.AdminCode = firstOf(first.AdminOrgCode)
	attrs.DutyCode = firstOf(first.DutyOccupationCode)
	return attrs, nil
}

// post sends body as JSON and decodes the reply into out. It returns false
// without error when the provider answered with a client error or a body
// that is empty or not the expected JSON.
func (p *ProviderAuthenticator) post(ctx context.Context, url string, body, out any) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return false, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return false, fmt.Errorf("%w: %s returned %d", ErrUpstreamUnavailable, url, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		logging.Warnf("%s returned %d", url, resp.StatusCode)
		return false, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("%w: read response: %v", ErrUpstreamUnavailable, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		logging.Warnf("%s returned an empty response", url)
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		logging.Warnf("%s returned an unreadable response: %v", url, err)
		return false, nil
	}
	return true, nil
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
