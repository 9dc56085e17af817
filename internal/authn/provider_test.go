package authn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venicegeo/pz-idam/internal/config"
)

type fakeProvider struct {
	t            *testing.T
	basicReply   string
	certReply    string
	attrReply    string
	attrStatus   int
	lastBasic    basicRequest
	lastCert     certRequest
	lastAttrUID  string
	attrRequests int
}

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /atnbasic", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.lastBasic))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.basicReply))
	})
	mux.HandleFunc("POST /atncert", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.lastCert))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.certReply))
	})
	mux.HandleFunc("POST /ata", func(w http.ResponseWriter, r *http.Request) {
		f.attrRequests++
		var req attributeRequest
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.lastAttrUID = req.UID
		if f.attrStatus != 0 {
			w.WriteHeader(f.attrStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.attrReply))
	})
	mux.HandleFunc("POST /slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	return mux
}

const successfulAuthn = `{
	"successful": true,
	"principals": {"principal": [
		{"name": "uid", "value": "jdoe"},
		{"name": "dn", "value": "CN=Doe John,OU=People,O=Example,C=US"}
	]}
}`

func newTestProvider(t *testing.T, fake *fakeProvider) (*ProviderAuthenticator, *httptest.Server) {
	t.Helper()
	fake.t = t
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	return NewProviderAuthenticator(config.ProviderConfig{
		BasicURL:       server.URL + "/atnbasic",
		CertURL:        server.URL + "/atncert",
		AttributeURL:   server.URL + "/ata",
		Mechanism:      "GxDisAus",
		HostIdentifier: "//OAMServlet/disaususerprotected",
	}, time.Second, nil), server
}

func TestProviderAuthenticator_Credential(t *testing.T) {
	fake := &fakeProvider{
		basicReply: successfulAuthn,
		attrReply: `[{
			"serviceoragency": ["DOD"],
			"gxadministrativeorganizationcode": ["ADM1"],
			"gxdutydodoccupationcode": ["DUTY1"],
			"nationalityextended": ["US"]
		}]`,
	}
	p, _ := newTestProvider(t, fake)

	result, err := p.AuthenticateCredential(context.Background(), "jdoe", "hunter2")
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, basicRequest{
		Username:       "jdoe",
		Password:       "hunter2",
		Mechanism:      "GxDisAus",
		HostIdentifier: "//OAMServlet/disaususerprotected",
	}, fake.lastBasic)
	assert.Equal(t, "jdoe", fake.lastAttrUID)

	attrs := result.Attributes
	assert.Equal(t, "jdoe", attrs.Username)
	assert.Equal(t, "CN=Doe John,OU=People,O=Example,C=US", attrs.DistinguishedName)
	assert.Equal(t, "US", attrs.Country)
	assert.Equal(t, "DOD", attrs.ServiceOrAgency)
	assert.Equal(t, "ADM1", attrs.AdminCode)
	assert.Equal(t, "DUTY1", attrs.DutyCode)
}

func TestProviderAuthenticator_PEM(t *testing.T) {
	fake := &fakeProvider{certReply: successfulAuthn, attrReply: `[]`}
	p, _ := newTestProvider(t, fake)

	result, err := p.AuthenticatePEM(context.Background(), "-----BEGIN CERTIFICATE----- AAAA BBBB -----END CERTIFICATE-----")
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, certRequest{
		PemCert:        "-----BEGIN CERTIFICATE-----\nAAAA\nBBBB\n-----END CERTIFICATE-----",
		Mechanism:      "GxCert",
		HostIdentifier: "//OAMServlet/certprotected",
	}, fake.lastCert)
	assert.Empty(t, result.Attributes.Country)
}

func TestProviderAuthenticator_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "unsuccessful", reply: `{"successful": false}`},
		{name: "null body", reply: `null`},
		{name: "empty body", reply: ``},
		{name: "missing dn", reply: `{"successful": true, "principals": {"principal": [{"name": "UID", "value": "jdoe"}]}}`},
		{name: "no principals", reply: `{"successful": true}`},
		{name: "not json", reply: `<html>maintenance</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeProvider{basicReply: tt.reply, attrReply: `[]`}
			p, _ := newTestProvider(t, fake)

			result, err := p.AuthenticateCredential(context.Background(), "jdoe", "hunter2")
			require.NoError(t, err)
			assert.False(t, result.Success)
			assert.Nil(t, result.Attributes)
			assert.Zero(t, fake.attrRequests)
		})
	}
}

func TestProviderAuthenticator_Upstream(t *testing.T) {
	t.Run("server error is unavailable", func(t *testing.T) {
		fake := &fakeProvider{basicReply: successfulAuthn, attrStatus: http.StatusBadGateway}
		p, _ := newTestProvider(t, fake)

		_, err := p.AuthenticateCredential(context.Background(), "jdoe", "hunter2")
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	})

	t.Run("timeout is unavailable", func(t *testing.T) {
		fake := &fakeProvider{}
		p, server := newTestProvider(t, fake)
		p.cfg.BasicURL = server.URL + "/slow"
		p.timeout = 50 * time.Millisecond

		_, err := p.AuthenticateCredential(context.Background(), "jdoe", "hunter2")
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	})

	t.Run("unreachable host", func(t *testing.T) {
		fake := &fakeProvider{}
		p, server := newTestProvider(t, fake)
		server.Close()

		_, err := p.AuthenticateCredential(context.Background(), "jdoe", "hunter2")
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	})

	t.Run("malformed input makes no call", func(t *testing.T) {
		fake := &fakeProvider{}
		p, _ := newTestProvider(t, fake)

		_, err := p.AuthenticatePEM(context.Background(), "not a certificate")
		assert.ErrorIs(t, err, ErrMalformedInput)
		_, err = p.AuthenticateCredential(context.Background(), "jdoe", "")
		assert.ErrorIs(t, err, ErrMalformedInput)
		assert.Empty(t, fake.lastBasic.Username)
	})
}

func TestProviderAuthenticator_LookupAttributes(t *testing.T) {
	fake := &fakeProvider{attrReply: `[{"serviceoragency": ["NGA"], "nationalityextended": ["US"]}, {"nationalityextended": ["CA"]}]`}
	p, _ := newTestProvider(t, fake)

	attrs, err := p.LookupAttributes(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", attrs.Username)
	assert.Equal(t, "US", attrs.Country)
	assert.Equal(t, "NGA", attrs.ServiceOrAgency)
	assert.Empty(t, attrs.AdminCode)
	assert.Empty(t, attrs.DutyCode)

	var _ AttributeSource = p
}
