// Package server exposes the gateway over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/venicegeo/pz-idam/internal/auth"
	"github.com/venicegeo/pz-idam/internal/config"
	"github.com/venicegeo/pz-idam/internal/gateway"
	"github.com/venicegeo/pz-idam/internal/logging"
	idammiddleware "github.com/venicegeo/pz-idam/internal/middleware"
	"github.com/venicegeo/pz-idam/internal/telemetry"
)

// RouterOptions controls the construction of the HTTP router.
// Gateway is required; everything else is optional.
type RouterOptions struct {
	Gateway gateway.Service
	// RelyingParty enables the OAuth login routes
	RelyingParty   *auth.RelyingParty
	Server         config.ServerConfig
	Metrics        *telemetry.ServerMetrics
	MetricsHandler http.Handler
	Middleware     []func(http.Handler) http.Handler
}

// DefaultCORSOptions returns the CORS policy for the given origins.
func DefaultCORSOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

// NewRouter assembles a chi.Router with shared middleware, CORS policy, and
// the gateway handlers mounted.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger)
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(metricsMiddleware(opts.Metrics))
	}
	r.Use(cors.Handler(DefaultCORSOptions(opts.Server.CORSOrigins)))

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.Get("/", handleRoot)
	r.Get("/health", handleHealth)

	svc := opts.Gateway

	r.Post("/authn", HandleAuthenticateKey(svc))
	r.Post("/v2/verification", HandleVerification(svc))
	r.Post("/authz", HandleAuthorize(svc))
	r.Post("/authorization", HandleAuthorize(svc))

	// Credential endpoints reach the upstream provider, so they are rate limited per client
	r.Group(func(r chi.Router) {
		if opts.Server.KeyRateLimit > 0 {
			r.Use(httprate.LimitByIP(opts.Server.KeyRateLimit, time.Minute))
		}
		r.Get("/key", HandleIssueKey(svc))
		r.Get("/v2/key", HandleExistingKey(svc))
	})
	r.Delete("/v2/key/{key}", HandleRevokeKey(svc))

	if opts.RelyingParty != nil {
		r.Get("/login/geoaxis", HandleOAuthLogin(opts.RelyingParty))
		r.Get("/login", HandleOAuthCallback(opts.RelyingParty, svc, opts.Server))
	} else {
		logging.Debugf("OAuth login routes disabled")
	}
	r.Get("/logout", HandleLogout(svc, opts.Server))

	r.With(idammiddleware.RequireAPIKey(svc, "admin/stats")).Get("/admin/stats", HandleStats(svc))

	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	return r
}

// NewH2CHandler wraps the router with an h2c server to provide HTTP/2 over
// cleartext.
func NewH2CHandler(opts RouterOptions) http.Handler {
	return h2c.NewHandler(NewRouter(opts), &http2.Server{})
}
