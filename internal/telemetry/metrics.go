package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// ServerMetrics holds metric instruments for HTTP server telemetry.
// Initialize once at server startup and reuse throughout the application lifecycle.
type ServerMetrics struct {
	RequestCounter  metric.Int64Counter     // Total HTTP requests
	RequestDuration metric.Float64Histogram // HTTP request latency
	ErrorCounter    metric.Int64Counter     // Total HTTP errors (5xx)
}

// NewServerMetrics creates a new ServerMetrics instance with pre-configured instruments.
func NewServerMetrics() (*ServerMetrics, error) {
	meter := otel.Meter("idam/http")

	requestCounter, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	// Buckets: 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s
	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"http.server.error.count",
		metric.WithDescription("Total number of HTTP server errors (5xx)"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &ServerMetrics{
		RequestCounter:  requestCounter,
		RequestDuration: requestDuration,
		ErrorCounter:    errorCounter,
	}, nil
}

// RecordRequest records an HTTP request with method, route, status, and duration.
func (m *ServerMetrics) RecordRequest(ctx context.Context, method, route, status string, durationMs float64) {
	attrs := metric.WithAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
		attribute.String(AttrHTTPStatusCode, status),
	)

	m.RequestCounter.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, durationMs, attrs)

	if len(status) > 0 && status[0] == '5' {
		m.ErrorCounter.Add(ctx, 1, attrs)
	}
}

// IdentityMetrics holds the gateway's decision counters.
type IdentityMetrics struct {
	AuthnAttempts      metric.Int64Counter
	AuthnDuration      metric.Float64Histogram
	AuthzDecisions     metric.Int64Counter
	KeyValidations     metric.Int64Counter
	ThrottleIncrements metric.Int64Counter
	JobEvents          metric.Int64Counter
}

// NewIdentityMetrics creates the decision instruments on the global meter.
func NewIdentityMetrics() (*IdentityMetrics, error) {
	return newIdentityMetrics(otel.Meter("idam/identity"))
}

func newIdentityMetrics(meter metric.Meter) (*IdentityMetrics, error) {
	authnAttempts, err := meter.Int64Counter(
		"idam.authn.attempt.count",
		metric.WithDescription("Authentication attempts by variant and result"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	authnDuration, err := meter.Float64Histogram(
		"idam.authn.duration",
		metric.WithDescription("Upstream authentication duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000),
	)
	if err != nil {
		return nil, err
	}

	authzDecisions, err := meter.Int64Counter(
		"idam.authz.decision.count",
		metric.WithDescription("Authorization decisions by authorizer and result"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	keyValidations, err := meter.Int64Counter(
		"idam.apikey.validation.count",
		metric.WithDescription("API key validations by result"),
		metric.WithUnit("{validation}"),
	)
	if err != nil {
		return nil, err
	}

	throttleIncrements, err := meter.Int64Counter(
		"idam.throttle.increment.count",
		metric.WithDescription("Throttle counter increments by component and result"),
		metric.WithUnit("{increment}"),
	)
	if err != nil {
		return nil, err
	}

	jobEvents, err := meter.Int64Counter(
		"idam.throttle.job_event.count",
		metric.WithDescription("Job events consumed from the stream by result"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &IdentityMetrics{
		AuthnAttempts:      authnAttempts,
		AuthnDuration:      authnDuration,
		AuthzDecisions:     authzDecisions,
		KeyValidations:     keyValidations,
		ThrottleIncrements: throttleIncrements,
		JobEvents:          jobEvents,
	}, nil
}

var identityMetrics = sync.OnceValue(func() *IdentityMetrics {
	m, err := NewIdentityMetrics()
	if err != nil {
		m, _ = newIdentityMetrics(noop.NewMeterProvider().Meter("idam/identity"))
	}
	return m
})

// Identity returns the process-wide decision instruments. Instruments created
// before Init are forwarded once the global provider is installed.
func Identity() *IdentityMetrics {
	return identityMetrics()
}

// RecordAuthn records an authentication attempt.
func (m *IdentityMetrics) RecordAuthn(ctx context.Context, variant, result string, durationMs float64) {
	attrs := metric.WithAttributes(
		attribute.String(AttrAuthnVariant, variant),
		attribute.String(AttrResult, result),
	)
	m.AuthnAttempts.Add(ctx, 1, attrs)
	m.AuthnDuration.Record(ctx, durationMs, attrs)
}

// RecordAuthz records one authorizer's decision.
func (m *IdentityMetrics) RecordAuthz(ctx context.Context, authorizer string, allowed bool) {
	m.AuthzDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAuthorizer, authorizer),
		attribute.String(AttrResult, allowDeny(allowed)),
	))
}

// RecordKeyValidation records an API key validation outcome.
func (m *IdentityMetrics) RecordKeyValidation(ctx context.Context, result string) {
	m.KeyValidations.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrResult, result)))
}

// RecordThrottleIncrement records a counter increment.
func (m *IdentityMetrics) RecordThrottleIncrement(ctx context.Context, component string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.ThrottleIncrements.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrThrottleComponent, component),
		attribute.String(AttrResult, result),
	))
}

// RecordJobEvent records the handling of one stream event.
func (m *IdentityMetrics) RecordJobEvent(ctx context.Context, result string) {
	m.JobEvents.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrResult, result)))
}

func allowDeny(allowed bool) string {
	if allowed {
		return ResultAllow
	}
	return ResultDeny
}

// Result attribute values
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultAllow    = "allow"
	ResultDeny     = "deny"
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultInvalid  = "invalid"
	ResultSkipped  = "skipped"
)

// Common metric attribute keys
const (
	AttrHTTPMethod     = "http.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"

	AttrResult            = "result"
	AttrAuthnVariant      = "authn.variant"
	AttrAuthorizer        = "authz.authorizer"
	AttrThrottleComponent = "throttle.component"
)
