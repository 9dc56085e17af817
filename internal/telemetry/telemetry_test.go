package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestNewReader_ServesIdentityMetrics(t *testing.T) {
	ctx := context.Background()

	reader, handler, err := NewReader()
	require.NoError(t, err)

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(ctx)

	m, err := newIdentityMetrics(provider.Meter("test"))
	require.NoError(t, err)

	m.RecordAuthn(ctx, "directory", ResultSuccess, 12)
	m.RecordAuthz(ctx, "endpoint", false)
	m.RecordKeyValidation(ctx, ResultInvalid)
	m.RecordThrottleIncrement(ctx, "JOB", nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "idam_authn_attempt_count")
	assert.Contains(t, body, "idam_authz_decision_count")
	assert.Contains(t, body, `result="deny"`)
	assert.Contains(t, body, "idam_apikey_validation_count")
	assert.Contains(t, body, "go_")
}

func TestIdentity_DefaultsToGlobalMeter(t *testing.T) {
	m := Identity()
	require.NotNil(t, m)
	assert.Same(t, m, Identity())

	// No provider installed; recording must not panic.
	m.RecordJobEvent(context.Background(), ResultOK)
}
