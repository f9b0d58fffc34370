package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/d9705996/licenca/internal/metrics"
	"github.com/d9705996/licenca/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ServesBusinessMetrics(t *testing.T) {
	p, log, err := observability.New(context.Background(), &observability.Config{
		ServiceName:    "licenca-test",
		ServiceVersion: "dev",
		LogLevel:       "error",
		LogFormat:      "text",
	})
	require.NoError(t, err)
	require.NotNil(t, log)
	t.Cleanup(func() { p.Shutdown(context.Background()) })

	metrics.ObserveSeed("seeded")

	w := httptest.NewRecorder()
	p.MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `licenca_catalog_seeds_total{outcome="seeded"} 1`)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
