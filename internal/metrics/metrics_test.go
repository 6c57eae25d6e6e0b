package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSolve(t *testing.T) {
	r := NewRegistry()

	r.RecordSolve("hazen-williams", "converged", 3*time.Millisecond, 12, []string{"pressure-low", "pressure-low"})
	r.RecordSolve("hazen-williams", "invalid", 0, 0, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.SolvesTotal.WithLabelValues("hazen-williams", "converged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.SolvesTotal.WithLabelValues("hazen-williams", "invalid")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.WarningsTotal.WithLabelValues("pressure-low")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.SolveIterations))
}

func TestRecordRequest(t *testing.T) {
	r := NewRegistry()
	r.RecordRequest("network_calc", http.StatusOK)
	r.RecordRequest("network_calc", http.StatusOK)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.HTTPRequestsTotal.WithLabelValues("network_calc", "OK")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRegistry()
	r.RecordSolve("darcy-weisbach", "converged", time.Millisecond, 4, nil)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "waternet_solves_total"))
}

func TestDefaultRegistryIsShared(t *testing.T) {
	assert.Same(t, DefaultRegistry(), DefaultRegistry())
}
