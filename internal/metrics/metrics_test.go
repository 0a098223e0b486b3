package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTick(t *testing.T) {
	r := NewRegistry()

	r.RecordTick(10*time.Millisecond, 5, 2, 3)
	r.RecordTick(20*time.Millisecond, 4, 1, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.TicksTotal))
	assert.Equal(t, 9.0, testutil.ToFloat64(r.NodesExecuted))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.NodesCulled), "gauges keep the last tick")
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Islands))
	assert.Equal(t, 1, testutil.CollectAndCount(r.TickDuration))
}

func TestRecordErrorsAndViolations(t *testing.T) {
	r := NewRegistry()

	r.RecordNodeError("execute")
	r.RecordNodeError("execute")
	r.RecordNodeError("destroy")
	r.RecordViolation("concurrent access")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.NodeErrors.WithLabelValues("execute")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.NodeErrors.WithLabelValues("destroy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.SafetyViolations.WithLabelValues("concurrent access")))
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := NewRegistry(), NewRegistry()
	a.RecordTick(time.Millisecond, 1, 0, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.TicksTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.TicksTotal))
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.RecordTick(time.Millisecond, 3, 0, 1)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tickflow_ticks_total 1")
	assert.Contains(t, rec.Body.String(), "tickflow_nodes_executed_total 3")
}
