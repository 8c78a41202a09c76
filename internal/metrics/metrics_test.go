package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.EventEmitted("START")
	m.EventEmitted("START")
	m.EventEmitted("FAIL")
	m.EmitFailed("COMPLETE")
	m.RecoveryFailed("marker_not_found")
	m.ErrorClassified("forbidden")

	assert.InDelta(t, 2, testutil.ToFloat64(m.eventsEmitted.WithLabelValues("START")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.eventsEmitted.WithLabelValues("FAIL")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.emitErrors.WithLabelValues("COMPLETE")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.recoveryFailures.WithLabelValues("marker_not_found")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.classifiedErrors.WithLabelValues("forbidden")), 0)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.EventEmitted("START")
		m.EmitFailed("START")
		m.RecoveryFailed("run_not_found")
		m.ErrorClassified("unknown")
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.EventEmitted("COMPLETE")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `leaplineage_events_emitted_total{event_type="COMPLETE"} 1`)

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
