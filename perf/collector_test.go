package perf

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecordsLinkState(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.SetLinkState("n1", 2.5, 0.31, 3)
	assert.Equal(t, 2.5, testutil.ToFloat64(c.Degree.WithLabelValues("n1")))
	assert.Equal(t, 0.31, testutil.ToFloat64(c.Threshold.WithLabelValues("n1")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.Neighbours.WithLabelValues("n1")))
}

func TestCollectorCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.Frame("n1", "HELLO", "tx")
	c.Frame("n1", "HELLO", "tx")
	c.Warning("n2", WarningDuplicate)
	c.TxError("n3")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Frames.WithLabelValues("n1", "HELLO", "tx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Warnings.WithLabelValues("n2", WarningDuplicate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TxErrors.WithLabelValues("n3")))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.SetLinkState("n1", 1, 1, 1)
		c.Frame("n1", "HELLO", "rx")
		c.Warning("n1", WarningFirst)
		c.TxError("n1")
	})
}

func TestCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	require.NoError(t, err)
	second, err := NewCollector(reg)
	require.NoError(t, err)

	first.TxError("n1")
	assert.Equal(t, 1.0, testutil.ToFloat64(second.TxErrors.WithLabelValues("n1")))
}

func TestCollectorHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)
	c.SetLinkState("n7", 1, 0.5, 1)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `kdtm_kinetic_degree{node="n7"} 1`), body)
}
