package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, r *Registry, name string) float64 {
	t.Helper()
	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		require.Equal(t, dto.MetricType_COUNTER, mf.GetType())
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestRegistry_CountersGather(t *testing.T) {
	r := New()

	r.WSConnects.Inc()
	r.WSReconnects.Inc()
	r.WSReconnects.Inc()
	r.WSFrames.WithLabelValues("ticker_update").Inc()
	r.AuthRequests.WithLabelValues("login", "success").Inc()
	r.Dispatches.WithLabelValues("marketdata").Inc()

	assert.Equal(t, 1.0, counterValue(t, r, "flowex_ws_connects_total"))
	assert.Equal(t, 2.0, counterValue(t, r, "flowex_ws_reconnects_total"))
	assert.Equal(t, 1.0, counterValue(t, r, "flowex_ws_frames_total"))
	assert.Equal(t, 1.0, counterValue(t, r, "flowex_auth_requests_total"))
	assert.Equal(t, 1.0, counterValue(t, r, "flowex_store_dispatches_total"))
}

func TestRegistry_IndependentInstances(t *testing.T) {
	a := New()
	b := New()
	a.WSConnects.Inc()

	assert.Equal(t, 1.0, counterValue(t, a, "flowex_ws_connects_total"))
	assert.Equal(t, 0.0, counterValue(t, b, "flowex_ws_connects_total"))
}
