// Package metrics exposes Prometheus instrumentation for the session and
// realtime layers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all Prometheus metrics for the FlowEx client.
type Registry struct {
	reg *prometheus.Registry

	// Realtime channel metrics
	WSConnects      prometheus.Counter
	WSReconnects    prometheus.Counter
	WSFrames        *prometheus.CounterVec
	WSDroppedFrames prometheus.Counter
	WSState         prometheus.Gauge

	// Auth metrics
	AuthRequests *prometheus.CounterVec

	// Store metrics
	Dispatches         *prometheus.CounterVec
	RehydrateFallbacks *prometheus.CounterVec
	PersistErrors      prometheus.Counter
}

// New creates a metrics registry with all client metrics registered.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		WSConnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowex_ws_connects_total",
			Help: "Total number of successful push channel connections",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowex_ws_reconnects_total",
			Help: "Total number of reconnect attempts after an unexpected close",
		}),
		WSFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowex_ws_frames_total",
			Help: "Total number of inbound push frames by type",
		}, []string{"type"}),
		WSDroppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowex_ws_dropped_frames_total",
			Help: "Total number of inbound frames dropped as malformed or unrecognized",
		}),
		WSState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flowex_ws_connection_state",
			Help: "Current connection state (0=disconnected 1=connecting 2=connected 3=reconnecting 4=closed)",
		}),

		AuthRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowex_auth_requests_total",
			Help: "Total number of auth REST requests by operation and outcome",
		}, []string{"operation", "outcome"}),

		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowex_store_dispatches_total",
			Help: "Total number of store actions dispatched by domain",
		}, []string{"domain"}),
		RehydrateFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowex_store_rehydrate_fallbacks_total",
			Help: "Total number of domains that fell back to defaults during rehydration",
		}, []string{"domain"}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowex_store_persist_errors_total",
			Help: "Total number of failed durable persistence writes",
		}),
	}

	r.reg.MustRegister(
		r.WSConnects, r.WSReconnects, r.WSFrames, r.WSDroppedFrames, r.WSState,
		r.AuthRequests, r.Dispatches, r.RehydrateFallbacks, r.PersistErrors,
	)
	return r
}

// Gatherer returns the underlying registry for the /metrics endpoint.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
