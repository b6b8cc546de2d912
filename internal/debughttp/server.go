// Package debughttp exposes a local-only introspection server: Prometheus
// metrics, a health snapshot of the session and push channel, and the
// latest cached ticks.
package debughttp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/flowex/flowex-go/internal/cache"
	"github.com/flowex/flowex-go/internal/metrics"
	"github.com/flowex/flowex-go/internal/realtime"
	"github.com/flowex/flowex-go/internal/session"
)

// Server is the debug HTTP server. It binds to loopback unless configured
// otherwise and serves read-only endpoints.
type Server struct {
	router  *mux.Router
	server  *http.Server
	manager *session.Manager
	channel *realtime.Channel
	ticks   *cache.Ticks
}

// Options wires the server to the components it reports on. Any field may
// be nil; the matching endpoint then reports it as absent.
type Options struct {
	Addr    string
	Metrics *metrics.Registry
	Manager *session.Manager
	Channel *realtime.Channel
	Ticks   *cache.Ticks
}

func New(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:8090"
	}
	s := &Server{
		router:  mux.NewRouter(),
		manager: opts.Manager,
		channel: opts.Channel,
		ticks:   opts.Ticks,
	}
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ticks/{symbol}", s.handleTick).Methods("GET")
	if opts.Metrics != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(opts.Metrics.Gatherer(), promhttp.HandlerOpts{}))
	}
	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves in the background until Stop is called.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.server.Addr).Msg("Debug HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Debug HTTP server failed")
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type healthResponse struct {
	Status     string `json:"status"`
	Session    string `json:"session"`
	Connection string `json:"connection"`
	Timestamp  string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "ok",
		Session:    "absent",
		Connection: "absent",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if s.manager != nil {
		resp.Session = string(s.manager.Session().Status)
	}
	if s.channel != nil {
		resp.Connection = s.channel.State().String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	if s.ticks == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "tick cache not configured"})
		return
	}
	symbol := mux.Vars(r)["symbol"]
	tick, ok := s.ticks.Latest(symbol)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no tick for symbol"})
		return
	}
	writeJSON(w, http.StatusOK, tick)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Debug response encode failed")
	}
}
