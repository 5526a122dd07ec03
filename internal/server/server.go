// Package server exposes the dashboard metrics as a JSON API.
package server

import (
	"context"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wesm/barview/internal/config"
	"github.com/wesm/barview/internal/db"
)

// VersionInfo holds build-time version metadata.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Server is the HTTP server of the dashboard API.
type Server struct {
	mu       sync.RWMutex
	cfg      config.Config
	provider *db.Provider
	mux      *http.ServeMux
	httpSrv  *http.Server
	version  VersionInfo
	clock    clockwork.Clock
	loc      *time.Location

	stale    *staleCache
	registry *prometheus.Registry
	served   *prometheus.CounterVec

	// handlerDelay is injected before each timeout-wrapped
	// handler, used only by tests to guarantee handlers
	// exceed a short timeout. Zero in production.
	handlerDelay time.Duration
}

// New creates a new Server reading databases from provider.
func New(
	cfg config.Config, provider *db.Provider, opts ...Option,
) *Server {
	loc, err := cfg.Location()
	if err != nil {
		log.Printf("invalid timezone %q, using local time: %v",
			cfg.Timezone, err)
		loc = time.Local
	}

	s := &Server{
		cfg:      cfg,
		provider: provider,
		mux:      http.NewServeMux(),
		clock:    clockwork.NewRealClock(),
		loc:      loc,
		stale:    newStaleCache(maxStaleEntries),
		registry: prometheus.NewRegistry(),
		served: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "barview",
				Subsystem: "http",
				Name:      "section_responses_total",
				Help:      "Dashboard section responses by outcome.",
			},
			[]string{"section", "outcome"},
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registry.MustRegister(db.Collectors()...)
	s.registry.MustRegister(
		s.served,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.routes()
	return s
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the build-time version metadata.
func WithVersion(v VersionInfo) Option {
	return func(s *Server) { s.version = v }
}

// WithClock sets the clock used for "minutes since" figures.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) {
		if c != nil {
			s.clock = c
		}
	}
}

func (s *Server) routes() {
	s.mux.Handle("GET /api/v1/context", s.withTimeout(s.handleContext))
	s.mux.Handle("GET /api/v1/health", s.withTimeout(s.handleHealth))
	s.mux.Handle("GET /api/v1/operations", s.withTimeout(s.handleOperations))

	s.mux.Handle("GET /api/v1/kpis", s.withTimeout(s.handleKPIs))
	s.mux.Handle("GET /api/v1/status", s.withTimeout(s.handleStatus))
	s.mux.Handle("GET /api/v1/status/ids", s.withTimeout(s.handleStatusIDs))
	s.mux.Handle(
		"GET /api/v1/status/snapshot", s.withTimeout(s.handlePrintSnapshot),
	)

	s.mux.Handle("GET /api/v1/charts/hourly", s.withTimeout(s.handleSalesByHour))
	s.mux.Handle(
		"GET /api/v1/charts/categories", s.withTimeout(s.handleSalesByCategory),
	)
	s.mux.Handle("GET /api/v1/charts/users", s.withTimeout(s.handleSalesByUser))
	s.mux.Handle("GET /api/v1/charts/products", s.withTimeout(s.handleTopProducts))

	s.mux.Handle("GET /api/v1/margins", s.withTimeout(s.handleMarginSummary))
	s.mux.Handle("GET /api/v1/margins/detail", s.withTimeout(s.handleMarginDetail))
	s.mux.Handle("GET /api/v1/margins/cogs", s.withTimeout(s.handleCOGSByOrder))
	s.mux.Handle(
		"GET /api/v1/margins/pour-cost", s.withTimeout(s.handlePourCost),
	)

	s.mux.Handle(
		"GET /api/v1/consumption/valued", s.withTimeout(s.handleValuedConsumption),
	)
	s.mux.Handle(
		"GET /api/v1/consumption/unvalued",
		s.withTimeout(s.handleUnvaluedConsumption),
	)

	s.mux.Handle("GET /api/v1/detail", s.withTimeout(s.handleDetail))
	s.mux.Handle(
		"GET /api/v1/orders/{id}/items", s.withTimeout(s.handleOrderItems),
	)
	s.mux.Handle("GET /api/v1/activity", s.withTimeout(s.handleActivity))

	s.mux.Handle("GET /api/v1/version", s.withTimeout(s.handleGetVersion))
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(
		s.registry, promhttp.HandlerOpts{Registry: s.registry},
	))
}

func (s *Server) handleGetVersion(
	w http.ResponseWriter, _ *http.Request,
) {
	writeJSON(w, http.StatusOK, s.version)
}

// SetPort updates the listen port (for testing).
func (s *Server) SetPort(port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Port = port
}

// Handler returns the http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(requestIDMiddleware(logMiddleware(s.mux)))
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.mu.Lock()
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.httpSrv = srv
	s.mu.Unlock()
	log.Printf("Starting server at http://%s", addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.httpSrv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// FindAvailablePort finds an available port starting from the
// given port, binding to the specified host.
func FindAvailablePort(host string, start int) int {
	for port := start; port < start+100; port++ {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			ln.Close()
			return port
		}
	}
	return start
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set(
				"Access-Control-Allow-Headers", "Content-Type, X-Request-ID",
			)
			w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Printf("%s %s [%s]", r.Method, r.URL.Path, requestID(r.Context()))
		}
		next.ServeHTTP(w, r)
	})
}

