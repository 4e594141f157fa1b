package server

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"thumbsync/internal/models"
	"thumbsync/internal/scheduler"
	"thumbsync/internal/state"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusSource reports the scheduler state.
type StatusSource interface {
	Status() scheduler.Status
}

// HistorySource is the read side of the state store.
type HistorySource interface {
	LoadConfig() (models.CacheConfig, error)
	FingerprintCount() (int, error)
	RecentHistory(limit int) ([]models.HistoryEntry, error)
	RecentChanges(limit int) ([]models.ChangeEvent, error)
	HistoryDays() ([]string, error)
	DailyHistory(date string) (*state.DailyHistory, error)
}

// Options configures a Server.
type Options struct {
	Addr           string
	Scheduler      StatusSource
	Store          HistorySource
	MetricsEnabled bool
	Now            func() time.Time
}

// Server is the ops listener.
type Server struct {
	scheduler StatusSource
	store     HistorySource
	now       func() time.Time
	started   time.Time
	ready     atomic.Bool

	router *mux.Router
	srv    *http.Server
}

// New builds the router. The server reports not-ready until SetReady.
func New(opts Options) *Server {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Server{
		scheduler: opts.Scheduler,
		store:     opts.Store,
		now:       now,
		started:   now(),
	}
	s.router = s.setupRouter(opts.MetricsEnabled)
	s.srv = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRouter(metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()
	r.Use(Metrics(DefaultMetricsConfig()))

	r.HandleFunc("/health", s.HealthCheck).Methods("GET", "HEAD")
	r.HandleFunc("/healthz", s.HealthCheck).Methods("GET", "HEAD")
	r.HandleFunc("/livez", s.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", s.ReadinessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/version", s.GetVersion).Methods("GET")
	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.GetStatus).Methods("GET")
	api.HandleFunc("/config", s.GetConfig).Methods("GET")
	api.HandleFunc("/changes", s.GetChanges).Methods("GET")
	api.HandleFunc("/history", s.GetHistory).Methods("GET")
	api.HandleFunc("/history/days", s.GetHistoryDays).Methods("GET")
	api.HandleFunc("/history/{date}", s.GetDailyHistory).Methods("GET")
	return r
}

// Router returns the route table, for logging and tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// SetReady flips the readiness probe.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// IsReady reports the readiness probe state.
func (s *Server) IsReady() bool {
	return s.ready.Load()
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
// A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.SetReady(false)
	return s.srv.Shutdown(ctx)
}
