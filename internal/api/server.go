// Package api exposes the gateway's operational HTTP surface: liveness,
// readiness, Prometheus metrics, and a status summary. Adapted from the
// teacher's REST API server, stripped of its tenant CRUD/pause/dashboard
// routes — a single-backend gateway has no tenants to administer, only a
// process to observe (spec §6 names no HTTP surface beyond what ops needs).
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/postmyrustache/gateway/internal/executor"
	"github.com/postmyrustache/gateway/internal/health"
	"github.com/postmyrustache/gateway/internal/metrics"
)

// Server is the operational HTTP API and metrics server.
type Server struct {
	healthCheck *health.Checker
	exec        *executor.Executor
	metrics     *metrics.Collector
	httpServer  *http.Server
	startTime   time.Time
	bind        string
}

// NewServer creates a new API server bound to addr ("host:port").
func NewServer(hc *health.Checker, exec *executor.Executor, m *metrics.Collector, addr string) *Server {
	return &Server{
		healthCheck: hc,
		exec:        exec,
		metrics:     m,
		startTime:   time.Now(),
		bind:        addr,
	}
}

// Start starts the HTTP API server.
func (s *Server) Start() error {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.healthzHandler).Methods("GET")
	r.HandleFunc("/readyz", s.readyzHandler).Methods("GET")
	r.HandleFunc("/status", s.statusHandler).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         s.bind,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Printf("[api] operational API listening on %s", s.bind)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// healthzHandler reports liveness: the process is up and serving.
func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyzHandler reports readiness: the backend database is reachable.
func (s *Server) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if s.healthCheck == nil || s.healthCheck.IsHealthy() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	report := s.healthCheck.GetStatus()
	writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
		"status": "not_ready",
		"health": report,
	})
}

// statusHandler reports process-level diagnostics.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := map[string]interface{}{
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
		"memory_mb":      float64(mem.Alloc) / 1024 / 1024,
	}
	if s.healthCheck != nil {
		resp["backend_health"] = s.healthCheck.GetStatus()
	}
	if s.exec != nil {
		resp["backend_pool"] = s.exec.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
