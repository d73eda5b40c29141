/*
Copyright (C) 2026 Opswindow Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes the daemon's observation surface: health, the
// current desired/observed verdict, recent outcomes, and Prometheus metrics.
// It never mutates anything; actions only ever flow through the reconciler.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/opswindow/opswindow/internal/audit"
	"github.com/opswindow/opswindow/internal/config"
	"github.com/opswindow/opswindow/internal/history"
	"github.com/opswindow/opswindow/internal/telemetry"
)

// Server bundles the HTTP observation endpoints.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	ring       *history.Ring
	auditStore *audit.Store
	startedAt  time.Time
}

// New wires the router. auditStore may be nil when auditing is disabled.
func New(cfg *config.Config, ring *history.Ring, auditStore *audit.Store, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		logger:     logger.With().Str("component", "server").Logger(),
		ring:       ring,
		auditStore: auditStore,
		startedAt:  time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.MetricsMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/status", s.handleStatus)
	r.Get("/outcomes", s.handleOutcomes)
	r.Get("/audit", s.handleAudit)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// HTTPServer returns the configured http.Server for the caller to run.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Router exposes the handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports ready once the first invocation has completed, so load
// balancers don't route to a daemon that has not yet observed the instance.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ring.Len() == 0 {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "waiting for first invocation"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	resp := map[string]any{
		"instance_id": s.cfg.InstanceID,
		"desired_now": s.cfg.Policy.DesiredState(now),
		"uptime":      time.Since(s.startedAt).Round(time.Second).String(),
	}
	if t, ok := s.cfg.Policy.NextTransition(now); ok {
		resp["next_transition"] = map[string]any{
			"at": t.At.Format(time.RFC3339),
			"to": t.To,
		}
	}
	if last, ok := s.ring.Last(); ok {
		resp["last_outcome"] = last
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &limit); err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"outcomes": s.ring.Recent(limit),
	})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditStore == nil {
		http.Error(w, "audit store disabled", http.StatusNotFound)
		return
	}
	records, err := s.auditStore.Recent(r.Context(), 50)
	if err != nil {
		s.logger.Error().Err(err).Msg("audit query failed")
		http.Error(w, "audit query failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
