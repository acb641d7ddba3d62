// Package statusserver serves the bridge's local HTTP surface: health,
// readiness, a status document for tooling, and prometheus metrics.
package statusserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensquawk/simbridge/internal/bridge/runtime"
	"github.com/opensquawk/simbridge/pkg/log"
)

// StatusProvider is the slice of the bridge runtime the server reads.
type StatusProvider interface {
	Status() runtime.Status
}

// Server is the local status API, bound to localhost by default.
type Server struct {
	addr     string
	provider StatusProvider
	logger   log.Logger
}

// New builds a server for the given bind address.
func New(addr string, provider StatusProvider) *Server {
	return &Server{
		addr:     addr,
		provider: provider,
		logger:   log.WithName("statusserver"),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Status server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz reports 200 only when the bridge is linked and a flight is
// active; tooling uses it to tell "running" from "streaming".
func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if s.provider.Status().Active {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not streaming"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.provider.Status()); err != nil {
		s.logger.Warn("Status encode failed", "error", err)
	}
}
