package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/minhvu/warden/internal/scheduler"
)

// Server exposes the health snapshot and Prometheus metrics over HTTP.
type Server struct {
	sched *scheduler.Scheduler
	srv   *http.Server
}

// Snapshot is the /healthz response body.
type Snapshot struct {
	State     string                     `json:"state"`
	Observers []scheduler.ObserverStatus `json:"observers"`
	Timestamp time.Time                  `json:"timestamp"`
}

func NewServer(sched *scheduler.Scheduler, port int) *Server {
	s := &Server{sched: sched}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap := Snapshot{
		State:     s.sched.State().String(),
		Observers: s.sched.Snapshot(),
		Timestamp: time.Now(),
	}

	status := http.StatusOK
	if s.sched.State() == scheduler.StateFatal {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(snap)
}

// Start blocks serving until Stop is called.
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
