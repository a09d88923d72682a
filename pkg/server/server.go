// Package server exposes the pipeline over HTTP and optionally runs it on a
// fixed interval.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"histopost/pkg/config"
	"histopost/pkg/trigger"
)

const (
	defaultHost  = "0.0.0.0"
	defaultPort  = 18790
	maxEventBody = 64 << 10
)

type Service struct {
	cfg    config.ServeConfig
	runner trigger.Runner
	log    *slog.Logger

	mu        sync.RWMutex
	startedAt time.Time
	runs      int
	lastRun   *runStatus
}

type runStatus struct {
	RunID      string `json:"run_id,omitempty"`
	Source     string `json:"source"`
	StatusCode int    `json:"status_code"`
	FinishedAt string `json:"finished_at"`
}

type statusResponse struct {
	Status          string     `json:"status"`
	UptimeSeconds   int64      `json:"uptime_seconds"`
	Runs            int        `json:"runs"`
	IntervalMinutes int        `json:"interval_minutes,omitempty"`
	LastRun         *runStatus `json:"last_run,omitempty"`
}

func NewService(cfg config.ServeConfig, runner trigger.Runner, log *slog.Logger) (*Service, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if cfg.IntervalMinutes < 0 {
		return nil, fmt.Errorf("serve.interval_minutes must be >= 0, got %d", cfg.IntervalMinutes)
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		cfg:    cfg,
		runner: runner,
		log:    log.With("component", "server"),
	}, nil
}

// Run serves HTTP until ctx is cancelled. With a positive interval it also
// runs the pipeline on a ticker; scheduled runs never overlap each other.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	serverErrors := make(chan error, 1)
	go s.runHTTPServer(ctx, serverErrors)

	if s.cfg.IntervalMinutes > 0 {
		go s.runSchedule(ctx, time.Duration(s.cfg.IntervalMinutes)*time.Minute)
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrors:
		return err
	}
}

// Handler returns the HTTP routes.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/invoke", s.handleInvoke)
	return r
}

func (s *Service) runHTTPServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Host)
	if host == "" {
		host = defaultHost
	}

	port := s.cfg.Port
	if port <= 0 {
		port = defaultPort
	}

	addr := host + ":" + strconv.Itoa(port)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("HTTP server started", "address", addr, "interval_minutes", s.cfg.IntervalMinutes)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start http server: %w", err)
	}
}

func (s *Service) runSchedule(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("Schedule started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.invoke(ctx, "schedule", nil)
		}
	}
}

func (s *Service) handleInvoke(w http.ResponseWriter, r *http.Request) {
	event, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		http.Error(w, "read request body", http.StatusBadRequest)
		return
	}

	resp := s.invoke(r.Context(), "http", json.RawMessage(event))

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.WriteString(w, resp.Body); err != nil {
		s.log.Error("Failed to write invoke response", "error", err)
	}
}

func (s *Service) invoke(ctx context.Context, source string, event json.RawMessage) trigger.Response {
	resp := trigger.Handle(ctx, s.runner, event)

	status := &runStatus{
		RunID:      runIDFromBody(resp.Body),
		Source:     source,
		StatusCode: resp.StatusCode,
		FinishedAt: time.Now().UTC().Format(time.RFC3339),
	}

	s.mu.Lock()
	s.runs++
	s.lastRun = status
	s.mu.Unlock()

	s.log.Info("Run completed", "source", source, "status_code", resp.StatusCode, "run_id", status.RunID)
	return resp
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}
	payload := statusResponse{
		Status:          "ok",
		UptimeSeconds:   uptime,
		Runs:            s.runs,
		IntervalMinutes: s.cfg.IntervalMinutes,
		LastRun:         s.lastRun,
	}
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func runIDFromBody(body string) string {
	var decoded struct {
		RunID string `json:"run_id"`
	}
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return ""
	}
	return decoded.RunID
}
