// Package gateway runs the actor world behind an HTTP status server that
// exposes health, readiness, Prometheus metrics and the bus diagnostics.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dxmsg/pkg/bus"
	"dxmsg/pkg/config"
	"dxmsg/pkg/diag"
	"dxmsg/pkg/logger"
	"dxmsg/pkg/sim"
)

const defaultHost = "127.0.0.1"

// World is the simulation served by the gateway.
type World interface {
	Run(ctx context.Context, ticks int, interval time.Duration, onTick func(sim.Report)) error
	Report() sim.Report
	Bus() *bus.Bus
}

type Service struct {
	server   config.ServerConfig
	sim      config.SimConfig
	world    World
	gatherer prometheus.Gatherer
	log      *slog.Logger

	mu         sync.RWMutex
	startedAt  time.Time
	lastTickAt time.Time
	ticks      int
	finished   bool
	runErr     string
	addr       string
}

type statusResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Tick          int    `json:"tick"`
	LastTickAt    string `json:"last_tick_at,omitempty"`
	Finished      bool   `json:"finished"`
	Error         string `json:"error,omitempty"`
	Emitted       uint64 `json:"emitted"`
	Vetoed        uint64 `json:"vetoed"`
	Delivered     uint64 `json:"delivered"`
	Subscriptions int64  `json:"subscriptions"`
}

type emissionResponse struct {
	Type     string `json:"type"`
	Category string `json:"category"`
	Identity int64  `json:"identity,omitempty"`
	At       string `json:"at"`
	Summary  string `json:"summary,omitempty"`
	Vetoed   bool   `json:"vetoed,omitempty"`
}

type registrationResponse struct {
	Owner       int64  `json:"owner"`
	MessageType string `json:"message_type"`
	Kind        string `json:"kind"`
	Route       string `json:"route"`
	Priority    int    `json:"priority"`
	At          string `json:"at"`
}

// NewService wires world to a status server. gatherer may be nil, in which
// case /metrics answers 404.
func NewService(cfg *config.Config, world World, gatherer prometheus.Gatherer, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if world == nil {
		return nil, errors.New("world is required")
	}
	return &Service{
		server:   cfg.Server,
		sim:      cfg.Sim,
		world:    world,
		gatherer: gatherer,
		log:      logger.For(log, logger.ComponentGateway),
	}, nil
}

// Run serves the status endpoints and steps the world until ctx is done. A
// world that finishes its configured ticks keeps being served.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	listener, err := s.listen()
	if err != nil {
		return err
	}

	serverErrors := make(chan error, 1)
	go s.serve(ctx, listener, serverErrors)

	worldErrors := make(chan error, 1)
	go func() {
		interval := time.Duration(s.sim.TickMillis) * time.Millisecond
		err := s.world.Run(ctx, s.sim.Ticks, interval, s.recordTick)
		if err != nil && ctx.Err() == nil {
			s.setRunErr(err)
			worldErrors <- fmt.Errorf("run world: %w", err)
			return
		}

		s.mu.Lock()
		s.finished = ctx.Err() == nil
		s.mu.Unlock()
		if ctx.Err() == nil {
			s.log.Info("World finished", "ticks", s.sim.Ticks)
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrors:
		return err
	case err := <-worldErrors:
		return err
	}
}

// Addr returns the bound address once Run is serving.
func (s *Service) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the status mux.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/report", s.handleReport)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/registrations", s.handleRegistrations)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

func (s *Service) listen() (net.Listener, error) {
	host := strings.TrimSpace(s.server.Host)
	if host == "" {
		host = defaultHost
	}

	addr := net.JoinHostPort(host, strconv.Itoa(s.server.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("start status server: %w", err)
	}

	s.mu.Lock()
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	return listener, nil
}

func (s *Service) serve(ctx context.Context, listener net.Listener, errCh chan<- error) {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Status server started", "address", listener.Addr().String())
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("serve status: %w", err)
	}
}

func (s *Service) recordTick(r sim.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = r.Tick
	s.lastTickAt = time.Now().UTC()
}

func (s *Service) setRunErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runErr = err.Error()
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.currentStatus("ok"))
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondJSON(w, statusCode, s.currentStatus(status))
}

func (s *Service) handleReport(w http.ResponseWriter, _ *http.Request) {
	r := s.world.Report()
	observed := make(map[string]int, len(r.Observed))
	for category, n := range r.Observed {
		observed[category.String()] = n
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"tick":         r.Tick,
		"actors":       r.Actors,
		"damage_dealt": r.DamageDealt,
		"vetoed_heals": r.VetoedHeals,
		"observed":     observed,
	})
}

func (s *Service) handleHistory(w http.ResponseWriter, req *http.Request) {
	history := s.world.Bus().History()
	if limit, err := strconv.Atoi(req.URL.Query().Get("limit")); err == nil && limit >= 0 && limit < len(history) {
		history = history[len(history)-limit:]
	}

	out := make([]emissionResponse, 0, len(history))
	for _, e := range history {
		out = append(out, emissionFrom(e))
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Service) handleRegistrations(w http.ResponseWriter, _ *http.Request) {
	entries := s.world.Bus().RegistrationLog().Entries()
	out := make([]registrationResponse, 0, len(entries))
	for _, r := range entries {
		out = append(out, registrationResponse{
			Owner:       int64(r.Owner),
			MessageType: r.MessageType,
			Kind:        r.Kind.String(),
			Route:       r.Route.String(),
			Priority:    r.Priority,
			At:          r.At.UTC().Format(time.RFC3339Nano),
		})
	}
	s.respondJSON(w, http.StatusOK, out)
}

func emissionFrom(e diag.Emission) emissionResponse {
	return emissionResponse{
		Type:     e.Type,
		Category: e.Category.String(),
		Identity: int64(e.Identity),
		At:       e.At.UTC().Format(time.RFC3339Nano),
		Summary:  e.Summary,
		Vetoed:   e.Vetoed,
	}
}

func (s *Service) respondJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", logger.Err(err))
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	stats := s.world.Bus().Stats()

	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	lastTick := ""
	if !s.lastTickAt.IsZero() {
		lastTick = s.lastTickAt.Format(time.RFC3339)
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		Tick:          s.ticks,
		LastTickAt:    lastTick,
		Finished:      s.finished,
		Error:         s.runErr,
		Emitted:       stats.Emitted,
		Vetoed:        stats.Vetoed,
		Delivered:     stats.Delivered,
		Subscriptions: stats.Subscriptions,
	}
}

// isReady reports whether the world has ticked at least once without error.
func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ticks > 0 && s.runErr == ""
}
