// Package server exposes the engine over HTTP: scoring events and workload
// telemetry come in, merged tactical recommendations and the live websocket
// feed go out.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/pitchsense/pitchsense-engine/internal/bus"
	"github.com/pitchsense/pitchsense-engine/internal/config"
	"github.com/pitchsense/pitchsense-engine/internal/health"
	"github.com/pitchsense/pitchsense-engine/internal/matchstate"
	"github.com/pitchsense/pitchsense-engine/internal/merge"
	"github.com/pitchsense/pitchsense-engine/internal/metrics"
	"github.com/pitchsense/pitchsense-engine/internal/orchestrator"
	"github.com/pitchsense/pitchsense-engine/internal/pressure"
	"github.com/pitchsense/pitchsense-engine/internal/router"
	"github.com/pitchsense/pitchsense-engine/internal/workload"
)

// Server is the engine's HTTP surface.
type Server struct {
	cfg        *config.Config
	state      *matchstate.State
	orch       *orchestrator.Orchestrator
	ring       *health.Ring
	events     *bus.Bus
	httpServer *http.Server
	startTime  time.Time

	upgrader websocket.Upgrader

	mu     sync.RWMutex
	latest *merge.Recommendation
}

// AnalysisRequest is the body of POST /api/v1/analysis.
type AnalysisRequest struct {
	FocusPlayer string `json:"focus_player"`
	Mode        string `json:"mode,omitempty"`
	Note        string `json:"note,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse is the error body for API failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// New creates the HTTP server.
func New(cfg *config.Config, state *matchstate.State, orch *orchestrator.Orchestrator, ring *health.Ring, events *bus.Bus) *Server {
	s := &Server{
		cfg:       cfg,
		state:     state,
		orch:      orch,
		ring:      ring,
		events:    events,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.instrument("/healthz", s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/v1/analysis", s.instrument("/api/v1/analysis", s.analysisHandler))
	mux.HandleFunc("/api/v1/analysis/latest", s.instrument("/api/v1/analysis/latest", s.latestHandler))
	mux.HandleFunc("/api/v1/match/event", s.instrument("/api/v1/match/event", s.matchEventHandler))
	mux.HandleFunc("/api/v1/match/batter", s.instrument("/api/v1/match/batter", s.batterHandler))
	mux.HandleFunc("/api/v1/match/context", s.instrument("/api/v1/match/context", s.contextHandler))
	mux.HandleFunc("/api/v1/workload/", s.instrument("/api/v1/workload", s.workloadHandler))
	mux.HandleFunc("/api/v1/health/analyzers", s.instrument("/api/v1/health/analyzers", s.analyzerHealthHandler))
	mux.HandleFunc("/ws/live", s.liveHandler)

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server starting")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the root handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// instrument wraps a handler with request metrics.
func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		metrics.RequestCount.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   "1.0.0",
		Uptime:    time.Since(s.startTime).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// analysisHandler runs one full analysis cycle for a focus bowler.
func (s *Server) analysisHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON"})
		return
	}
	if req.FocusPlayer == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "focus_player required"})
		return
	}

	mode := router.Mode(s.cfg.Analyzer.Mode)
	if req.Mode != "" {
		mode = router.Mode(req.Mode)
	}
	if mode != router.ModeAuto && mode != router.ModeFull {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "mode must be auto or full"})
		return
	}

	oreq, err := s.state.BuildRequest(req.FocusPlayer, req.Note)
	if err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}

	rec, err := s.orch.RunAnalysis(r.Context(), mode, oreq)
	switch {
	case errors.Is(err, orchestrator.ErrSuperseded):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "superseded by a newer analysis request"})
		return
	case err != nil:
		log.Error().Err(err).Str("player", req.FocusPlayer).Msg("analysis cycle failed")
		if s.events != nil {
			s.events.Publish(bus.EventAnalyzerDegraded, err.Error())
		}
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		return
	}

	s.mu.Lock()
	s.latest = rec
	s.mu.Unlock()

	if s.events != nil {
		s.events.Publish(bus.EventRecommendationReady, rec)
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) latestHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.RLock()
	rec := s.latest
	s.mu.RUnlock()
	if rec == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no analysis completed yet"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// matchEventHandler applies one scoring event.
func (s *Server) matchEventHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var ev matchstate.BallEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON"})
		return
	}

	st, err := s.state.ApplyBall(ev)
	switch {
	case errors.Is(err, matchstate.ErrUnknownPlayer):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, matchstate.ErrInningsOver):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Pressure pressure.State `json:"pressure"`
	}{Pressure: st})
}

func (s *Server) batterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		PlayerID string `json:"player_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "player_id required"})
		return
	}
	if err := s.state.SetActiveBatter(req.PlayerID); err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) contextHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.state.MatchContext())
}

// workloadHandler reads or updates one player's workload.
// GET returns the scored snapshot; POST applies a telemetry reading first.
func (s *Server) workloadHandler(w http.ResponseWriter, r *http.Request) {
	playerID := strings.TrimPrefix(r.URL.Path, "/api/v1/workload/")
	if playerID == "" || strings.Contains(playerID, "/") {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "player id required"})
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req struct {
			Fatigue float64 `json:"fatigue"`
			Strain  float64 `json:"strain"`
			Control float64 `json:"control"`
			Speed   float64 `json:"speed"`
			Power   float64 `json:"power"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON"})
			return
		}
		if err := s.state.UpdateTelemetry(playerID, req.Fatigue, req.Strain, req.Control, req.Speed, req.Power); err != nil {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
			return
		}
	case http.MethodGet:
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, risk, err := s.state.Score(playerID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Snapshot workload.Snapshot  `json:"snapshot"`
		Risk     workload.RiskState `json:"risk"`
	}{Snapshot: snap, Risk: risk})
}

func (s *Server) analyzerHealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.ring == nil {
		writeJSON(w, http.StatusOK, health.Status{State: health.StateUnknown})
		return
	}
	writeJSON(w, http.StatusOK, s.ring.Status())
}

// liveHandler upgrades to a websocket and streams bus events until the
// client disconnects.
func (s *Server) liveHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	metrics.LiveClients.Inc()
	defer metrics.LiveClients.Dec()

	events, cancel := s.events.Subscribe()
	defer cancel()

	// Drain client frames so pings and closes are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("response body encode failed")
	}
}
