package trader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"rugs-trade-bot-go/internal/game"
	"rugs-trade-bot-go/internal/ledger"
)

// APIServer provides an HTTP interface for the orchestrator.
type APIServer struct {
	server *http.Server
	orch   *Orchestrator
	logger *zap.Logger
}

// NewAPIServer creates the status server. gatherer backs /metrics and stream, when
// set, is mounted on /ws.
func NewAPIServer(port int, orch *Orchestrator, gatherer prometheus.Gatherer, stream http.Handler, logger *zap.Logger) *APIServer {
	s := &APIServer{
		orch:   orch,
		logger: logger.Named("api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/positions", s.positionsHandler)
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	if stream != nil {
		mux.Handle("/ws", stream)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

type statusResponse struct {
	Strategy      string              `json:"strategy"`
	State         string              `json:"state"`
	StartTime     string              `json:"start_time,omitempty"`
	Uptime        string              `json:"uptime,omitempty"`
	CurrentRound  *game.RoundSnapshot `json:"current_round,omitempty"`
	OpenPositions int                 `json:"open_positions"`
	Stats         Stats               `json:"stats"`
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := statusResponse{
		Strategy:      s.orch.StrategyName(),
		State:         s.orch.State().String(),
		OpenPositions: s.orch.OpenPositions(),
		Stats:         s.orch.Stats(),
	}
	if started := s.orch.StartedAt(); !started.IsZero() {
		status.StartTime = started.Format(time.RFC3339)
		status.Uptime = time.Since(started).Round(time.Second).String()
	}
	if round, ok := s.orch.CurrentRound(); ok {
		status.CurrentRound = &round
	}
	s.writeJSON(w, status)
}

func (s *APIServer) positionsHandler(w http.ResponseWriter, r *http.Request) {
	positions := slices.Collect(s.orch.Positions())
	if positions == nil {
		positions = []ledger.Position{}
	}
	s.writeJSON(w, positions)
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *APIServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
