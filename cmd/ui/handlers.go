package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"rugs-trade-bot-go/internal/gateway"
	"rugs-trade-bot-go/internal/models"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log *zap.Logger
	db  *gorm.DB
	now func() time.Time
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, db *gorm.DB) *APIHandler {
	return &APIHandler{log: log, db: db, now: time.Now}
}

// Routes returns the API mux.
func (h *APIHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/trades", h.TradesHandler)
	mux.HandleFunc("/api/statistics", h.StatisticsHandler)
	mux.HandleFunc("/api/rounds", h.RoundsHandler)
	return mux
}

// limit parses the optional ?limit= query parameter.
func limit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultLimit
	}
	return min(n, maxLimit)
}

// TradesHandler returns the most recent trades, newest first.
func (h *APIHandler) TradesHandler(w http.ResponseWriter, r *http.Request) {
	var trades []models.Trade
	if err := h.db.Order("timestamp desc, id desc").Limit(limit(r)).Find(&trades).Error; err != nil {
		h.log.Error("Failed to get trades from database", zap.Error(err))
		http.Error(w, "Failed to get trades", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, trades)
}

// StatsDetail holds calculated statistics for a given period.
type StatsDetail struct {
	TotalTrades      int64   `json:"total_trades"`
	ProfitableTrades int64   `json:"profitable_trades"`
	ForcedExits      int64   `json:"forced_exits"`
	WinRate          float64 `json:"win_rate"`
	TotalProfit      float64 `json:"total_profit"`
}

func (d *StatsDetail) add(trade models.Trade) {
	d.TotalTrades++
	if trade.Profit > 0 {
		d.ProfitableTrades++
	}
	if trade.Forced {
		d.ForcedExits++
	}
	d.TotalProfit += trade.Profit
}

func (d *StatsDetail) finish() {
	if d.TotalTrades > 0 {
		d.WinRate = float64(d.ProfitableTrades) / float64(d.TotalTrades)
	}
}

// StatisticsResponse is the structure for the /api/statistics endpoint.
type StatisticsResponse struct {
	Since24h StatsDetail `json:"since_24h"`
	AllTime  StatsDetail `json:"all_time"`
}

// StatisticsHandler calculates win rate and realized profit from closed positions.
func (h *APIHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	var sells []models.Trade
	if err := h.db.Where("side = ?", gateway.SideSell).Find(&sells).Error; err != nil {
		h.log.Error("Failed to get trades for statistics", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}

	since24h := h.now().Add(-24 * time.Hour).Unix()
	var response StatisticsResponse
	for _, trade := range sells {
		response.AllTime.add(trade)
		if trade.Timestamp >= since24h {
			response.Since24h.add(trade)
		}
	}
	response.AllTime.finish()
	response.Since24h.finish()

	h.writeJSON(w, response)
}

// RoundsResponse is the structure for the /api/rounds endpoint.
type RoundsResponse struct {
	Rounds      []models.Round `json:"rounds"`
	Completed   int64          `json:"completed"`
	RugPulled   int64          `json:"rug_pulled"`
	RugPullRate float64        `json:"rug_pull_rate"`
}

// RoundsHandler returns recent rounds and the rug-pull rate over all completed rounds.
func (h *APIHandler) RoundsHandler(w http.ResponseWriter, r *http.Request) {
	var response RoundsResponse
	err := h.db.Order("started_at desc, id desc").Limit(limit(r)).Find(&response.Rounds).Error
	if err == nil {
		err = h.db.Model(&models.Round{}).Where("ended_at > ?", 0).Count(&response.Completed).Error
	}
	if err == nil {
		err = h.db.Model(&models.Round{}).Where("ended_at > ? AND rug_pulled = ?", 0, true).Count(&response.RugPulled).Error
	}
	if err != nil {
		h.log.Error("Failed to get rounds from database", zap.Error(err))
		http.Error(w, "Failed to get rounds", http.StatusInternalServerError)
		return
	}

	if response.Completed > 0 {
		response.RugPullRate = float64(response.RugPulled) / float64(response.Completed)
	}
	h.writeJSON(w, response)
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to write response", zap.Error(err))
	}
}
