package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rugs-trade-bot-go/internal/database"
	"rugs-trade-bot-go/internal/models"
)

func setupHandler(t *testing.T) (*APIHandler, *gorm.DB) {
	t.Helper()
	db, err := database.NewDatabase("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)

	h := NewAPIHandler(zap.NewNop(), db)
	h.now = func() time.Time { return time.Unix(1700000000, 0) }
	return h, db
}

func get(t *testing.T, h http.Handler, path string, out any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestStatisticsHandler(t *testing.T) {
	// Arrange
	h, db := setupHandler(t)
	now := int64(1700000000)
	require.NoError(t, db.Create([]models.Trade{
		{RoundID: "r1", Side: "BUY", Size: 0.1, Timestamp: now - 60},
		{RoundID: "r1", Side: "SELL", Size: 0.1, Profit: 0.02, Timestamp: now - 30},
		{RoundID: "r2", Side: "SELL", Size: 0.1, Profit: -0.1, Forced: true, Timestamp: now - 20},
		{RoundID: "r0", Side: "SELL", Size: 0.1, Profit: 0.05, Timestamp: now - 48*3600},
	}).Error)

	// Act
	var stats StatisticsResponse
	get(t, h.Routes(), "/api/statistics", &stats)

	// Assert
	assert.Equal(t, int64(3), stats.AllTime.TotalTrades)
	assert.Equal(t, int64(2), stats.AllTime.ProfitableTrades)
	assert.Equal(t, int64(1), stats.AllTime.ForcedExits)
	assert.InDelta(t, 2.0/3.0, stats.AllTime.WinRate, 1e-12)
	assert.InDelta(t, -0.03, stats.AllTime.TotalProfit, 1e-12)

	assert.Equal(t, int64(2), stats.Since24h.TotalTrades)
	assert.InDelta(t, 0.5, stats.Since24h.WinRate, 1e-12)
	assert.InDelta(t, -0.08, stats.Since24h.TotalProfit, 1e-12)
}

func TestTradesHandler(t *testing.T) {
	h, db := setupHandler(t)
	require.NoError(t, db.Create([]models.Trade{
		{RoundID: "r1", Side: "BUY", Timestamp: 100},
		{RoundID: "r1", Side: "SELL", Timestamp: 200},
		{RoundID: "r2", Side: "BUY", Timestamp: 300},
	}).Error)

	var trades []models.Trade
	get(t, h.Routes(), "/api/trades?limit=2", &trades)

	require.Len(t, trades, 2)
	assert.Equal(t, int64(300), trades[0].Timestamp)
	assert.Equal(t, int64(200), trades[1].Timestamp)
}

func TestRoundsHandler(t *testing.T) {
	h, db := setupHandler(t)
	require.NoError(t, db.Create([]models.Round{
		{RoundID: "r1", StartedAt: 100, EndedAt: 110, RugPulled: true},
		{RoundID: "r2", StartedAt: 200, EndedAt: 260},
		{RoundID: "r3", StartedAt: 300, EndedAt: 301, RugPulled: true},
		{RoundID: "r4", StartedAt: 400},
	}).Error)

	var rounds RoundsResponse
	get(t, h.Routes(), "/api/rounds", &rounds)

	require.Len(t, rounds.Rounds, 4)
	assert.Equal(t, "r4", rounds.Rounds[0].RoundID)
	assert.Equal(t, int64(3), rounds.Completed)
	assert.Equal(t, int64(2), rounds.RugPulled)
	assert.InDelta(t, 2.0/3.0, rounds.RugPullRate, 1e-12)
}
