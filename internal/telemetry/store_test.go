package telemetry

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rugs-trade-bot-go/internal/database"
	"rugs-trade-bot-go/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewDatabase(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	return db
}

func TestStoreSink(t *testing.T) {
	// Arrange
	db := newTestDB(t)
	sink := NewStoreSink(db, zap.NewNop())
	start := time.Unix(1700000000, 0)

	// Act
	sink.Emit(Event{Kind: KindRoundStart, RoundID: "round-1", Players: 20, ValueIn: 2, Time: start})
	sink.Emit(Event{Kind: KindTick, RoundID: "round-1", Tick: 1, Multiplier: 1.01, Time: start})
	sink.Emit(Event{Kind: KindPositionOpened, RoundID: "round-1", Strategy: "conservative", Tick: 1, Size: 0.1, Multiplier: 1.01, Simulation: true, Time: start})
	sink.Emit(Event{Kind: KindPositionClosed, RoundID: "round-1", Strategy: "conservative", Tick: 7, Size: 0.1, Multiplier: 1.2, Profit: -0.1, ProfitPercent: -100, Forced: true, Simulation: true, Time: start.Add(2 * time.Second)})
	sink.Emit(Event{Kind: KindRugPull, RoundID: "round-1", Tick: 7, Multiplier: 1.2, Players: 25, ValueIn: 4, Time: start.Add(2 * time.Second)})

	// Assert
	var trades []models.Trade
	require.NoError(t, db.Order("id").Find(&trades).Error)
	require.Len(t, trades, 2)
	assert.Equal(t, "BUY", trades[0].Side)
	assert.Equal(t, 0.1, trades[0].Size)
	assert.True(t, trades[0].IsSimulation)
	assert.Equal(t, "SELL", trades[1].Side)
	assert.True(t, trades[1].Forced)
	assert.Equal(t, -0.1, trades[1].Profit)

	var round models.Round
	require.NoError(t, db.Where("round_id = ?", "round-1").First(&round).Error)
	assert.True(t, round.RugPulled)
	assert.Equal(t, 7, round.Ticks)
	assert.Equal(t, 1.2, round.FinalMultiplier)
	assert.Equal(t, 25, round.TotalPlayers)
	assert.Equal(t, start.Unix(), round.StartedAt)
	assert.Equal(t, start.Unix()+2, round.EndedAt)
}

func TestStoreSink_DuplicateRoundIsLogged(t *testing.T) {
	db := newTestDB(t)
	sink := NewStoreSink(db, zap.NewNop())

	sink.Emit(Event{Kind: KindRoundStart, RoundID: "round-1", Time: time.Now()})
	assert.NotPanics(t, func() {
		sink.Emit(Event{Kind: KindRoundStart, RoundID: "round-1", Time: time.Now()})
	})

	var count int64
	require.NoError(t, db.Model(&models.Round{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
