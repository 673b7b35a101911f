package telemetry

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rugs-trade-bot-go/internal/gateway"
	"rugs-trade-bot-go/internal/models"
)

// StoreSink persists trades and round outcomes. Writes are synchronous, so it is
// normally wrapped in Async.
type StoreSink struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStoreSink(db *gorm.DB, logger *zap.Logger) *StoreSink {
	return &StoreSink{db: db, logger: logger.Named("store")}
}

func (s *StoreSink) Emit(ev Event) {
	var err error
	switch ev.Kind {
	case KindRoundStart:
		err = s.db.Create(&models.Round{
			RoundID:      ev.RoundID,
			TotalPlayers: ev.Players,
			TotalValueIn: ev.ValueIn,
			StartedAt:    ev.Time.Unix(),
		}).Error
	case KindRugPull, KindRoundEnd:
		err = s.db.Model(&models.Round{}).
			Where("round_id = ?", ev.RoundID).
			Updates(map[string]any{
				"ticks":            ev.Tick,
				"final_multiplier": ev.Multiplier,
				"rug_pulled":       ev.Kind == KindRugPull,
				"total_players":    ev.Players,
				"total_value_in":   ev.ValueIn,
				"ended_at":         ev.Time.Unix(),
			}).Error
	case KindPositionOpened:
		err = s.db.Create(s.trade(ev, gateway.SideBuy)).Error
	case KindPositionClosed:
		err = s.db.Create(s.trade(ev, gateway.SideSell)).Error
	default:
		return
	}

	if err != nil {
		s.logger.Error("Failed to persist event",
			zap.String("kind", string(ev.Kind)),
			zap.String("round_id", ev.RoundID),
			zap.Error(err))
	}
}

func (s *StoreSink) trade(ev Event, side string) *models.Trade {
	return &models.Trade{
		RoundID:       ev.RoundID,
		Strategy:      ev.Strategy,
		Side:          side,
		Size:          ev.Size,
		Multiplier:    ev.Multiplier,
		Tick:          ev.Tick,
		Profit:        ev.Profit,
		ProfitPercent: ev.ProfitPercent,
		Forced:        ev.Forced,
		Reason:        ev.Reason,
		Timestamp:     ev.Time.Unix(),
		IsSimulation:  ev.Simulation,
	}
}
