package telemetry

import (
	"go.uber.org/zap"
)

// LogSink writes events to a zap logger. Ticks are logged at debug level. It is the
// only place position and error events are logged.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("telemetry")}
}

func (s *LogSink) Emit(ev Event) {
	l := s.logger.With(zap.String("round_id", ev.RoundID), zap.Int("tick", ev.Tick))

	switch ev.Kind {
	case KindTick:
		l.Debug("Tick", zap.Float64("multiplier", ev.Multiplier))
	case KindRoundStart:
		l.Debug("Round started", zap.Int("players", ev.Players), zap.Float64("value_in", ev.ValueIn))
	case KindRugPull:
		l.Info("Round rug pulled", zap.Float64("multiplier", ev.Multiplier))
	case KindRoundEnd:
		l.Info("Round ended", zap.Float64("multiplier", ev.Multiplier))
	case KindPositionOpened:
		l.Info("Position opened",
			zap.String("strategy", ev.Strategy),
			zap.Float64("size", ev.Size),
			zap.Float64("entry_multiplier", ev.Multiplier),
			zap.Float64("confidence", ev.Confidence),
			zap.String("reason", ev.Reason))
	case KindPositionClosed:
		l.Info("Position closed",
			zap.String("strategy", ev.Strategy),
			zap.Float64("size", ev.Size),
			zap.Float64("exit_multiplier", ev.Multiplier),
			zap.Float64("profit", ev.Profit),
			zap.Float64("profit_percent", ev.ProfitPercent),
			zap.Bool("forced", ev.Forced),
			zap.String("reason", ev.Reason))
	case KindEntrySkipped:
		l.Warn("Entry skipped", zap.String("reason", ev.Reason), zap.String("error", ev.Error))
	case KindError:
		l.Error("Trading error", zap.String("reason", ev.Reason), zap.String("error", ev.Error))
	default:
		l.Warn("Unknown telemetry event", zap.String("kind", string(ev.Kind)))
	}
}
