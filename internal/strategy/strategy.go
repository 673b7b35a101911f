package strategy

import (
	"fmt"
	"time"

	"rugs-trade-bot-go/internal/config"
	"rugs-trade-bot-go/internal/game"
	"rugs-trade-bot-go/internal/ledger"
)

// Action is the intent carried by a TradeSignal.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// TradeSignal is the decision a strategy takes for one snapshot.
type TradeSignal struct {
	Action     Action    `json:"action"`
	RoundID    string    `json:"roundId"`
	Reason     string    `json:"reason"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// Strategy decides when to enter a round and when an open position should exit.
// Implementations are not safe for concurrent use; the orchestrator drives them from a
// single goroutine.
type Strategy interface {
	// Name returns the selector name of the strategy.
	Name() string

	// Observe records a snapshot into per-round memory. Strategies without memory ignore it.
	Observe(snap game.RoundSnapshot)

	// AnalyzeRound returns the entry decision for the snapshot. It never returns buy when
	// hasOpen is set or the round is over.
	AnalyzeRound(snap game.RoundSnapshot, hasOpen bool) TradeSignal

	// ShouldExit reports whether the position must be closed at this snapshot.
	ShouldExit(pos ledger.Position, snap game.RoundSnapshot) bool

	// EndRound drops any memory kept for the round.
	EndRound(roundID string)

	// Reset drops all per-round memory.
	Reset()
}

// New returns the strategy registered under name. maxLoss is the loss percent at which
// every variant exits.
func New(name string, maxLoss float64) (Strategy, error) {
	switch config.NormalizeStrategy(name) {
	case config.StrategyConservative:
		return NewConservative(maxLoss), nil
	case config.StrategyAggressive:
		return NewAggressive(maxLoss), nil
	case config.StrategyTimed:
		return NewTimed(maxLoss), nil
	case config.StrategyMomentum:
		return NewMomentum(maxLoss), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// profitPercent is the live return of the position at the given multiplier.
func profitPercent(pos ledger.Position, multiplier float64) float64 {
	if pos.EntryMultiplier <= 0 {
		return 0
	}
	return (multiplier/pos.EntryMultiplier - 1) * 100
}

// gate returns the hold signal every variant gives before looking at its own entry
// rule, or false when the variant may decide.
func gate(snap game.RoundSnapshot, hasOpen bool) (TradeSignal, bool) {
	switch {
	case snap.RugPulled || !snap.Active:
		return hold(snap, "round not active or already rug pulled", 1.0), true
	case hasOpen:
		return hold(snap, "position already open", 1.0), true
	}
	return TradeSignal{}, false
}

func hold(snap game.RoundSnapshot, reason string, confidence float64) TradeSignal {
	return signal(ActionHold, snap, reason, confidence)
}

func buy(snap game.RoundSnapshot, reason string, confidence float64) TradeSignal {
	return signal(ActionBuy, snap, reason, confidence)
}

func signal(action Action, snap game.RoundSnapshot, reason string, confidence float64) TradeSignal {
	return TradeSignal{
		Action:     action,
		RoundID:    snap.RoundID,
		Reason:     reason,
		Confidence: confidence,
		Timestamp:  time.Now(),
	}
}

// stateless provides the no-op memory hooks for variants that only look at the
// current snapshot.
type stateless struct{}

func (stateless) Observe(game.RoundSnapshot) {}
func (stateless) EndRound(string) {}
func (stateless) Reset() {}
