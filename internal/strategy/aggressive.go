package strategy

import (
	"fmt"

	"rugs-trade-bot-go/internal/config"
	"rugs-trade-bot-go/internal/game"
	"rugs-trade-bot-go/internal/ledger"
)

const (
	aggressiveEntryMinMultiplier = 1.2
	aggressiveEntryMaxTick       = 50
	aggressiveTargetProfit       = 15.0
	aggressiveMaxHoldTicks       = 100
	aggressiveDrawdownRatio      = 0.9
)

// Aggressive waits for the multiplier to build before entering and rides it longer.
type Aggressive struct {
	stateless
	maxLoss float64
}

func NewAggressive(maxLoss float64) *Aggressive {
	return &Aggressive{maxLoss: maxLoss}
}

func (s *Aggressive) Name() string { return config.StrategyAggressive }

func (s *Aggressive) AnalyzeRound(snap game.RoundSnapshot, hasOpen bool) TradeSignal {
	if sig, done := gate(snap, hasOpen); done {
		return sig
	}
	if snap.CurrentMultiplier >= aggressiveEntryMinMultiplier && snap.CurrentTick < aggressiveEntryMaxTick {
		return buy(snap, fmt.Sprintf("momentum detected at %.4fx multiplier", snap.CurrentMultiplier), 0.8)
	}
	return hold(snap, "waiting for momentum to build", 0.4)
}

func (s *Aggressive) ShouldExit(pos ledger.Position, snap game.RoundSnapshot) bool {
	if snap.RugPulled {
		return true
	}
	if pos.TicksHeld(snap.CurrentTick) >= aggressiveMaxHoldTicks {
		return true
	}
	pct := profitPercent(pos, snap.CurrentMultiplier)
	if pct >= aggressiveTargetProfit || pct <= -s.maxLoss {
		return true
	}
	return snap.CurrentMultiplier < pos.EntryMultiplier*aggressiveDrawdownRatio
}
