package strategy

import (
	"fmt"
	"slices"

	"rugs-trade-bot-go/internal/config"
	"rugs-trade-bot-go/internal/game"
	"rugs-trade-bot-go/internal/ledger"
)

var (
	timedEntryTicks = []int{1, 5, 10, 15}
	timedExitTicks  = []int{10, 20, 30, 40}
)

const (
	timedTargetProfit   = 8.0
	timedPatienceTicks  = 25
	timedPatienceProfit = 2.0
)

// Timed enters and exits on a fixed tick schedule.
type Timed struct {
	stateless
	maxLoss float64
}

func NewTimed(maxLoss float64) *Timed {
	return &Timed{maxLoss: maxLoss}
}

func (s *Timed) Name() string { return config.StrategyTimed }

func (s *Timed) AnalyzeRound(snap game.RoundSnapshot, hasOpen bool) TradeSignal {
	if sig, done := gate(snap, hasOpen); done {
		return sig
	}
	if slices.Contains(timedEntryTicks, snap.CurrentTick) {
		return buy(snap, fmt.Sprintf("entering at planned tick %d", snap.CurrentTick), 0.75)
	}
	return hold(snap, fmt.Sprintf("waiting for entry tick (current: %d)", snap.CurrentTick), 0.5)
}

func (s *Timed) ShouldExit(pos ledger.Position, snap game.RoundSnapshot) bool {
	if snap.RugPulled {
		return true
	}
	if slices.Contains(timedExitTicks, snap.CurrentTick) {
		return true
	}
	pct := profitPercent(pos, snap.CurrentMultiplier)
	if pct >= timedTargetProfit || pct <= -s.maxLoss {
		return true
	}
	return pos.TicksHeld(snap.CurrentTick) >= timedPatienceTicks && pct > timedPatienceProfit
}
