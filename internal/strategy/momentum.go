package strategy

import (
	"fmt"

	"rugs-trade-bot-go/internal/config"
	"rugs-trade-bot-go/internal/game"
	"rugs-trade-bot-go/internal/ledger"
)

const (
	momentumWindow       = 3
	momentumMinIncrease  = 0.05
	momentumMaxDecrease  = 0.02
	momentumEntryMaxTick = 60
	momentumTargetProfit = 12.0
)

type history struct {
	lastTick int
	samples  []float64
}

// Momentum tracks the multiplier of each round and trades on its rate of change over
// the last three observed ticks.
type Momentum struct {
	maxLoss float64
	rounds  map[string]*history
}

func NewMomentum(maxLoss float64) *Momentum {
	return &Momentum{maxLoss: maxLoss, rounds: make(map[string]*history)}
}

func (s *Momentum) Name() string { return config.StrategyMomentum }

// Observe appends the snapshot's multiplier once per tick. Terminal snapshots are
// ignored so the exit check keeps the last live window.
func (s *Momentum) Observe(snap game.RoundSnapshot) {
	if !snap.Active || snap.RoundID == "" {
		return
	}
	h, ok := s.rounds[snap.RoundID]
	if !ok {
		h = &history{lastTick: -1}
		s.rounds[snap.RoundID] = h
	}
	if snap.CurrentTick <= h.lastTick {
		return
	}
	h.lastTick = snap.CurrentTick
	h.samples = append(h.samples, snap.CurrentMultiplier)
	if len(h.samples) > momentumWindow {
		h.samples = h.samples[len(h.samples)-momentumWindow:]
	}
}

// change returns the relative change across the window, or false while the round has
// fewer than three samples.
func (s *Momentum) change(roundID string) (float64, bool) {
	h, ok := s.rounds[roundID]
	if !ok || len(h.samples) < momentumWindow {
		return 0, false
	}
	first, last := h.samples[0], h.samples[momentumWindow-1]
	if first <= 0 {
		return 0, false
	}
	return (last - first) / first, true
}

func (s *Momentum) AnalyzeRound(snap game.RoundSnapshot, hasOpen bool) TradeSignal {
	if sig, done := gate(snap, hasOpen); done {
		return sig
	}
	s.Observe(snap)

	m, ok := s.change(snap.RoundID)
	if !ok {
		return hold(snap, "gathering momentum data", 0.3)
	}
	if m >= momentumMinIncrease && snap.CurrentTick < momentumEntryMaxTick {
		return buy(snap, fmt.Sprintf("strong momentum detected: %.2f%%", m*100), 0.85)
	}
	return hold(snap, fmt.Sprintf("momentum insufficient: %.2f%%", m*100), 0.4)
}

func (s *Momentum) ShouldExit(pos ledger.Position, snap game.RoundSnapshot) bool {
	if snap.RugPulled {
		return true
	}
	pct := profitPercent(pos, snap.CurrentMultiplier)
	if pct >= momentumTargetProfit || pct <= -s.maxLoss {
		return true
	}
	m, ok := s.change(snap.RoundID)
	return ok && m <= -momentumMaxDecrease
}

func (s *Momentum) EndRound(roundID string) {
	delete(s.rounds, roundID)
}

func (s *Momentum) Reset() {
	clear(s.rounds)
}

// tracked is the number of rounds with live history.
func (s *Momentum) tracked() int {
	return len(s.rounds)
}
