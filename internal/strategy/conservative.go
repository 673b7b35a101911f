package strategy

import (
	"rugs-trade-bot-go/internal/config"
	"rugs-trade-bot-go/internal/game"
	"rugs-trade-bot-go/internal/ledger"
)

const (
	conservativeEntryMaxTick       = 5
	conservativeEntryMaxMultiplier = 1.1
	conservativeTargetProfit       = 3.0
	conservativeMaxHoldTicks       = 20
)

// Conservative enters early at a low multiplier and takes a small profit quickly.
type Conservative struct {
	stateless
	maxLoss float64
}

func NewConservative(maxLoss float64) *Conservative {
	return &Conservative{maxLoss: maxLoss}
}

func (s *Conservative) Name() string { return config.StrategyConservative }

func (s *Conservative) AnalyzeRound(snap game.RoundSnapshot, hasOpen bool) TradeSignal {
	if sig, done := gate(snap, hasOpen); done {
		return sig
	}
	if snap.CurrentTick <= conservativeEntryMaxTick && snap.CurrentMultiplier < conservativeEntryMaxMultiplier {
		return buy(snap, "early entry opportunity with low multiplier", 0.7)
	}
	return hold(snap, "waiting for better entry point", 0.5)
}

func (s *Conservative) ShouldExit(pos ledger.Position, snap game.RoundSnapshot) bool {
	if snap.RugPulled {
		return true
	}
	if pos.TicksHeld(snap.CurrentTick) >= conservativeMaxHoldTicks {
		return true
	}
	pct := profitPercent(pos, snap.CurrentMultiplier)
	return pct >= conservativeTargetProfit || pct <= -s.maxLoss
}
