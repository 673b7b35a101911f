package telemetry

import (
	"time"

	"rugs-trade-bot-go/internal/game"
)

// Kind names a telemetry event.
type Kind string

const (
	KindRoundStart     Kind = "round_start"
	KindTick           Kind = "tick"
	KindRugPull        Kind = "rug_pull"
	KindRoundEnd       Kind = "round_end"
	KindPositionOpened Kind = "position_opened"
	KindPositionClosed Kind = "position_closed"
	KindEntrySkipped   Kind = "entry_skipped"
	KindError          Kind = "error"
)

// Event is a flat record of something the bot observed or did.
type Event struct {
	Kind          Kind      `json:"kind"`
	RoundID       string    `json:"roundId,omitempty"`
	Strategy      string    `json:"strategy,omitempty"`
	Tick          int       `json:"tick"`
	Multiplier    float64   `json:"multiplier,omitempty"`
	Players       int       `json:"players,omitempty"`
	ValueIn       float64   `json:"valueIn,omitempty"`
	Size          float64   `json:"size,omitempty"`
	Profit        float64   `json:"profit,omitempty"`
	ProfitPercent float64   `json:"profitPercent,omitempty"`
	Forced        bool      `json:"forced,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Confidence    float64   `json:"confidence,omitempty"`
	Signature     string    `json:"signature,omitempty"`
	Error         string    `json:"error,omitempty"`
	Simulation    bool      `json:"simulation,omitempty"`
	Time          time.Time `json:"time"`
}

// Sink receives events. Emit must not block the caller for long; slow sinks are
// wrapped in Async.
type Sink interface {
	Emit(ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(Event) {}

// RoundEvent converts a round lifecycle event.
func RoundEvent(ev game.Event, at time.Time) Event {
	s := ev.Snapshot
	return Event{
		Kind:       Kind(ev.Kind.String()),
		RoundID:    s.RoundID,
		Tick:       s.CurrentTick,
		Multiplier: s.CurrentMultiplier,
		Players:    s.TotalPlayers,
		ValueIn:    s.TotalValueIn,
		Time:       at,
	}
}

// Multi fans an event out to every sink in order.
type Multi []Sink

func (m Multi) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}
