package game

import (
	"time"

	"github.com/google/uuid"
)

// RoundSnapshot is the state of a round at one tick. Snapshots are values: the clock
// replaces the current one wholesale on every tick and never mutates a copy it handed out.
type RoundSnapshot struct {
	RoundID           string    `json:"roundId"`
	StartTime         time.Time `json:"startTime"`
	CurrentTick       int       `json:"currentTick"`
	TotalTicks        int       `json:"totalTicks"`
	CurrentMultiplier float64   `json:"currentMultiplier"`
	TotalPlayers      int       `json:"totalPlayers"`
	TotalValueIn      float64   `json:"totalValueIn"`
	Active            bool      `json:"isActive"`
	RugPulled         bool      `json:"rugPulled"`
}

// EventKind enumerates round lifecycle events.
type EventKind int

const (
	EventRoundStart EventKind = iota + 1
	EventTick
	EventRugPull
	EventRoundEnd
)

func (k EventKind) String() string {
	switch k {
	case EventRoundStart:
		return "round_start"
	case EventTick:
		return "tick"
	case EventRugPull:
		return "rug_pull"
	case EventRoundEnd:
		return "round_end"
	default:
		return "unknown"
	}
}

// Terminal reports whether the event ends its round.
func (k EventKind) Terminal() bool {
	return k == EventRugPull || k == EventRoundEnd
}

// Event is a lifecycle event together with the snapshot it was emitted for.
type Event struct {
	Kind     EventKind
	Snapshot RoundSnapshot
}

func newRoundID() string {
	return "round-" + uuid.NewString()
}
