package ledger

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
)

var (
	// ErrDuplicatePosition is returned when a round already has an open position.
	ErrDuplicatePosition = errors.New("position already open for round")
	// ErrPositionNotFound is returned when no position is open for a round.
	ErrPositionNotFound = errors.New("no open position for round")
)

// Ledger tracks the open positions of one strategy instance, at most one per round.
// Readers may call it from any goroutine; the orchestrator is its only writer.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]*Position
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{positions: make(map[string]*Position)}
}

// Open records a new position. The live fields are initialised from the entry multiplier.
func (l *Ledger) Open(p Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.positions[p.RoundID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePosition, p.RoundID)
	}
	p.Refresh(p.EntryMultiplier)
	l.positions[p.RoundID] = &p
	return nil
}

// Refresh recomputes the profit fields of the round's position and returns a copy.
func (l *Ledger) Refresh(roundID string, multiplier float64) (Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[roundID]
	if !ok {
		return Position{}, fmt.Errorf("%w: %s", ErrPositionNotFound, roundID)
	}
	p.Refresh(multiplier)
	return *p, nil
}

// Close removes the round's position and returns it.
func (l *Ledger) Close(roundID string) (Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[roundID]
	if !ok {
		return Position{}, fmt.Errorf("%w: %s", ErrPositionNotFound, roundID)
	}
	delete(l.positions, roundID)
	return *p, nil
}

// Get returns a copy of the round's position.
func (l *Ledger) Get(roundID string) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.positions[roundID]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Has reports whether the round has an open position.
func (l *Ledger) Has(roundID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.positions[roundID]
	return ok
}

// Len returns the number of open positions.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}

// All yields copies of the open positions ordered by entry time. Each iteration takes
// a fresh snapshot, so the sequence can be ranged over repeatedly and the caller may
// mutate the ledger while ranging.
func (l *Ledger) All() iter.Seq[Position] {
	return func(yield func(Position) bool) {
		for _, p := range l.snapshot() {
			if !yield(p) {
				return
			}
		}
	}
}

func (l *Ledger) snapshot() []Position {
	l.mu.RLock()
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	l.mu.RUnlock()

	slices.SortFunc(out, func(a, b Position) int {
		if c := a.EntryTime.Compare(b.EntryTime); c != 0 {
			return c
		}
		return cmp.Compare(a.RoundID, b.RoundID)
	})
	return out
}
