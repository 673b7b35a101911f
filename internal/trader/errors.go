package trader

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientCapital is reported when the computed position size is below the
	// dust threshold. The entry is re-evaluated on a later tick.
	ErrInsufficientCapital = errors.New("insufficient capital")
	// ErrNotIdle is returned by Start when the orchestrator is already running or stopping.
	ErrNotIdle = errors.New("orchestrator is not idle")
)

// Operations reported in an ExecutionError.
const (
	OpBuy     = "buy"
	OpSell    = "sell"
	OpBalance = "balance"
)

// ExecutionError wraps a failure of the execution boundary. A failed buy never opens
// a position; a failed sell leaves the position open for a retry.
type ExecutionError struct {
	Op      string
	RoundID string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s for round %s failed: %v", e.Op, e.RoundID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
