package gateway

import (
	"context"
	"errors"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	// StatusConfirmed is the only order status treated as a fill.
	StatusConfirmed = "confirmed"
)

var (
	// ErrNotConfirmed is returned when the gateway answers with a non-confirmed status.
	ErrNotConfirmed = errors.New("order not confirmed")
	// ErrUnknownStake is returned by the paper executor when selling a round it never bought.
	ErrUnknownStake = errors.New("no stake recorded for round")
)

// Order is a buy or sell instruction for one round.
type Order struct {
	RoundID    string
	Size       float64
	Multiplier float64
	RugPulled  bool
}

// Confirmation is the settled result of an order. Amount is the base-unit value that
// left (buy) or returned to (sell) the wallet.
type Confirmation struct {
	Signature string  `json:"signature"`
	Status    string  `json:"status"`
	Amount    float64 `json:"amount"`
}

// Executor submits orders to the execution boundary.
type Executor interface {
	SubmitBuy(ctx context.Context, order Order) (*Confirmation, error)
	SubmitSell(ctx context.Context, order Order) (*Confirmation, error)
}

// BalanceSource reports the capital available for new positions.
type BalanceSource interface {
	AvailableBalance(ctx context.Context) (float64, error)
}
