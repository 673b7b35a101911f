package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type stake struct {
	size       decimal.Decimal
	multiplier decimal.Decimal
}

// Paper is an in-memory wallet used in dry run. It settles every order immediately:
// a buy debits the size, a sell credits size*exit/entry or nothing for a rugged round.
type Paper struct {
	logger *zap.Logger

	mu     sync.Mutex
	cash   decimal.Decimal
	stakes map[string]stake
}

var (
	_ Executor      = (*Paper)(nil)
	_ BalanceSource = (*Paper)(nil)
)

// NewPaper creates a paper wallet holding balance.
func NewPaper(balance float64, logger *zap.Logger) *Paper {
	logger = logger.Named("paper")
	logger.Warn("Dry run enabled. Orders settle against a paper wallet.", zap.Float64("balance", balance))
	return &Paper{
		logger: logger,
		cash:   decimal.NewFromFloat(balance),
		stakes: make(map[string]stake),
	}
}

// AvailableBalance returns the free cash.
func (p *Paper) AvailableBalance(context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash.InexactFloat64(), nil
}

// SubmitBuy debits the order size and records the stake.
func (p *Paper) SubmitBuy(ctx context.Context, order Order) (*Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := decimal.NewFromFloat(order.Size)
	if !size.IsPositive() {
		return nil, fmt.Errorf("invalid order size %v", order.Size)
	}
	if order.Multiplier <= 0 {
		return nil, fmt.Errorf("invalid entry multiplier %v", order.Multiplier)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.stakes[order.RoundID]; ok {
		return nil, fmt.Errorf("stake already recorded for round %s", order.RoundID)
	}
	if p.cash.LessThan(size) {
		return nil, fmt.Errorf("insufficient paper balance: have %s, need %s", p.cash, size)
	}
	p.cash = p.cash.Sub(size)
	p.stakes[order.RoundID] = stake{size: size, multiplier: decimal.NewFromFloat(order.Multiplier)}

	return p.confirm(size), nil
}

// SubmitSell settles the round's stake at the order multiplier.
func (p *Paper) SubmitSell(ctx context.Context, order Order) (*Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.stakes[order.RoundID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStake, order.RoundID)
	}

	payout := decimal.Zero
	if !order.RugPulled {
		payout = st.size.Mul(decimal.NewFromFloat(order.Multiplier)).Div(st.multiplier)
	}
	delete(p.stakes, order.RoundID)
	p.cash = p.cash.Add(payout)

	p.logger.Debug("Paper stake settled",
		zap.String("round_id", order.RoundID),
		zap.String("payout", payout.StringFixed(9)),
		zap.String("cash", p.cash.StringFixed(9)))
	return p.confirm(payout), nil
}

func (p *Paper) confirm(amount decimal.Decimal) *Confirmation {
	return &Confirmation{
		Signature: "paper-" + uuid.NewString(),
		Status:    StatusConfirmed,
		Amount:    amount.InexactFloat64(),
	}
}
