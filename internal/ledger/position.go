package ledger

import "time"

// Position is a stake held in one round. Entry fields are fixed when the position is
// opened; the Current* fields are recomputed on every refresh.
type Position struct {
	RoundID         string    `json:"roundId"`
	EntryTick       int       `json:"entryTick"`
	EntryMultiplier float64   `json:"entryMultiplier"`
	Size            float64   `json:"size"`
	EntryTime       time.Time `json:"entryTime"`

	CurrentMultiplier    float64 `json:"currentMultiplier"`
	CurrentProfit        float64 `json:"currentProfit"`
	CurrentProfitPercent float64 `json:"currentProfitPercent"`
}

// Refresh recomputes the live profit fields for the given multiplier.
func (p *Position) Refresh(multiplier float64) {
	p.CurrentMultiplier = multiplier
	if p.EntryMultiplier <= 0 {
		p.CurrentProfit = 0
		p.CurrentProfitPercent = 0
		return
	}
	ratio := multiplier / p.EntryMultiplier
	p.CurrentProfitPercent = (ratio - 1) * 100
	p.CurrentProfit = p.Size*ratio - p.Size
}

// TicksHeld is the number of ticks since entry at the given tick.
func (p Position) TicksHeld(tick int) int {
	return tick - p.EntryTick
}
