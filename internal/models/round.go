package models

import "gorm.io/gorm"

// Round is the outcome of one game round.
// EndedAt stays zero while the round is running.
type Round struct {
	gorm.Model
	RoundID         string  `gorm:"uniqueIndex;not null" json:"round_id"`
	Ticks           int     `json:"ticks"`
	FinalMultiplier float64 `json:"final_multiplier"`
	RugPulled       bool    `json:"rug_pulled"`
	TotalPlayers    int     `json:"total_players"`
	TotalValueIn    float64 `json:"total_value_in"`
	StartedAt       int64   `json:"started_at"`
	EndedAt         int64   `gorm:"index" json:"ended_at"`
}
