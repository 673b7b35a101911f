package models

import "gorm.io/gorm"

// Trade is one settled buy or sell recorded for audit.
type Trade struct {
	gorm.Model
	RoundID       string  `gorm:"index" json:"round_id"`
	Strategy      string  `json:"strategy"`
	Side          string  `gorm:"index" json:"side"` // "BUY" or "SELL"
	Size          float64 `json:"size"`
	Multiplier    float64 `json:"multiplier"`
	Tick          int     `json:"tick"`
	Profit        float64 `json:"profit,omitempty"`
	ProfitPercent float64 `json:"profit_percent,omitempty"`
	Forced        bool    `json:"forced"`
	Reason        string  `json:"reason,omitempty"`
	Timestamp     int64   `gorm:"index" json:"timestamp"`
	IsSimulation  bool    `json:"is_simulation"`
}
