package models

import "time"

const (
	SideLong  = "long"
	SideShort = "short"
)

const (
	CloseTP3       = "tp3"
	CloseSL        = "sl"
	CloseBEAfterTP = "be_after_tp"
)

// Position - позиция, которую отслеживает монитор.
// После Closed=true запись больше не меняется.
type Position struct {
	ID     string  `json:"id"`
	Symbol string  `json:"symbol"`
	Side   string  `json:"side"` // long/short
	Entry  float64 `json:"entry"`
	SL     float64 `json:"sl"`
	TP1    float64 `json:"tp1"`
	TP2    float64 `json:"tp2"`
	TP3    float64 `json:"tp3"`

	TP1Hit      bool   `json:"tp1_hit"`
	TP2Hit      bool   `json:"tp2_hit"`
	TP3Hit      bool   `json:"tp3_hit"`
	SLHit       bool   `json:"sl_hit"`
	Closed      bool   `json:"closed"`
	CloseReason string `json:"close_reason,omitempty"`

	LastPrice   float64   `json:"last_price,omitempty"`
	LastChecked time.Time `json:"last_checked,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ClosedAt    time.Time `json:"closed_at,omitempty"`
}
