package models

import "time"

// Signal - запись лога бот-алертов. После публикации не меняется.
type Signal struct {
	ID         string         `json:"id"`
	Symbol     string         `json:"symbol"`
	Side       string         `json:"side"`
	Timeframe  string         `json:"timeframe"`
	Entry      float64        `json:"entry"`
	SL         *float64       `json:"sl,omitempty"`
	AlertTime  string         `json:"alert_time,omitempty"`
	ReceivedAt time.Time      `json:"received_at"`
	Raw        map[string]any `json:"raw,omitempty"`
}

// Cursor - последний подтверждённый клиентом сигнал.
type Cursor struct {
	ClientID  string    `json:"client_id"`
	LastAckID string    `json:"last_ack_id"`
	AckedAt   time.Time `json:"acked_at"`
}
