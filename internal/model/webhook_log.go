package model

import "time"

// Webhook delivery statuses.
const (
	WebhookStatusPending = "pending"
	WebhookStatusSuccess = "success"
	WebhookStatusError   = "error"
)

// WebhookLog is one delivery attempt outcome in the outbound audit trail.
// Rows are append-only: one per terminal outcome, not per retry.
type WebhookLog struct {
	ID        string    `gorm:"primaryKey;size:50" json:"id"`
	Direction string    `json:"direction" gorm:"size:20"` // "outbound"
	Endpoint  string    `json:"endpoint" gorm:"size:255"`
	EventType string    `json:"event_type" gorm:"index;size:50"`
	Payload   string    `json:"payload" gorm:"type:text"`
	Response  string    `json:"response" gorm:"type:text"`
	Status    string    `json:"status" gorm:"size:20;index"` // "pending" | "success" | "error"
	CreatedAt time.Time `json:"created_at"`
}

// TableName sets the table name.
func (WebhookLog) TableName() string {
	return "webhook_logs"
}
