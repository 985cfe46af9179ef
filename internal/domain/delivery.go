package domain

import "time"

// Delivery statuses recorded in the notification journal.
const (
	DeliverySent       = "sent"
	DeliveryFailed     = "failed"
	DeliverySuppressed = "suppressed"
)

// Delivery is one attempt to deliver a notification to one destination chat.
// Rows are append-only and serve as an audit trail for the admin API.
type Delivery struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey" json:"id"`
	ChatID    int64     `gorm:"type:INTEGER NOT NULL;index:idx_deliveries_chat_created,priority:1" json:"chat_id"`
	Digest    string    `gorm:"type:TEXT NOT NULL;index" json:"digest"`
	Status    string    `gorm:"type:TEXT NOT NULL" json:"status"`
	Message   string    `gorm:"type:TEXT NOT NULL" json:"message"`
	Error     string    `gorm:"type:TEXT" json:"error,omitempty"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime;index:idx_deliveries_chat_created,priority:2" json:"created_at"`
}

// TableName implements the GORM tabler interface.
func (Delivery) TableName() string { return "deliveries" }

// Dispatch marks a message digest as already delivered to a chat until
// ExpiresAt, keyed by (chat_id, digest). A live record suppresses identical
// notifications produced by a watcher that flaps between two states.
type Dispatch struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	ChatID    int64     `gorm:"type:INTEGER NOT NULL;uniqueIndex:ux_dispatch_chat_digest,priority:1"`
	Digest    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_dispatch_chat_digest,priority:2"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Dispatch) TableName() string { return "dispatches" }
