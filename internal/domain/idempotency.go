// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Idempotency records a previously processed send/reply request, keyed by
// (conversation_id, key). It lets the chat endpoints absorb client retries
// of the fire-and-forget send call: a replayed key returns the conversation
// as it stood after the original append instead of appending again.
type Idempotency struct {
	ID             string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	ConversationID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_conv_key,priority:1"`
	Key            string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_conv_key,priority:2"`
	MessageID      string    `gorm:"type:TEXT NOT NULL"`
	Status         int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt      time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt      time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
