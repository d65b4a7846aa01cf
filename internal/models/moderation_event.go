package models

import "time"

// Moderation actions recorded in the 'moderation_events' table.
const (
	ActionRestricted          = "restricted"
	ActionRestrictUnavailable = "restrict_unavailable"
	ActionNotified            = "notified"
)

// ModerationEvent represents a row in the 'moderation_events' table.
type ModerationEvent struct {
	ID        int64      `db:"id" json:"id"`
	ChatID    int64      `db:"chat_id" json:"chat_id"`
	UserID    *int64     `db:"user_id" json:"user_id,omitempty"` // Nullable when the sender is unknown
	MessageID int64      `db:"message_id" json:"message_id"`
	Action    string     `db:"action" json:"action"`
	Until     *time.Time `db:"until" json:"until,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
