package models

import "time"

// Notification kinds emitted by the tracker and aggregates.
const (
	NotifyWatchCompleted = "watch-completed"
	NotifyBadgeEarned    = "badge-earned"
	NotifyStreakExtended = "streak-extended"
	NotifyDailyDigest    = "daily-digest"
)

// Notification is an outbox row for a chat announcement. Telegraph marks
// rows delivered after fan-out; undelivered rows are retried on the next
// flush.
type Notification struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    uint   `gorm:"index"`
	Kind      string `gorm:"size:32;not null;index"`
	Subject   string `gorm:"size:256"`
	Body      string `gorm:"type:text"`
	SentAt    *time.Time
	CreatedAt time.Time
}
