package models

import "time"

// Badge criteria evaluated by the aggregates package.
const (
	CriterionCompletedWatches = "completed_watches"
	CriterionTotalMinutes     = "total_minutes"
	CriterionStreakDays       = "streak_days"
	CriterionDistinctSeries   = "distinct_series"
	CriterionNightOwl         = "night_owl"
)

// Badge is an achievement definition, seeded at migration time.
type Badge struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Slug        string `gorm:"size:64;not null;uniqueIndex"`
	Name        string `gorm:"size:128;not null"`
	Description string `gorm:"size:256"`
	Criterion   string `gorm:"size:32;not null"`
	Threshold   int    `gorm:"not null"`
	CreatedAt   time.Time
}

// UserBadge records a badge a user has earned. Awards are never revoked.
type UserBadge struct {
	UserID   uint      `gorm:"primaryKey"`
	BadgeID  uint      `gorm:"primaryKey"`
	EarnedAt time.Time `gorm:"not null"`

	Badge Badge `gorm:"foreignKey:BadgeID"`
}

// SeriesProgress is the recomputed completion state of one series for one
// user. Rewritten wholesale on each recompute; read by the dashboard.
type SeriesProgress struct {
	ID              uint `gorm:"primaryKey;autoIncrement"`
	UserID          uint `gorm:"not null;uniqueIndex:idx_progress_user_media"`
	MediaItemID     uint `gorm:"not null;uniqueIndex:idx_progress_user_media"`
	WatchedEpisodes int  `gorm:"not null;default:0"`
	TotalEpisodes   int  `gorm:"not null;default:0"`
	Percent         float64
	UpdatedAt       time.Time

	MediaItem MediaItem `gorm:"foreignKey:MediaItemID"`
}
