package models

import "time"

// WatchRecord is one day's accumulated watch of a piece of content by a
// user. At most one non-manual record exists per (user, media item,
// season, episode, calendar day); repeat sessions on the same day add
// minutes to the existing row.
type WatchRecord struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	UserID      uint   `gorm:"not null;index"`
	MediaItemID uint   `gorm:"not null;index"`
	Kind        string `gorm:"size:16;not null"` // "movie" or "episode"
	Season      *int
	Episode     *int
	WatchedAt   time.Time `gorm:"not null;index"`
	Minutes     int       `gorm:"not null;default:0"`
	Partial     bool      `gorm:"default:false"`
	Manual      bool      `gorm:"default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	User      User      `gorm:"foreignKey:UserID"`
	MediaItem MediaItem `gorm:"foreignKey:MediaItemID"`
}

// DailyActivity is one user's playback activity for one calendar day,
// regardless of whether any individual session was worth a WatchRecord.
// It feeds streak computation.
type DailyActivity struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_activity_user_date"`
	Date      time.Time `gorm:"not null;uniqueIndex:idx_activity_user_date"`
	Minutes   int       `gorm:"not null;default:0"`
	Sessions  int       `gorm:"not null;default:0"`
	Completed int       `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
