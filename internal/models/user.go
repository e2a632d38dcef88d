package models

import "time"

// User is a Couchlog account, optionally linked to a Jellyfin user.
type User struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	Name            string `gorm:"size:64;not null;uniqueIndex"`
	Email           string `gorm:"size:128"`
	PasswordHash    string `gorm:"size:128"`
	JellyfinUserID  string `gorm:"size:64;index"`
	TrackingEnabled bool   `gorm:"default:true"`
	IsAdmin         bool   `gorm:"default:false"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Records  []WatchRecord   `gorm:"foreignKey:UserID"`
	Activity []DailyActivity `gorm:"foreignKey:UserID"`
	Badges   []UserBadge     `gorm:"foreignKey:UserID"`
}
