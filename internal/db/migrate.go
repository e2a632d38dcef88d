package db

import (
	"fmt"

	"github.com/couchlog/couchlog/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.MediaItem{},
		&models.WatchRecord{},
		&models.DailyActivity{},
		&models.Badge{},
		&models.UserBadge{},
		&models.SeriesProgress{},
		&models.Notification{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// DefaultBadges is the built-in badge set, upserted at migration time.
func DefaultBadges() []models.Badge {
	return []models.Badge{
		{Slug: "first-watch", Name: "First Watch", Description: "Finish your first movie or episode", Criterion: models.CriterionCompletedWatches, Threshold: 1},
		{Slug: "ten-watches", Name: "Regular", Description: "Finish 10 watches", Criterion: models.CriterionCompletedWatches, Threshold: 10},
		{Slug: "hundred-watches", Name: "Centurion", Description: "Finish 100 watches", Criterion: models.CriterionCompletedWatches, Threshold: 100},
		{Slug: "day-one", Name: "Day One", Description: "Accumulate an hour of watch time", Criterion: models.CriterionTotalMinutes, Threshold: 60},
		{Slug: "night-owl", Name: "Night Owl", Description: "Finish a watch after midnight", Criterion: models.CriterionNightOwl, Threshold: 1},
		{Slug: "marathon", Name: "Marathon", Description: "Accumulate 100 hours of watch time", Criterion: models.CriterionTotalMinutes, Threshold: 6000},
		{Slug: "week-streak", Name: "Week Streak", Description: "Watch something 7 days in a row", Criterion: models.CriterionStreakDays, Threshold: 7},
		{Slug: "month-streak", Name: "Month Streak", Description: "Watch something 30 days in a row", Criterion: models.CriterionStreakDays, Threshold: 30},
		{Slug: "explorer", Name: "Explorer", Description: "Watch episodes from 5 different series", Criterion: models.CriterionDistinctSeries, Threshold: 5},
	}
}

// SeedBadges upserts the default badge definitions. Existing rows keep
// their ids so earned UserBadge rows stay valid across upgrades.
func SeedBadges(gdb *gorm.DB) error {
	for _, b := range DefaultBadges() {
		err := gdb.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description", "criterion", "threshold"}),
		}).Create(&b).Error
		if err != nil {
			return fmt.Errorf("db: seed badge %q: %w", b.Slug, err)
		}
	}
	return nil
}
