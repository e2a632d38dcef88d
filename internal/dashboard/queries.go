package dashboard

import (
	"strconv"
	"time"

	"github.com/couchlog/couchlog/internal/models"
	"gorm.io/gorm"
)

// HistoryRow holds one watch record for display.
type HistoryRow struct {
	ID        uint      `json:"id"`
	User      string    `json:"user"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	Season    *int      `json:"season,omitempty"`
	Episode   *int      `json:"episode,omitempty"`
	WatchedAt time.Time `json:"watched_at"`
	Minutes   int       `json:"minutes"`
	Partial   bool      `json:"partial"`
}

// HistoryFilters narrows a history query.
type HistoryFilters struct {
	UserID uint
	Limit  int
}

// History returns recent watch records, newest first.
func History(gdb *gorm.DB, f HistoryFilters) ([]HistoryRow, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	q := gdb.Model(&models.WatchRecord{}).
		Select("watch_records.id, users.name AS user, media_items.title, watch_records.kind, watch_records.season, watch_records.episode, watch_records.watched_at, watch_records.minutes, watch_records.partial").
		Joins("JOIN users ON users.id = watch_records.user_id").
		Joins("JOIN media_items ON media_items.id = watch_records.media_item_id").
		Order("watch_records.watched_at DESC").
		Limit(f.Limit)
	if f.UserID != 0 {
		q = q.Where("watch_records.user_id = ?", f.UserID)
	}
	var rows []HistoryRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// LeaderboardRow holds one user's totals for a period.
type LeaderboardRow struct {
	User      string `json:"user"`
	Minutes   int    `json:"minutes"`
	Completed int    `json:"completed"`
}

// Leaderboard sums daily activity per user since the cutoff.
func Leaderboard(gdb *gorm.DB, since time.Time) ([]LeaderboardRow, error) {
	var rows []LeaderboardRow
	err := gdb.Model(&models.DailyActivity{}).
		Select("users.name AS user, SUM(daily_activities.minutes) AS minutes, SUM(daily_activities.completed) AS completed").
		Joins("JOIN users ON users.id = daily_activities.user_id").
		Where("daily_activities.date >= ?", since).
		Group("users.name").
		Order("minutes DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ProgressRow holds one series-progress entry for display.
type ProgressRow struct {
	Title           string    `json:"title"`
	WatchedEpisodes int       `json:"watched_episodes"`
	TotalEpisodes   int       `json:"total_episodes"`
	Percent         float64   `json:"percent"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SeriesProgressFor returns a user's series completion rows.
func SeriesProgressFor(gdb *gorm.DB, userID uint) ([]ProgressRow, error) {
	var rows []ProgressRow
	err := gdb.Model(&models.SeriesProgress{}).
		Select("media_items.title, series_progresses.watched_episodes, series_progresses.total_episodes, series_progresses.percent, series_progresses.updated_at").
		Joins("JOIN media_items ON media_items.id = series_progresses.media_item_id").
		Where("series_progresses.user_id = ?", userID).
		Order("series_progresses.updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// BadgeRow holds one earned badge for display.
type BadgeRow struct {
	Slug     string    `json:"slug"`
	Name     string    `json:"name"`
	EarnedAt time.Time `json:"earned_at"`
}

// BadgesFor returns a user's earned badges, newest first.
func BadgesFor(gdb *gorm.DB, userID uint) ([]BadgeRow, error) {
	var rows []BadgeRow
	err := gdb.Model(&models.UserBadge{}).
		Select("badges.slug, badges.name, user_badges.earned_at").
		Joins("JOIN badges ON badges.id = user_badges.badge_id").
		Where("user_badges.user_id = ?", userID).
		Order("user_badges.earned_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// parseID parses a positive integer path parameter.
func parseID(raw string) (uint, bool) {
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}
