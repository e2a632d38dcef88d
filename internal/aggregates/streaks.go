package aggregates

import (
	"context"
	"fmt"
	"time"

	"github.com/couchlog/couchlog/internal/models"
	"gorm.io/gorm"
)

// StreakSummary is a user's consecutive-day watch activity.
type StreakSummary struct {
	Current int // run ending today or yesterday
	Longest int
}

// CurrentStreak returns the user's current consecutive-day run as of now.
// The tracker asks for it after the first activity of a day to announce
// streak extensions.
func (s *Service) CurrentStreak(ctx context.Context, userID uint) (int, error) {
	summary, err := Streak(s.db.WithContext(ctx), userID, time.Now())
	if err != nil {
		return 0, err
	}
	return summary.Current, nil
}

// Streak computes a user's daily activity streak as of today. An unbroken
// run that ended yesterday still counts as current: the streak only breaks
// once a full day passes with no activity.
func Streak(gdb *gorm.DB, userID uint, today time.Time) (StreakSummary, error) {
	if gdb == nil {
		return StreakSummary{}, fmt.Errorf("aggregates: db is required")
	}

	var rows []models.DailyActivity
	if err := gdb.Where("user_id = ?", userID).Order("date ASC").Find(&rows).Error; err != nil {
		return StreakSummary{}, fmt.Errorf("aggregates: load activity: %w", err)
	}
	if len(rows) == 0 {
		return StreakSummary{}, nil
	}

	days := make(map[time.Time]bool, len(rows))
	var ordered []time.Time
	for _, r := range rows {
		d := dateOf(r.Date)
		if !days[d] {
			days[d] = true
			ordered = append(ordered, d)
		}
	}

	var summary StreakSummary

	run := 1
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Sub(ordered[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > summary.Longest {
			summary.Longest = run
		}
	}
	if summary.Longest == 0 {
		summary.Longest = 1
	}

	anchor := dateOf(today)
	if !days[anchor] {
		anchor = anchor.AddDate(0, 0, -1)
	}
	for days[anchor] {
		summary.Current++
		anchor = anchor.AddDate(0, 0, -1)
	}

	return summary, nil
}

// dateOf normalizes a timestamp to midnight UTC so map keys compare
// regardless of the stored location.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
