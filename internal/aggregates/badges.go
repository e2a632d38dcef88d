package aggregates

import (
	"context"
	"fmt"
	"time"

	"github.com/couchlog/couchlog/internal/models"
)

// nightOwlCutoffHour bounds after-midnight viewing: a completed watch
// finalized between 00:00 and this hour counts toward the night-owl badge.
const nightOwlCutoffHour = 5

// badgeStats holds the per-user totals badge criteria are checked against.
type badgeStats struct {
	completedWatches int64
	totalMinutes     int64
	longestStreak    int
	distinctSeries   int64
	nightOwlWatches  int64
}

// EvaluateBadges awards any badges the user now qualifies for and returns
// the newly earned ones. Awards are idempotent and never revoked.
func (s *Service) EvaluateBadges(ctx context.Context, userID uint) ([]models.Badge, error) {
	stats, err := s.collectStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	var badges []models.Badge
	if err := s.db.WithContext(ctx).Find(&badges).Error; err != nil {
		return nil, fmt.Errorf("aggregates: load badges: %w", err)
	}

	earned := make(map[uint]bool)
	var existing []models.UserBadge
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&existing).Error; err != nil {
		return nil, fmt.Errorf("aggregates: load earned badges: %w", err)
	}
	for _, ub := range existing {
		earned[ub.BadgeID] = true
	}

	var awarded []models.Badge
	now := time.Now()
	for _, b := range badges {
		if earned[b.ID] || !stats.meets(b) {
			continue
		}
		ub := models.UserBadge{UserID: userID, BadgeID: b.ID, EarnedAt: now}
		if err := s.db.WithContext(ctx).Create(&ub).Error; err != nil {
			return awarded, fmt.Errorf("aggregates: award badge %q: %w", b.Slug, err)
		}
		awarded = append(awarded, b)
	}
	return awarded, nil
}

// meets reports whether the stats satisfy a badge's criterion.
func (st badgeStats) meets(b models.Badge) bool {
	switch b.Criterion {
	case models.CriterionCompletedWatches:
		return st.completedWatches >= int64(b.Threshold)
	case models.CriterionTotalMinutes:
		return st.totalMinutes >= int64(b.Threshold)
	case models.CriterionStreakDays:
		return st.longestStreak >= b.Threshold
	case models.CriterionDistinctSeries:
		return st.distinctSeries >= int64(b.Threshold)
	case models.CriterionNightOwl:
		return st.nightOwlWatches >= int64(b.Threshold)
	default:
		return false
	}
}

func (s *Service) collectStats(ctx context.Context, userID uint) (badgeStats, error) {
	var st badgeStats
	gdb := s.db.WithContext(ctx)

	err := gdb.Model(&models.WatchRecord{}).
		Where("user_id = ? AND partial = ?", userID, false).
		Count(&st.completedWatches).Error
	if err != nil {
		return st, fmt.Errorf("aggregates: count completed watches: %w", err)
	}

	var minutes *int64
	err = gdb.Model(&models.WatchRecord{}).
		Select("SUM(minutes)").
		Where("user_id = ?", userID).
		Scan(&minutes).Error
	if err != nil {
		return st, fmt.Errorf("aggregates: sum minutes: %w", err)
	}
	if minutes != nil {
		st.totalMinutes = *minutes
	}

	err = gdb.Model(&models.WatchRecord{}).
		Where("user_id = ? AND kind = ?", userID, models.KindEpisode).
		Distinct("media_item_id").
		Count(&st.distinctSeries).Error
	if err != nil {
		return st, fmt.Errorf("aggregates: count series: %w", err)
	}

	// Hour-of-day comparison happens in Go so the query stays portable
	// across sqlite and mysql.
	var watchTimes []time.Time
	err = gdb.Model(&models.WatchRecord{}).
		Where("user_id = ? AND partial = ?", userID, false).
		Pluck("watched_at", &watchTimes).Error
	if err != nil {
		return st, fmt.Errorf("aggregates: load watch times: %w", err)
	}
	for _, ts := range watchTimes {
		// Drivers round-trip timestamps in UTC; the cutoff is a local
		// wall-clock hour, matching the calendar-day convention.
		if ts.Local().Hour() < nightOwlCutoffHour {
			st.nightOwlWatches++
		}
	}

	streak, err := Streak(s.db, userID, time.Now())
	if err != nil {
		return st, err
	}
	st.longestStreak = streak.Longest

	return st, nil
}
