package telegraph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/couchlog/couchlog/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserDigest is one user's line in the daily digest.
type UserDigest struct {
	UserName  string
	Minutes   int
	Sessions  int
	Completed int
}

// BuildDigest summarizes daily activity with dates in [since, until).
func BuildDigest(gdb *gorm.DB, since, until time.Time) ([]UserDigest, error) {
	if gdb == nil {
		return nil, fmt.Errorf("telegraph: db is required")
	}
	var rows []UserDigest
	err := gdb.Model(&models.DailyActivity{}).
		Select("users.name AS user_name, SUM(daily_activities.minutes) AS minutes, SUM(daily_activities.sessions) AS sessions, SUM(daily_activities.completed) AS completed").
		Joins("JOIN users ON users.id = daily_activities.user_id").
		Where("daily_activities.date >= ? AND daily_activities.date < ?", since, until).
		Group("users.name").
		Order("minutes DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("telegraph: build digest: %w", err)
	}
	return rows, nil
}

// SendDailyDigest announces yesterday's watch activity. No activity, no
// message.
func (s *Service) SendDailyDigest(ctx context.Context) error {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterday := today.AddDate(0, 0, -1)

	rows, err := BuildDigest(s.db, yesterday, today)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%s — %s across %d session(s), %d finished\n",
			r.UserName, FormatMinutes(r.Minutes), r.Sessions, r.Completed)
	}

	n := models.Notification{
		ID:      uuid.NewString(),
		Kind:    models.NotifyDailyDigest,
		Subject: fmt.Sprintf("Watch digest for %s", yesterday.Format("Mon Jan 2")),
		Body:    strings.TrimRight(b.String(), "\n"),
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		return fmt.Errorf("telegraph: digest outbox: %w", err)
	}
	s.deliver(ctx, &n)
	return nil
}
