package tracker

import (
	"fmt"
	"time"

	"github.com/couchlog/couchlog/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Recorder persists finalized sessions: it find-or-creates the media
// reference, accumulates today's watch record, and upserts daily activity.
// The find-or-accumulate step runs inside one transaction; the engine
// holds no lock across it.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder creates a Recorder.
func NewRecorder(gdb *gorm.DB) (*Recorder, error) {
	if gdb == nil {
		return nil, fmt.Errorf("recorder: db is required")
	}
	return &Recorder{db: gdb}, nil
}

// Record writes or accumulates the watch record for a finalized session.
// Returns the final state of the record. The partial flag only ever
// transitions true→false.
func (r *Recorder) Record(s *ActiveSession, out Outcome, now time.Time) (*models.WatchRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("recorder: session is required")
	}

	var rec models.WatchRecord
	err := r.db.Transaction(func(tx *gorm.DB) error {
		media, err := findOrCreateMediaItem(tx, s)
		if err != nil {
			return err
		}

		dayStart := startOfDay(now)
		q := tx.Where("user_id = ? AND media_item_id = ? AND manual = ? AND watched_at >= ? AND watched_at < ?",
			s.UserID, media.ID, false, dayStart, dayStart.AddDate(0, 0, 1))
		q = whereEpisode(q, s.Season, s.Episode)

		result := q.First(&rec)
		if result.Error != nil {
			if result.Error != gorm.ErrRecordNotFound {
				return fmt.Errorf("find today's record: %w", result.Error)
			}
			rec = models.WatchRecord{
				UserID:      s.UserID,
				MediaItemID: media.ID,
				Kind:        s.Kind,
				Season:      s.Season,
				Episode:     s.Episode,
				WatchedAt:   now,
				Minutes:     out.Minutes,
				Partial:     !out.Completed,
			}
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("create record: %w", err)
			}
			return nil
		}

		rec.Minutes += out.Minutes
		if out.Completed {
			rec.Partial = false
		}
		if err := tx.Save(&rec).Error; err != nil {
			return fmt.Errorf("accumulate record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}
	return &rec, nil
}

// RecordActivity upserts the user's daily activity row, adding minutes and
// session/completion counts for the given day. Reports whether this was the
// day's first activity, which is when a streak can have extended. The
// check-then-upsert is safe: all finalization runs on the pass goroutine.
func (r *Recorder) RecordActivity(userID uint, day time.Time, minutes int, completed bool) (bool, error) {
	dayStart := startOfDay(day)

	var existing int64
	err := r.db.Model(&models.DailyActivity{}).
		Where("user_id = ? AND date = ?", userID, dayStart).
		Count(&existing).Error
	if err != nil {
		return false, fmt.Errorf("recorder: daily activity: %w", err)
	}

	completedDelta := 0
	if completed {
		completedDelta = 1
	}
	activity := models.DailyActivity{
		UserID:    userID,
		Date:      dayStart,
		Minutes:   minutes,
		Sessions:  1,
		Completed: completedDelta,
	}
	err = r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"minutes":   gorm.Expr("minutes + ?", minutes),
			"sessions":  gorm.Expr("sessions + 1"),
			"completed": gorm.Expr("completed + ?", completedDelta),
		}),
	}).Create(&activity).Error
	if err != nil {
		return false, fmt.Errorf("recorder: daily activity: %w", err)
	}
	return existing == 0, nil
}

// findOrCreateMediaItem resolves the session's canonical content id to a
// media reference row, creating it on first sight. Episodes reference the
// series item.
func findOrCreateMediaItem(tx *gorm.DB, s *ActiveSession) (*models.MediaItem, error) {
	kind := models.KindMovie
	if s.Kind == KindEpisode {
		kind = models.KindSeries
	}
	media := models.MediaItem{TmdbID: s.ContentID, Kind: kind, Title: s.Title}
	err := tx.Where("tmdb_id = ? AND kind = ?", s.ContentID, kind).
		FirstOrCreate(&media).Error
	if err != nil {
		return nil, fmt.Errorf("find-or-create media item: %w", err)
	}
	return &media, nil
}

// whereEpisode narrows a record query to the session's season/episode,
// matching NULL for movies.
func whereEpisode(q *gorm.DB, season, episode *int) *gorm.DB {
	if season != nil {
		q = q.Where("season = ?", *season)
	} else {
		q = q.Where("season IS NULL")
	}
	if episode != nil {
		q = q.Where("episode = ?", *episode)
	} else {
		q = q.Where("episode IS NULL")
	}
	return q
}

// startOfDay truncates t to midnight in local time. "Today" for record
// deduplication is the server's calendar day.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
