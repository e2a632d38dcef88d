package aggregates

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/couchlog/couchlog/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecomputeSeriesProgress rewrites the SeriesProgress row for one user and
// series from the current watch records. Completed episodes are distinct
// (season, episode) pairs with a non-partial record.
func (s *Service) RecomputeSeriesProgress(ctx context.Context, userID uint, seriesTmdbID int64) error {
	var media models.MediaItem
	err := s.db.WithContext(ctx).
		Where("tmdb_id = ? AND kind = ?", seriesTmdbID, models.KindSeries).
		First(&media).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("aggregates: series %d has no media item", seriesTmdbID)
	}
	if err != nil {
		return fmt.Errorf("aggregates: load series %d: %w", seriesTmdbID, err)
	}

	if media.TotalEpisodes == 0 && s.catalog != nil {
		// Best-effort enrichment; progress still recomputes without it.
		if details, err := s.catalog.Series(ctx, seriesTmdbID); err != nil {
			log.Printf("aggregates: series details for %d: %v", seriesTmdbID, err)
		} else if details != nil && details.Episodes > 0 {
			media.TotalEpisodes = details.Episodes
			if media.Title == "" {
				media.Title = details.Name
			}
			if err := s.db.WithContext(ctx).Save(&media).Error; err != nil {
				log.Printf("aggregates: save episode total for %d: %v", seriesTmdbID, err)
			}
		}
	}

	var watched int64
	err = s.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM (
			SELECT DISTINCT season, episode FROM watch_records
			WHERE user_id = ? AND media_item_id = ? AND partial = ? AND manual = ?
		) episodes`, userID, media.ID, false, false).Scan(&watched).Error
	if err != nil {
		return fmt.Errorf("aggregates: count episodes: %w", err)
	}

	percent := 0.0
	if media.TotalEpisodes > 0 {
		percent = float64(watched) / float64(media.TotalEpisodes) * 100
		if percent > 100 {
			percent = 100
		}
	}

	progress := models.SeriesProgress{
		UserID:          userID,
		MediaItemID:     media.ID,
		WatchedEpisodes: int(watched),
		TotalEpisodes:   media.TotalEpisodes,
		Percent:         percent,
		UpdatedAt:       time.Now(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "media_item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"watched_episodes", "total_episodes", "percent", "updated_at",
		}),
	}).Create(&progress).Error
	if err != nil {
		return fmt.Errorf("aggregates: upsert progress: %w", err)
	}
	return nil
}
