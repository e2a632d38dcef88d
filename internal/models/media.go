package models

import "time"

// Media kinds. A MediaItem is either a movie or a series; individual
// episodes are identified by (MediaItem, season, episode) on the watch
// record, which carries KindEpisode rather than its own media row.
const (
	KindMovie   = "movie"
	KindSeries  = "series"
	KindEpisode = "episode"
)

// MediaItem is the canonical catalogue reference for watched content,
// keyed by TMDB id. Rows are created lazily the first time a watch for
// the content is recorded.
type MediaItem struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	TmdbID        int64  `gorm:"not null;uniqueIndex:idx_media_tmdb_kind"`
	Kind          string `gorm:"size:16;not null;uniqueIndex:idx_media_tmdb_kind"`
	Title         string `gorm:"size:256"`
	TotalEpisodes int    `gorm:"default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
