// Package aggregates recomputes the derived views the dashboard reads:
// per-series completion, daily streaks, and badges. All entry points are
// safe to call from the tracker's fire-and-forget notifier.
package aggregates

import (
	"context"
	"fmt"

	"github.com/couchlog/couchlog/internal/tmdb"
	"gorm.io/gorm"
)

// SeriesCatalog fetches series metadata for episode totals. *tmdb.Client
// satisfies it; nil disables total-episode enrichment.
type SeriesCatalog interface {
	Series(ctx context.Context, tmdbID int64) (*tmdb.SeriesDetails, error)
}

// Service runs aggregate recomputation against the application database.
type Service struct {
	db      *gorm.DB
	catalog SeriesCatalog
}

// New creates a Service. catalog may be nil.
func New(gdb *gorm.DB, catalog SeriesCatalog) (*Service, error) {
	if gdb == nil {
		return nil, fmt.Errorf("aggregates: db is required")
	}
	return &Service{db: gdb, catalog: catalog}, nil
}
