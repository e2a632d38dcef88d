package tracker

import (
	"context"
	"log"
	"time"

	"github.com/couchlog/couchlog/internal/jellyfin"
)

// SeriesMetadataSource fetches cross-reference ids for a series from the
// media server. *jellyfin.Client satisfies it.
type SeriesMetadataSource interface {
	SeriesProviderIDs(ctx context.Context, seriesID string) (jellyfin.ProviderIDs, error)
}

// CatalogLookup resolves a secondary cross-reference id to a canonical
// catalogue id. *tmdb.Client satisfies it.
type CatalogLookup interface {
	FindByTvdbID(ctx context.Context, tvdbID string) (int64, error)
}

const (
	resolverRetryBase = time.Minute
	resolverRetryMax  = time.Hour
)

// cacheEntry memoizes one resolution outcome. A confirmed absence
// (transient=false, contentID=0) is cached for the process lifetime; a
// transport failure is retried after a backoff so an outage cannot
// permanently hide a mapping.
type cacheEntry struct {
	contentID int64
	transient bool
	failures  int
	retryAt   time.Time
}

// Resolver maps external series ids to canonical catalogue ids, memoizing
// both positive and negative outcomes. It never returns an error: any
// internal failure resolves to "no mapping" and is logged.
type Resolver struct {
	meta    SeriesMetadataSource
	catalog CatalogLookup
	cache   map[string]*cacheEntry
	now     func() time.Time
}

// NewResolver creates a Resolver. meta and catalog may be nil, in which
// case every lookup resolves to "no mapping".
func NewResolver(meta SeriesMetadataSource, catalog CatalogLookup) *Resolver {
	return &Resolver{
		meta:    meta,
		catalog: catalog,
		cache:   make(map[string]*cacheEntry),
		now:     time.Now,
	}
}

// Resolve returns the canonical catalogue id for an external series id, or
// 0 when no mapping exists. title is diagnostic only.
func (r *Resolver) Resolve(ctx context.Context, seriesID, title string) int64 {
	if seriesID == "" {
		return 0
	}
	now := r.now()

	if entry, ok := r.cache[seriesID]; ok {
		if !entry.transient {
			return entry.contentID
		}
		if now.Before(entry.retryAt) {
			return 0
		}
	}

	id, transient := r.lookup(ctx, seriesID, title)
	if transient {
		r.cacheTransient(seriesID, now)
		return 0
	}
	r.cache[seriesID] = &cacheEntry{contentID: id}
	return id
}

// lookup performs the remote resolution chain. The second return value is
// true when the outcome came from a transport failure rather than a
// confirmed absence.
func (r *Resolver) lookup(ctx context.Context, seriesID, title string) (int64, bool) {
	if r.meta == nil {
		return 0, false
	}

	ids, err := r.meta.SeriesProviderIDs(ctx, seriesID)
	if err != nil {
		log.Printf("resolver: series metadata for %q (%s): %v", title, seriesID, err)
		return 0, true
	}
	if ids.Tmdb != 0 {
		// The server already knows the canonical id.
		return ids.Tmdb, false
	}
	if ids.Tvdb == "" || r.catalog == nil {
		return 0, false
	}

	id, err := r.catalog.FindByTvdbID(ctx, ids.Tvdb)
	if err != nil {
		log.Printf("resolver: catalogue lookup for %q (tvdb %s): %v", title, ids.Tvdb, err)
		return 0, true
	}
	return id, false
}

// cacheTransient records a retryable negative with exponential backoff.
func (r *Resolver) cacheTransient(seriesID string, now time.Time) {
	entry, ok := r.cache[seriesID]
	if !ok || !entry.transient {
		entry = &cacheEntry{transient: true}
		r.cache[seriesID] = entry
	}
	backoff := resolverRetryBase << entry.failures
	if backoff > resolverRetryMax || backoff <= 0 {
		backoff = resolverRetryMax
	}
	entry.failures++
	entry.retryAt = now.Add(backoff)
}
