package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/couchlog/couchlog/internal/jellyfin"
	"github.com/couchlog/couchlog/internal/models"
	"gorm.io/gorm"
)

// pass runs one reconciliation tick: it diffs the server's reported
// sessions against the registry, updating, switching, creating, and
// finalizing as needed. A fetch error aborts the pass with the registry
// untouched, so a single missed poll never finalizes anything.
//
// Ordering is strict: on a content switch the existing session is
// finalized with the position recorded on the previous tick before the
// registry entry is replaced, and disappeared sessions are finalized only
// after every reported session has been processed.
func (t *Tracker) pass(ctx context.Context) error {
	sessions, err := t.source.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("tracker: list sessions: %w", err)
	}
	now := t.now()

	seen := make(map[string]bool, len(sessions))
	for i := range sessions {
		seen[sessions[i].ID] = true
	}

	for i := range sessions {
		t.observe(ctx, &sessions[i], now)
	}

	for id, s := range t.registry {
		if seen[id] {
			continue
		}
		t.finalize(ctx, s, now)
		t.remove(id)
	}
	return nil
}

// observe processes one reported session.
func (t *Tracker) observe(ctx context.Context, raw *jellyfin.Session, now time.Time) {
	item := raw.NowPlaying
	if raw.ID == "" || item == nil {
		return
	}

	user, err := t.resolveUser(raw.UserID)
	if err != nil {
		log.Printf("tracker: resolve user %s: %v", raw.UserID, err)
		return
	}
	if user == nil || !user.TrackingEnabled {
		// Tracking toggled off mid-playback discards the session outright;
		// nothing accrued before the toggle is persisted either.
		if t.registry[raw.ID] != nil {
			t.remove(raw.ID)
		}
		return
	}

	contentID, kind := t.resolveContent(ctx, item)
	if contentID == 0 {
		if t.debug {
			log.Printf("tracker: no canonical id for %q (session %s), skipping", item.Name, raw.ID)
		}
		return
	}

	existing := t.registry[raw.ID]
	if existing != nil && existing.ContentID == contentID {
		t.mu.Lock()
		existing.LastSeenAt = now
		existing.Position = raw.Position
		existing.Runtime = item.Runtime
		existing.Paused = raw.Paused
		t.mu.Unlock()
		return
	}

	if existing != nil {
		// Content switch under the same session id: finalize the old
		// session with the previous tick's position before the registry
		// entry is replaced.
		t.finalize(ctx, existing, now)
	}

	s := &ActiveSession{
		SessionID:  raw.ID,
		UserID:     user.ID,
		ItemID:     item.ID,
		ContentID:  contentID,
		Kind:       kind,
		Season:     item.Season,
		Episode:    item.Episode,
		Title:      mediaTitle(item),
		StartedAt:  now,
		LastSeenAt: now,
		Position:   raw.Position,
		Runtime:    item.Runtime,
		Paused:     raw.Paused,
	}
	t.mu.Lock()
	t.registry[raw.ID] = s
	t.mu.Unlock()

	fmt.Fprintf(t.out, "Session %s: %s started %s\n", s.SessionID, user.Name, displayTitle(s))
}

// resolveContent maps a now-playing item to (canonical content id, kind).
// Movies must carry a direct catalogue id; episodes resolve through the
// identity resolver via their parent series.
func (t *Tracker) resolveContent(ctx context.Context, item *jellyfin.Item) (int64, string) {
	switch {
	case item.IsMovie():
		return item.TmdbID, KindMovie
	case item.IsEpisode():
		return t.resolver.Resolve(ctx, item.SeriesID, item.Series), KindEpisode
	default:
		return 0, ""
	}
}

// finalize converts a session's final observed state into its persistent
// side effects. Never removes the session from the registry; callers own
// that.
func (t *Tracker) finalize(ctx context.Context, s *ActiveSession, now time.Time) {
	out := Classify(s.Position, s.Runtime, now.Sub(s.StartedAt), t.thresholds)
	if t.metrics != nil {
		t.metrics.Finalizations.WithLabelValues(outcomeLabel(out)).Inc()
	}
	fmt.Fprintf(t.out, "Session %s: %s ended after %s (%.0f%%)\n",
		s.SessionID, displayTitle(s), out.Elapsed.Round(time.Second), out.WatchPercent*100)

	if out.Activity {
		newDay, err := t.recorder.RecordActivity(s.UserID, now, out.Minutes, out.Completed)
		if err != nil {
			log.Printf("tracker: daily activity for user %d: %v", s.UserID, err)
		} else if newDay {
			t.notifier.enqueue(task{kind: taskStreak, userID: s.UserID})
		}
	}

	if !out.Record {
		return
	}
	rec, err := t.recorder.Record(s, out, now)
	if err != nil {
		// The watch is lost for this finalization; a future session of the
		// same content still accumulates correctly.
		log.Printf("tracker: record %s for user %d: %v", displayTitle(s), s.UserID, err)
		return
	}
	if t.metrics != nil {
		t.metrics.RecordsWritten.Inc()
	}

	if s.Kind == KindEpisode && !rec.Partial {
		t.notifier.enqueue(task{kind: taskSeriesProgress, userID: s.UserID, contentID: s.ContentID})
	}
	t.notifier.enqueue(task{
		kind:      taskBadges,
		userID:    s.UserID,
		title:     displayTitle(s),
		minutes:   rec.Minutes,
		completed: !rec.Partial && out.Completed,
	})
}

// resolveUser maps an external media-server user id to a Couchlog user.
// Returns (nil, nil) when no mapping exists.
func (t *Tracker) resolveUser(externalID string) (*models.User, error) {
	if externalID == "" {
		return nil, nil
	}
	var u models.User
	err := t.db.Where("jellyfin_user_id = ?", externalID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// remove deletes a session from the registry.
func (t *Tracker) remove(id string) {
	t.mu.Lock()
	delete(t.registry, id)
	t.mu.Unlock()
}

// mediaTitle is the catalogue-level title: the series name for episodes,
// the item name for movies.
func mediaTitle(item *jellyfin.Item) string {
	if item.IsEpisode() && item.Series != "" {
		return item.Series
	}
	return item.Name
}

// displayTitle formats a session's content for logs and announcements.
func displayTitle(s *ActiveSession) string {
	if s.Kind == KindEpisode && s.Season != nil && s.Episode != nil {
		return fmt.Sprintf("%s S%02dE%02d", s.Title, *s.Season, *s.Episode)
	}
	return s.Title
}
