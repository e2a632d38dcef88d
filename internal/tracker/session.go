package tracker

import (
	"time"

	"github.com/couchlog/couchlog/internal/models"
)

// Content kinds carried on active sessions, shared with watch records.
const (
	KindMovie   = models.KindMovie
	KindEpisode = models.KindEpisode
)

// ActiveSession is the engine's in-memory state for one playback stream.
// ContentID and Kind are fixed at creation; a content change under the same
// external session id ends this session and starts a new one.
type ActiveSession struct {
	SessionID string // external session id, registry key
	UserID    uint   // Couchlog user, resolved at session start

	ItemID    string // external item id
	ContentID int64  // canonical catalogue (TMDB) id
	Kind      string // KindMovie or KindEpisode
	Season    *int
	Episode   *int
	Title     string // diagnostic only

	StartedAt  time.Time
	LastSeenAt time.Time
	Position   int64 // last observed play position, ticks
	Runtime    int64 // total runtime, ticks
	Paused     bool
}
