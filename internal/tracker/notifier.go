package tracker

import (
	"context"
	"log"
	"sync"

	"github.com/couchlog/couchlog/internal/metrics"
	"github.com/couchlog/couchlog/internal/models"
)

// AggregateSink receives the engine's fire-and-forget downstream calls.
// *aggregates.Service satisfies it.
type AggregateSink interface {
	RecomputeSeriesProgress(ctx context.Context, userID uint, seriesTmdbID int64) error
	EvaluateBadges(ctx context.Context, userID uint) ([]models.Badge, error)
	CurrentStreak(ctx context.Context, userID uint) (int, error)
}

// Announcer publishes watch milestones to chat. *telegraph.Service
// satisfies it. Implementations must be best-effort: errors are theirs to
// log, not return.
type Announcer interface {
	AnnounceWatch(ctx context.Context, userID uint, title string, minutes int)
	AnnounceBadge(ctx context.Context, userID uint, badge models.Badge)
	AnnounceStreak(ctx context.Context, userID uint, days int)
}

const (
	taskSeriesProgress = "series-progress"
	taskBadges         = "badges"
	taskStreak         = "streak"

	notifierQueueSize = 64
)

// task is one queued downstream recompute.
type task struct {
	kind      string
	userID    uint
	contentID int64  // series TMDB id for taskSeriesProgress
	title     string // diagnostic / announcement text
	minutes   int
	completed bool
}

// Notifier decouples aggregate recomputation from the reconciliation pass:
// tasks go through a bounded queue drained by a single worker, so a slow
// or failing aggregate never blocks the poll loop. Overflow drops the task.
type Notifier struct {
	sink     AggregateSink
	announce Announcer
	metrics  *metrics.Metrics

	ch   chan task
	wg   sync.WaitGroup
	once sync.Once
}

// NewNotifier creates a Notifier and starts its worker. sink and announce
// may be nil; nil targets turn the corresponding tasks into no-ops.
func NewNotifier(sink AggregateSink, announce Announcer, m *metrics.Metrics) *Notifier {
	n := &Notifier{
		sink:     sink,
		announce: announce,
		metrics:  m,
		ch:       make(chan task, notifierQueueSize),
	}
	n.wg.Add(1)
	go n.run()
	return n
}

// enqueue submits a task without blocking. Full queue drops the task.
func (n *Notifier) enqueue(t task) {
	select {
	case n.ch <- t:
	default:
		log.Printf("notifier: queue full, dropping %s for user %d", t.kind, t.userID)
		if n.metrics != nil {
			n.metrics.NotifyDropped.Inc()
		}
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
// Tasks dispatched before Close are still delivered.
func (n *Notifier) Close() {
	n.once.Do(func() { close(n.ch) })
	n.wg.Wait()
}

func (n *Notifier) run() {
	defer n.wg.Done()
	for t := range n.ch {
		n.handle(t)
	}
}

func (n *Notifier) handle(t task) {
	// Queued tasks outlive the pass that produced them; they carry their
	// own context.
	ctx := context.Background()

	switch t.kind {
	case taskSeriesProgress:
		if n.sink == nil {
			return
		}
		if err := n.sink.RecomputeSeriesProgress(ctx, t.userID, t.contentID); err != nil {
			log.Printf("notifier: series progress for user %d, series %d: %v", t.userID, t.contentID, err)
			if n.metrics != nil {
				n.metrics.NotifyFailures.Inc()
			}
		}

	case taskBadges:
		if t.completed && n.announce != nil {
			n.announce.AnnounceWatch(ctx, t.userID, t.title, t.minutes)
		}
		if n.sink == nil {
			return
		}
		earned, err := n.sink.EvaluateBadges(ctx, t.userID)
		if err != nil {
			log.Printf("notifier: badge evaluation for user %d: %v", t.userID, err)
			if n.metrics != nil {
				n.metrics.NotifyFailures.Inc()
			}
			return
		}
		if n.announce != nil {
			for _, b := range earned {
				n.announce.AnnounceBadge(ctx, t.userID, b)
			}
		}

	case taskStreak:
		if n.sink == nil {
			return
		}
		days, err := n.sink.CurrentStreak(ctx, t.userID)
		if err != nil {
			log.Printf("notifier: streak for user %d: %v", t.userID, err)
			if n.metrics != nil {
				n.metrics.NotifyFailures.Inc()
			}
			return
		}
		// A one-day run is just the first watch of the day, not an extension.
		if days >= 2 && n.announce != nil {
			n.announce.AnnounceStreak(ctx, t.userID, days)
		}
	}
}
