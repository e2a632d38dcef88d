// Package tracker is the playback-session reconciliation engine: it polls
// the media server's active sessions on a fixed interval and converts the
// ephemeral telemetry into durable, deduplicated watch history.
package tracker

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchlog/couchlog/internal/jellyfin"
	"github.com/couchlog/couchlog/internal/metrics"
	"gorm.io/gorm"
)

const defaultPollInterval = 10 * time.Second

// SessionSource lists the sessions currently playing on the media server.
// *jellyfin.Client satisfies it.
type SessionSource interface {
	ListSessions(ctx context.Context) ([]jellyfin.Session, error)
}

// Opts holds construction parameters for a Tracker.
type Opts struct {
	DB           *gorm.DB
	Source       SessionSource        // nil leaves the tracker inert
	Meta         SeriesMetadataSource // series cross-reference ids
	Catalog      CatalogLookup        // canonical catalogue lookup
	Aggregates   AggregateSink
	Announcer    Announcer
	Thresholds   Thresholds // zero value means DefaultThresholds
	PollInterval time.Duration
	Metrics      *metrics.Metrics
	Debug        bool      // log unresolvable sessions
	Out          io.Writer // operator-facing progress, defaults to io.Discard
}

// Tracker owns the session registry, the identity cache, and the poll
// loop. All registry mutation happens on the pass goroutine; NowPlaying
// takes read snapshots for the dashboard.
type Tracker struct {
	db         *gorm.DB
	source     SessionSource
	resolver   *Resolver
	recorder   *Recorder
	notifier   *Notifier
	thresholds Thresholds
	interval   time.Duration
	metrics    *metrics.Metrics
	debug      bool
	out        io.Writer
	now        func() time.Time

	mu       sync.RWMutex
	registry map[string]*ActiveSession

	inFlight atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a Tracker. It does not start polling; call Start.
func New(opts Opts) (*Tracker, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("tracker: db is required")
	}
	if opts.Thresholds == (Thresholds{}) {
		opts.Thresholds = DefaultThresholds()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	recorder, err := NewRecorder(opts.DB)
	if err != nil {
		return nil, err
	}

	return &Tracker{
		db:         opts.DB,
		source:     opts.Source,
		resolver:   NewResolver(opts.Meta, opts.Catalog),
		recorder:   recorder,
		notifier:   NewNotifier(opts.Aggregates, opts.Announcer, opts.Metrics),
		thresholds: opts.Thresholds,
		interval:   opts.PollInterval,
		metrics:    opts.Metrics,
		debug:      opts.Debug,
		out:        opts.Out,
		now:        time.Now,
		registry:   make(map[string]*ActiveSession),
	}, nil
}

// Start launches the poll loop: one pass immediately, then one per
// interval until Stop. If no session source is configured the tracker
// stays inert and Start returns nil.
func (t *Tracker) Start(ctx context.Context) error {
	if t.source == nil {
		fmt.Fprintf(t.out, "Playback tracking disabled (media server not configured)\n")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.wg.Add(1)
	go t.run(runCtx)

	fmt.Fprintf(t.out, "Playback tracker started (poll every %s)\n", t.interval)
	return nil
}

// Stop cancels future ticks, drains the registry with one final
// finalization pass, and waits for queued notifier tasks to finish.
func (t *Tracker) Stop() {
	if t.cancel != nil {
		t.cancel()
		t.wg.Wait()
		t.cancel = nil
	}
	t.notifier.Close()
}

// NowPlaying returns a snapshot of the sessions the engine currently
// considers active.
func (t *Tracker) NowPlaying() []ActiveSession {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ActiveSession, 0, len(t.registry))
	for _, s := range t.registry {
		out = append(out, *s)
	}
	return out
}

func (t *Tracker) run(ctx context.Context) {
	defer t.wg.Done()

	t.runPass(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.drain()
			return
		case <-ticker.C:
			t.runPass(ctx)
		}
	}
}

// runPass executes one reconciliation pass under the overlap guard: a tick
// that arrives while a previous pass is still running is skipped rather
// than raced against the shared registry.
func (t *Tracker) runPass(ctx context.Context) {
	if !t.inFlight.CompareAndSwap(false, true) {
		log.Printf("tracker: previous pass still running, skipping tick")
		if t.metrics != nil {
			t.metrics.TicksSkipped.Inc()
		}
		return
	}
	defer t.inFlight.Store(false)

	if err := t.pass(ctx); err != nil {
		log.Printf("tracker: pass: %v", err)
		if t.metrics != nil {
			t.metrics.PassErrors.Inc()
		}
		return
	}
	if t.metrics != nil {
		t.metrics.Passes.Inc()
	}
}

// drain finalizes every session still in the registry, treating each as
// ended now, then clears the registry. Runs once, on shutdown.
func (t *Tracker) drain() {
	now := t.now()
	for _, s := range t.registry {
		t.finalize(context.Background(), s, now)
	}
	t.mu.Lock()
	t.registry = make(map[string]*ActiveSession)
	t.mu.Unlock()
}
