package tracker

import (
	"time"

	"github.com/couchlog/couchlog/internal/config"
)

// Thresholds are the classification knobs, all configurable.
type Thresholds struct {
	CompletionPercent float64       // watch percentage required for "completed"
	MinWatch          time.Duration // minimum elapsed time for "completed"
	MinActivity       time.Duration // minimum elapsed time to count daily activity
	MinPartial        time.Duration // minimum elapsed time to persist a partial watch
}

// DefaultThresholds returns the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CompletionPercent: 85,
		MinWatch:          120 * time.Second,
		MinActivity:       60 * time.Second,
		MinPartial:        600 * time.Second,
	}
}

// ThresholdsFromConfig builds Thresholds from the tracker config section.
func ThresholdsFromConfig(tc config.TrackerConfig) Thresholds {
	return Thresholds{
		CompletionPercent: tc.CompletionThreshold,
		MinWatch:          time.Duration(tc.MinWatchSeconds) * time.Second,
		MinActivity:       time.Duration(tc.MinActivitySeconds) * time.Second,
		MinPartial:        time.Duration(tc.MinPartialWatchSeconds) * time.Second,
	}
}

// Outcome is the classification of a finished session.
type Outcome struct {
	WatchPercent float64       // position / runtime, 0..1
	Elapsed      time.Duration // real wall-clock time, not media position
	Minutes      int           // floor(elapsed seconds / 60)
	Completed    bool
	Activity     bool // worth a daily-activity entry
	Record       bool // worth a watch record
}

// Classify turns a session's final observed state into an Outcome. Pure:
// position and runtime are in server ticks, elapsed is real time.
func Classify(position, runtime int64, elapsed time.Duration, th Thresholds) Outcome {
	out := Outcome{Elapsed: elapsed}
	if runtime > 0 {
		out.WatchPercent = float64(position) / float64(runtime)
	}
	out.Minutes = int(elapsed / time.Minute)
	out.Completed = out.WatchPercent >= th.CompletionPercent/100 && elapsed >= th.MinWatch
	out.Activity = elapsed >= th.MinActivity
	out.Record = out.Completed || elapsed >= th.MinPartial
	return out
}

// outcomeLabel is the metrics label for an Outcome.
func outcomeLabel(out Outcome) string {
	switch {
	case out.Completed:
		return "completed"
	case out.Record:
		return "partial"
	default:
		return "ignored"
	}
}
