package refresh

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultInterval is the default scheduled refresh interval.
const DefaultInterval = 6 * time.Hour

// Target is the storage side of a refresh. The storage coordinator is
// the production implementation.
type Target interface {
	// RefreshFromSnapshot reloads the fast tier from the snapshot tier,
	// returning the number of entries reloaded and the elapsed time.
	RefreshFromSnapshot() (int, time.Duration, error)

	// SnapshotPath returns the snapshot file path, for the watcher.
	SnapshotPath() string
}

// Config configures the refresh subsystem.
type Config struct {
	// Interval between scheduled refreshes. Zero means DefaultInterval.
	Interval time.Duration

	// Enabled controls the background schedule. RefreshNow works
	// regardless.
	Enabled bool

	// WatchSnapshot enables the snapshot-file watcher.
	WatchSnapshot bool
}

// Stats describes the most recent completed refresh.
type Stats struct {
	// LastRefresh is when the last successful refresh finished; zero
	// when none has run.
	LastRefresh time.Time `json:"last_refresh"`

	// LastCount is the number of entries reloaded by the last refresh.
	LastCount int `json:"last_count"`

	// LastDuration is how long the last refresh took.
	LastDuration time.Duration `json:"last_duration"`

	// TotalRefreshes counts successful refreshes since start.
	TotalRefreshes uint64 `json:"total_refreshes"`

	// TotalFailures counts failed refresh attempts since start.
	TotalFailures uint64 `json:"total_failures"`
}

// Refresher coordinates on-demand, scheduled, and watcher-driven
// reloads of the fast tier.
type Refresher struct {
	target Target
	cfg    Config
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	stats   Stats
	watcher *snapshotWatcher
	running bool
}

// New creates a refresher over the given target.
func New(target Target, cfg Config) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Refresher{
		target: target,
		cfg:    cfg,
		cron:   cron.New(),
		logger: slog.Default().With("component", "refresh"),
	}
}

// RefreshNow synchronously reloads the fast tier from the snapshot tier.
func (r *Refresher) RefreshNow() (int, time.Duration, error) {
	count, dur, err := r.target.RefreshFromSnapshot()

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.stats.TotalFailures++
		return 0, dur, err
	}
	r.stats.LastRefresh = time.Now()
	r.stats.LastCount = count
	r.stats.LastDuration = dur
	r.stats.TotalRefreshes++
	return count, dur, nil
}

// Start launches the background schedule and, if configured, the
// snapshot-file watcher. Both run off the request path.
func (r *Refresher) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("refresher already started")
	}

	if r.cfg.Enabled {
		spec := fmt.Sprintf("@every %s", r.cfg.Interval)
		if _, err := r.cron.AddFunc(spec, r.runScheduled); err != nil {
			return fmt.Errorf("schedule refresh %q: %w", spec, err)
		}
		r.cron.Start()
		r.logger.Info("scheduled refresh started", "interval", r.cfg.Interval)
	}

	if r.cfg.WatchSnapshot {
		w, err := newSnapshotWatcher(r.target.SnapshotPath(), r.onSnapshotChanged, r.logger)
		if err != nil {
			// The watcher is an acceleration, not a correctness
			// requirement; the schedule still converges.
			r.logger.Error("snapshot watcher unavailable", "error", err)
		} else {
			r.watcher = w
		}
	}

	r.running = true
	return nil
}

// runScheduled executes one scheduled refresh cycle. Failures are logged
// and the schedule continues on the next tick.
func (r *Refresher) runScheduled() {
	count, dur, err := r.RefreshNow()
	if err != nil {
		r.logger.Error("scheduled refresh failed", "error", err)
		return
	}
	r.logger.Info("scheduled refresh completed", "entries", count, "duration", dur)
}

// onSnapshotChanged handles a watcher notification.
func (r *Refresher) onSnapshotChanged() {
	count, dur, err := r.RefreshNow()
	if err != nil {
		r.logger.Error("watcher-triggered refresh failed", "error", err)
		return
	}
	r.logger.Info("snapshot change refresh completed", "entries", count, "duration", dur)
}

// Stop halts the schedule and the watcher, waiting for a running
// scheduled job to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	w := r.watcher
	r.watcher = nil
	r.mu.Unlock()

	// A running job may be inside RefreshNow, which takes r.mu, so the
	// wait happens outside the lock.
	ctx := r.cron.Stop()
	<-ctx.Done()
	if w != nil {
		w.stop()
	}
	r.logger.Info("refresher stopped")
}

// Stats returns a snapshot of the refresh counters.
func (r *Refresher) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
