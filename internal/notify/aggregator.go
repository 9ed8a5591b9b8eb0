// Package notify maintains the pending-item badge counts: five independent
// sources polled on a fixed cadence, merged with per-source failure
// isolation so one broken endpoint never blanks the other badges.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/dispatchgrid/opsdesk/internal/bus"
	"go.uber.org/zap"
)

// DefaultInterval is the badge refresh cadence. Fixed, not a backoff.
const DefaultInterval = 30 * time.Second

// Source is one independently fetched counter.
type Source struct {
	Name  string
	Fetch func(ctx context.Context) (int, error)
}

// Counts is a merged snapshot keyed by source name. Every known source is
// always present with its previous-or-zero value.
type Counts map[string]int

// Aggregator owns the merged counts and the refresh loop. Overlapping
// refreshes are tolerated: each one is idempotent and last write wins per
// field, which is fine for plain counters.
type Aggregator struct {
	sources  []Source
	interval time.Duration
	bus      *bus.Bus
	logger   *zap.Logger

	mu     sync.RWMutex
	counts Counts

	cancel context.CancelFunc
	tick   func(d time.Duration) <-chan time.Time
}

// New creates an aggregator over sources. interval <= 0 means
// DefaultInterval.
func New(sources []Source, interval time.Duration, b *bus.Bus, logger *zap.Logger) *Aggregator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	counts := make(Counts, len(sources))
	for _, s := range sources {
		counts[s.Name] = 0
	}
	return &Aggregator{
		sources:  sources,
		interval: interval,
		bus:      b,
		logger:   logger,
		counts:   counts,
		tick:     time.After,
	}
}

// Seed installs cached counts as the previous values, so badges show
// last-known numbers before the first refresh lands. Unknown names are
// ignored.
func (a *Aggregator) Seed(cached map[string]int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for name, n := range cached {
		if _, ok := a.counts[name]; ok && n >= 0 {
			a.counts[name] = n
		}
	}
}

// Start performs an immediate refresh and then refreshes every interval
// until Stop or ctx cancellation.
func (a *Aggregator) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	go func() {
		a.Refresh(ctx)
		for {
			select {
			case <-a.tick(a.interval):
				a.Refresh(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the refresh loop.
func (a *Aggregator) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
}

// Refresh fetches all sources in parallel and merges the results. A failing
// source keeps its previous value and is logged; it never aborts or clears
// the siblings.
func (a *Aggregator) Refresh(ctx context.Context) {
	results := make([]int, len(a.sources))
	fetched := make([]bool, len(a.sources))

	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			n, err := src.Fetch(ctx)
			if err != nil {
				a.logger.Warn("pending count fetch failed, keeping previous value",
					zap.String("source", src.Name), zap.Error(err))
				return
			}
			if n < 0 {
				n = 0
			}
			results[i] = n
			fetched[i] = true
		}(i, src)
	}
	wg.Wait()

	a.mu.Lock()
	for i, src := range a.sources {
		if fetched[i] {
			a.counts[src.Name] = results[i]
		}
	}
	snapshot := a.snapshotLocked()
	a.mu.Unlock()

	a.bus.Publish(bus.Event{Topic: bus.TopicCounts, Payload: snapshot})
}

// Snapshot returns a copy of the merged counts.
func (a *Aggregator) Snapshot() Counts {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshotLocked()
}

// Count returns one source's previous-or-zero value.
func (a *Aggregator) Count(name string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.counts[name]
}

func (a *Aggregator) snapshotLocked() Counts {
	out := make(Counts, len(a.counts))
	for name, n := range a.counts {
		out[name] = n
	}
	return out
}
