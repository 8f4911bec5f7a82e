package cooldown

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/caseflow/caseflow/internal/domain/action"
)

// Clock abstracts time so tests can advance it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

type key struct {
	ActorID string
	Op      action.Type
}

// Tracker rate-limits operations per (actor, operation). Entries are
// evicted by a periodic sweep so the map does not grow with every actor
// ever seen.
type Tracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   Clock
	entries map[key]time.Time
	logger  zerolog.Logger
}

// NewTracker creates a tracker; a zero ttl disables it.
func NewTracker(ttl time.Duration, clock Clock, logger zerolog.Logger) *Tracker {
	return &Tracker{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[key]time.Time),
		logger:  logger.With().Str("service", "cooldown").Logger(),
	}
}

// Allow reports whether actor may perform op now, recording the attempt
// when allowed.
func (t *Tracker) Allow(actorID string, op action.Type) bool {
	if t.ttl <= 0 {
		return true
	}
	now := t.clock.Now()
	k := key{ActorID: actorID, Op: op}
	t.mu.Lock()
	defer t.mu.Unlock()
	if last, ok := t.entries[k]; ok && now.Sub(last) < t.ttl {
		return false
	}
	t.entries[k] = now
	return true
}

// Sweep evicts expired entries and returns how many were removed.
func (t *Tracker) Sweep() int {
	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for k, last := range t.entries {
		if now.Sub(last) >= t.ttl {
			delete(t.entries, k)
			removed++
		}
	}
	return removed
}

// Run sweeps on interval until ctx is done.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.Sweep(); n > 0 {
				t.logger.Debug().Int("evicted", n).Msg("cooldown sweep")
			}
		}
	}
}
