package settings

import (
	"context"
	"log/slog"
	"time"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/syncx"
)

type snapshot struct {
	settings Settings
	loaded   bool
	at       time.Time
}

// Cached refreshes from an upstream provider at most once per interval and
// keeps serving the last good settings when the upstream fails.
type Cached struct {
	upstream Provider
	interval time.Duration
	fallback Settings
	now      func() time.Time
	snap     *syncx.RWGuard[snapshot]
}

func NewCached(upstream Provider, interval time.Duration, fallback Settings) *Cached {
	return &Cached{
		upstream: upstream,
		interval: interval,
		fallback: fallback,
		now:      time.Now,
		snap:     syncx.NewGuard(snapshot{}),
	}
}

// WithClock replaces the time source, for tests.
func (c *Cached) WithClock(now func() time.Time) *Cached {
	c.now = now
	return c
}

// Current never fails. Before the first successful load it serves the fallback.
func (c *Cached) Current(ctx context.Context) (Settings, error) {
	now := c.now()
	snap := c.snap.Get()
	if snap.loaded && now.Sub(snap.at) < c.interval {
		return snap.settings, nil
	}

	s, err := c.upstream.Current(ctx)
	if err != nil {
		slog.Warn("settings refresh failed, serving cached", "error", err, "loaded", snap.loaded)
		if !snap.loaded {
			return c.fallback, nil
		}
		return snap.settings, nil
	}
	c.snap.Set(snapshot{settings: s, loaded: true, at: now})
	return s, nil
}

// Save writes through to the upstream when it supports saving and primes the cache.
func (c *Cached) Save(ctx context.Context, s Settings) error {
	if sv, ok := c.upstream.(Saver); ok {
		if err := sv.Save(ctx, s); err != nil {
			return err
		}
	}
	c.snap.Set(snapshot{settings: s, loaded: true, at: c.now()})
	return nil
}

// Invalidate forces the next Current to hit the upstream.
func (c *Cached) Invalidate() {
	c.snap.Write(func(s *snapshot) { s.at = time.Time{} })
}
