// Package dedup suppresses repeat processing of an offer that is still on screen.
package dedup

import (
	"time"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/offer"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/syncx"
)

// DefaultWindow is how long an identical fingerprint is treated as the same offer.
const DefaultWindow = 30 * time.Second

type lastSeen struct {
	fingerprint string
	at          time.Time
}

// Gate remembers only the most recent fingerprint. Callers must submit offers
// in the order they were produced.
type Gate struct {
	window time.Duration
	now    func() time.Time
	last   *syncx.RWGuard[lastSeen]
}

// NewGate creates a gate. A zero window disables suppression.
func NewGate(window time.Duration) *Gate {
	return &Gate{
		window: window,
		now:    time.Now,
		last:   syncx.NewGuard(lastSeen{}),
	}
}

// WithClock replaces the time source, for tests.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Window returns the suppression window.
func (g *Gate) Window() time.Duration { return g.window }

// ShouldProcess reports whether o is new. A duplicate inside the window does
// not refresh the stored timestamp, so the window runs from first sight.
func (g *Gate) ShouldProcess(o *offer.RideOffer) bool {
	fp := o.Fingerprint()
	now := g.now()
	return syncx.Apply(g.last, func(l *lastSeen) bool {
		if g.window > 0 && l.fingerprint == fp && now.Sub(l.at) < g.window {
			return false
		}
		*l = lastSeen{fingerprint: fp, at: now}
		return true
	})
}

// Reset forgets the last fingerprint.
func (g *Gate) Reset() {
	g.last.Set(lastSeen{})
}
