package history

import (
	"time"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/offer"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/syncx"
)

type shiftState struct {
	start time.Time
	end   time.Time
}

// Shift tracks when the driver is online.
type Shift struct {
	now   func() time.Time
	state *syncx.RWGuard[shiftState]
}

func NewShift() *Shift {
	return &Shift{now: time.Now, state: syncx.NewGuard(shiftState{})}
}

// WithClock replaces the time source, for tests.
func (s *Shift) WithClock(now func() time.Time) *Shift {
	s.now = now
	return s
}

// Start begins a new shift. Starting an active shift keeps its start time.
func (s *Shift) Start() time.Time {
	now := s.now()
	return syncx.Apply(s.state, func(st *shiftState) time.Time {
		if !st.start.IsZero() && st.end.IsZero() {
			return st.start
		}
		*st = shiftState{start: now}
		return now
	})
}

// Stop ends the active shift. It is a no-op when no shift is active.
func (s *Shift) Stop() {
	now := s.now()
	s.state.Write(func(st *shiftState) {
		if !st.start.IsZero() && st.end.IsZero() {
			st.end = now
		}
	})
}

// Active reports whether a shift is running.
func (s *Shift) Active() bool {
	st := s.state.Get()
	return !st.start.IsZero() && st.end.IsZero()
}

// Window returns the bounds of the current or last shift. end is zero while active.
func (s *Shift) Window() (start, end time.Time) {
	st := s.state.Get()
	return st.start, st.end
}

type Summary struct {
	Active           bool           `json:"active"`
	Start            time.Time      `json:"start"`
	End              time.Time      `json:"end"`
	Online           time.Duration  `json:"-"`
	OnlineMinutes    float64        `json:"online_minutes"`
	OffersSeen       int            `json:"offers_seen"`
	ByLevel          map[string]int `json:"by_level"`
	Accepted         int            `json:"accepted"`
	Declined         int            `json:"declined"`
	AcceptedMiles    float64        `json:"accepted_miles"`
	AcceptedMinutes  float64        `json:"accepted_minutes"`
	AcceptedEarnings float64        `json:"accepted_earnings"`
	BestPerMile      float64        `json:"best_per_mile"`
}

// Summary totals the records that fall inside the shift.
func (s *Shift) Summary(records []Record) Summary {
	st := s.state.Get()
	sum := Summary{ByLevel: make(map[string]int)}
	if st.start.IsZero() {
		return sum
	}

	end := st.end
	sum.Active = end.IsZero()
	if sum.Active {
		end = s.now()
	} else {
		sum.End = st.end
	}
	sum.Start = st.start
	sum.Online = end.Sub(st.start)
	sum.OnlineMinutes = sum.Online.Minutes()

	for _, r := range records {
		if r.SeenAt.Before(st.start) || r.SeenAt.After(end) {
			continue
		}
		sum.OffersSeen++
		sum.ByLevel[r.Recommendation.String()]++
		if r.Assessment.PricePerMile > sum.BestPerMile {
			sum.BestPerMile = r.Assessment.PricePerMile
		}
		switch r.Status {
		case offer.StatusAccepted:
			sum.Accepted++
			sum.AcceptedMiles += r.Assessment.TotalMiles
			sum.AcceptedMinutes += r.Assessment.TotalMinutes
			sum.AcceptedEarnings += r.Assessment.AdjustedFare
		case offer.StatusDeclined:
			sum.Declined++
		}
	}
	return sum
}

// AcceptRate is accepted over decided offers, or 0 when none were decided.
func (s Summary) AcceptRate() float64 {
	decided := s.Accepted + s.Declined
	if decided == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(decided)
}
