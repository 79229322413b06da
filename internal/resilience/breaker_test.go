package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/metrics"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClockedBreaker(cfg Config) (*Breaker, *stepClock) {
	clock := &stepClock{now: time.Unix(1_700_000_000, 0)}
	return New(cfg).WithClock(clock.Now), clock
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b, _ := newClockedBreaker(OCRConfig())
	if b.State() != Closed {
		t.Fatalf("initial state = %v, want Closed", b.State())
	}

	for i := 0; i < OCRThreshold; i++ {
		b.Failure()
	}
	if b.State() != Open {
		t.Errorf("state = %v, want Open", b.State())
	}
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Errorf("Allow() = %v, want ErrOpen", err)
	}
}

func TestBreakerRecoveryCycle(t *testing.T) {
	b, clock := newClockedBreaker(Config{Name: "ocr", Threshold: 1, ResetTimeout: 10 * time.Second, HalfOpenSuccesses: 2})
	b.Failure()

	clock.Advance(9 * time.Second)
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("Allow() before reset timeout = %v, want ErrOpen", err)
	}

	clock.Advance(2 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() after reset timeout = %v", err)
	}
	if b.State() != HalfOpen {
		t.Fatalf("state = %v, want HalfOpen", b.State())
	}

	b.Success()
	if b.State() != HalfOpen {
		t.Errorf("one success should keep HalfOpen, got %v", b.State())
	}
	b.Success()
	if b.State() != Closed {
		t.Errorf("state = %v, want Closed", b.State())
	}
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	b, clock := newClockedBreaker(Config{Threshold: 1, ResetTimeout: time.Second, HalfOpenSuccesses: 3})
	b.Failure()
	clock.Advance(2 * time.Second)
	_ = b.Allow()

	b.Failure()
	if b.State() != Open {
		t.Errorf("state = %v, want Open", b.State())
	}
}

func TestBreakerReset(t *testing.T) {
	b := New(Config{Threshold: 1, ResetTimeout: time.Hour, HalfOpenSuccesses: 1})
	b.Failure()
	b.Reset()
	if b.State() != Closed {
		t.Errorf("state = %v, want Closed", b.State())
	}
}

func TestBreakerExecute(t *testing.T) {
	b := New(Config{Threshold: 2, ResetTimeout: time.Hour, HalfOpenSuccesses: 1})
	testErr := errors.New("tesseract crashed")

	if err := b.Execute(func() error { return nil }); err != nil {
		t.Errorf("Execute success = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := b.Execute(func() error { return testErr }); !errors.Is(err, testErr) {
			t.Errorf("Execute failure = %v, want %v", err, testErr)
		}
	}

	called := false
	err := b.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) || called {
		t.Errorf("open breaker must short-circuit: err=%v called=%v", err, called)
	}
}

func TestBreakerExecuteWithResult(t *testing.T) {
	b := New(DefaultConfig())
	text, err := ExecuteWithResult(b, func() (string, error) {
		return "Reject ride$20.15", nil
	})
	if err != nil || text != "Reject ride$20.15" {
		t.Errorf("ExecuteWithResult = (%q, %v)", text, err)
	}
}

func TestBreakerHookReceivesName(t *testing.T) {
	type change struct {
		name     string
		from, to State
	}
	var changes []change
	b, clock := newClockedBreaker(Config{Name: "storage", Threshold: 1, ResetTimeout: time.Second, HalfOpenSuccesses: 1})
	b.WithHook(func(name string, from, to State) {
		changes = append(changes, change{name, from, to})
	})

	b.Failure()
	clock.Advance(2 * time.Second)
	_ = b.Allow()
	b.Success()

	want := []change{{"storage", Closed, Open}, {"storage", Open, HalfOpen}, {"storage", HalfOpen, Closed}}
	if len(changes) != len(want) {
		t.Fatalf("got %d transitions, want %d", len(changes), len(want))
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("transition %d = %+v, want %+v", i, changes[i], want[i])
		}
	}
}

func TestBreakerConcurrentSafety(t *testing.T) {
	b := New(Config{Threshold: 100, ResetTimeout: time.Second, HalfOpenSuccesses: 10})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Allow()
			if i%2 == 0 {
				b.Success()
			} else {
				b.Failure()
			}
		}()
	}
	wg.Wait()
	_ = b.State()
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Closed, "closed"},
		{Open, "open"},
		{HalfOpen, "half-open"},
		{State(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestConfigProfiles(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Threshold != DefaultThreshold || cfg.ResetTimeout != DefaultResetTimeout || cfg.Name != "default" {
		t.Errorf("withDefaults = %+v", cfg)
	}
	if StorageConfig().Threshold <= OCRConfig().Threshold {
		t.Error("storage breaker should be more lenient than OCR")
	}
}

func TestSuccessResetsFailures(t *testing.T) {
	b := New(Config{Threshold: 3, ResetTimeout: time.Hour, HalfOpenSuccesses: 1})
	b.Failure()
	b.Failure()
	b.Success()
	b.Failure()
	b.Failure()
	if b.State() != Closed {
		t.Errorf("state = %v, want Closed", b.State())
	}
}

func gaugeValue(t *testing.T, name string) float64 {
	t.Helper()
	var m dto.Metric
	if err := metrics.BreakerState.WithLabelValues(name).Write(&m); err != nil {
		t.Fatalf("gauge write error: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestBreakerExportsState(t *testing.T) {
	b, _ := newClockedBreaker(Config{Name: "gauge-test", Threshold: 1})

	if got := gaugeValue(t, "gauge-test"); got != float64(Closed) {
		t.Errorf("gauge after New = %v, want %v", got, float64(Closed))
	}
	b.Failure()
	if got := gaugeValue(t, "gauge-test"); got != float64(Open) {
		t.Errorf("gauge after failure = %v, want %v", got, float64(Open))
	}
	b.Reset()
	if got := gaugeValue(t, "gauge-test"); got != float64(Closed) {
		t.Errorf("gauge after reset = %v, want %v", got, float64(Closed))
	}
}
