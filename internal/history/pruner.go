package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes records older than the retention on a cron schedule.
type Pruner struct {
	cron      *cron.Cron
	target    Pruneable
	retention time.Duration
	spec      string
	now       func() time.Time
}

func NewPruner(target Pruneable, retention time.Duration, spec string) *Pruner {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if spec == "" {
		spec = DefaultPruneSchedule
	}
	return &Pruner{
		cron:      cron.New(),
		target:    target,
		retention: retention,
		spec:      spec,
		now:       time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (p *Pruner) WithClock(now func() time.Time) *Pruner {
	p.now = now
	return p
}

// Start registers the job and starts the scheduler.
func (p *Pruner) Start(ctx context.Context) error {
	if _, err := p.cron.AddFunc(p.spec, func() { _, _ = p.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc(%q): %w", p.spec, err)
	}
	p.cron.Start()
	slog.Info("history pruner started", "spec", p.spec, "retention", p.retention)
	return nil
}

// Stop halts the scheduler and waits for a running job.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
}

// RunOnce deletes everything older than the retention.
func (p *Pruner) RunOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.retention)
	n, err := p.target.DeleteBefore(ctx, cutoff)
	if err != nil {
		slog.Warn("history prune failed", "error", err, "cutoff", cutoff)
		return 0, err
	}
	if n > 0 {
		slog.Info("history pruned", "deleted", n, "cutoff", cutoff)
	}
	return n, nil
}
