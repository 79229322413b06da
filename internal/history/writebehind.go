package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/resilience"
)

// Durable is a store that accepts batched writes.
type Durable interface {
	BatchWriter
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)
}

// WriteBehind answers reads from memory and persists writes in batches.
type WriteBehind struct {
	cache   *MemoryStore
	durable Durable
	batcher *Batcher
}

func NewWriteBehind(cache *MemoryStore, durable Durable, batcher *Batcher) *WriteBehind {
	return &WriteBehind{cache: cache, durable: durable, batcher: batcher}
}

func (w *WriteBehind) Save(ctx context.Context, r Record) error {
	if err := w.cache.Save(ctx, r); err != nil {
		return err
	}
	w.batcher.Add(r)
	return nil
}

func (w *WriteBehind) Recent(ctx context.Context, limit int) ([]Record, error) {
	return w.cache.Recent(ctx, limit)
}

func (w *WriteBehind) Since(ctx context.Context, t time.Time) ([]Record, error) {
	return w.cache.Since(ctx, t)
}

// SetStatus updates memory, then the durable copy once pending inserts have landed.
func (w *WriteBehind) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	if err := w.cache.SetStatus(ctx, id, status); err != nil {
		return err
	}
	w.batcher.Sync()
	return w.durable.SetStatus(ctx, id, status)
}

func (w *WriteBehind) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	if _, err := w.cache.DeleteBefore(ctx, t); err != nil {
		return 0, err
	}
	return w.durable.DeleteBefore(ctx, t)
}

// Close flushes pending writes.
func (w *WriteBehind) Close() {
	w.batcher.Stop()
}

// Protected fails fast while the durable store is unhealthy.
type Protected struct {
	Durable
	breaker *resilience.Breaker
}

func NewProtected(d Durable, b *resilience.Breaker) *Protected {
	return &Protected{Durable: d, breaker: b}
}

func (p *Protected) SaveBatch(ctx context.Context, records []Record) error {
	return p.breaker.Execute(func() error { return p.Durable.SaveBatch(ctx, records) })
}

func (p *Protected) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	return p.breaker.Execute(func() error { return p.Durable.SetStatus(ctx, id, status) })
}
