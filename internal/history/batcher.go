package history

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/trace"
)

// BatchWriter stores several records in one call.
type BatchWriter interface {
	SaveBatch(ctx context.Context, records []Record) error
}

// Batcher accumulates records and flushes them when the batch fills or the
// flush delay passes without a new record.
type Batcher struct {
	writer     BatchWriter
	maxSize    int
	flushDelay time.Duration
	onError    func(err error, count int)
	mu         sync.Mutex
	items      []Record
	timer      *time.Timer
	wg         sync.WaitGroup
}

func NewBatcher(writer BatchWriter, maxSize int, flushDelay time.Duration) *Batcher {
	if maxSize <= 0 {
		maxSize = DefaultBatcherMaxSize
	}
	if flushDelay <= 0 {
		flushDelay = DefaultBatcherFlushDelay
	}
	return &Batcher{
		writer:     writer,
		maxSize:    maxSize,
		flushDelay: flushDelay,
		items:      make([]Record, 0, maxSize),
	}
}

// OnError registers a callback for failed flushes.
func (b *Batcher) OnError(fn func(err error, count int)) *Batcher {
	b.onError = fn
	return b
}

// Add queues a record.
func (b *Batcher) Add(r Record) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = append(b.items, r)

	if len(b.items) >= b.maxSize {
		b.flushLocked()
		return
	}

	if b.timer == nil {
		b.timer = time.AfterFunc(b.flushDelay, b.timerFlush)
	} else {
		b.timer.Reset(b.flushDelay)
	}
}

func (b *Batcher) timerFlush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

func (b *Batcher) flushLocked() {
	if len(b.items) == 0 {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	items := b.items
	b.items = make([]Record, 0, b.maxSize)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, span := trace.StartSpan(context.Background(), "history_batch_flush")
		defer span.End()
		span.SetAttr("count", len(items))

		log := trace.Logger(ctx)
		if err := b.writer.SaveBatch(ctx, items); err != nil {
			span.SetAttr("error", err.Error())
			log.Warn("history batch store failed", "error", err, "count", len(items))
			if b.onError != nil {
				b.onError(err, len(items))
			}
			return
		}
		log.Debug("history batch stored", "count", len(items))
	}()
}

// Flush starts an immediate flush of pending records.
func (b *Batcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

// Sync flushes and waits until every started flush has finished.
func (b *Batcher) Sync() {
	b.Flush()
	b.wg.Wait()
}

// Stop flushes remaining records and waits for in-flight writes.
func (b *Batcher) Stop() {
	b.Sync()
}

// Pending returns the number of queued records.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
