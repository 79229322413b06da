package copilot

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/copilot/screen"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/events"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/history"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/metrics"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/ocr"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/overlay"
	screencap "github.com/GriffinCanCode/ride-copilot/platform/internal/screen"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/trace"
)

// Options wires the Manager's collaborators. Only Pipeline is required.
type Options struct {
	Pipeline *Pipeline
	History  history.Store
	Shift    *history.Shift
	Events   events.Sink

	// Capturer and OCR enable the screen loop when both are set.
	Capturer        screencap.Capturer
	OCR             ocr.Client
	CaptureRate     float64
	MaxHashDistance int
}

// Manager coordinates text ingest, history, events and the overlay feed
type Manager struct {
	pipeline    *Pipeline
	history     history.Store
	shift       *history.Shift
	sink        events.Sink
	screenProc  *screen.Processor
	captureRate float64

	overlayCh chan overlay.Instruction
	eventCh   chan events.Event

	// ingestMu keeps dedup, history and overlay updates in arrival order
	ingestMu sync.Mutex

	mu      sync.RWMutex
	latest  *Result
	visible bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a manager
func New(opts Options) *Manager {
	m := &Manager{
		pipeline:    opts.Pipeline,
		history:     opts.History,
		shift:       opts.Shift,
		sink:        opts.Events,
		captureRate: opts.CaptureRate,
		overlayCh:   make(chan overlay.Instruction, OverlayChannelBuffer),
		eventCh:     make(chan events.Event, EventQueueSize),
		stopCh:      make(chan struct{}),
	}
	if m.history == nil {
		m.history = history.NewMemoryStore(history.DefaultMaxEntries)
	}
	if m.shift == nil {
		m.shift = history.NewShift()
	}
	if m.sink == nil {
		m.sink = events.NopSink{}
	}
	if opts.Capturer != nil && opts.OCR != nil {
		m.screenProc = screen.NewProcessor(opts.Capturer, opts.OCR, opts.MaxHashDistance, m.handleScreenText)
	}
	return m
}

// handleScreenText feeds OCR output from the screen loop into the pipeline
func (m *Manager) handleScreenText(ctx context.Context, text string) {
	m.Ingest(ctx, Input{Text: text, Source: SourceOCR})
}

// Ingest runs text through the pipeline and applies the result: assessed
// offers are recorded, published and pushed to the overlay; text without an
// offer hides a visible overlay.
func (m *Manager) Ingest(ctx context.Context, in Input) Result {
	ctx, span := trace.StartSpan(ctx, "manager_ingest")
	defer span.End()

	m.ingestMu.Lock()
	defer m.ingestMu.Unlock()

	res := m.pipeline.Process(ctx, in)
	span.SetAttr("outcome", string(res.Outcome))

	switch res.Outcome {
	case OutcomeAssessed:
		rec := history.NewRecord(*res.Offer, *res.Assessment, time.Time{})
		res.RecordID = rec.ID.String()
		res.Instruction.OfferID = res.RecordID

		if err := m.history.Save(ctx, rec); err != nil {
			metrics.HistoryFailuresTotal.Inc()
			trace.Logger(ctx).Error("history save failed", "id", rec.ID, "error", err)
		}

		latest := res
		m.mu.Lock()
		m.latest = &latest
		m.visible = true
		m.mu.Unlock()

		m.emitOverlay(res.Instruction)
		m.enqueue(events.FromRecord(events.TypeOfferAssessed, rec, res.Score))

	case OutcomeNoOffer:
		m.mu.Lock()
		wasVisible := m.visible
		m.visible = false
		m.mu.Unlock()

		if wasVisible {
			m.emitOverlay(overlay.Hidden())
		}
	}
	return res
}

// Overlay returns the channel of overlay instructions
func (m *Manager) Overlay() <-chan overlay.Instruction {
	return m.overlayCh
}

func (m *Manager) emitOverlay(in overlay.Instruction) {
	select {
	case m.overlayCh <- in:
	default:
		trace.Logger(context.Background()).Debug("overlay channel full, dropping instruction", "offer_id", in.OfferID)
	}
}

// Latest returns the most recently assessed offer
func (m *Manager) Latest() (Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return Result{}, false
	}
	return *m.latest, true
}

// Visible reports whether the overlay is currently showing an offer
func (m *Manager) Visible() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.visible
}

// History returns recent records, newest first. limit is clamped to the API bounds.
func (m *Manager) History(ctx context.Context, limit int) ([]history.Record, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	return m.history.Recent(ctx, limit)
}

// SetStatus records the driver's decision on an offer and publishes the change
func (m *Manager) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	ctx, span := trace.StartSpan(ctx, "manager_set_status")
	defer span.End()
	span.SetAttr("status", status)

	if err := m.history.SetStatus(ctx, id, status); err != nil {
		span.SetAttr("error", err.Error())
		return err
	}

	m.mu.Lock()
	if m.latest != nil && m.latest.RecordID == id.String() {
		updated := *m.latest.Offer
		updated.Status = status
		m.latest.Offer = &updated
	}
	m.mu.Unlock()

	ev := events.Event{Type: events.TypeStatusChanged, RecordID: id, Status: status, At: time.Now()}
	if rec, ok := m.find(ctx, id); ok {
		ev = events.FromRecord(events.TypeStatusChanged, rec, nil)
		ev.At = time.Now()
	}
	m.enqueue(ev)

	trace.Logger(ctx).Info("offer status changed", "id", id, "status", status)
	return nil
}

func (m *Manager) find(ctx context.Context, id uuid.UUID) (history.Record, bool) {
	records, err := m.history.Recent(ctx, MaxHistoryLimit)
	if err != nil {
		return history.Record{}, false
	}
	for _, r := range records {
		if r.ID == id {
			return r, true
		}
	}
	return history.Record{}, false
}

// StartShift begins a shift, or returns the start of the one already running
func (m *Manager) StartShift() time.Time {
	start := m.shift.Start()
	trace.Logger(context.Background()).Info("shift started", "start", start)
	return start
}

// StopShift ends the running shift
func (m *Manager) StopShift() {
	m.shift.Stop()
	trace.Logger(context.Background()).Info("shift stopped")
}

// ShiftSummary totals the offers seen during the current or last shift
func (m *Manager) ShiftSummary(ctx context.Context) (history.Summary, error) {
	start, _ := m.shift.Window()
	if start.IsZero() {
		return m.shift.Summary(nil), nil
	}
	records, err := m.history.Since(ctx, start)
	if err != nil {
		return history.Summary{}, err
	}
	return m.shift.Summary(records), nil
}

// ScreenText returns the latest OCR text, or "" without a screen loop
func (m *Manager) ScreenText() string {
	if m.screenProc == nil {
		return ""
	}
	return m.screenProc.Text()
}

// SetCapturePaused pauses or resumes the screen loop
func (m *Manager) SetCapturePaused(paused bool) {
	if m.screenProc == nil {
		return
	}
	m.screenProc.SetPaused(paused)
	trace.Logger(context.Background()).Info("capture state changed", "paused", paused)
}

// CapturePaused reports whether the screen loop is paused. It is true without a screen loop.
func (m *Manager) CapturePaused() bool {
	return m.screenProc == nil || m.screenProc.Paused()
}

func (m *Manager) enqueue(e events.Event) {
	select {
	case m.eventCh <- e:
	default:
		metrics.EventsTotal.WithLabelValues("dropped").Inc()
		trace.Logger(context.Background()).Warn("event queue full, dropping event", "type", e.Type, "id", e.RecordID)
	}
}

// Start begins the screen loop and the event publisher
func (m *Manager) Start(ctx context.Context) error {
	m.wg.Add(1)
	go m.publishLoop()

	if m.screenProc != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.screenProc.Run(ctx, m.captureRate, m.stopCh)
		}()
		trace.Logger(ctx).Info("screen loop started", "rate", m.captureRate)
	}
	return nil
}

func (m *Manager) publishLoop() {
	defer m.wg.Done()
	for {
		select {
		case e := <-m.eventCh:
			m.publish(e)
		case <-m.stopCh:
			// drain what was queued before stop
			for {
				select {
				case e := <-m.eventCh:
					m.publish(e)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) publish(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
	defer cancel()

	if err := m.sink.Publish(ctx, e); err != nil {
		metrics.EventsTotal.WithLabelValues("error").Inc()
		trace.Logger(ctx).Warn("event publish failed", "type", e.Type, "id", e.RecordID, "error", err)
		return
	}
	metrics.EventsTotal.WithLabelValues("ok").Inc()
}

// Stop ends the loops and waits for queued events to publish
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}
