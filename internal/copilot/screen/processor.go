// Package screen runs the capture loop that feeds OCR text into the copilot
package screen

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"sync"
	"time"

	"github.com/corona10/goimagehash"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/metrics"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/ocr"
	screencap "github.com/GriffinCanCode/ride-copilot/platform/internal/screen"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/trace"
)

// Handler receives OCR text that differs from the previous frame's.
type Handler func(ctx context.Context, text string)

// Processor captures frames, skips near-identical ones, and OCRs the rest.
type Processor struct {
	capturer    screencap.Capturer
	ocr         ocr.Client
	handle      Handler
	maxDistance int

	mu       sync.RWMutex
	text     string
	image    []byte
	paused   bool
	lastHash *goimagehash.ImageHash
	skipped  int
}

// NewProcessor creates a screen processor. A negative maxDistance disables
// the perceptual-hash skip.
func NewProcessor(capturer screencap.Capturer, client ocr.Client, maxDistance int, handle Handler) *Processor {
	return &Processor{
		capturer:    capturer,
		ocr:         client,
		handle:      handle,
		maxDistance: maxDistance,
	}
}

// Run starts the capture loop.
func (p *Processor) Run(ctx context.Context, captureRate float64, stopCh <-chan struct{}) {
	if captureRate <= 0 {
		captureRate = DefaultCaptureRate
	}
	interval := time.Duration(float64(time.Second) / captureRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			p.Step(ctx)
		}
	}
}

// Step processes one frame and reports whether new text was handed off.
func (p *Processor) Step(ctx context.Context) bool {
	if p.Paused() {
		return false
	}

	imgData, changed := p.capturer.Capture(ctx)
	if !changed || imgData == nil {
		return false
	}

	p.mu.Lock()
	p.image = imgData
	p.mu.Unlock()

	if p.shouldSkipOCR(imgData) {
		metrics.FramesSkippedTotal.Inc()
		return false
	}

	ctx, span := trace.StartSpan(ctx, "screen_ocr")
	defer span.End()

	format := screencap.DetectFormat(imgData)
	if format == "" {
		format = "png"
	}
	text, err := p.ocr.ExtractText(ctx, imgData, format)
	if err != nil {
		span.SetAttr("error", err.Error())
		trace.Logger(ctx).Debug("OCR error", "error", err)
		return false
	}

	p.mu.Lock()
	if text == p.text {
		p.mu.Unlock()
		return false
	}
	p.text = text
	p.mu.Unlock()

	if p.handle != nil {
		p.handle(ctx, text)
	}
	return true
}

// shouldSkipOCR reports whether the frame is perceptually close to the last
// one that was OCRed. Skips are capped so small text changes on an otherwise
// identical card still reach OCR.
func (p *Processor) shouldSkipOCR(imgData []byte) bool {
	if p.maxDistance < 0 {
		return false
	}

	img, _, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		return false
	}

	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastHash == nil {
		p.lastHash = hash
		return false
	}

	dist, err := p.lastHash.Distance(hash)
	if err == nil && dist <= p.maxDistance && p.skipped < MaxConsecutiveSkips {
		p.skipped++
		trace.Logger(context.Background()).Debug("skipping OCR due to similar frame", "distance", dist)
		return true
	}

	p.lastHash = hash
	p.skipped = 0
	return false
}

// Text returns the latest OCR text.
func (p *Processor) Text() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.text
}

// Image returns the latest captured frame.
func (p *Processor) Image() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.image
}

// SetPaused stops or resumes frame processing without ending the loop.
func (p *Processor) SetPaused(paused bool) {
	p.mu.Lock()
	p.paused = paused
	p.mu.Unlock()
}

// Paused reports whether frame processing is paused.
func (p *Processor) Paused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}
