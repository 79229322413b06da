// Package ocr turns captured frames into text for the offer parser.
package ocr

import (
	"context"
	"time"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/metrics"
)

// Client extracts text from an encoded image. format is "png" or "jpeg".
type Client interface {
	ExtractText(ctx context.Context, image []byte, format string) (string, error)
}

// Timed records the latency of every call on the OCR histogram.
type Timed struct {
	Client
}

func (t Timed) ExtractText(ctx context.Context, image []byte, format string) (string, error) {
	start := time.Now()
	defer func() { metrics.OCRSeconds.Observe(time.Since(start).Seconds()) }()
	return t.Client.ExtractText(ctx, image, format)
}

// Fallback tries the primary client and falls back to the secondary on error.
type Fallback struct {
	Primary   Client
	Secondary Client
}

func (f Fallback) ExtractText(ctx context.Context, image []byte, format string) (string, error) {
	text, err := f.Primary.ExtractText(ctx, image, format)
	if err == nil || f.Secondary == nil || ctx.Err() != nil {
		return text, err
	}
	return f.Secondary.ExtractText(ctx, image, format)
}
