// Package screen captures frames from the driver's phone
package screen

import (
	"bytes"
	"context"
	"crypto/md5"
	"log/slog"
)

// Capturer captures screenshots with change detection
type Capturer interface {
	// Capture returns the frame and true only when it differs from the last one.
	Capture(ctx context.Context) ([]byte, bool)
	CaptureAlways(ctx context.Context) []byte
	Close()
}

// backend implements source-specific raw capture
type backend interface {
	captureRaw(ctx context.Context) ([]byte, error)
	cleanup()
	name() string
}

// baseCapturer provides shared hash-based change detection
type baseCapturer struct {
	backend
	lastHash [16]byte
	failing  bool
}

func newBase(b backend) *baseCapturer {
	return &baseCapturer{backend: b}
}

func (c *baseCapturer) Capture(ctx context.Context) ([]byte, bool) {
	data := c.raw(ctx)
	if data == nil {
		return nil, false
	}
	// The whole frame is hashed: an offer card can change below an
	// unchanged status bar.
	hash := md5.Sum(data)
	if hash == c.lastHash {
		return nil, false
	}
	c.lastHash = hash
	return data, true
}

func (c *baseCapturer) CaptureAlways(ctx context.Context) []byte {
	data := c.raw(ctx)
	if data != nil {
		c.lastHash = md5.Sum(data)
	}
	return data
}

// raw logs the first failure of a streak and the recovery, not every tick.
func (c *baseCapturer) raw(ctx context.Context) []byte {
	data, err := c.captureRaw(ctx)
	if err != nil || len(data) == 0 {
		if !c.failing && ctx.Err() == nil {
			slog.Error("screen capture failed", "source", c.name(), "error", err)
		}
		c.failing = true
		return nil
	}
	if c.failing {
		slog.Info("screen capture recovered", "source", c.name())
		c.failing = false
	}
	return data
}

func (c *baseCapturer) Close() {
	c.cleanup()
}

var (
	pngMagic  = []byte("\x89PNG\r\n\x1a\n")
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
)

// DetectFormat names the image encoding, or returns "" when unrecognized.
func DetectFormat(data []byte) string {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return "png"
	case bytes.HasPrefix(data, jpegMagic):
		return "jpeg"
	default:
		return ""
	}
}
