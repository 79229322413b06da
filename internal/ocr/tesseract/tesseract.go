// Package tesseract runs OCR in-process through libtesseract.
package tesseract

import (
	"context"
	"sync"

	"github.com/otiai10/gosseract/v2"

	apperrors "github.com/GriffinCanCode/ride-copilot/platform/internal/errors"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/ocr"
)

// engine is the part of gosseract.Client we drive.
type engine interface {
	SetImageFromBytes(data []byte) error
	Text() (string, error)
	Close() error
}

// Client serializes calls onto one Tesseract engine; the engine is not
// safe for concurrent use and is expensive to create.
type Client struct {
	mu         sync.Mutex
	engine     engine
	preprocess bool
	opts       ocr.Options
}

type Config struct {
	Language    string
	PageSegMode int
	Preprocess  bool
	Options     ocr.Options
}

func New(cfg Config) (*Client, error) {
	g := gosseract.NewClient()
	lang := cfg.Language
	if lang == "" {
		lang = "eng"
	}
	if err := g.SetLanguage(lang); err != nil {
		_ = g.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "set OCR language").
			WithMetadata("language", lang)
	}
	if err := g.SetPageSegMode(gosseract.PageSegMode(cfg.PageSegMode)); err != nil {
		_ = g.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "set page segmentation mode")
	}
	// Offer cards lay fare and rate side by side; keep the gap between them.
	if err := g.SetVariable("preserve_interword_spaces", "1"); err != nil {
		_ = g.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "set OCR variable")
	}
	return newClient(g, cfg), nil
}

func newClient(e engine, cfg Config) *Client {
	return &Client{engine: e, preprocess: cfg.Preprocess, opts: cfg.Options}
}

func (c *Client) ExtractText(ctx context.Context, image []byte, _ string) (string, error) {
	if len(image) == 0 {
		return "", apperrors.New(apperrors.CodeOCRInvalidImage, "empty image")
	}
	if c.preprocess {
		processed, err := ocr.Preprocess(image, c.opts)
		if err != nil {
			return "", err
		}
		image = processed
	}
	if err := ctx.Err(); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeCancelled, "OCR cancelled")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.engine.SetImageFromBytes(image); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeOCRInvalidImage, "load image")
	}
	text, err := c.engine.Text()
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeOCRFailed, "recognize text")
	}
	return text, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Close()
}
