package ocr

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"

	apperrors "github.com/GriffinCanCode/ride-copilot/platform/internal/errors"
)

// Options controls Preprocess.
type Options struct {
	// Crop keeps only this region of the frame. An empty rectangle keeps everything.
	Crop     image.Rectangle
	Scale    float64 // height multiplier, 0 means 2
	Contrast float64 // percentage passed to imaging.AdjustContrast
	Sharpen  float64 // sigma, 0 disables
}

// DefaultOptions suits phone screenshots of offer cards.
func DefaultOptions() Options {
	return Options{Scale: 2, Contrast: 40, Sharpen: 1.0}
}

// Preprocess crops, grayscales, upscales, sharpens and boosts contrast,
// returning a PNG ready for Tesseract.
func Preprocess(data []byte, opts Options) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeOCRInvalidImage, "decode frame")
	}

	if !opts.Crop.Empty() {
		region := opts.Crop.Intersect(img.Bounds())
		if region.Empty() {
			return nil, apperrors.New(apperrors.CodeOCRInvalidImage, "crop region outside frame").
				WithMetadata("crop", opts.Crop.String()).
				WithMetadata("bounds", img.Bounds().String())
		}
		img = imaging.Crop(img, region)
	}

	out := imaging.Grayscale(img)

	scale := opts.Scale
	if scale <= 0 {
		scale = 2
	}
	if scale != 1 {
		h := int(float64(out.Bounds().Dy()) * scale)
		out = imaging.Resize(out, 0, h, imaging.Lanczos)
	}
	if opts.Sharpen > 0 {
		out = imaging.Sharpen(out, opts.Sharpen)
	}
	if opts.Contrast != 0 {
		out = imaging.AdjustContrast(out, opts.Contrast)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeOCRInvalidImage, "encode frame")
	}
	return buf.Bytes(), nil
}
