package screen

import (
	"context"
	"os"

	apperrors "github.com/GriffinCanCode/ride-copilot/platform/internal/errors"
)

// fileBackend re-reads one image path, so a recorder or test harness can
// replace the file to simulate new frames.
type fileBackend struct {
	path string
}

func (f *fileBackend) captureRaw(context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureFailed, "read frame").
			WithMetadata("path", f.path)
	}
	return data, nil
}

func (f *fileBackend) cleanup() {}

func (f *fileBackend) name() string { return "file" }
