package screen

import (
	"os"
	"os/exec"

	apperrors "github.com/GriffinCanCode/ride-copilot/platform/internal/errors"
)

// Sources
const (
	SourceADB  = "adb"
	SourceFile = "file"
)

type Config struct {
	Source    string
	ADBPath   string
	ADBSerial string
	FilePath  string
}

// New creates a capturer for the configured source.
func New(cfg Config) (Capturer, error) {
	switch cfg.Source {
	case SourceADB:
		path := cfg.ADBPath
		if path == "" {
			path = "adb"
		}
		resolved, err := exec.LookPath(path)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "adb not found").
				WithMetadata("path", path)
		}
		return newBase(&adbBackend{path: resolved, serial: cfg.ADBSerial, run: runCommand}), nil
	case SourceFile:
		if _, err := os.Stat(cfg.FilePath); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "capture file not readable").
				WithMetadata("path", cfg.FilePath)
		}
		return newBase(&fileBackend{path: cfg.FilePath}), nil
	default:
		return nil, apperrors.Newf(apperrors.CodeConfigInvalid, "unknown capture source %q", cfg.Source)
	}
}
