package screen

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	apperrors "github.com/GriffinCanCode/ride-copilot/platform/internal/errors"
)

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// adbBackend pulls PNG frames from a USB or TCP-attached device.
type adbBackend struct {
	path   string
	serial string
	run    runFunc
}

func (a *adbBackend) args() []string {
	var args []string
	if a.serial != "" {
		args = append(args, "-s", a.serial)
	}
	return append(args, "exec-out", "screencap", "-p")
}

func (a *adbBackend) captureRaw(ctx context.Context) ([]byte, error) {
	out, err := a.run(ctx, a.path, a.args()...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureFailed, "adb screencap").
			WithMetadata("serial", a.serial)
	}
	if DetectFormat(out) != "png" {
		return nil, apperrors.New(apperrors.CodeCaptureFailed, "adb returned a non-PNG frame").
			WithMetadata("serial", a.serial)
	}
	return out, nil
}

func (a *adbBackend) cleanup() {}

func (a *adbBackend) name() string { return "adb" }

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, apperrors.Wrap(err, apperrors.CodeCaptureFailed, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
