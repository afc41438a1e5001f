// Package screencapture captures the real display through the
// screencapture command-line utility.
package screencapture

import (
	"context"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/medright/mac-computer-use-v1/internal/application/port/output"
)

var _ output.ScreenPort = (*Adapter)(nil)

type Config struct {
	// DisplayNum selects the capture target; screencapture numbers
	// displays from 1. Zero means the main display.
	DisplayNum int
	// DelayMs is a settle delay before each capture, letting animations
	// and window transitions finish.
	DelayMs int
	Logger  output.LoggerPort
}

type Adapter struct {
	binary     string
	displayNum int
	delay      time.Duration
	logger     output.LoggerPort
}

// NewAdapter verifies the capture utility exists. Screenshot capability
// is required at session start; the display profile is derived from it.
func NewAdapter(cfg Config) (*Adapter, error) {
	path, err := exec.LookPath("screencapture")
	if err != nil {
		return nil, fmt.Errorf("screencapture not found: %w", err)
	}
	return &Adapter{
		binary:     path,
		displayNum: cfg.DisplayNum,
		delay:      time.Duration(cfg.DelayMs) * time.Millisecond,
		logger:     cfg.Logger,
	}, nil
}

func (a *Adapter) Capture(ctx context.Context) (image.Image, error) {
	if a.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.delay):
		}
	}

	tmp, err := os.CreateTemp("", "screenshot-*.png")
	if err != nil {
		return nil, fmt.Errorf("create capture file: %w", err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	args := []string{"-x"}
	if a.displayNum > 0 {
		args = append(args, "-D", strconv.Itoa(a.displayNum))
	}
	args = append(args, tmp.Name())

	cmd := exec.CommandContext(ctx, a.binary, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("screencapture failed: %v: %s", err, strings.TrimSpace(string(out)))
	}

	f, err := os.Open(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}

	if a.logger != nil {
		a.logger.Debug("display captured",
			"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	}
	return img, nil
}

// DetectResolution captures the display once and reports its pixel
// dimensions. An undetectable display aborts session setup.
func (a *Adapter) DetectResolution(ctx context.Context) (int, int, error) {
	img, err := a.Capture(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("display not detected: %w", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy(), nil
}
