// Package display provides the video surfaces the player renders into
package display

import (
	"errors"
	"fmt"
	"sync"

	"audio-extractor/domain/media"

	"go.uber.org/zap"
)

var errReleased = errors.New("surface released")

// WindowOption is a functional option for configuring Window
type WindowOption func(*windowConfig)

type windowConfig struct {
	onQuit func()
}

// WithQuitHandler sets the function called when the user closes playback from the window
func WithQuitHandler(fn func()) WindowOption {
	return func(c *windowConfig) {
		c.onQuit = fn
	}
}

func isQuitKey(key int) bool {
	return key == 'q' || key == 'Q' || key == 27
}

// Discard is a headless media.Surface that validates and counts frames
type Discard struct {
	logger *zap.Logger

	mu       sync.Mutex
	frames   int64
	last     int64
	width    int
	height   int
	released bool
}

// NewDiscard creates a headless surface
func NewDiscard(logger *zap.Logger) *Discard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discard{logger: logger, last: -1}
}

// Render implements media.Surface
func (d *Discard) Render(frame media.VideoFrame) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return errReleased
	}
	if frame.Width > 0 && frame.Height > 0 && len(frame.Pixels) != frame.Width*frame.Height*3 {
		return fmt.Errorf("frame is %d bytes, want %dx%dx3", len(frame.Pixels), frame.Width, frame.Height)
	}

	if d.frames == 0 {
		d.logger.Debug("first frame", zap.Int("width", frame.Width), zap.Int("height", frame.Height))
	}
	d.frames++
	d.last = frame.TimestampMicros
	d.width, d.height = frame.Width, frame.Height
	return nil
}

// Frames returns the number of frames rendered
func (d *Discard) Frames() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

// LastTimestamp returns the timestamp of the latest frame, or -1
func (d *Discard) LastTimestamp() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Release implements media.Surface
func (d *Discard) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.released {
		d.released = true
		d.logger.Debug("surface released", zap.Int64("frames", d.frames))
	}
	return nil
}

var _ media.Surface = (*Discard)(nil)
