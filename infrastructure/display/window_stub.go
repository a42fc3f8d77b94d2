//go:build !display

package display

import (
	"errors"

	"audio-extractor/domain/media"
)

// ErrNotAvailable is returned when the binary was built without OpenCV support
var ErrNotAvailable = errors.New("display not available: build with '-tags=display' and install OpenCV/GoCV, or play with --headless")

// Window is a stub when GoCV/OpenCV is not available
type Window struct{}

// NewWindow returns ErrNotAvailable (requires building with -tags=display)
func NewWindow(title string, opts ...WindowOption) (*Window, error) {
	return nil, ErrNotAvailable
}

// Render returns ErrNotAvailable
func (w *Window) Render(frame media.VideoFrame) error {
	return ErrNotAvailable
}

// Frames always returns 0 in stub mode
func (w *Window) Frames() int64 {
	return 0
}

// Release is a no-op in stub mode
func (w *Window) Release() error {
	return nil
}

var _ media.Surface = (*Window)(nil)
