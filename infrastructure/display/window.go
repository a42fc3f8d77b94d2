//go:build display

package display

import (
	"fmt"
	"sync"

	"audio-extractor/domain/media"

	"gocv.io/x/gocv"
)

// Window implements media.Surface with an OpenCV highgui window
type Window struct {
	mu       sync.Mutex
	window   *gocv.Window
	onQuit   func()
	quit     bool
	frames   int64
	released bool
}

// NewWindow opens a window titled title
func NewWindow(title string, opts ...WindowOption) (*Window, error) {
	cfg := windowConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Window{
		window: gocv.NewWindow(title),
		onQuit: cfg.onQuit,
	}, nil
}

// Render implements media.Surface. Pressing q or Esc in the window calls the quit handler once.
func (w *Window) Render(frame media.VideoFrame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.released {
		return errReleased
	}
	if len(frame.Pixels) != frame.Width*frame.Height*3 {
		return fmt.Errorf("frame is %d bytes, want %dx%dx3", len(frame.Pixels), frame.Width, frame.Height)
	}

	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Pixels)
	if err != nil {
		return fmt.Errorf("wrap frame: %w", err)
	}
	defer mat.Close()

	w.window.IMShow(mat)
	w.frames++

	if key := w.window.WaitKey(1); isQuitKey(key) && !w.quit {
		w.quit = true
		if w.onQuit != nil {
			go w.onQuit()
		}
	}
	return nil
}

// Frames returns the number of frames shown
func (w *Window) Frames() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Release implements media.Surface
func (w *Window) Release() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.released {
		return nil
	}
	w.released = true
	return w.window.Close()
}

var _ media.Surface = (*Window)(nil)
