package media

import (
	"errors"
	"fmt"
)

// Errors for media pipeline operations
var (
	ErrNoSuchTrack          = errors.New("no such track")
	ErrTrackAlreadySelected = errors.New("track already selected")
	ErrOpenSource           = errors.New("cannot open source")
	ErrCodecCreate          = errors.New("cannot create codec")
	ErrBufferProtocol       = errors.New("buffer protocol violation")
	ErrInvalidSlot          = fmt.Errorf("%w: invalid slot", ErrBufferProtocol)
	ErrInvalidTransition    = errors.New("invalid state transition")
	ErrTrackAlreadyAdded    = errors.New("muxer track already added")
	ErrMuxerClosed          = errors.New("muxer closed")
	ErrNonMonotonic         = errors.New("timestamp went backwards")
)

// PipelineError is the typed failure a pipeline controller reports to its caller
type PipelineError struct {
	Stage  string // "start" or "run"
	Stream string // "audio", "video", "encode", ...
	Err    error
}

func (e *PipelineError) Error() string {
	if e.Stream == "" {
		return fmt.Sprintf("pipeline %s failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("pipeline %s failed (%s): %v", e.Stage, e.Stream, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// StartError wraps err as a fatal-at-start failure
func StartError(stream string, err error) error {
	if err == nil {
		return nil
	}
	return &PipelineError{Stage: "start", Stream: stream, Err: err}
}

// RunError wraps err as a steady-state failure
func RunError(stream string, err error) error {
	if err == nil {
		return nil
	}
	return &PipelineError{Stage: "run", Stream: stream, Err: err}
}
