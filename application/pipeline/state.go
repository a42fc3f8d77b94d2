package pipeline

import (
	"fmt"
	"sync/atomic"

	"audio-extractor/domain/media"
)

// State is the race-safe pipeline state shared by a controller and its tasks
type State struct {
	v atomic.Int32
}

// NewState creates a state in Idle
func NewState() *State {
	return &State{}
}

// Current returns the current state
func (s *State) Current() media.PipelineState {
	return media.PipelineState(s.v.Load())
}

// Transition moves to the target state if the move is legal from the current one
func (s *State) Transition(to media.PipelineState) error {
	for {
		from := s.Current()
		if !media.CanTransition(from, to) {
			return fmt.Errorf("%w: %s -> %s", media.ErrInvalidTransition, from, to)
		}
		if s.v.CompareAndSwap(int32(from), int32(to)) {
			return nil
		}
	}
}

// TransitionFrom moves from -> to only while the state is still from. Resume
// uses it so that Idle -> Running stays reachable from Start alone.
func (s *State) TransitionFrom(from, to media.PipelineState) error {
	if media.CanTransition(from, to) && s.v.CompareAndSwap(int32(from), int32(to)) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s (want %s)", media.ErrInvalidTransition, s.Current(), to, from)
}

// Playing reports whether tasks should keep running
func (s *State) Playing() bool {
	c := s.Current()
	return c == media.StateRunning || c == media.StatePaused
}

// Paused reports whether tasks should hold
func (s *State) Paused() bool {
	return s.Current() == media.StatePaused
}
