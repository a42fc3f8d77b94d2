package mediatest

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"audio-extractor/domain/media"
)

// Muxer records what a pipeline writes and enforces the muxer contract
type Muxer struct {
	Path string

	mu      sync.Mutex
	format  *media.Format
	samples []media.Sample
	closed  bool
	lastTS  int64

	AddTrackCalls atomic.Int32
	Closes        atomic.Int32
	Aborts        atomic.Int32
}

// AddTrack implements media.Muxer
func (m *Muxer) AddTrack(format media.Format) (media.TrackHandle, error) {
	m.AddTrackCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.format != nil {
		return 0, media.ErrTrackAlreadyAdded
	}
	m.format = &format
	m.lastTS = -1
	return 0, nil
}

// WriteSample implements media.Muxer
func (m *Muxer) WriteSample(track media.TrackHandle, s media.Sample, flags media.BufferFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return media.ErrMuxerClosed
	}
	if m.format == nil || track != 0 {
		return fmt.Errorf("unknown track %d", track)
	}
	if s.TimestampMicros < m.lastTS {
		return media.ErrNonMonotonic
	}
	m.lastTS = s.TimestampMicros
	m.samples = append(m.samples, s)
	return nil
}

// Close implements media.Muxer
func (m *Muxer) Close() error {
	m.Closes.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return media.ErrMuxerClosed
	}
	m.closed = true
	return nil
}

// Abort implements media.Muxer
func (m *Muxer) Abort() error {
	m.Aborts.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Format returns the format passed to AddTrack, or nil
func (m *Muxer) Format() *media.Format {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.format
}

// Samples returns the samples written so far
func (m *Muxer) Samples() []media.Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]media.Sample(nil), m.samples...)
}

// MuxerFactory records every muxer it creates
type MuxerFactory struct {
	Err    error
	mu     sync.Mutex
	Muxers []*Muxer
}

// Create implements media.MuxerFactory
func (f *MuxerFactory) Create(path string) (media.Muxer, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	m := &Muxer{Path: path}
	f.mu.Lock()
	f.Muxers = append(f.Muxers, m)
	f.mu.Unlock()
	return m, nil
}

// Created returns the muxers created so far
func (f *MuxerFactory) Created() []*Muxer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Muxer(nil), f.Muxers...)
}

// RenderedFrame is a frame plus the wall time it reached the surface
type RenderedFrame struct {
	TimestampMicros int64
	At              time.Time
}

// Surface records rendered frames
type Surface struct {
	mu     sync.Mutex
	frames []RenderedFrame

	Releases atomic.Int32
}

// Render implements media.Surface
func (s *Surface) Render(frame media.VideoFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, RenderedFrame{TimestampMicros: frame.TimestampMicros, At: time.Now()})
	return nil
}

// Release implements media.Surface
func (s *Surface) Release() error {
	s.Releases.Add(1)
	return nil
}

// Frames returns the frames rendered so far
func (s *Surface) Frames() []RenderedFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RenderedFrame(nil), s.frames...)
}

// AudioSink records PCM writes
type AudioSink struct {
	SampleRate int
	Channels   int

	Bytes    atomic.Int64
	Writes   atomic.Int32
	Releases atomic.Int32
}

// Write implements media.AudioSink
func (a *AudioSink) Write(pcm []byte) (int, error) {
	a.Writes.Add(1)
	a.Bytes.Add(int64(len(pcm)))
	return len(pcm), nil
}

// Release implements media.AudioSink
func (a *AudioSink) Release() error {
	a.Releases.Add(1)
	return nil
}

// AudioSinks is a media.AudioSinkFactory that keeps the sinks it opens
type AudioSinks struct {
	Err   error
	mu    sync.Mutex
	Sinks []*AudioSink
}

// Open implements media.AudioSinkFactory
func (f *AudioSinks) Open(sampleRate, channels int) (media.AudioSink, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	s := &AudioSink{SampleRate: sampleRate, Channels: channels}
	f.mu.Lock()
	f.Sinks = append(f.Sinks, s)
	f.mu.Unlock()
	return s, nil
}

// Opened returns the sinks opened so far
func (f *AudioSinks) Opened() []*AudioSink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*AudioSink(nil), f.Sinks...)
}
