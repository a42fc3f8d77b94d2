// Package mediatest provides in-memory fakes of the media ports for tests
package mediatest

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"audio-extractor/domain/media"
)

// Source is an in-memory media.SampleSource
type Source struct {
	mu       sync.Mutex
	tracks   []media.Track
	samples  map[int][]media.Sample
	selected int
	cursor   int
	current  int64

	Releases atomic.Int32
}

// NewSource creates a source with the given tracks and no samples
func NewSource(tracks ...media.Track) *Source {
	return &Source{
		tracks:   tracks,
		samples:  make(map[int][]media.Sample),
		selected: -1,
		current:  -1,
	}
}

// WithSamples sets the samples of track index
func (s *Source) WithSamples(index int, samples []media.Sample) *Source {
	s.samples[index] = samples
	return s
}

// Tracks implements media.SampleSource
func (s *Source) Tracks() []media.Track {
	return s.tracks
}

// SelectTrack implements media.SampleSource
func (s *Source) SelectTrack(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected >= 0 {
		return media.ErrTrackAlreadySelected
	}
	s.selected = index
	return nil
}

// NextSample implements media.SampleSource
func (s *Source) NextSample() (media.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.samples[s.selected]
	if s.cursor >= len(list) {
		return media.EndOfStreamSample(), nil
	}
	sample := list[s.cursor]
	s.current = sample.TimestampMicros
	return sample, nil
}

// Advance implements media.SampleSource
func (s *Source) Advance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor >= len(s.samples[s.selected]) {
		return false
	}
	s.cursor++
	return s.cursor < len(s.samples[s.selected])
}

// CurrentTimestamp implements media.SampleSource
func (s *Source) CurrentTimestamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// PeekTimestamp implements media.SampleSource
func (s *Source) PeekTimestamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.samples[s.selected]
	if s.cursor >= len(list) {
		return -1
	}
	return list[s.cursor].TimestampMicros
}

// Position returns how many samples have been consumed
func (s *Source) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Release implements media.SampleSource
func (s *Source) Release() error {
	s.Releases.Add(1)
	return nil
}

// Opener hands out fresh sources built by New, one per Open call
type Opener struct {
	New    func() *Source
	Err    error
	mu     sync.Mutex
	Opened []*Source
}

// Open implements media.SourceOpener
func (o *Opener) Open(r media.ByteRange) (media.SampleSource, error) {
	if o.Err != nil {
		return nil, fmt.Errorf("%w: %s: %v", media.ErrOpenSource, r.Path, o.Err)
	}
	src := o.New()
	o.mu.Lock()
	o.Opened = append(o.Opened, src)
	o.mu.Unlock()
	return src, nil
}

// Sources returns the sources opened so far
func (o *Opener) Sources() []*Source {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Source(nil), o.Opened...)
}

// Samples generates n samples spaced by interval, each carrying a payload of size bytes
func Samples(n int, interval time.Duration, size int) []media.Sample {
	out := make([]media.Sample, n)
	for i := range out {
		payload := make([]byte, size)
		for j := range payload {
			payload[j] = byte(i)
		}
		out[i] = media.Sample{
			TimestampMicros: int64(i) * interval.Microseconds(),
			Payload:         payload,
		}
	}
	return out
}
