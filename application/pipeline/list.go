package pipeline

import (
	"context"
	"sync"

	"audio-extractor/domain/media"
)

// SampleList is the ordered in-memory hand-off between a decode pump and an
// encode pump. The decode side appends; once sealed, the encode side reads it
// front to back.
type SampleList struct {
	maxChunk       int
	bytesPerSecond int

	mu      sync.Mutex
	samples []media.Sample
	chunks  int
	cursor  int
	sealed  bool
}

// NewSampleList creates a list. Payloads larger than maxChunk bytes are split,
// with timestamps advanced by bytesPerSecond; zero disables splitting.
func NewSampleList(maxChunk, bytesPerSecond int) *SampleList {
	return &SampleList{maxChunk: maxChunk, bytesPerSecond: bytesPerSecond}
}

// Consume appends one decoded buffer; it satisfies Consumer
func (l *SampleList) Consume(s media.Sample, _ media.BufferInfo) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chunks++
	l.samples = append(l.samples, split(s, l.maxChunk, l.bytesPerSecond)...)
	return nil
}

// Seal marks the decode side finished
func (l *SampleList) Seal() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sealed = true
}

// Len returns the number of samples held
func (l *SampleList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.samples)
}

// Chunks returns the number of buffers consumed, before any splitting
func (l *SampleList) Chunks() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chunks
}

// NextSample implements media.SampleReader
func (l *SampleList) NextSample() (media.Sample, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cursor >= len(l.samples) {
		return media.EndOfStreamSample(), nil
	}
	return l.samples[l.cursor], nil
}

// Advance implements media.SampleReader
func (l *SampleList) Advance() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cursor >= len(l.samples) {
		return false
	}
	l.samples[l.cursor].Payload = nil
	l.cursor++
	return l.cursor < len(l.samples)
}

// SampleQueue is the bounded, streaming alternative to SampleList. Consume
// blocks while the queue is full and NextSample blocks while it is empty.
type SampleQueue struct {
	ctx            context.Context
	ch             chan media.Sample
	maxChunk       int
	bytesPerSecond int

	mu      sync.Mutex
	head    *media.Sample
	chunks  int
	closed  bool
	drained bool
}

// NewSampleQueue creates a queue holding at most capacity samples
func NewSampleQueue(ctx context.Context, capacity, maxChunk, bytesPerSecond int) *SampleQueue {
	return &SampleQueue{
		ctx:            ctx,
		ch:             make(chan media.Sample, capacity),
		maxChunk:       maxChunk,
		bytesPerSecond: bytesPerSecond,
	}
}

// Consume pushes one decoded buffer; it satisfies Consumer
func (q *SampleQueue) Consume(s media.Sample, _ media.BufferInfo) error {
	q.mu.Lock()
	q.chunks++
	q.mu.Unlock()
	for _, part := range split(s, q.maxChunk, q.bytesPerSecond) {
		part.Payload = append([]byte(nil), part.Payload...)
		select {
		case q.ch <- part:
		case <-q.ctx.Done():
			return q.ctx.Err()
		}
	}
	return nil
}

// Seal closes the producing side
func (q *SampleQueue) Seal() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Chunks returns the number of buffers consumed, before any splitting
func (q *SampleQueue) Chunks() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.chunks
}

// NextSample implements media.SampleReader
func (q *SampleQueue) NextSample() (media.Sample, error) {
	q.mu.Lock()
	if q.head != nil {
		s := *q.head
		q.mu.Unlock()
		return s, nil
	}
	if q.drained {
		q.mu.Unlock()
		return media.EndOfStreamSample(), nil
	}
	q.mu.Unlock()

	select {
	case s, ok := <-q.ch:
		q.mu.Lock()
		defer q.mu.Unlock()
		if !ok {
			q.drained = true
			return media.EndOfStreamSample(), nil
		}
		q.head = &s
		return s, nil
	case <-q.ctx.Done():
		return media.Sample{}, q.ctx.Err()
	}
}

// Advance implements media.SampleReader
func (q *SampleQueue) Advance() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.head = nil
	return !q.drained
}

func split(s media.Sample, maxChunk, bytesPerSecond int) []media.Sample {
	if maxChunk <= 0 || len(s.Payload) <= maxChunk {
		return []media.Sample{s}
	}

	var parts []media.Sample
	for off := 0; off < len(s.Payload); off += maxChunk {
		end := off + maxChunk
		if end > len(s.Payload) {
			end = len(s.Payload)
		}
		ts := s.TimestampMicros
		if bytesPerSecond > 0 {
			ts += int64(off) * 1_000_000 / int64(bytesPerSecond)
		}
		parts = append(parts, media.Sample{TimestampMicros: ts, Payload: s.Payload[off:end]})
	}
	return parts
}
