package mediatest

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"audio-extractor/domain/media"
)

var errReleased = errors.New("codec released")

// Codec is a scripted media.Codec. Each submitted sample becomes zero or more
// output buffers through Transform; end-of-stream input yields one EOS buffer
// once every pending output has been handed out.
type Codec struct {
	Name string

	// InputSlots is the number of input slots (default 2)
	InputSlots int

	// MaxPending blocks input while this many outputs wait (default 4)
	MaxPending int

	// Transform maps one input to its outputs (default: identity)
	Transform func(media.Sample) []media.Sample

	// Format is reported through OutputFormatChanged before the first buffer
	Format *media.Format

	// FailReleaseAt makes the nth ReleaseOutput call fail with ErrInvalidSlot
	FailReleaseAt int

	StartErr error

	mu          sync.Mutex
	freeIn      []media.SlotID
	heldIn      map[media.SlotID]bool
	pending     []media.Sample
	live        map[media.SlotID]media.Sample
	nextOut     media.SlotID
	eosIn       bool
	eosOut      bool
	formatSent  bool
	released    bool
	started     bool
	releaseOuts int

	submitted []media.Sample
	consumed  []media.Sample

	Releases atomic.Int32
}

// Start implements media.Codec
func (c *Codec) Start() error {
	if c.StartErr != nil {
		return c.StartErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.InputSlots
	if n <= 0 {
		n = 2
	}
	c.heldIn = make(map[media.SlotID]bool)
	c.live = make(map[media.SlotID]media.Sample)
	for i := 0; i < n; i++ {
		c.freeIn = append(c.freeIn, media.SlotID(i))
	}
	c.started = true
	return nil
}

// TryAcquireInputSlot implements media.Codec
func (c *Codec) TryAcquireInputSlot() (media.SlotID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	maxPending := c.MaxPending
	if maxPending <= 0 {
		maxPending = 4
	}
	if !c.started || c.released || c.eosIn || len(c.freeIn) == 0 || len(c.pending) >= maxPending {
		return media.NoSlot, false
	}
	slot := c.freeIn[0]
	c.freeIn = c.freeIn[1:]
	c.heldIn[slot] = true
	return slot, true
}

// SubmitInput implements media.Codec
func (c *Codec) SubmitInput(slot media.SlotID, payload []byte, ts int64, eos bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return errReleased
	}
	if !c.heldIn[slot] {
		return fmt.Errorf("%w: input %d", media.ErrInvalidSlot, slot)
	}
	delete(c.heldIn, slot)
	c.freeIn = append(c.freeIn, slot)

	if eos {
		c.eosIn = true
		return nil
	}

	in := media.Sample{TimestampMicros: ts, Payload: append([]byte(nil), payload...)}
	c.submitted = append(c.submitted, in)
	if c.Transform == nil {
		c.pending = append(c.pending, in)
		return nil
	}
	c.pending = append(c.pending, c.Transform(in)...)
	return nil
}

// TryAcquireOutputSlot implements media.Codec
func (c *Codec) TryAcquireOutputSlot() (media.SlotID, media.BufferInfo, media.OutputStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return media.NoSlot, media.BufferInfo{}, media.OutputNone, errReleased
	}

	if c.Format != nil && !c.formatSent && (len(c.pending) > 0 || c.eosIn) {
		c.formatSent = true
		return media.NoSlot, media.BufferInfo{}, media.OutputFormatChanged, nil
	}

	switch {
	case len(c.pending) > 0:
		s := c.pending[0]
		c.pending = c.pending[1:]
		slot := c.nextOut
		c.nextOut++
		c.live[slot] = s
		return slot, media.BufferInfo{TimestampMicros: s.TimestampMicros, Size: len(s.Payload)}, media.OutputBuffer, nil
	case c.eosIn && !c.eosOut:
		c.eosOut = true
		slot := c.nextOut
		c.nextOut++
		c.live[slot] = media.Sample{EndOfStream: true}
		return slot, media.BufferInfo{Flags: media.FlagEndOfStream}, media.OutputBuffer, nil
	}
	return media.NoSlot, media.BufferInfo{}, media.OutputNone, nil
}

// ConsumeOutput implements media.Codec
func (c *Codec) ConsumeOutput(slot media.SlotID) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.live[slot]
	if !ok {
		return nil, fmt.Errorf("%w: output %d", media.ErrInvalidSlot, slot)
	}
	if !s.EndOfStream {
		c.consumed = append(c.consumed, s)
	}
	return s.Payload, nil
}

// ReleaseOutput implements media.Codec
func (c *Codec) ReleaseOutput(slot media.SlotID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseOuts++
	if c.FailReleaseAt > 0 && c.releaseOuts == c.FailReleaseAt {
		return fmt.Errorf("%w: output %d", media.ErrInvalidSlot, slot)
	}
	if _, ok := c.live[slot]; !ok {
		return fmt.Errorf("%w: output %d", media.ErrInvalidSlot, slot)
	}
	delete(c.live, slot)
	return nil
}

// OutputFormat implements media.Codec
func (c *Codec) OutputFormat() media.Format {
	if c.Format == nil {
		return media.Format{}
	}
	return *c.Format
}

// Release implements media.Codec
func (c *Codec) Release() error {
	c.Releases.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
	return nil
}

// Submitted returns the non-EOS inputs received so far
func (c *Codec) Submitted() []media.Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]media.Sample(nil), c.submitted...)
}

// Consumed returns the outputs handed out so far, excluding the EOS buffer
func (c *Codec) Consumed() []media.Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]media.Sample(nil), c.consumed...)
}

// Provider is a media.CodecProvider handing out scripted codecs
type Provider struct {
	// NewDecoderFunc builds the decoder for a track (default: identity codec)
	NewDecoderFunc func(track media.Track) *Codec

	// NewEncoderFunc builds the encoder for a format (default: identity codec reporting format)
	NewEncoderFunc func(format media.Format) *Codec

	DecoderErr error
	EncoderErr error

	mu       sync.Mutex
	decoders []*Codec
	encoders []*Codec
	Formats  []media.Format
}

// NewDecoder implements media.CodecProvider
func (p *Provider) NewDecoder(track media.Track) (media.Codec, error) {
	if p.DecoderErr != nil {
		return nil, fmt.Errorf("%w: %s: %v", media.ErrCodecCreate, track.MimeType, p.DecoderErr)
	}
	c := &Codec{Name: "decoder " + track.MimeType}
	if p.NewDecoderFunc != nil {
		c = p.NewDecoderFunc(track)
	}
	p.mu.Lock()
	p.decoders = append(p.decoders, c)
	p.mu.Unlock()
	return c, nil
}

// NewEncoder implements media.CodecProvider
func (p *Provider) NewEncoder(format media.Format) (media.Codec, error) {
	if p.EncoderErr != nil {
		return nil, fmt.Errorf("%w: %s: %v", media.ErrCodecCreate, format.MimeType, p.EncoderErr)
	}
	out := format
	c := &Codec{Name: "encoder " + format.MimeType, Format: &out}
	if p.NewEncoderFunc != nil {
		c = p.NewEncoderFunc(format)
	}
	p.mu.Lock()
	p.encoders = append(p.encoders, c)
	p.Formats = append(p.Formats, format)
	p.mu.Unlock()
	return c, nil
}

// Decoders returns the decoders created so far
func (p *Provider) Decoders() []*Codec {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Codec(nil), p.decoders...)
}

// Encoders returns the encoders created so far
func (p *Provider) Encoders() []*Codec {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Codec(nil), p.encoders...)
}
