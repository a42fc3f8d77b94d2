package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"audio-extractor/domain/media"

	"go.uber.org/zap"
)

const (
	// PausePoll is how long a paused task sleeps before re-checking state
	PausePoll = 100 * time.Millisecond

	// idleYield is slept after a tick where neither side of the codec moved
	idleYield = time.Millisecond
)

// Consumer receives each decoded or encoded output buffer
type Consumer func(sample media.Sample, info media.BufferInfo) error

// FormatHandler receives the codec's finalized output format
type FormatHandler func(format media.Format) error

// InputHook runs after each submitted input sample
type InputHook func(ctx context.Context) error

// OutputHook runs before an output buffer is handed to the consumer
type OutputHook func(ctx context.Context, info media.BufferInfo) error

// PumpStats counts buffers moved through a pump
type PumpStats struct {
	SamplesIn  int64
	SamplesOut int64
}

// Pump drives one codec: it feeds samples from a reader into the input side and
// drains the output side into a consumer until the codec reports end-of-stream.
type Pump struct {
	name         string
	codec        media.Codec
	input        media.SampleReader
	state        *State
	consumer     Consumer
	onFormat     FormatHandler
	afterInput   InputHook
	beforeOutput OutputHook
	onComplete   func()
	pausePoll    time.Duration
	logger       *zap.Logger

	inputDone    bool
	finished     bool
	completeOnce sync.Once
	samplesIn    atomic.Int64
	samplesOut   atomic.Int64
}

// PumpOption is a functional option for configuring Pump
type PumpOption func(*Pump)

// WithConsumer sets the output consumer
func WithConsumer(c Consumer) PumpOption {
	return func(p *Pump) {
		p.consumer = c
	}
}

// WithFormatHandler sets the callback for OutputFormatChanged
func WithFormatHandler(h FormatHandler) PumpOption {
	return func(p *Pump) {
		p.onFormat = h
	}
}

// WithAfterInput sets a hook run after each submitted input
func WithAfterInput(h InputHook) PumpOption {
	return func(p *Pump) {
		p.afterInput = h
	}
}

// WithBeforeOutput sets a hook run before each output is consumed
func WithBeforeOutput(h OutputHook) PumpOption {
	return func(p *Pump) {
		p.beforeOutput = h
	}
}

// WithCompletion sets the callback fired once on natural end-of-stream
func WithCompletion(fn func()) PumpOption {
	return func(p *Pump) {
		p.onComplete = fn
	}
}

// WithState shares the controller's state with the pump
func WithState(s *State) PumpOption {
	return func(p *Pump) {
		p.state = s
	}
}

// WithPausePoll overrides the pause re-check interval
func WithPausePoll(d time.Duration) PumpOption {
	return func(p *Pump) {
		if d > 0 {
			p.pausePoll = d
		}
	}
}

// WithPumpLogger sets the logger
func WithPumpLogger(l *zap.Logger) PumpOption {
	return func(p *Pump) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPump creates a pump; without WithState it runs as if permanently Running
func NewPump(name string, codec media.Codec, input media.SampleReader, opts ...PumpOption) *Pump {
	p := &Pump{
		name:      name,
		codec:     codec,
		input:     input,
		pausePoll: PausePoll,
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.state == nil {
		p.state = NewState()
		p.state.Transition(media.StateRunning)
	}

	return p
}

// Name returns the pump's name
func (p *Pump) Name() string {
	return p.name
}

// Finished reports whether the codec has signalled end-of-stream
func (p *Pump) Finished() bool {
	return p.finished
}

// Stats returns buffer counters
func (p *Pump) Stats() PumpStats {
	return PumpStats{SamplesIn: p.samplesIn.Load(), SamplesOut: p.samplesOut.Load()}
}

// Run ticks until end-of-stream, cancellation, or an error. The completion
// callback fires only on end-of-stream.
func (p *Pump) Run(ctx context.Context) error {
	log := p.logger.With(zap.String("pump", p.name))
	log.Debug("pump started")

	for {
		if ctx.Err() != nil || !p.state.Playing() {
			log.Debug("pump cancelled", zap.Int64("in", p.samplesIn.Load()), zap.Int64("out", p.samplesOut.Load()))
			return nil
		}

		if p.state.Paused() {
			if !Sleep(ctx, p.pausePoll) {
				return nil
			}
			continue
		}

		progressed, err := p.Tick(ctx)
		if err != nil {
			log.Error("pump failed", zap.Error(err))
			return err
		}

		if p.finished {
			log.Debug("pump reached end of stream", zap.Int64("in", p.samplesIn.Load()), zap.Int64("out", p.samplesOut.Load()))
			p.complete()
			return nil
		}

		if !progressed {
			Sleep(ctx, idleYield)
		}
	}
}

// Tick performs one input step and one output step. It reports whether either side moved.
func (p *Pump) Tick(ctx context.Context) (bool, error) {
	if p.finished {
		return false, nil
	}

	progressed := false

	if !p.inputDone {
		if slot, ok := p.codec.TryAcquireInputSlot(); ok {
			if err := p.feed(slot); err != nil {
				return false, err
			}
			progressed = true

			if p.afterInput != nil && !p.inputDone {
				if err := p.afterInput(ctx); err != nil {
					return progressed, err
				}
			}
		}
	}

	slot, info, status, err := p.codec.TryAcquireOutputSlot()
	if err != nil {
		return progressed, fmt.Errorf("%s: acquire output: %w", p.name, err)
	}

	switch status {
	case media.OutputFormatChanged:
		if p.onFormat != nil {
			if err := p.onFormat(p.codec.OutputFormat()); err != nil {
				return true, fmt.Errorf("%s: output format: %w", p.name, err)
			}
		}
		return true, nil
	case media.OutputBuffer:
		return true, p.drain(ctx, slot, info)
	}

	return progressed, nil
}

func (p *Pump) feed(slot media.SlotID) error {
	sample, err := p.input.NextSample()
	if err != nil {
		return fmt.Errorf("%s: read sample: %w", p.name, err)
	}

	if sample.EndOfStream {
		p.inputDone = true
		if err := p.codec.SubmitInput(slot, nil, 0, true); err != nil {
			return fmt.Errorf("%s: submit end of stream: %w", p.name, err)
		}
		return nil
	}

	if err := p.codec.SubmitInput(slot, sample.Payload, sample.TimestampMicros, false); err != nil {
		return fmt.Errorf("%s: submit input: %w", p.name, err)
	}
	p.samplesIn.Add(1)
	p.input.Advance()
	return nil
}

func (p *Pump) drain(ctx context.Context, slot media.SlotID, info media.BufferInfo) error {
	payload, err := p.codec.ConsumeOutput(slot)
	if err != nil {
		return fmt.Errorf("%s: consume output: %w", p.name, err)
	}

	if len(payload) > 0 {
		if p.beforeOutput != nil {
			if err := p.beforeOutput(ctx, info); err != nil {
				if ctx.Err() == nil {
					return err
				}
				// cancelled while held: drop the buffer unconsumed
				return p.codec.ReleaseOutput(slot)
			}
		}
		if p.consumer != nil {
			sample := media.Sample{TimestampMicros: info.TimestampMicros, Payload: payload}
			if err := p.consumer(sample, info); err != nil {
				return fmt.Errorf("%s: consume: %w", p.name, err)
			}
		}
		p.samplesOut.Add(1)
	}

	if err := p.codec.ReleaseOutput(slot); err != nil {
		return fmt.Errorf("%s: release output: %w", p.name, err)
	}

	if info.Flags.Has(media.FlagEndOfStream) {
		p.finished = true
	}
	return nil
}

func (p *Pump) complete() {
	p.completeOnce.Do(func() {
		if p.onComplete != nil {
			p.onComplete()
		}
	})
}

// Sleep waits for d or until ctx is done; it reports whether the full interval elapsed
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
