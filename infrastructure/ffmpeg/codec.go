package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"audio-extractor/domain/media"

	"go.uber.org/zap"
)

var errCodecReleased = errors.New("codec released")

// output is one item handed from the stdout reader to the buffer protocol
type output struct {
	frame frame
	eos   bool
	err   error
}

type input struct {
	slot    media.SlotID
	payload []byte
	eos     bool
}

// Codec drives one ffmpeg process through the media.Codec buffer protocol.
// Submitted inputs are written to the process's stdin by a writer goroutine;
// a reader goroutine frames stdout into output buffers.
type Codec struct {
	name    string
	path    string
	args    []string
	runner  CommandRunner
	framer  framer
	initial *media.Format
	logger  *zap.Logger

	slots int

	proc    Process
	inputs  chan input
	outputs chan output
	done    chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.Mutex
	freeIn   []media.SlotID
	heldIn   map[media.SlotID]bool
	live     map[media.SlotID][]byte
	nextOut  media.SlotID
	format   media.Format
	eosIn    bool
	started  bool
	released bool
	failed   error
}

func newCodec(name, path string, args []string, runner CommandRunner, f framer, initial *media.Format, slots, depth int, logger *zap.Logger) *Codec {
	return &Codec{
		name:    name,
		path:    path,
		args:    args,
		runner:  runner,
		framer:  f,
		initial: initial,
		logger:  logger,
		slots:   slots,
		inputs:  make(chan input, slots),
		outputs: make(chan output, depth),
		done:    make(chan struct{}),
		heldIn:  make(map[media.SlotID]bool),
		live:    make(map[media.SlotID][]byte),
	}
}

// Name returns the codec's description
func (c *Codec) Name() string {
	return c.name
}

// Args returns the ffmpeg arguments the codec runs with
func (c *Codec) Args() []string {
	return append([]string(nil), c.args...)
}

// Start implements media.Codec
func (c *Codec) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return errCodecReleased
	}
	if c.started {
		return fmt.Errorf("%w: %s already started", media.ErrBufferProtocol, c.name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	proc, err := c.runner.Start(ctx, c.path, c.args...)
	if err != nil {
		cancel()
		return fmt.Errorf("start %s: %w", c.name, err)
	}

	c.proc = proc
	c.cancel = cancel
	c.started = true
	for i := 0; i < c.slots; i++ {
		c.freeIn = append(c.freeIn, media.SlotID(i))
	}

	c.wg.Add(2)
	go c.write()
	go c.read()

	c.logger.Debug("codec started", zap.String("codec", c.name), zap.Strings("args", c.args))
	return nil
}

// TryAcquireInputSlot implements media.Codec
func (c *Codec) TryAcquireInputSlot() (media.SlotID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started || c.released || c.eosIn || c.failed != nil || len(c.freeIn) == 0 {
		return media.NoSlot, false
	}
	slot := c.freeIn[0]
	c.freeIn = c.freeIn[1:]
	c.heldIn[slot] = true
	return slot, true
}

// SubmitInput implements media.Codec
func (c *Codec) SubmitInput(slot media.SlotID, payload []byte, timestampMicros int64, endOfStream bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return errCodecReleased
	}
	if !c.heldIn[slot] {
		return fmt.Errorf("%w: input %d", media.ErrInvalidSlot, slot)
	}
	delete(c.heldIn, slot)

	if endOfStream {
		c.eosIn = true
	} else {
		c.framer.input(timestampMicros)
	}

	// never blocks: the channel holds one entry per slot
	c.inputs <- input{slot: slot, payload: append([]byte(nil), payload...), eos: endOfStream}
	return nil
}

// TryAcquireOutputSlot implements media.Codec
func (c *Codec) TryAcquireOutputSlot() (media.SlotID, media.BufferInfo, media.OutputStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return media.NoSlot, media.BufferInfo{}, media.OutputNone, errCodecReleased
	}
	if c.failed != nil {
		return media.NoSlot, media.BufferInfo{}, media.OutputNone, c.failed
	}
	if !c.started {
		return media.NoSlot, media.BufferInfo{}, media.OutputNone, nil
	}

	var out output
	select {
	case out = <-c.outputs:
	default:
		return media.NoSlot, media.BufferInfo{}, media.OutputNone, nil
	}

	switch {
	case out.err != nil:
		c.failed = fmt.Errorf("%s: %w", c.name, out.err)
		return media.NoSlot, media.BufferInfo{}, media.OutputNone, c.failed
	case out.frame.format != nil:
		c.format = *out.frame.format
		return media.NoSlot, media.BufferInfo{}, media.OutputFormatChanged, nil
	}

	slot := c.nextOut
	c.nextOut++
	if out.eos {
		c.live[slot] = nil
		return slot, media.BufferInfo{TimestampMicros: -1, Flags: media.FlagEndOfStream}, media.OutputBuffer, nil
	}

	c.live[slot] = out.frame.payload
	info := media.BufferInfo{
		TimestampMicros: out.frame.ts,
		Size:            len(out.frame.payload),
		Flags:           out.frame.flags,
	}
	return slot, info, media.OutputBuffer, nil
}

// ConsumeOutput implements media.Codec
func (c *Codec) ConsumeOutput(slot media.SlotID) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload, ok := c.live[slot]
	if !ok {
		return nil, fmt.Errorf("%w: output %d", media.ErrInvalidSlot, slot)
	}
	return payload, nil
}

// ReleaseOutput implements media.Codec
func (c *Codec) ReleaseOutput(slot media.SlotID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.live[slot]; !ok {
		return fmt.Errorf("%w: output %d", media.ErrInvalidSlot, slot)
	}
	delete(c.live, slot)
	return nil
}

// OutputFormat implements media.Codec
func (c *Codec) OutputFormat() media.Format {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.format
}

// Release implements media.Codec. It kills the process if it is still
// running and waits for both pipe goroutines; calling it again is a no-op.
func (c *Codec) Release() error {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return nil
	}
	c.released = true
	started := c.started
	c.mu.Unlock()

	close(c.done)
	if !started {
		return nil
	}

	err := c.proc.Kill()
	c.wg.Wait()
	c.cancel()

	c.logger.Debug("codec released", zap.String("codec", c.name))
	if err != nil && !isProcessDone(err) {
		return fmt.Errorf("kill %s: %w", c.name, err)
	}
	return nil
}

func (c *Codec) write() {
	defer c.wg.Done()
	stdin := c.proc.Stdin()
	defer stdin.Close()

	for {
		var in input
		select {
		case <-c.done:
			return
		case in = <-c.inputs:
		}

		if in.eos {
			c.freeSlot(in.slot)
			return
		}
		if _, err := stdin.Write(in.payload); err != nil {
			c.logger.Debug("codec stdin closed", zap.String("codec", c.name), zap.Error(err))
			return
		}
		c.freeSlot(in.slot)
	}
}

func (c *Codec) freeSlot(slot media.SlotID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.freeIn = append(c.freeIn, slot)
}

func (c *Codec) read() {
	defer c.wg.Done()
	stdout := c.proc.Stdout()
	r := bufio.NewReaderSize(stdout, 64*1024)

	if c.initial != nil {
		if !c.emit(output{frame: frame{format: c.initial}}) {
			c.reap(stdout)
			return
		}
	}

	for {
		f, err := c.framer.next(r)
		if err == nil {
			if !c.emit(output{frame: f}) {
				c.reap(stdout)
				return
			}
			continue
		}

		if !errors.Is(err, io.EOF) {
			c.proc.Kill()
			c.reap(stdout)
			c.emit(output{err: err})
			return
		}

		if err := c.proc.Wait(); err != nil {
			c.emit(output{err: fmt.Errorf("process exited: %w", err)})
			return
		}
		c.emit(output{eos: true})
		return
	}
}

// emit hands out to the protocol side; it reports false once the codec is released
func (c *Codec) emit(out output) bool {
	select {
	case c.outputs <- out:
		return true
	case <-c.done:
		return false
	}
}

// reap drains stdout so the process can exit, then waits for it
func (c *Codec) reap(stdout io.Reader) {
	io.Copy(io.Discard, stdout)
	c.proc.Wait()
}

func isProcessDone(err error) bool {
	return errors.Is(err, os.ErrProcessDone)
}

var _ media.Codec = (*Codec)(nil)
