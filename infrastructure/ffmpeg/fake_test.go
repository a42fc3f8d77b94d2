package ffmpeg

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

var errKilled = errors.New("signal: killed")

// fakeProcess runs program over in-memory pipes in place of a real subprocess
type fakeProcess struct {
	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter

	done   chan struct{}
	result error
	killed atomic.Bool
	waits  atomic.Int32
}

func startFake(program func(stdin io.Reader, stdout io.Writer) error) *fakeProcess {
	p := &fakeProcess{done: make(chan struct{})}
	p.stdinR, p.stdinW = io.Pipe()
	p.stdoutR, p.stdoutW = io.Pipe()

	go func() {
		err := program(p.stdinR, p.stdoutW)
		p.result = err
		p.stdoutW.Close()
		close(p.done)
	}()
	return p
}

func (p *fakeProcess) Stdin() io.WriteCloser { return p.stdinW }
func (p *fakeProcess) Stdout() io.Reader     { return p.stdoutR }

func (p *fakeProcess) Wait() error {
	p.waits.Add(1)
	<-p.done
	if p.killed.Load() {
		return errKilled
	}
	return p.result
}

func (p *fakeProcess) Kill() error {
	p.killed.Store(true)
	p.stdinR.CloseWithError(errKilled)
	p.stdoutR.CloseWithError(errKilled)
	return nil
}

// fakeRunner starts fakeProcesses running program and records their arguments
type fakeRunner struct {
	program  func(args []string, stdin io.Reader, stdout io.Writer) error
	startErr error
	output   []byte
	err      error

	mu    sync.Mutex
	calls [][]string
	procs []*fakeProcess
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) error {
	r.record(name, args)
	return r.err
}

func (r *fakeRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.record(name, args)
	return r.output, r.err
}

func (r *fakeRunner) Start(ctx context.Context, name string, args ...string) (Process, error) {
	r.record(name, args)
	if r.startErr != nil {
		return nil, r.startErr
	}
	p := startFake(func(stdin io.Reader, stdout io.Writer) error {
		if r.program == nil {
			_, err := io.Copy(stdout, stdin)
			return err
		}
		return r.program(args, stdin, stdout)
	})
	r.mu.Lock()
	r.procs = append(r.procs, p)
	r.mu.Unlock()
	return p, nil
}

func (r *fakeRunner) record(name string, args []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string{name}, args...))
}

func (r *fakeRunner) processes() []*fakeProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*fakeProcess(nil), r.procs...)
}

func (r *fakeRunner) lastCall() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}
