package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"audio-extractor/domain/media"

	"go.uber.org/zap"
)

// PlaySink plays 16-bit PCM through an ffplay process
type PlaySink struct {
	proc   Process
	cancel context.CancelFunc
	logger *zap.Logger

	mu       sync.Mutex
	written  int64
	released bool
}

// PlaySinkOption is a functional option for configuring PlaySink
type PlaySinkOption func(*playSinkConfig)

type playSinkConfig struct {
	ffplayPath string
	runner     CommandRunner
	logger     *zap.Logger
}

// WithFFplayPath sets a custom ffplay executable path
func WithFFplayPath(path string) PlaySinkOption {
	return func(c *playSinkConfig) {
		if path != "" {
			c.ffplayPath = path
		}
	}
}

// WithPlayRunner sets a custom command runner (for testing)
func WithPlayRunner(runner CommandRunner) PlaySinkOption {
	return func(c *playSinkConfig) {
		c.runner = runner
	}
}

// WithPlayLogger sets the logger
func WithPlayLogger(l *zap.Logger) PlaySinkOption {
	return func(c *playSinkConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewPlaySinkFactory returns a media.AudioSinkFactory starting one ffplay per sink
func NewPlaySinkFactory(opts ...PlaySinkOption) media.AudioSinkFactory {
	cfg := playSinkConfig{
		ffplayPath: "ffplay",
		runner:     &ExecCommandRunner{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(sampleRate, channels int) (media.AudioSink, error) {
		args, err := PlayArgs(sampleRate, channels)
		if err != nil {
			return nil, err
		}

		ctx, cancel := context.WithCancel(context.Background())
		proc, err := cfg.runner.Start(ctx, cfg.ffplayPath, args...)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("start ffplay: %w", err)
		}

		// ffplay prints nothing on stdout with -loglevel error, but the pipe must not fill
		go io.Copy(io.Discard, proc.Stdout())

		cfg.logger.Debug("audio sink opened", zap.Int("sample_rate", sampleRate), zap.Int("channels", channels))
		return &PlaySink{proc: proc, cancel: cancel, logger: cfg.logger}, nil
	}
}

// PlayArgs returns the ffplay arguments playing s16le PCM from stdin
func PlayArgs(sampleRate, channels int) ([]string, error) {
	var layout string
	switch channels {
	case 1:
		layout = "mono"
	case 2:
		layout = "stereo"
	default:
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	return []string{
		"-hide_banner", "-loglevel", "error",
		"-nodisp", "-autoexit",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ch_layout", layout,
		"-i", "pipe:0",
	}, nil
}

// Write implements media.AudioSink
func (s *PlaySink) Write(pcm []byte) (int, error) {
	s.mu.Lock()
	released := s.released
	s.mu.Unlock()
	if released {
		return 0, errors.New("audio sink released")
	}

	n, err := s.proc.Stdin().Write(pcm)
	s.mu.Lock()
	s.written += int64(n)
	s.mu.Unlock()
	if err != nil {
		return n, fmt.Errorf("write pcm: %w", err)
	}
	return n, nil
}

// Written returns the number of PCM bytes handed to ffplay
func (s *PlaySink) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Release implements media.AudioSink
func (s *PlaySink) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	s.mu.Unlock()

	s.proc.Stdin().Close()
	err := s.proc.Kill()
	s.proc.Wait()
	s.cancel()

	s.logger.Debug("audio sink released", zap.Int64("bytes", s.Written()))
	if err != nil && !isProcessDone(err) {
		return fmt.Errorf("stop ffplay: %w", err)
	}
	return nil
}

var _ media.AudioSink = (*PlaySink)(nil)
