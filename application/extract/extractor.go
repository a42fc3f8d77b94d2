// Package extract decodes the audio track of a container and re-encodes it to an AAC .m4a file
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"audio-extractor/application/pipeline"
	"audio-extractor/domain/media"

	"go.uber.org/zap"
)

// OutputFileName is the name of the file written into the output directory
const OutputFileName = "result.m4a"

const (
	// DefaultBitRate is the AAC encoder target bit rate
	DefaultBitRate = 128000

	// DefaultMaxInputSize caps a single encoder input; larger PCM chunks are split
	DefaultMaxInputSize = 16384

	// StreamCapacity bounds the decode-to-encode queue in streaming mode
	StreamCapacity = 64
)

// ErrStopped is returned when an extraction is stopped before it completes
var ErrStopped = errors.New("extraction stopped")

// Result describes a completed extraction
type Result struct {
	OutputPath     string
	Track          media.Track
	DecodedChunks  int
	EncodedSamples int
	Duration       time.Duration
}

// handoff carries decoded PCM from the decode pump to the encode pump
type handoff interface {
	media.SampleReader
	Consume(s media.Sample, info media.BufferInfo) error
	Seal()
	Chunks() int
}

// Extractor runs one extraction: decode the audio track to PCM, then encode
// the PCM to AAC and mux it into OutputFileName.
type Extractor struct {
	provider     media.CodecProvider
	opener       media.SourceOpener
	muxers       media.MuxerFactory
	logger       *zap.Logger
	streaming    bool
	bitRate      int
	maxInputSize int

	state    *pipeline.State
	mu       sync.Mutex
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// Option is a functional option for configuring Extractor
type Option func(*Extractor)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStreaming runs decode and encode concurrently over a bounded queue
// instead of buffering the whole decoded track in memory
func WithStreaming(streaming bool) Option {
	return func(e *Extractor) {
		e.streaming = streaming
	}
}

// WithBitRate overrides DefaultBitRate
func WithBitRate(bps int) Option {
	return func(e *Extractor) {
		if bps > 0 {
			e.bitRate = bps
		}
	}
}

// WithMaxInputSize overrides DefaultMaxInputSize
func WithMaxInputSize(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxInputSize = n
		}
	}
}

// NewExtractor creates an extractor in the Idle state
func NewExtractor(provider media.CodecProvider, opener media.SourceOpener, muxers media.MuxerFactory, opts ...Option) *Extractor {
	e := &Extractor{
		provider:     provider,
		opener:       opener,
		muxers:       muxers,
		logger:       zap.NewNop(),
		bitRate:      DefaultBitRate,
		maxInputSize: DefaultMaxInputSize,
		state:        pipeline.NewState(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// State returns the current pipeline state
func (e *Extractor) State() media.PipelineState {
	return e.state.Current()
}

// Stop cancels an in-flight extraction. It is idempotent and safe from any goroutine.
func (e *Extractor) Stop() {
	e.stopOnce.Do(func() {
		if err := e.state.Transition(media.StateStopping); err == nil {
			e.logger.Info("extraction stopping")
		}
		e.cancelRun()
	})
}

// Extract writes the audio track of src to outputDir/result.m4a. No file is
// created when the source has no audio track; a partially written file is
// removed on failure.
func (e *Extractor) Extract(ctx context.Context, src media.ByteRange, outputDir string) (*Result, error) {
	if err := e.state.TransitionFrom(media.StateIdle, media.StateRunning); err != nil {
		return nil, media.StartError("", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	defer e.finish()

	log := e.logger.With(zap.String("source", src.Path))
	started := time.Now()

	var resources pipeline.Resources
	defer func() {
		if err := resources.Release(log); err != nil {
			log.Warn("extraction cleanup incomplete", zap.Error(err))
		}
	}()

	source, err := e.opener.Open(src)
	if err != nil {
		return nil, media.StartError("", err)
	}
	resources.Add("source", source.Release)

	track, err := media.LocateTrack(source, media.IsAudio, "audio")
	if err != nil {
		return nil, media.StartError("audio", err)
	}
	log.Info("audio track located", zap.Stringer("track", track))

	decoder, err := e.provider.NewDecoder(track)
	if err != nil {
		return nil, media.StartError("audio", err)
	}
	resources.Add("decoder", decoder.Release)
	if err := decoder.Start(); err != nil {
		return nil, media.StartError("audio", fmt.Errorf("%w: start decoder: %v", media.ErrCodecCreate, err))
	}

	encoder, err := e.provider.NewEncoder(e.encoderFormat(track))
	if err != nil {
		return nil, media.StartError("encode", err)
	}
	resources.Add("encoder", encoder.Release)
	if err := encoder.Start(); err != nil {
		return nil, media.StartError("encode", fmt.Errorf("%w: start encoder: %v", media.ErrCodecCreate, err))
	}

	outputPath := filepath.Join(outputDir, OutputFileName)
	muxer, err := e.muxers(outputPath)
	if err != nil {
		return nil, media.StartError("encode", err)
	}
	out := &trackWriter{muxer: muxer}

	bytesPerSecond := track.SampleRate * track.ChannelCount * 2
	var buf handoff
	if e.streaming {
		buf = pipeline.NewSampleQueue(ctx, StreamCapacity, e.maxInputSize, bytesPerSecond)
	} else {
		buf = pipeline.NewSampleList(e.maxInputSize, bytesPerSecond)
	}

	decode := pipeline.NewPump("decode", decoder, source,
		pipeline.WithState(e.state),
		pipeline.WithConsumer(buf.Consume),
		pipeline.WithPumpLogger(log),
	)
	encode := pipeline.NewPump("encode", encoder, buf,
		pipeline.WithState(e.state),
		pipeline.WithFormatHandler(out.addTrack),
		pipeline.WithConsumer(out.write),
		pipeline.WithPumpLogger(log),
	)

	if e.streaming {
		err = e.runConcurrently(ctx, decode, encode, buf)
	} else {
		err = e.runSequentially(ctx, decode, encode, buf)
	}
	if err != nil {
		if abortErr := muxer.Abort(); abortErr != nil {
			log.Warn("failed to discard partial output", zap.String("path", outputPath), zap.Error(abortErr))
		}
		return nil, err
	}

	if err := muxer.Close(); err != nil {
		return nil, media.RunError("encode", fmt.Errorf("finalize %s: %w", outputPath, err))
	}

	result := &Result{
		OutputPath:     outputPath,
		Track:          track,
		DecodedChunks:  buf.Chunks(),
		EncodedSamples: out.written,
		Duration:       time.Since(started),
	}
	log.Info("extraction complete",
		zap.String("output", outputPath),
		zap.Int("decoded_chunks", result.DecodedChunks),
		zap.Int("encoded_samples", result.EncodedSamples),
		zap.Duration("took", result.Duration))
	return result, nil
}

func (e *Extractor) encoderFormat(track media.Track) media.Format {
	return media.Format{
		MimeType:     media.MimeTypeAAC,
		SampleRate:   track.SampleRate,
		ChannelCount: track.ChannelCount,
		BitRate:      e.bitRate,
		MaxInputSize: e.maxInputSize,
		AACProfile:   media.AACProfileLC,
	}
}

func (e *Extractor) runSequentially(ctx context.Context, decode, encode *pipeline.Pump, buf handoff) error {
	if err := decode.Run(ctx); err != nil {
		return media.RunError("audio", err)
	}
	if !decode.Finished() {
		return ErrStopped
	}
	buf.Seal()

	if err := encode.Run(ctx); err != nil {
		return media.RunError("encode", err)
	}
	if !encode.Finished() {
		return ErrStopped
	}
	return nil
}

func (e *Extractor) runConcurrently(ctx context.Context, decode, encode *pipeline.Pump, buf handoff) error {
	var wg sync.WaitGroup
	var decodeErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer buf.Seal()
		if decodeErr = decode.Run(ctx); decodeErr != nil {
			e.cancelRun()
		}
	}()

	encodeErr := encode.Run(ctx)
	if encodeErr != nil {
		e.cancelRun()
	}
	wg.Wait()

	switch {
	case decodeErr != nil:
		return media.RunError("audio", decodeErr)
	case !decode.Finished():
		return ErrStopped
	case encodeErr != nil:
		return media.RunError("encode", encodeErr)
	case !encode.Finished():
		return ErrStopped
	}
	return nil
}

func (e *Extractor) cancelRun() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Extractor) finish() {
	e.cancelRun()
	if e.state.Current() != media.StateStopping {
		e.state.Transition(media.StateStopping)
	}
	e.state.Transition(media.StateStopped)
	e.logger.Debug("extraction stopped")
}

// trackWriter adds the muxer track once the encoder's format is final and
// writes every encoded sample after it
type trackWriter struct {
	muxer   media.Muxer
	track   media.TrackHandle
	added   bool
	written int
}

func (w *trackWriter) addTrack(format media.Format) error {
	handle, err := w.muxer.AddTrack(format)
	if err != nil {
		return err
	}
	w.track = handle
	w.added = true
	return nil
}

func (w *trackWriter) write(s media.Sample, info media.BufferInfo) error {
	if info.Flags.Has(media.FlagCodecConfig) {
		return nil
	}
	if !w.added {
		return fmt.Errorf("%w: encoded sample before output format", media.ErrBufferProtocol)
	}
	if err := w.muxer.WriteSample(w.track, s, info.Flags); err != nil {
		return err
	}
	w.written++
	return nil
}
