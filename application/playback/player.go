// Package playback plays the video and audio tracks of a container in sync
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"audio-extractor/application/pipeline"
	"audio-extractor/domain/media"

	"go.uber.org/zap"
)

// Player decodes one video and one audio track on two pumps. Video is paced
// against the wall clock; audio follows the video position.
type Player struct {
	provider  media.CodecProvider
	opener    media.SourceOpener
	logger    *zap.Logger
	threshold time.Duration
	retry     time.Duration
	pausePoll time.Duration

	state     *pipeline.State
	clock     *pipeline.WallClock
	videoPos  *pipeline.Position
	resources pipeline.Resources

	videoTrack media.Track
	audioTrack media.Track
	audioSync  *pipeline.CrossStreamSync
	pumps      []*pipeline.Pump

	mu       sync.Mutex
	cancel   context.CancelFunc
	err      error
	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
}

// Option is a functional option for configuring Player
type Option func(*Player)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Player) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithSyncThreshold sets the allowed audio/video skew
func WithSyncThreshold(d time.Duration) Option {
	return func(p *Player) {
		p.threshold = d
	}
}

// WithSyncRetry sets how long a leading audio stream waits before re-checking
func WithSyncRetry(d time.Duration) Option {
	return func(p *Player) {
		p.retry = d
	}
}

// WithPausePoll sets the pause re-check interval
func WithPausePoll(d time.Duration) Option {
	return func(p *Player) {
		if d > 0 {
			p.pausePoll = d
		}
	}
}

// WithClock replaces the video wall clock
func WithClock(c *pipeline.WallClock) Option {
	return func(p *Player) {
		if c != nil {
			p.clock = c
		}
	}
}

// NewPlayer creates a player in the Idle state
func NewPlayer(provider media.CodecProvider, opener media.SourceOpener, opts ...Option) *Player {
	p := &Player{
		provider:  provider,
		opener:    opener,
		logger:    zap.NewNop(),
		threshold: pipeline.SyncThreshold,
		retry:     pipeline.SyncRetry,
		pausePoll: pipeline.PausePoll,
		state:     pipeline.NewState(),
		clock:     pipeline.NewWallClock(),
		videoPos:  pipeline.NewPosition(),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start acquires both streams and launches their pumps. On failure every
// resource acquired so far is released and the player ends in Stopped.
func (p *Player) Start(ctx context.Context, src media.ByteRange, surface media.Surface, audio media.AudioSinkFactory) error {
	if p.state.Current() != media.StateIdle {
		return media.StartError("", fmt.Errorf("%w: player is %s", media.ErrInvalidTransition, p.state.Current()))
	}
	if surface == nil || audio == nil {
		return media.StartError("", errors.New("surface and audio sink are required"))
	}

	if err := p.start(ctx, src, surface, audio); err != nil {
		p.logger.Error("playback start failed", zap.String("source", src.Path), zap.Error(err))
		p.Stop()
		return err
	}
	return nil
}

func (p *Player) start(ctx context.Context, src media.ByteRange, surface media.Surface, audio media.AudioSinkFactory) error {
	videoSrc, err := p.opener.Open(src)
	if err != nil {
		return media.StartError("video", err)
	}
	p.resources.Add("video source", videoSrc.Release)

	p.videoTrack, err = media.LocateTrack(videoSrc, media.IsAVC, "video")
	if err != nil {
		return media.StartError("video", err)
	}

	audioSrc, err := p.opener.Open(src)
	if err != nil {
		return media.StartError("audio", err)
	}
	p.resources.Add("audio source", audioSrc.Release)

	p.audioTrack, err = media.LocateTrack(audioSrc, media.IsAudio, "audio")
	if err != nil {
		return media.StartError("audio", err)
	}

	videoDec, err := p.startDecoder("video", p.videoTrack)
	if err != nil {
		return err
	}
	audioDec, err := p.startDecoder("audio", p.audioTrack)
	if err != nil {
		return err
	}

	sink, err := audio(p.audioTrack.SampleRate, p.audioTrack.ChannelCount)
	if err != nil {
		return media.StartError("audio", fmt.Errorf("open audio sink: %w", err))
	}
	p.resources.Add("audio sink", sink.Release)

	p.logger.Info("playback starting",
		zap.String("source", src.Path),
		zap.Stringer("video", p.videoTrack),
		zap.Stringer("audio", p.audioTrack))

	p.audioSync = pipeline.NewCrossStreamSync(audioSrc, p.videoPos, p.state,
		pipeline.WithThreshold(p.threshold),
		pipeline.WithRetry(p.retry),
	)

	video := &videoOutput{surface: surface, width: p.videoTrack.Width, height: p.videoTrack.Height, position: p.videoPos}
	videoPump := pipeline.NewPump("video", videoDec, videoSrc,
		pipeline.WithState(p.state),
		pipeline.WithPausePoll(p.pausePoll),
		pipeline.WithBeforeOutput(p.paceVideo),
		pipeline.WithFormatHandler(video.formatChanged),
		pipeline.WithConsumer(video.render),
		pipeline.WithCompletion(p.endOfStream("video")),
		pipeline.WithPumpLogger(p.logger),
	)
	audioPump := pipeline.NewPump("audio", audioDec, audioSrc,
		pipeline.WithState(p.state),
		pipeline.WithPausePoll(p.pausePoll),
		pipeline.WithAfterInput(p.audioSync.Sync),
		pipeline.WithConsumer(func(s media.Sample, _ media.BufferInfo) error {
			_, err := sink.Write(s.Payload)
			return err
		}),
		pipeline.WithCompletion(p.endOfStream("audio")),
		pipeline.WithPumpLogger(p.logger),
	)
	p.pumps = []*pipeline.Pump{videoPump, audioPump}

	if err := p.state.TransitionFrom(media.StateIdle, media.StateRunning); err != nil {
		return media.StartError("", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	for _, pump := range p.pumps {
		p.wg.Add(1)
		go p.run(runCtx, pump)
	}
	return nil
}

func (p *Player) startDecoder(stream string, track media.Track) (media.Codec, error) {
	dec, err := p.provider.NewDecoder(track)
	if err != nil {
		return nil, media.StartError(stream, err)
	}
	p.resources.Add(stream+" decoder", dec.Release)
	if err := dec.Start(); err != nil {
		return nil, media.StartError(stream, fmt.Errorf("%w: start %s decoder: %v", media.ErrCodecCreate, stream, err))
	}
	return dec, nil
}

// run drives one pump; whichever pump ends first, for any reason, ends playback
func (p *Player) run(ctx context.Context, pump *pipeline.Pump) {
	defer p.wg.Done()
	if err := pump.Run(ctx); err != nil {
		p.setErr(media.RunError(pump.Name(), err))
	}
	go p.Stop()
}

func (p *Player) endOfStream(stream string) func() {
	return func() {
		p.logger.Info("end of stream", zap.String("stream", stream))
	}
}

// paceVideo holds a decoded frame until it is due, and keeps holding it while
// paused. A frame still held when playback is cancelled is not rendered.
func (p *Player) paceVideo(ctx context.Context, info media.BufferInfo) error {
	for {
		if err := p.clock.Pace(ctx, info.TimestampMicros); err != nil {
			return err
		}
		if !p.state.Paused() {
			return nil
		}
		for p.state.Paused() {
			if !pipeline.Sleep(ctx, p.pausePoll) {
				return ctx.Err()
			}
		}
	}
}

// Pause freezes both streams and the video clock
func (p *Player) Pause() error {
	if err := p.state.TransitionFrom(media.StateRunning, media.StatePaused); err != nil {
		return err
	}
	p.clock.Pause()
	p.logger.Info("playback paused", zap.Int64("position_us", p.videoPos.Load()))
	return nil
}

// Resume continues from where Pause left off
func (p *Player) Resume() error {
	if err := p.state.TransitionFrom(media.StatePaused, media.StateRunning); err != nil {
		return err
	}
	p.clock.Resume()
	p.logger.Info("playback resumed", zap.Int64("position_us", p.videoPos.Load()))
	return nil
}

// Stop ends playback and releases every resource exactly once. It is safe to
// call repeatedly and concurrently; every caller returns after teardown.
func (p *Player) Stop() error {
	p.stopOnce.Do(func() {
		from := p.state.Current()
		if err := p.state.Transition(media.StateStopping); err != nil {
			p.logger.Warn("unexpected state at stop", zap.Stringer("state", from), zap.Error(err))
		}

		p.mu.Lock()
		if p.cancel != nil {
			p.cancel()
		}
		p.mu.Unlock()

		p.wg.Wait()

		if err := p.resources.Release(p.logger); err != nil {
			p.logger.Warn("playback cleanup incomplete", zap.Error(err))
		}

		p.state.Transition(media.StateStopped)
		p.logger.Info("playback stopped", zap.Int64("skipped_audio", p.Skipped()))
		close(p.done)
	})
	return nil
}

// Done is closed once playback has stopped and resources are released
func (p *Player) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until playback stops and returns the first steady-state error
func (p *Player) Wait() error {
	<-p.done
	return p.Err()
}

// Err returns the first steady-state error, if any
func (p *Player) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Player) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
}

// State returns the current pipeline state
func (p *Player) State() media.PipelineState {
	return p.state.Current()
}

// Position returns the timestamp of the last rendered video frame, or -1
func (p *Player) Position() time.Duration {
	ts := p.videoPos.Load()
	if ts < 0 {
		return -1
	}
	return time.Duration(ts) * time.Microsecond
}

// Progress returns how far video playback has got, as a percentage of the track duration
func (p *Player) Progress() float64 {
	ts := p.videoPos.Load()
	if ts <= 0 || p.videoTrack.Duration <= 0 {
		return 0
	}
	pct := float64(ts) / float64(p.videoTrack.Duration.Microseconds()) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Skipped returns how many audio samples were dropped to catch up with video
func (p *Player) Skipped() int64 {
	if p.audioSync == nil {
		return 0
	}
	return p.audioSync.Skipped()
}

// Stats returns the buffer counters of each pump
func (p *Player) Stats() map[string]pipeline.PumpStats {
	stats := make(map[string]pipeline.PumpStats, len(p.pumps))
	for _, pump := range p.pumps {
		stats[pump.Name()] = pump.Stats()
	}
	return stats
}

// videoOutput turns decoded frames into surface renders
type videoOutput struct {
	surface  media.Surface
	width    int
	height   int
	position *pipeline.Position
}

func (v *videoOutput) formatChanged(f media.Format) error {
	if f.Width > 0 && f.Height > 0 {
		v.width, v.height = f.Width, f.Height
	}
	return nil
}

func (v *videoOutput) render(s media.Sample, _ media.BufferInfo) error {
	frame := media.VideoFrame{
		TimestampMicros: s.TimestampMicros,
		Width:           v.width,
		Height:          v.height,
		Pixels:          s.Payload,
	}
	if err := v.surface.Render(frame); err != nil {
		return fmt.Errorf("render frame at %dus: %w", s.TimestampMicros, err)
	}
	v.position.Store(s.TimestampMicros)
	return nil
}
