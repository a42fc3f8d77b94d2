//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"audio-extractor/application/playback"
	"audio-extractor/cmd"
	"audio-extractor/domain/media"
	"audio-extractor/domain/media/mediatest"

	"github.com/cucumber/godog"
)

// playbackContext holds test state for playback scenarios
type playbackContext struct {
	clipLength time.Duration
	frames     int
	opener     *mediatest.Opener
	provider   *mediatest.Provider
	surface    *mediatest.Surface
	sinks      *mediatest.AudioSinks
	player     *playback.Player
	elapsed    time.Duration
	err        error
}

// SharedPlaybackContext is reset before each scenario via Before hook
var SharedPlaybackContext *playbackContext

func InitializePlaybackScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		SharedPlaybackContext = &playbackContext{
			provider: &mediatest.Provider{},
			surface:  &mediatest.Surface{},
			sinks:    &mediatest.AudioSinks{},
		}
		return c, nil
	})

	ctx.Step(`^a (\d+) ms clip with (\d+) video frames and a longer audio track$`, aClipWithFrames)
	ctx.Step(`^a clip with only an audio track$`, aClipWithOnlyAudio)
	ctx.Step(`^I play the clip, pause after (\d+) ms and resume after (\d+) ms$`, iPlayPauseAndResume)
	ctx.Step(`^I play the clip and stop after (\d+) ms$`, iPlayAndStop)
	ctx.Step(`^I try to play the clip$`, iTryToPlay)
	ctx.Step(`^playback should take at least (\d+) ms$`, playbackShouldTakeAtLeast)
	ctx.Step(`^every video frame should have been rendered$`, everyVideoFrameShouldHaveBeenRendered)
	ctx.Step(`^playback should have stopped before the end of the clip$`, playbackShouldHaveStoppedEarly)
	ctx.Step(`^every source, decoder and audio sink should be released exactly once$`, everythingReleasedOnce)
	ctx.Step(`^playback should fail with "([^"]*)"$`, playbackShouldFailWith)
}

func aClipWithFrames(lengthMs, frames int) error {
	p := SharedPlaybackContext
	p.clipLength = time.Duration(lengthMs) * time.Millisecond
	p.frames = frames
	interval := p.clipLength / time.Duration(frames)
	audioInterval := 20 * time.Millisecond
	audioSamples := int(p.clipLength/audioInterval) + 10

	p.opener = &mediatest.Opener{New: func() *mediatest.Source {
		return mediatest.NewSource(
			media.Track{Index: 0, MimeType: media.MimeTypeAVC, Width: 4, Height: 2, Duration: p.clipLength},
			media.Track{Index: 1, MimeType: media.MimeTypeAAC, SampleRate: 44100, ChannelCount: 2, Duration: p.clipLength},
		).
			WithSamples(0, mediatest.Samples(frames, interval, 24)).
			WithSamples(1, mediatest.Samples(audioSamples, audioInterval, 16))
	}}
	return nil
}

func aClipWithOnlyAudio() error {
	p := SharedPlaybackContext
	p.opener = &mediatest.Opener{New: func() *mediatest.Source {
		return mediatest.NewSource(media.Track{Index: 0, MimeType: media.MimeTypeAAC, SampleRate: 44100, ChannelCount: 2}).
			WithSamples(0, mediatest.Samples(10, 20*time.Millisecond, 16))
	}}
	return nil
}

// play runs the play command, feeding script's lines to its controls at the given offsets
func play(script map[time.Duration]string) {
	p := SharedPlaybackContext
	p.player = playback.NewPlayer(p.provider, p.opener, playback.WithPausePoll(10*time.Millisecond))

	controls, feed := io.Pipe()
	go func() {
		start := time.Now()
		for _, at := range sortedOffsets(script) {
			time.Sleep(time.Until(start.Add(at)))
			if _, err := io.WriteString(feed, script[at]+"\n"); err != nil {
				return
			}
		}
	}()
	defer feed.Close()

	lastOutput = &bytes.Buffer{}
	started := time.Now()
	p.err = cmd.RunPlayWithDependencies(
		context.Background(),
		p.player,
		&mockFileChecker{existingFiles: map[string]bool{"clip.mp4": true}},
		"",
		media.ByteRange{Path: "clip.mp4"},
		p.surface,
		p.sinks.Open,
		controls,
		100*time.Millisecond,
		lastOutput,
	)
	p.elapsed = time.Since(started)
}

func sortedOffsets(script map[time.Duration]string) []time.Duration {
	var offsets []time.Duration
	for at := range script {
		i := len(offsets)
		offsets = append(offsets, at)
		for i > 0 && offsets[i-1] > at {
			offsets[i], offsets[i-1] = offsets[i-1], offsets[i]
			i--
		}
	}
	return offsets
}

func iPlayPauseAndResume(pauseAfterMs, resumeAfterMs int) error {
	pauseAt := time.Duration(pauseAfterMs) * time.Millisecond
	play(map[time.Duration]string{
		pauseAt: "p",
		pauseAt + time.Duration(resumeAfterMs)*time.Millisecond: "p",
	})
	if err := SharedPlaybackContext.err; err != nil {
		return fmt.Errorf("playback failed: %w", err)
	}
	return nil
}

func iPlayAndStop(afterMs int) error {
	play(map[time.Duration]string{time.Duration(afterMs) * time.Millisecond: "q"})
	if err := SharedPlaybackContext.err; err != nil {
		return fmt.Errorf("playback failed: %w", err)
	}
	return nil
}

func iTryToPlay() error {
	play(nil)
	return nil
}

func playbackShouldTakeAtLeast(ms int) error {
	want := time.Duration(ms) * time.Millisecond
	if SharedPlaybackContext.elapsed < want {
		return fmt.Errorf("playback took %v, want at least %v", SharedPlaybackContext.elapsed, want)
	}
	return nil
}

func everyVideoFrameShouldHaveBeenRendered() error {
	p := SharedPlaybackContext
	frames := p.surface.Frames()
	if len(frames) != p.frames {
		return fmt.Errorf("rendered %d frames, want %d", len(frames), p.frames)
	}
	for i, f := range frames {
		if want := int64(i) * (p.clipLength / time.Duration(p.frames)).Microseconds(); f.TimestampMicros != want {
			return fmt.Errorf("frame %d has timestamp %d, want %d", i, f.TimestampMicros, want)
		}
	}
	return nil
}

func playbackShouldHaveStoppedEarly() error {
	p := SharedPlaybackContext
	if p.player.State() != media.StateStopped {
		return fmt.Errorf("player is %s, want Stopped", p.player.State())
	}
	if got := len(p.surface.Frames()); got >= p.frames {
		return fmt.Errorf("rendered all %d frames, want playback cut short", got)
	}
	if p.elapsed >= p.clipLength {
		return fmt.Errorf("playback ran %v of a %v clip", p.elapsed, p.clipLength)
	}
	return nil
}

func everythingReleasedOnce() error {
	p := SharedPlaybackContext
	for i, s := range p.opener.Sources() {
		if got := s.Releases.Load(); got != 1 {
			return fmt.Errorf("source %d released %d times", i, got)
		}
	}
	for _, c := range p.provider.Decoders() {
		if got := c.Releases.Load(); got != 1 {
			return fmt.Errorf("%s released %d times", c.Name, got)
		}
	}
	for i, s := range p.sinks.Opened() {
		if got := s.Releases.Load(); got != 1 {
			return fmt.Errorf("audio sink %d released %d times", i, got)
		}
	}
	return nil
}

func playbackShouldFailWith(text string) error {
	return expectErrorContaining(SharedPlaybackContext.err, text)
}
