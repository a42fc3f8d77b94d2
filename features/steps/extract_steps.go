//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"audio-extractor/application/extract"
	"audio-extractor/cmd"
	"audio-extractor/domain/media"
	"audio-extractor/domain/media/mediatest"

	"github.com/cucumber/godog"
)

// extractContext holds test state for extract scenarios
type extractContext struct {
	tempDir     string
	sourceDir   string
	outputDir   string
	streaming   bool
	opener      *mediatest.Opener
	muxers      *mediatest.MuxerFactory
	fileChecker *mockFileChecker
	result      *extract.Result
	err         error
}

// recordingExtractor keeps the result of the wrapped extractor for later assertions
type recordingExtractor struct {
	*extract.Extractor
	ctx *extractContext
}

func (r *recordingExtractor) Extract(ctx context.Context, src media.ByteRange, outputDir string) (*extract.Result, error) {
	result, err := r.Extractor.Extract(ctx, src, outputDir)
	r.ctx.result = result
	return result, err
}

// SharedExtractContext is reset before each scenario via Before hook
var SharedExtractContext *extractContext

func InitializeExtractScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "extract-test-*")
		if err != nil {
			return c, err
		}
		SharedExtractContext = &extractContext{
			tempDir:     tempDir,
			sourceDir:   filepath.Join(tempDir, "recordings"),
			outputDir:   filepath.Join(tempDir, "out"),
			muxers:      &mediatest.MuxerFactory{},
			fileChecker: &mockFileChecker{existingFiles: make(map[string]bool)},
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if SharedExtractContext != nil && SharedExtractContext.tempDir != "" {
			os.RemoveAll(SharedExtractContext.tempDir)
		}
		return c, nil
	})

	ctx.Step(`^a source container "([^"]*)" with an AVC video track and an AAC audio track of (\d+) samples at (\d+) Hz stereo$`, aSourceWithVideoAndAudio)
	ctx.Step(`^a source container "([^"]*)" with only an AVC video track$`, aSourceWithOnlyVideo)
	ctx.Step(`^a source container "([^"]*)" in the source directory with an AAC audio track of (\d+) samples at (\d+) Hz mono$`, aSourceInSourceDirectory)
	ctx.Step(`^streaming extraction is enabled$`, streamingExtractionIsEnabled)
	ctx.Step(`^I run the extract command on "([^"]*)"$`, iRunTheExtractCommandOn)
	ctx.Step(`^the extract command should succeed$`, theExtractCommandShouldSucceed)
	ctx.Step(`^the extract command should fail with "([^"]*)"$`, theExtractCommandShouldFailWith)
	ctx.Step(`^the output directory should contain "([^"]*)"$`, theOutputDirectoryShouldContain)
	ctx.Step(`^the muxed track should be AAC-LC at (\d+) bps$`, theMuxedTrackShouldBeAACLC)
	ctx.Step(`^the muxed sample count should equal the decoded PCM chunk count$`, theMuxedSampleCountShouldEqualDecodedChunks)
	ctx.Step(`^no output file should be created$`, noOutputFileShouldBeCreated)
	ctx.Step(`^the output should contain the source directory path$`, theOutputShouldContainTheSourceDirectoryPath)
}

var videoTrack = media.Track{Index: 0, MimeType: media.MimeTypeAVC, Width: 4, Height: 2, Duration: time.Second}

func aSourceWithVideoAndAudio(name string, samples, rate int) error {
	e := SharedExtractContext
	audio := media.Track{Index: 1, MimeType: media.MimeTypeAAC, SampleRate: rate, ChannelCount: 2, Duration: time.Second}
	e.opener = &mediatest.Opener{New: func() *mediatest.Source {
		return mediatest.NewSource(videoTrack, audio).
			WithSamples(0, mediatest.Samples(25, 40*time.Millisecond, 24)).
			WithSamples(1, mediatest.Samples(samples, 23*time.Millisecond, 32))
	}}
	e.fileChecker.existingFiles[name] = true
	return nil
}

func aSourceWithOnlyVideo(name string) error {
	e := SharedExtractContext
	e.opener = &mediatest.Opener{New: func() *mediatest.Source {
		return mediatest.NewSource(videoTrack).WithSamples(0, mediatest.Samples(25, 40*time.Millisecond, 24))
	}}
	e.fileChecker.existingFiles[name] = true
	return nil
}

func aSourceInSourceDirectory(name string, samples, rate int) error {
	e := SharedExtractContext
	audio := media.Track{Index: 0, MimeType: media.MimeTypeAAC, SampleRate: rate, ChannelCount: 1, Duration: time.Second}
	e.opener = &mediatest.Opener{New: func() *mediatest.Source {
		return mediatest.NewSource(audio).WithSamples(0, mediatest.Samples(samples, 21*time.Millisecond, 16))
	}}
	e.fileChecker.existingFiles[filepath.Join(e.sourceDir, name)] = true
	return nil
}

func streamingExtractionIsEnabled() error {
	SharedExtractContext.streaming = true
	return nil
}

func iRunTheExtractCommandOn(name string) error {
	e := SharedExtractContext
	if e.opener == nil {
		e.opener = &mediatest.Opener{Err: fmt.Errorf("no such file")}
	}

	extractor := &recordingExtractor{
		Extractor: extract.NewExtractor(&mediatest.Provider{}, e.opener, e.muxers.Create,
			extract.WithStreaming(e.streaming),
		),
		ctx: e,
	}

	lastOutput = &bytes.Buffer{}
	e.err = cmd.RunExtractWithDependencies(
		context.Background(),
		extractor,
		e.fileChecker,
		e.sourceDir,
		e.outputDir,
		media.ByteRange{Path: name},
		lastOutput,
	)
	return nil
}

func theExtractCommandShouldSucceed() error {
	if err := SharedExtractContext.err; err != nil {
		return fmt.Errorf("expected extract to succeed, got: %w", err)
	}
	return nil
}

func theExtractCommandShouldFailWith(text string) error {
	return expectErrorContaining(SharedExtractContext.err, text)
}

func theOutputDirectoryShouldContain(name string) error {
	e := SharedExtractContext
	want := filepath.Join(e.outputDir, name)
	for _, m := range e.muxers.Created() {
		if m.Path == want && m.Closes.Load() == 1 {
			return nil
		}
	}
	return fmt.Errorf("no finalized muxer wrote %s", want)
}

func theMuxedTrackShouldBeAACLC(bitRate int) error {
	muxers := SharedExtractContext.muxers.Created()
	if len(muxers) != 1 {
		return fmt.Errorf("expected exactly one output container, got %d", len(muxers))
	}
	format := muxers[0].Format()
	if format == nil {
		return fmt.Errorf("no track was added to the output")
	}
	if muxers[0].AddTrackCalls.Load() != 1 {
		return fmt.Errorf("expected one track, AddTrack called %d times", muxers[0].AddTrackCalls.Load())
	}
	if format.MimeType != media.MimeTypeAAC || format.AACProfile != media.AACProfileLC {
		return fmt.Errorf("expected AAC-LC, got %s profile %d", format.MimeType, format.AACProfile)
	}
	if format.BitRate != bitRate {
		return fmt.Errorf("expected %d bps, got %d", bitRate, format.BitRate)
	}
	return nil
}

func theMuxedSampleCountShouldEqualDecodedChunks() error {
	e := SharedExtractContext
	if e.result == nil {
		return fmt.Errorf("no extraction result")
	}
	muxed := len(e.muxers.Created()[0].Samples())
	if muxed != e.result.DecodedChunks {
		return fmt.Errorf("muxed %d samples, decoded %d chunks", muxed, e.result.DecodedChunks)
	}
	return nil
}

func noOutputFileShouldBeCreated() error {
	e := SharedExtractContext
	if n := len(e.muxers.Created()); n != 0 {
		return fmt.Errorf("expected no output container, %d created", n)
	}
	if _, err := os.Stat(filepath.Join(e.outputDir, extract.OutputFileName)); !os.IsNotExist(err) {
		return fmt.Errorf("%s exists", extract.OutputFileName)
	}
	return nil
}

func theOutputShouldContainTheSourceDirectoryPath() error {
	if !strings.Contains(lastOutput.String(), SharedExtractContext.sourceDir) {
		return fmt.Errorf("expected output to mention %s, got:\n%s", SharedExtractContext.sourceDir, lastOutput.String())
	}
	return nil
}
