package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"audio-extractor/domain/media"
	"audio-extractor/domain/media/mediatest"
)

func TestRunProbeWithDependencies(t *testing.T) {
	tests := []struct {
		name         string
		tracks       []media.Track
		wantLines    []string
		wantWarnings []string
	}{
		{
			name:   "video and audio",
			tracks: []media.Track{testVideoTrack, testAudioTrack},
			wantLines: []string{
				"2 track(s)",
				"video/avc",
				"4x2",
				"44100 Hz, 2 ch",
				"extract, play (audio)",
				"play (video)",
			},
		},
		{
			name: "first audio track wins",
			tracks: []media.Track{
				{Index: 0, MimeType: media.MimeTypeMP3, SampleRate: 22050, ChannelCount: 1, Duration: time.Minute},
				{Index: 1, MimeType: media.MimeTypeAAC, SampleRate: 44100, ChannelCount: 2, Duration: time.Minute},
			},
			wantLines:    []string{"22050 Hz, 1 ch  00:01:00  extract, play (audio)"},
			wantWarnings: []string{"No AVC video track"},
		},
		{
			name:         "video only",
			tracks:       []media.Track{testVideoTrack},
			wantWarnings: []string{"No audio track"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opener := &mediatest.Opener{New: func() *mediatest.Source { return mediatest.NewSource(tt.tracks...) }}
			var out bytes.Buffer

			err := RunProbeWithDependencies(opener, newMockFileChecker("/media/clip.mp4"), "", media.ByteRange{Path: "/media/clip.mp4"}, &out)
			if err != nil {
				t.Fatalf("RunProbeWithDependencies() unexpected error: %v", err)
			}

			text := out.String()
			for _, want := range append(tt.wantLines, tt.wantWarnings...) {
				if !strings.Contains(text, want) {
					t.Errorf("output missing %q:\n%s", want, text)
				}
			}
			if len(tt.wantWarnings) == 0 && strings.Contains(text, "will fail") {
				t.Errorf("unexpected warning:\n%s", text)
			}

			src := opener.Sources()[0]
			if got := src.Releases.Load(); got != 1 {
				t.Errorf("source released %d times, want 1", got)
			}
		})
	}
}

func TestRunProbeWithDependencies_OpenFailure(t *testing.T) {
	opener := &mediatest.Opener{Err: errors.New("not an mp4")}

	err := RunProbeWithDependencies(opener, newMockFileChecker("/media/clip.txt"), "", media.ByteRange{Path: "/media/clip.txt"}, &bytes.Buffer{})
	if !errors.Is(err, media.ErrOpenSource) {
		t.Errorf("RunProbeWithDependencies() error = %v, want %v", err, media.ErrOpenSource)
	}
}
