package ffmpeg

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"testing"

	"audio-extractor/domain/media"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
)

func readAll(t *testing.T, f framer, data []byte) []frame {
	t.Helper()
	r := bufio.NewReader(bytes.NewReader(data))
	var frames []frame
	for {
		fr, err := f.next(r)
		if errors.Is(err, io.EOF) {
			return frames
		}
		if err != nil {
			t.Fatalf("next() error = %v", err)
		}
		frames = append(frames, fr)
	}
}

func TestPCMFramer(t *testing.T) {
	f := newPCMFramer(1000, 1)
	f.input(5000)
	f.input(9000)

	// two full chunks, a short tail and one stray byte
	data := make([]byte, 2048*2+101)
	for i := range data {
		data[i] = byte(i)
	}

	frames := readAll(t, f, data)

	want := []struct {
		size int
		ts   int64
	}{
		{2048, 5000},
		{2048, 5000 + 1_024_000},
		{100, 5000 + 2_048_000},
	}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d", len(frames), len(want))
	}
	for i, w := range want {
		if len(frames[i].payload) != w.size {
			t.Errorf("frame %d size = %d, want %d", i, len(frames[i].payload), w.size)
		}
		if frames[i].ts != w.ts {
			t.Errorf("frame %d ts = %d, want %d", i, frames[i].ts, w.ts)
		}
	}
	if !bytes.Equal(frames[1].payload, data[2048:4096]) {
		t.Error("frame 1 payload differs from input")
	}
}

func TestRawVideoFramer_PresentationOrder(t *testing.T) {
	f := newRawVideoFramer(2, 1)

	// decode order I P B
	f.input(0)
	f.input(66_000)
	f.input(33_000)

	data := make([]byte, 6*3+3)
	frames := readAll(t, f, data)

	want := []int64{0, 33_000, 66_000}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d", len(frames), len(want))
	}
	for i, ts := range want {
		if frames[i].ts != ts {
			t.Errorf("frame %d ts = %d, want %d", i, frames[i].ts, ts)
		}
		if len(frames[i].payload) != 6 {
			t.Errorf("frame %d size = %d, want 6", i, len(frames[i].payload))
		}
	}
}

func adtsStream(t *testing.T, sampleRate, channels int, aus ...[]byte) []byte {
	t.Helper()
	var out []byte
	for _, au := range aus {
		buf, err := mpeg4audio.ADTSPackets{{
			Type:         mpeg4audio.ObjectTypeAACLC,
			SampleRate:   sampleRate,
			ChannelCount: channels,
			AU:           au,
		}}.Marshal()
		if err != nil {
			t.Fatalf("marshal adts: %v", err)
		}
		out = append(out, buf...)
	}
	return out
}

func TestADTSFramer(t *testing.T) {
	f := newADTSFramer(media.Format{MimeType: media.MimeTypeAAC, SampleRate: 48000, ChannelCount: 2, BitRate: 96000})
	f.input(1000)
	f.input(2000)

	aus := [][]byte{{1, 2, 3}, {4, 5, 6, 7}, {8}}
	frames := readAll(t, f, adtsStream(t, 48000, 2, aus...))

	if len(frames) != 4 {
		t.Fatalf("got %d frames, want format + 3 access units", len(frames))
	}

	format := frames[0].format
	if format == nil {
		t.Fatal("first frame must carry the output format")
	}
	if format.SampleRate != 48000 || format.ChannelCount != 2 {
		t.Errorf("format = %d Hz %dch, want 48000 Hz 2ch", format.SampleRate, format.ChannelCount)
	}
	if format.BitRate != 96000 {
		t.Errorf("format.BitRate = %d, want 96000", format.BitRate)
	}
	if format.AACProfile != media.AACProfileLC {
		t.Errorf("format.AACProfile = %d, want %d", format.AACProfile, media.AACProfileLC)
	}
	if len(format.CodecConfig) == 0 {
		t.Error("format.CodecConfig is empty")
	}

	wantTS := []int64{1000, 1000 + 21_333, 1000 + 42_666}
	for i, au := range aus {
		fr := frames[i+1]
		if !bytes.Equal(fr.payload, au) {
			t.Errorf("access unit %d = %v, want %v", i, fr.payload, au)
		}
		if fr.ts != wantTS[i] {
			t.Errorf("access unit %d ts = %d, want %d", i, fr.ts, wantTS[i])
		}
		if !fr.flags.Has(media.FlagKeyFrame) {
			t.Errorf("access unit %d is not flagged as a key frame", i)
		}
	}
}

func TestReadADTSFrame_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantEOF bool
	}{
		{"empty", nil, true},
		{"short header", []byte{0xFF, 0xF1, 0x50}, true},
		{"no sync word", []byte("hello, world"), false},
		{"truncated body", adtsStream(t, 44100, 2, make([]byte, 32))[:20], true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readADTSFrame(bufio.NewReader(bytes.NewReader(tt.data)))
			if err == nil {
				t.Fatal("readADTSFrame() error = nil")
			}
			if got := errors.Is(err, io.EOF); got != tt.wantEOF {
				t.Errorf("readADTSFrame() error = %v, want EOF %v", err, tt.wantEOF)
			}
		})
	}
}
