package mp4

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"audio-extractor/domain/media"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var aacFormat = media.Format{
	MimeType:     media.MimeTypeAAC,
	SampleRate:   44100,
	ChannelCount: 2,
	BitRate:      128000,
	AACProfile:   media.AACProfileLC,
}

func accessUnit(i int) []byte {
	au := make([]byte, 64+i)
	for j := range au {
		au[j] = byte(i + j)
	}
	return au
}

// writeM4A writes n AAC access units 23ms apart and returns the file path
func writeM4A(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "result.m4a")

	m, err := Create(path)
	require.NoError(t, err)

	track, err := m.AddTrack(aacFormat)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		require.NoError(t, m.WriteSample(track, media.Sample{TimestampMicros: int64(i) * 23_000, Payload: accessUnit(i)}, 0))
	}
	require.NoError(t, m.Close())
	return path
}

// openM4A opens path through an Opener; the test owns and closes the file
func openM4A(t *testing.T, path string) media.SampleSource {
	t.Helper()
	opener, f, err := OpenFile(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	src, err := opener.Open(media.ByteRange{Path: path})
	require.NoError(t, err)
	return src
}

func TestMuxer_RoundTrip(t *testing.T) {
	path := writeM4A(t, 20)

	src := openM4A(t, path)
	defer src.Release()

	tracks := src.Tracks()
	require.Len(t, tracks, 1)
	assert.Equal(t, media.MimeTypeAAC, tracks[0].MimeType)
	assert.Equal(t, 44100, tracks[0].SampleRate)
	assert.Equal(t, 2, tracks[0].ChannelCount)
	assert.NotEmpty(t, tracks[0].CodecConfig)

	_, err := media.LocateTrack(src, media.IsAVC, "video")
	assert.ErrorIs(t, err, media.ErrNoSuchTrack)

	track, err := media.LocateTrack(src, media.IsAudio, "audio")
	require.NoError(t, err)
	assert.Equal(t, 0, track.Index)
	assert.Equal(t, int64(-1), src.CurrentTimestamp())

	var got [][]byte
	last := int64(-1)
	for {
		s, err := src.NextSample()
		require.NoError(t, err)
		if s.EndOfStream {
			break
		}
		assert.GreaterOrEqual(t, s.TimestampMicros, last, "timestamps must not decrease")
		assert.Equal(t, s.TimestampMicros, src.CurrentTimestamp())
		last = s.TimestampMicros

		var pkts mpeg4audio.ADTSPackets
		require.NoError(t, pkts.Unmarshal(s.Payload), "sample %d is not ADTS framed", len(got))
		require.Len(t, pkts, 1)
		got = append(got, pkts[0].AU)
		src.Advance()
	}

	require.Len(t, got, 20)
	for i, au := range got {
		assert.True(t, bytes.Equal(accessUnit(i), au), "access unit %d differs", i)
	}

	// The terminal value repeats
	s, err := src.NextSample()
	require.NoError(t, err)
	assert.True(t, s.EndOfStream)
	assert.Equal(t, int64(-1), s.TimestampMicros)
	assert.Empty(t, s.Payload)
	assert.Equal(t, int64(-1), src.PeekTimestamp())
	assert.False(t, src.Advance())
}

func TestSource_PeekDoesNotConsume(t *testing.T) {
	path := writeM4A(t, 3)

	src := openM4A(t, path)
	defer src.Release()
	require.NoError(t, src.SelectTrack(0))

	peeked := src.PeekTimestamp()
	s, err := src.NextSample()
	require.NoError(t, err)
	assert.Equal(t, peeked, s.TimestampMicros)
	assert.True(t, s.KeyFrame)

	again, err := src.NextSample()
	require.NoError(t, err)
	assert.Equal(t, s.Payload, again.Payload, "NextSample without Advance must return the same sample")

	assert.True(t, src.Advance())
	assert.Greater(t, src.PeekTimestamp(), peeked)
}

func TestSource_SelectTrackOnce(t *testing.T) {
	src := openM4A(t, writeM4A(t, 1))
	defer src.Release()

	require.NoError(t, src.SelectTrack(0))
	assert.ErrorIs(t, src.SelectTrack(0), media.ErrTrackAlreadySelected)
}

func TestSource_OpenRange(t *testing.T) {
	path := writeM4A(t, 5)
	body, err := os.ReadFile(path)
	require.NoError(t, err)

	prefix := bytes.Repeat([]byte{0xAB}, 333)
	suffix := bytes.Repeat([]byte{0xCD}, 77)
	blob := append(append(append([]byte{}, prefix...), body...), suffix...)

	src, err := OpenRange(bytes.NewReader(blob), int64(len(prefix)), int64(len(body)))
	require.NoError(t, err)
	require.Len(t, src.Tracks(), 1)

	_, err = media.LocateTrack(src, media.IsAudio, "audio")
	require.NoError(t, err)

	count := 0
	for {
		s, err := src.NextSample()
		require.NoError(t, err)
		if s.EndOfStream {
			break
		}
		count++
		src.Advance()
	}
	assert.Equal(t, 5, count)

	// Release never closes a caller-owned reader, and is idempotent
	assert.NoError(t, src.Release())
	assert.NoError(t, src.Release())
}

func TestSource_ReleaseLeavesFileOpen(t *testing.T) {
	path := writeM4A(t, 4)
	opener, f, err := OpenFile(path, nil)
	require.NoError(t, err)
	defer f.Close()

	r := media.ByteRange{Path: path}
	video, err := opener.Open(r)
	require.NoError(t, err)
	audio, err := opener.Open(r)
	require.NoError(t, err)

	require.NoError(t, video.Release())
	require.NoError(t, video.Release())

	// The second source still reads through the shared handle
	_, err = media.LocateTrack(audio, media.IsAudio, "audio")
	require.NoError(t, err)
	s, err := audio.NextSample()
	require.NoError(t, err)
	assert.False(t, s.EndOfStream)
	require.NoError(t, audio.Release())

	// Only the owner's Close releases the handle
	buf := make([]byte, 8)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.ErrorIs(t, f.Close(), os.ErrClosed)
}

func TestSource_OpenFailures(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.mp4")
	require.NoError(t, os.WriteFile(garbage, bytes.Repeat([]byte("not a movie "), 100), 0644))

	_, _, err := OpenFile(filepath.Join(dir, "missing.mp4"), nil)
	assert.ErrorIs(t, err, media.ErrOpenSource, "missing file")

	opener, f, err := OpenFile(garbage, nil)
	require.NoError(t, err)
	defer f.Close()

	tests := []struct {
		name string
		r    media.ByteRange
	}{
		{"not mp4", media.ByteRange{Path: garbage}},
		{"range past end", media.ByteRange{Path: garbage, Offset: 5000}},
		{"negative offset", media.ByteRange{Path: garbage, Offset: -1, Length: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := opener.Open(tt.r)
			assert.ErrorIs(t, err, media.ErrOpenSource)
		})
	}

	_, err = Opener{}.Open(media.ByteRange{Path: garbage})
	assert.ErrorIs(t, err, media.ErrOpenSource, "opener without a reader")
}

func TestMuxer_Contract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "result.m4a")
	m, err := Create(path)
	require.NoError(t, err)

	err = m.WriteSample(0, media.Sample{Payload: []byte{1}}, 0)
	assert.Error(t, err, "write before AddTrack")

	_, err = m.AddTrack(media.Format{MimeType: media.MimeTypeAVC, Width: 2, Height: 2})
	assert.Error(t, err, "only AAC output is supported")

	track, err := m.AddTrack(aacFormat)
	require.NoError(t, err)
	_, err = m.AddTrack(aacFormat)
	assert.ErrorIs(t, err, media.ErrTrackAlreadyAdded)

	assert.Error(t, m.WriteSample(track+1, media.Sample{Payload: []byte{1}}, 0), "unknown track")

	require.NoError(t, m.WriteSample(track, media.Sample{TimestampMicros: 46_000, Payload: accessUnit(0)}, 0))
	assert.NoError(t, m.WriteSample(track, media.Sample{TimestampMicros: 0, Payload: []byte{0x12, 0x10}}, media.FlagCodecConfig), "codec config is skipped")
	assert.ErrorIs(t, m.WriteSample(track, media.Sample{TimestampMicros: 23_000, Payload: accessUnit(1)}, 0), media.ErrNonMonotonic)
	assert.Equal(t, 1, m.Written())

	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Close(), media.ErrMuxerClosed)
	assert.ErrorIs(t, m.WriteSample(track, media.Sample{TimestampMicros: 92_000, Payload: accessUnit(2)}, 0), media.ErrMuxerClosed)
	assert.FileExists(t, path)
}

func TestMuxer_AbortRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.m4a")
	m, err := Create(path)
	require.NoError(t, err)
	assert.Equal(t, path, m.Path())

	track, err := m.AddTrack(aacFormat)
	require.NoError(t, err)
	require.NoError(t, m.WriteSample(track, media.Sample{Payload: accessUnit(0)}, 0))

	require.NoError(t, m.Abort())
	assert.NoFileExists(t, path)
	assert.NoError(t, m.Abort(), "abort is idempotent")

	assert.ErrorIs(t, m.WriteSample(track, media.Sample{Payload: accessUnit(1)}, 0), media.ErrMuxerClosed)
}

func TestIsIDR(t *testing.T) {
	tests := []struct {
		name string
		au   []byte
		want bool
	}{
		{"idr slice", []byte{0, 0, 0, 1, 0x67, 0x42, 0, 0, 0, 1, 0x68, 0xCE, 0, 0, 0, 1, 0x65, 0x88}, true},
		{"non-idr slice", []byte{0, 0, 0, 1, 0x41, 0x9A}, false},
		{"not annex-b", []byte{0x41, 0x9A}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsIDR(tt.au); got != tt.want {
				t.Errorf("IsIDR() = %v, want %v", got, tt.want)
			}
		})
	}
}
