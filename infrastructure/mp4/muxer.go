package mp4

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"audio-extractor/domain/media"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	gomp4 "github.com/yapingcat/gomedia/go-mp4"
	"go.uber.org/zap"
)

// Muxer writes one AAC track into an MP4 (.m4a) file
type Muxer struct {
	path   string
	file   *os.File
	mux    *gomp4.Movmuxer
	logger *zap.Logger

	mu      sync.Mutex
	format  media.Format
	trackID uint32
	added   bool
	closed  bool
	lastTS  int64
	written int
}

// MuxerOption is a functional option for configuring Muxer
type MuxerOption func(*Muxer)

// WithMuxerLogger sets the logger
func WithMuxerLogger(l *zap.Logger) MuxerOption {
	return func(m *Muxer) {
		if l != nil {
			m.logger = l
		}
	}
}

// Create creates or truncates the file at path
func Create(path string, opts ...MuxerOption) (*Muxer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}

	mux, err := gomp4.CreateMp4Muxer(f)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("create mp4 muxer: %w", err)
	}

	m := &Muxer{
		path:   path,
		file:   f,
		mux:    mux,
		logger: zap.NewNop(),
		lastTS: -1,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// NewMuxerFactory returns a media.MuxerFactory creating Muxers
func NewMuxerFactory(opts ...MuxerOption) media.MuxerFactory {
	return func(path string) (media.Muxer, error) {
		return Create(path, opts...)
	}
}

// Path returns the output file path
func (m *Muxer) Path() string {
	return m.path
}

// AddTrack implements media.Muxer
func (m *Muxer) AddTrack(format media.Format) (media.TrackHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, media.ErrMuxerClosed
	}
	if m.added {
		return 0, media.ErrTrackAlreadyAdded
	}
	if format.MimeType != media.MimeTypeAAC {
		return 0, fmt.Errorf("unsupported output codec %q", format.MimeType)
	}
	if format.SampleRate <= 0 || format.ChannelCount <= 0 {
		return 0, fmt.Errorf("invalid audio format: %d Hz, %d channels", format.SampleRate, format.ChannelCount)
	}

	m.trackID = m.mux.AddAudioTrack(gomp4.MP4_CODEC_AAC,
		gomp4.WithAudioSampleRate(uint32(format.SampleRate)),
		gomp4.WithAudioChannelCount(uint8(format.ChannelCount)),
	)
	m.format = format
	m.added = true

	m.logger.Debug("muxer track added",
		zap.String("path", m.path),
		zap.Int("sample_rate", format.SampleRate),
		zap.Int("channels", format.ChannelCount))
	return 0, nil
}

// WriteSample implements media.Muxer. Codec-config buffers are skipped;
// every other sample is one raw AAC access unit.
func (m *Muxer) WriteSample(track media.TrackHandle, s media.Sample, flags media.BufferFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return media.ErrMuxerClosed
	}
	if !m.added || track != 0 {
		return fmt.Errorf("unknown muxer track %d", track)
	}
	if flags.Has(media.FlagCodecConfig) || len(s.Payload) == 0 {
		return nil
	}
	if s.TimestampMicros < m.lastTS {
		return fmt.Errorf("%w: %d after %d", media.ErrNonMonotonic, s.TimestampMicros, m.lastTS)
	}

	frame, err := mpeg4audio.ADTSPackets{{
		Type:         mpeg4audio.ObjectTypeAACLC,
		SampleRate:   m.format.SampleRate,
		ChannelCount: m.format.ChannelCount,
		AU:           s.Payload,
	}}.Marshal()
	if err != nil {
		return fmt.Errorf("frame access unit: %w", err)
	}

	ms := uint64(s.TimestampMicros / 1000)
	if err := m.mux.Write(m.trackID, frame, ms, ms); err != nil {
		return fmt.Errorf("write sample: %w", err)
	}
	m.lastTS = s.TimestampMicros
	m.written++
	return nil
}

// Written returns the number of samples written
func (m *Muxer) Written() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written
}

// Close implements media.Muxer
func (m *Muxer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return media.ErrMuxerClosed
	}
	m.closed = true

	if err := m.mux.WriteTrailer(); err != nil {
		m.file.Close()
		return fmt.Errorf("write trailer: %w", err)
	}
	if err := m.file.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	m.logger.Debug("muxer closed", zap.String("path", m.path), zap.Int("samples", m.written))
	return nil
}

// Abort implements media.Muxer
func (m *Muxer) Abort() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		m.file.Close()
	}
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove partial output: %w", err)
	}
	m.logger.Debug("muxer aborted", zap.String("path", m.path))
	return nil
}

var _ media.Muxer = (*Muxer)(nil)
