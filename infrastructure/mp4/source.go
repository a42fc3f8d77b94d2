// Package mp4 reads and writes ISO-BMFF containers with gomedia's go-mp4
package mp4

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"audio-extractor/domain/media"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	gomp4 "github.com/yapingcat/gomedia/go-mp4"
	"go.uber.org/zap"
)

// mimeTypes maps container codec ids to track MIME types
var mimeTypes = map[gomp4.MP4_CODEC_TYPE]string{
	gomp4.MP4_CODEC_H264:  media.MimeTypeAVC,
	gomp4.MP4_CODEC_H265:  media.MimeTypeHEVC,
	gomp4.MP4_CODEC_AAC:   media.MimeTypeAAC,
	gomp4.MP4_CODEC_MP3:   media.MimeTypeMP3,
	gomp4.MP4_CODEC_OPUS:  media.MimeTypeOpus,
	gomp4.MP4_CODEC_G711A: media.MimeTypeALaw,
	gomp4.MP4_CODEC_G711U: media.MimeTypeMuLaw,
}

// Source is a media.SampleSource over one MP4 container
type Source struct {
	demuxer *gomp4.MovDemuxer
	logger  *zap.Logger

	mu       sync.Mutex
	tracks   []media.Track
	trackIDs []int
	selected int
	head     *media.Sample
	current  int64
	eof      bool
	released bool
}

// SourceOption is a functional option for configuring Source
type SourceOption func(*Source)

// WithSourceLogger sets the logger
func WithSourceLogger(l *zap.Logger) SourceOption {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// OpenRange reads the container stored in ra[offset, offset+length). The
// caller keeps ownership of ra; Release never closes it.
func OpenRange(ra io.ReaderAt, offset, length int64, opts ...SourceOption) (*Source, error) {
	if offset < 0 || length <= 0 {
		return nil, fmt.Errorf("%w: invalid byte range %d+%d", media.ErrOpenSource, offset, length)
	}

	s := &Source{
		demuxer:  gomp4.CreateMp4Demuxer(io.NewSectionReader(ra, offset, length)),
		logger:   zap.NewNop(),
		selected: -1,
		current:  -1,
	}

	for _, opt := range opts {
		opt(s)
	}

	infos, err := s.demuxer.ReadHead()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", media.ErrOpenSource, err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("%w: no tracks", media.ErrOpenSource)
	}

	duration := movieDuration(s.demuxer.GetMp4Info())
	for i, info := range infos {
		track := media.Track{
			Index:    i,
			MimeType: mimeTypes[info.Cid],
			Duration: duration,
		}
		if track.IsAudioTrack() {
			track.SampleRate = int(info.SampleRate)
			track.ChannelCount = int(info.ChannelCount)
			if track.MimeType == media.MimeTypeAAC {
				track.CodecConfig = audioSpecificConfig(track)
			}
		} else {
			track.Width = int(info.Width)
			track.Height = int(info.Height)
		}
		s.tracks = append(s.tracks, track)
		s.trackIDs = append(s.trackIDs, int(info.TrackId))
		s.logger.Debug("track found", zap.Int("index", i), zap.Stringer("track", track))
	}

	return s, nil
}

func movieDuration(info gomp4.Mp4Info) time.Duration {
	if info.Timescale == 0 {
		return 0
	}
	return time.Duration(int64(info.Duration) * int64(time.Second) / int64(info.Timescale))
}

func audioSpecificConfig(t media.Track) []byte {
	asc := mpeg4audio.AudioSpecificConfig{
		Type:         mpeg4audio.ObjectTypeAACLC,
		SampleRate:   t.SampleRate,
		ChannelCount: t.ChannelCount,
	}
	buf, err := asc.Marshal()
	if err != nil {
		return nil
	}
	return buf
}

// Tracks implements media.SampleSource
func (s *Source) Tracks() []media.Track {
	return s.tracks
}

// SelectTrack implements media.SampleSource
func (s *Source) SelectTrack(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected >= 0 {
		return media.ErrTrackAlreadySelected
	}
	if index < 0 || index >= len(s.tracks) {
		return fmt.Errorf("%w: index %d", media.ErrNoSuchTrack, index)
	}
	s.selected = index
	return nil
}

// NextSample implements media.SampleSource
func (s *Source) NextSample() (media.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fill(); err != nil {
		return media.Sample{}, err
	}
	if s.head == nil {
		return media.EndOfStreamSample(), nil
	}
	s.current = s.head.TimestampMicros
	return *s.head, nil
}

// Advance implements media.SampleSource
func (s *Source) Advance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.head == nil {
		if err := s.fill(); err != nil || s.head == nil {
			return false
		}
	}
	s.head = nil
	if err := s.fill(); err != nil {
		return false
	}
	return s.head != nil
}

// CurrentTimestamp implements media.SampleSource
func (s *Source) CurrentTimestamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// PeekTimestamp implements media.SampleSource
func (s *Source) PeekTimestamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fill(); err != nil || s.head == nil {
		return -1
	}
	return s.head.TimestampMicros
}

// Release implements media.SampleSource
func (s *Source) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	s.head = nil
	return nil
}

// fill reads ahead to the next packet of the selected track
func (s *Source) fill() error {
	if s.head != nil || s.eof || s.released || s.selected < 0 {
		return nil
	}

	wantID := s.trackIDs[s.selected]
	track := s.tracks[s.selected]
	for {
		pkt, err := s.demuxer.ReadPacket()
		if errors.Is(err, io.EOF) {
			s.eof = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("read packet: %w", err)
		}
		if int(pkt.TrackId) != wantID {
			continue
		}

		sample := media.Sample{TimestampMicros: int64(pkt.Pts) * 1000}
		switch track.MimeType {
		case media.MimeTypeAAC:
			sample.Payload = ensureADTS(pkt.Data, track)
			sample.KeyFrame = true
		case media.MimeTypeAVC:
			sample.Payload = pkt.Data
			sample.KeyFrame = IsIDR(pkt.Data)
		default:
			sample.Payload = pkt.Data
			sample.KeyFrame = track.IsAudioTrack()
		}
		s.head = &sample
		return nil
	}
}

// ensureADTS returns AAC access units framed as ADTS, the form the decoder reads
func ensureADTS(data []byte, t media.Track) []byte {
	var pkts mpeg4audio.ADTSPackets
	if pkts.Unmarshal(data) == nil {
		return data
	}
	wrapped, err := mpeg4audio.ADTSPackets{{
		Type:         mpeg4audio.ObjectTypeAACLC,
		SampleRate:   t.SampleRate,
		ChannelCount: t.ChannelCount,
		AU:           data,
	}}.Marshal()
	if err != nil {
		return data
	}
	return wrapped
}

// IsIDR reports whether an Annex-B access unit contains an IDR slice
func IsIDR(au []byte) bool {
	var nalus h264.AnnexB
	if nalus.Unmarshal(au) != nil {
		return false
	}
	for _, nalu := range nalus {
		if len(nalu) > 0 && h264.NALUType(nalu[0]&0x1F) == h264.NALUTypeIDR {
			return true
		}
	}
	return false
}

// Opener opens MP4 sources over a reader the caller owns; it satisfies
// media.SourceOpener. Each Open gets its own section of ReaderAt, so the
// player's two sources can share one *os.File. Nothing it opens closes ReaderAt.
type Opener struct {
	ReaderAt io.ReaderAt
	Size     int64
	Logger   *zap.Logger
}

// OpenFile opens path for an Opener. The caller closes the returned file once
// every pipeline using the Opener has finished.
func OpenFile(path string, logger *zap.Logger) (Opener, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return Opener{}, nil, fmt.Errorf("%w: %v", media.ErrOpenSource, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return Opener{}, nil, fmt.Errorf("%w: %v", media.ErrOpenSource, err)
	}
	return Opener{ReaderAt: f, Size: info.Size(), Logger: logger}, f, nil
}

// Open implements media.SourceOpener. r.Path only names the source in errors;
// a zero Length means the rest of the reader.
func (o Opener) Open(r media.ByteRange) (media.SampleSource, error) {
	if o.ReaderAt == nil {
		return nil, fmt.Errorf("%w: %s is not open", media.ErrOpenSource, r.Path)
	}
	length := r.Length
	if length <= 0 {
		length = o.Size - r.Offset
	}
	src, err := OpenRange(o.ReaderAt, r.Offset, length, WithSourceLogger(o.Logger))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.Path, err)
	}
	return src, nil
}

var (
	_ media.SampleSource = (*Source)(nil)
	_ media.SourceOpener = Opener{}
)
