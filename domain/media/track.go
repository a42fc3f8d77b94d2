package media

import (
	"fmt"
	"strings"
	"time"
)

// MIME types for the streams the pipeline understands
const (
	MimeTypeAVC   = "video/avc"
	MimeTypeHEVC  = "video/hevc"
	MimeTypeAAC   = "audio/mp4a-latm"
	MimeTypeMP3   = "audio/mpeg"
	MimeTypeOpus  = "audio/opus"
	MimeTypeALaw  = "audio/g711-alaw"
	MimeTypeMuLaw = "audio/g711-mlaw"
	MimeTypeRaw   = "audio/raw"
)

// Track describes one elementary stream of a container
type Track struct {
	Index        int
	MimeType     string
	Duration     time.Duration
	SampleRate   int // audio only
	ChannelCount int // audio only
	Width        int // video only
	Height       int // video only
	CodecConfig  []byte
}

// IsAudioTrack returns true if the track carries audio
func (t Track) IsAudioTrack() bool {
	return IsAudio(t.MimeType)
}

// String returns a one-line description of the track
func (t Track) String() string {
	switch {
	case t.IsAudioTrack():
		return fmt.Sprintf("#%d %s %d Hz %dch %s", t.Index, t.MimeType, t.SampleRate, t.ChannelCount, FormatDuration(t.Duration))
	case t.Width > 0:
		return fmt.Sprintf("#%d %s %dx%d %s", t.Index, t.MimeType, t.Width, t.Height, FormatDuration(t.Duration))
	default:
		return fmt.Sprintf("#%d %s %s", t.Index, t.MimeType, FormatDuration(t.Duration))
	}
}

// TrackPredicate decides whether a stream's MIME type is wanted
type TrackPredicate func(mimeType string) bool

// IsAudio matches any audio stream
func IsAudio(mimeType string) bool {
	return strings.HasPrefix(mimeType, "audio/")
}

// IsAVC matches H.264/AVC video only
func IsAVC(mimeType string) bool {
	return mimeType == MimeTypeAVC
}

// TrackSelector is the part of a sample source the locator needs
type TrackSelector interface {
	Tracks() []Track
	SelectTrack(index int) error
}

// FindTrack returns the index of the first track matching pred, in source order
func FindTrack(tracks []Track, pred TrackPredicate) (int, bool) {
	for i, t := range tracks {
		if t.MimeType == "" {
			continue
		}
		if pred(t.MimeType) {
			return i, true
		}
	}
	return -1, false
}

// LocateTrack finds the first matching track and selects it on the source
func LocateTrack(src TrackSelector, pred TrackPredicate, kind string) (Track, error) {
	tracks := src.Tracks()
	i, ok := FindTrack(tracks, pred)
	if !ok {
		return Track{}, fmt.Errorf("%w: no %s track", ErrNoSuchTrack, kind)
	}
	if err := src.SelectTrack(tracks[i].Index); err != nil {
		return Track{}, err
	}
	return tracks[i], nil
}

// FormatDuration renders d as HH:MM:SS
func FormatDuration(d time.Duration) string {
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}
