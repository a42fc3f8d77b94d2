// Package ffmpeg implements the codec and playback ports on ffmpeg subprocesses
package ffmpeg

import (
	"context"
	"fmt"
	"strconv"

	"audio-extractor/domain/media"

	"go.uber.org/zap"
)

const (
	// DefaultInputSlots is the number of input slots per codec
	DefaultInputSlots = 4

	// DefaultOutputDepth is the number of framed outputs buffered ahead of the pump
	DefaultOutputDepth = 8
)

// demuxers maps compressed track MIME types to ffmpeg input formats
var demuxers = map[string]string{
	media.MimeTypeAAC:   "aac",
	media.MimeTypeMP3:   "mp3",
	media.MimeTypeALaw:  "alaw",
	media.MimeTypeMuLaw: "mulaw",
	media.MimeTypeAVC:   "h264",
	media.MimeTypeHEVC:  "hevc",
}

// Provider creates ffmpeg-backed codecs; it satisfies media.CodecProvider
type Provider struct {
	ffmpegPath  string
	runner      CommandRunner
	logger      *zap.Logger
	inputSlots  int
	outputDepth int
}

// ProviderOption is a functional option for configuring Provider
type ProviderOption func(*Provider)

// WithFFmpegPath sets a custom ffmpeg executable path
func WithFFmpegPath(path string) ProviderOption {
	return func(p *Provider) {
		if path != "" {
			p.ffmpegPath = path
		}
	}
}

// WithCommandRunner sets a custom command runner (for testing)
func WithCommandRunner(runner CommandRunner) ProviderOption {
	return func(p *Provider) {
		p.runner = runner
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) ProviderOption {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithInputSlots sets the number of input slots per codec
func WithInputSlots(n int) ProviderOption {
	return func(p *Provider) {
		if n > 0 {
			p.inputSlots = n
		}
	}
}

// WithOutputDepth sets how many outputs a codec buffers ahead
func WithOutputDepth(n int) ProviderOption {
	return func(p *Provider) {
		if n > 0 {
			p.outputDepth = n
		}
	}
}

// NewProvider creates a new ffmpeg codec provider
func NewProvider(opts ...ProviderOption) *Provider {
	p := &Provider{
		ffmpegPath:  "ffmpeg",
		runner:      &ExecCommandRunner{},
		logger:      zap.NewNop(),
		inputSlots:  DefaultInputSlots,
		outputDepth: DefaultOutputDepth,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// NewDecoder implements media.CodecProvider. Audio decodes to s16le PCM at the
// track's native layout; H.264 and HEVC decode to packed bgr24 pictures.
func (p *Provider) NewDecoder(track media.Track) (media.Codec, error) {
	args, err := DecoderArgs(track)
	if err != nil {
		return nil, err
	}

	if track.IsAudioTrack() {
		out := media.PCMFormat(track)
		return newCodec("decoder "+track.MimeType, p.ffmpegPath, args, p.runner,
			newPCMFramer(track.SampleRate, track.ChannelCount), &out,
			p.inputSlots, p.outputDepth, p.logger), nil
	}

	out := media.Format{MimeType: track.MimeType, Width: track.Width, Height: track.Height}
	return newCodec("decoder "+track.MimeType, p.ffmpegPath, args, p.runner,
		newRawVideoFramer(track.Width, track.Height), &out,
		p.inputSlots, p.outputDepth, p.logger), nil
}

// NewEncoder implements media.CodecProvider. Only AAC-LC output is supported.
func (p *Provider) NewEncoder(format media.Format) (media.Codec, error) {
	args, err := EncoderArgs(format)
	if err != nil {
		return nil, err
	}
	return newCodec("encoder "+format.MimeType, p.ffmpegPath, args, p.runner,
		newADTSFramer(format), nil,
		p.inputSlots, p.outputDepth, p.logger), nil
}

// VerifyInstalled checks that ffmpeg is available
func (p *Provider) VerifyInstalled(ctx context.Context) error {
	_, err := p.runner.Output(ctx, p.ffmpegPath, "-version")
	if err != nil {
		return fmt.Errorf("ffmpeg not found or not executable: %w", err)
	}
	return nil
}

// DecoderArgs returns the ffmpeg arguments decoding track from stdin to stdout
func DecoderArgs(track media.Track) ([]string, error) {
	demuxer, ok := demuxers[track.MimeType]
	if !ok {
		return nil, fmt.Errorf("%w: no decoder for %q", media.ErrCodecCreate, track.MimeType)
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-f", demuxer, "-i", "pipe:0"}

	if track.IsAudioTrack() {
		if track.SampleRate <= 0 || track.ChannelCount <= 0 {
			return nil, fmt.Errorf("%w: invalid audio layout %d Hz, %d channels", media.ErrCodecCreate, track.SampleRate, track.ChannelCount)
		}
		return append(args,
			"-f", "s16le",
			"-acodec", "pcm_s16le",
			"-ac", strconv.Itoa(track.ChannelCount),
			"-ar", strconv.Itoa(track.SampleRate),
			"pipe:1",
		), nil
	}

	if track.Width <= 0 || track.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid picture size %dx%d", media.ErrCodecCreate, track.Width, track.Height)
	}
	return append(args,
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", fmt.Sprintf("%dx%d", track.Width, track.Height),
		"-fps_mode", "passthrough",
		"pipe:1",
	), nil
}

// EncoderArgs returns the ffmpeg arguments encoding s16le PCM to ADTS AAC
func EncoderArgs(format media.Format) ([]string, error) {
	if format.MimeType != media.MimeTypeAAC {
		return nil, fmt.Errorf("%w: no encoder for %q", media.ErrCodecCreate, format.MimeType)
	}
	if format.SampleRate <= 0 || format.ChannelCount <= 0 {
		return nil, fmt.Errorf("%w: invalid audio layout %d Hz, %d channels", media.ErrCodecCreate, format.SampleRate, format.ChannelCount)
	}

	bitRate := format.BitRate
	if bitRate <= 0 {
		bitRate = 128000
	}

	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(format.SampleRate),
		"-ac", strconv.Itoa(format.ChannelCount),
		"-i", "pipe:0",
		"-c:a", "aac",
		"-profile:a", "aac_low",
		"-b:a", strconv.Itoa(bitRate),
		"-f", "adts",
		"pipe:1",
	}, nil
}

var _ media.CodecProvider = (*Provider)(nil)
