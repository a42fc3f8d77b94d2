package media

// VideoFrame is one decoded picture, packed BGR24
type VideoFrame struct {
	TimestampMicros int64
	Width           int
	Height          int
	Pixels          []byte
}

// Surface is the caller-provided render target for video frames
type Surface interface {
	Render(frame VideoFrame) error
	Release() error
}

// AudioSink accepts 16-bit interleaved PCM at the track's native layout
type AudioSink interface {
	Write(pcm []byte) (int, error)
	Release() error
}

// AudioSinkFactory opens an audio sink for the given layout
type AudioSinkFactory func(sampleRate, channels int) (AudioSink, error)

// TrackHandle identifies a track added to a muxer
type TrackHandle int

// Muxer writes encoded samples into an output container
type Muxer interface {
	// AddTrack is called exactly once, after the encoder reports its finalized format
	AddTrack(format Format) (TrackHandle, error)

	// WriteSample appends one encoded sample; timestamps must not decrease per track
	WriteSample(track TrackHandle, sample Sample, flags BufferFlags) error

	// Close finalizes the container; it must not be called twice
	Close() error

	// Abort discards the partially written output
	Abort() error
}

// MuxerFactory creates the muxer for an output path
type MuxerFactory func(path string) (Muxer, error)
