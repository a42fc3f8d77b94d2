package media

// Sample is one timestamped unit of compressed or decoded media
type Sample struct {
	TimestampMicros int64
	Payload         []byte
	KeyFrame        bool
	EndOfStream     bool
}

// EndOfStreamSample is the terminal value returned by an exhausted reader
func EndOfStreamSample() Sample {
	return Sample{TimestampMicros: -1, EndOfStream: true}
}

// ByteRange identifies a container inside a caller-owned file
type ByteRange struct {
	Path   string
	Offset int64
	Length int64 // 0 means up to the end of the file
}

// SampleReader yields samples in order; Advance is called once per sample read
type SampleReader interface {
	NextSample() (Sample, error)
	Advance() bool
}

// SampleSource reads the samples of one selected track of a container
// This is a port that can be implemented by different container adapters
type SampleSource interface {
	TrackSelector
	SampleReader

	// CurrentTimestamp returns the timestamp of the most recently read sample, or -1
	CurrentTimestamp() int64

	// PeekTimestamp returns the timestamp under the cursor without consuming it, or -1 at the end
	PeekTimestamp() int64

	Release() error
}

// SourceOpener opens a sample source over a byte range
type SourceOpener interface {
	Open(r ByteRange) (SampleSource, error)
}
