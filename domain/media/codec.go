package media

// SlotID identifies an input or output buffer owned by a codec
type SlotID int

// NoSlot is returned when no slot is available
const NoSlot SlotID = -1

// BufferFlags annotate a buffer
type BufferFlags uint8

const (
	FlagKeyFrame BufferFlags = 1 << iota
	FlagCodecConfig
	FlagEndOfStream
)

// Has reports whether all bits of f are set
func (b BufferFlags) Has(f BufferFlags) bool {
	return b&f == f
}

// BufferInfo describes a ready output buffer
type BufferInfo struct {
	TimestampMicros int64
	Size            int
	Flags           BufferFlags
}

// OutputStatus is the result of polling a codec's output side
type OutputStatus int

const (
	OutputNone OutputStatus = iota
	OutputBuffer
	OutputFormatChanged
)

func (s OutputStatus) String() string {
	switch s {
	case OutputBuffer:
		return "buffer"
	case OutputFormatChanged:
		return "format-changed"
	default:
		return "none"
	}
}

// AAC profiles
const (
	AACProfileLC = 2
)

// Format describes a codec's input or output stream
type Format struct {
	MimeType     string
	SampleRate   int
	ChannelCount int
	Width        int
	Height       int
	BitRate      int
	MaxInputSize int
	AACProfile   int
	CodecConfig  []byte
}

// PCMFormat is the decoded form of an audio track
func PCMFormat(t Track) Format {
	return Format{MimeType: MimeTypeRaw, SampleRate: t.SampleRate, ChannelCount: t.ChannelCount}
}

// Codec is a stateful transform driven through an input-queue / output-queue buffer protocol.
// Acquire calls never block.
type Codec interface {
	Start() error

	// TryAcquireInputSlot returns a free input slot, or false if none is free right now
	TryAcquireInputSlot() (SlotID, bool)

	// SubmitInput queues payload into slot; endOfStream marks the last input
	SubmitInput(slot SlotID, payload []byte, timestampMicros int64, endOfStream bool) error

	// TryAcquireOutputSlot polls for a ready output buffer or a format change
	TryAcquireOutputSlot() (SlotID, BufferInfo, OutputStatus, error)

	ConsumeOutput(slot SlotID) ([]byte, error)
	ReleaseOutput(slot SlotID) error

	// OutputFormat is valid once OutputFormatChanged has been reported
	OutputFormat() Format

	Release() error
}

// CodecProvider creates codecs for tracks and target formats
type CodecProvider interface {
	NewDecoder(track Track) (Codec, error)
	NewEncoder(format Format) (Codec, error)
}
