package ffmpeg

import (
	"bufio"
	"container/heap"
	"errors"
	"fmt"
	"io"
	"sync"

	"audio-extractor/domain/media"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
)

// samplesPerAACFrame is the number of PCM frames per channel in one AAC-LC access unit
const samplesPerAACFrame = 1024

// frame is one unit read from a codec process's stdout. A frame carrying a
// format reports OutputFormatChanged and has no payload.
type frame struct {
	payload []byte
	ts      int64
	flags   media.BufferFlags
	format  *media.Format
}

// framer cuts a codec process's stdout into output buffers and assigns them timestamps
type framer interface {
	// input records the timestamp of a submitted input sample
	input(tsMicros int64)

	// next returns the next frame, or io.EOF once stdout is exhausted
	next(r *bufio.Reader) (frame, error)
}

// baseClock derives output timestamps from the first input timestamp and a sample count
type baseClock struct {
	mu     sync.Mutex
	base   int64
	seeded bool
}

func (c *baseClock) input(tsMicros int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.seeded {
		c.base = tsMicros
		c.seeded = true
	}
}

func (c *baseClock) at(samples int64, sampleRate int) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sampleRate <= 0 {
		return c.base
	}
	return c.base + samples*1_000_000/int64(sampleRate)
}

// pcmFramer emits s16le PCM in chunks of chunkFrames frames
type pcmFramer struct {
	baseClock
	sampleRate  int
	channels    int
	chunkFrames int
	emitted     int64
}

func newPCMFramer(sampleRate, channels int) *pcmFramer {
	return &pcmFramer{sampleRate: sampleRate, channels: channels, chunkFrames: samplesPerAACFrame}
}

func (f *pcmFramer) next(r *bufio.Reader) (frame, error) {
	frameBytes := f.channels * 2
	if frameBytes <= 0 {
		return frame{}, fmt.Errorf("invalid channel count %d", f.channels)
	}

	buf := make([]byte, f.chunkFrames*frameBytes)
	n, err := io.ReadFull(r, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	if n == 0 && err == nil {
		err = io.EOF
	}
	if err != nil {
		return frame{}, err
	}

	// a trailing partial frame cannot be played
	n -= n % frameBytes
	if n == 0 {
		return frame{}, io.EOF
	}
	out := frame{payload: buf[:n], ts: f.at(f.emitted, f.sampleRate)}
	f.emitted += int64(n / frameBytes)
	return out, nil
}

// rawVideoFramer emits packed bgr24 pictures. Decoders output pictures in
// presentation order, so each picture takes the smallest pending input timestamp.
type rawVideoFramer struct {
	width   int
	height  int
	mu      sync.Mutex
	pending timestampHeap
	last    int64
}

func newRawVideoFramer(width, height int) *rawVideoFramer {
	return &rawVideoFramer{width: width, height: height}
}

func (f *rawVideoFramer) input(tsMicros int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	heap.Push(&f.pending, tsMicros)
}

func (f *rawVideoFramer) next(r *bufio.Reader) (frame, error) {
	size := f.width * f.height * 3
	if size <= 0 {
		return frame{}, fmt.Errorf("invalid picture size %dx%d", f.width, f.height)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return frame{}, io.EOF
		}
		return frame{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending.Len() > 0 {
		f.last = heap.Pop(&f.pending).(int64)
	}
	return frame{payload: buf, ts: f.last}, nil
}

type timestampHeap []int64

func (h timestampHeap) Len() int           { return len(h) }
func (h timestampHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h timestampHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *timestampHeap) Push(x any)        { *h = append(*h, x.(int64)) }
func (h *timestampHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// adtsFramer parses the ADTS stream of an AAC encoder. The first frame is
// preceded by a format frame carrying the AudioSpecificConfig; payloads are
// raw access units.
type adtsFramer struct {
	baseClock
	format  media.Format
	sent    bool
	emitted int64
	queue   []frame
}

func newADTSFramer(format media.Format) *adtsFramer {
	return &adtsFramer{format: format}
}

func (f *adtsFramer) next(r *bufio.Reader) (frame, error) {
	if len(f.queue) > 0 {
		out := f.queue[0]
		f.queue = f.queue[1:]
		return out, nil
	}

	raw, err := readADTSFrame(r)
	if err != nil {
		return frame{}, err
	}

	var pkts mpeg4audio.ADTSPackets
	if err := pkts.Unmarshal(raw); err != nil {
		return frame{}, fmt.Errorf("parse adts: %w", err)
	}

	for _, pkt := range pkts {
		if !f.sent {
			f.sent = true
			f.queue = append(f.queue, f.formatFrame(pkt))
		}
		f.queue = append(f.queue, frame{
			payload: pkt.AU,
			ts:      f.at(f.emitted, pkt.SampleRate),
			flags:   media.FlagKeyFrame,
		})
		f.emitted += samplesPerAACFrame
	}
	return f.next(r)
}

func (f *adtsFramer) formatFrame(pkt *mpeg4audio.ADTSPacket) frame {
	format := f.format
	format.MimeType = media.MimeTypeAAC
	format.SampleRate = pkt.SampleRate
	format.ChannelCount = pkt.ChannelCount
	format.AACProfile = int(pkt.Type)

	asc := mpeg4audio.AudioSpecificConfig{
		Type:         pkt.Type,
		SampleRate:   pkt.SampleRate,
		ChannelCount: pkt.ChannelCount,
	}
	if cfg, err := asc.Marshal(); err == nil {
		format.CodecConfig = cfg
	}
	return frame{format: &format}
}

// readADTSFrame reads one whole ADTS frame, header included
func readADTSFrame(r *bufio.Reader) ([]byte, error) {
	header, err := r.Peek(7)
	if err != nil {
		if len(header) == 0 || errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	if header[0] != 0xFF || header[1]&0xF0 != 0xF0 {
		return nil, fmt.Errorf("adts sync word not found")
	}

	length := int(header[3]&0x03)<<11 | int(header[4])<<3 | int(header[5])>>5
	if length < 7 {
		return nil, fmt.Errorf("invalid adts frame length %d", length)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return buf, nil
}
