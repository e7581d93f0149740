package clip

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/at-wat/ebml-go/webm"
)

// webmFlushTimeout bounds how long Encode waits for the muxer to finish.
const webmFlushTimeout = 5 * time.Second

type webmEncoder struct {
	opus *opusPacketizer
}

func newWebMEncoder(sampleRate, channels int) (Encoder, error) {
	p, err := newOpusPacketizer(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	return &webmEncoder{opus: p}, nil
}

// Encode writes a single-track WebM file with one SimpleBlock per packet.
func (e *webmEncoder) Encode(pcm []float32) ([]byte, error) {
	packets, err := e.opus.encode(pcm)
	if err != nil {
		return nil, err
	}
	if len(packets) == 0 {
		return nil, nil
	}

	out := newClosingBuffer()
	writers, err := webm.NewSimpleBlockWriter(out, []webm.TrackEntry{{
		Name:         "Audio",
		TrackNumber:  1,
		TrackUID:     1,
		CodecID:      "A_OPUS",
		CodecPrivate: opusHead(e.opus.sampleRate, e.opus.channels),
		TrackType:    2,
		Audio: &webm.Audio{
			SamplingFrequency: float64(e.opus.sampleRate),
			Channels:          uint64(e.opus.channels),
		},
	}})
	if err != nil {
		return nil, fmt.Errorf("create webm writer: %w", err)
	}
	track := writers[0]

	for i, payload := range packets {
		// Block timestamps are in milliseconds at the default timecode scale.
		if _, err := track.Write(true, int64(i*opusFrameDuration), payload); err != nil {
			_ = track.Close()
			return nil, fmt.Errorf("write webm block: %w", err)
		}
	}
	if err := track.Close(); err != nil {
		return nil, fmt.Errorf("close webm writer: %w", err)
	}
	return out.wait(webmFlushTimeout)
}

// closingBuffer collects muxer output; the muxer closes it once every track
// writer is closed.
type closingBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	once   sync.Once
	closed chan struct{}
}

func newClosingBuffer() *closingBuffer {
	return &closingBuffer{closed: make(chan struct{})}
}

func (b *closingBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *closingBuffer) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

func (b *closingBuffer) wait(timeout time.Duration) ([]byte, error) {
	select {
	case <-b.closed:
	case <-time.After(timeout):
		return nil, errors.New("webm muxer did not finish")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes()), nil
}
