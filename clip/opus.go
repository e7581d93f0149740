package clip

import (
	"encoding/binary"
	"fmt"
	"slices"

	opuscodec "github.com/jj11hh/opus"
)

const (
	// opusFrameDuration is the packet duration in milliseconds.
	opusFrameDuration = 20

	// opusClockRate is the fixed Opus granule/RTP clock.
	opusClockRate = 48000

	// Max Opus packet size is typically 1275 bytes per frame; leave room for
	// multi-frame packets.
	maxOpusPacket = 4000

	// opusPreSkip is the encoder lookahead in 48 kHz samples advertised in
	// the stream header.
	opusPreSkip = 312
)

var opusRates = []int{8000, 12000, 16000, 24000, 48000}

// opusPacketizer splits PCM into fixed 20 ms frames and encodes each one.
type opusPacketizer struct {
	sampleRate int
	channels   int
	enc        *opuscodec.Encoder
	buf        []byte
}

func newOpusPacketizer(sampleRate, channels int) (*opusPacketizer, error) {
	if !slices.Contains(opusRates, sampleRate) {
		return nil, fmt.Errorf("opus: unsupported sample rate %d", sampleRate)
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("opus: unsupported channel count %d", channels)
	}
	enc, err := opuscodec.NewEncoder(sampleRate, channels, opuscodec.AppRestrictedLowdelay)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	return &opusPacketizer{
		sampleRate: sampleRate,
		channels:   channels,
		enc:        enc,
		buf:        make([]byte, maxOpusPacket),
	}, nil
}

// frameLen is the number of interleaved samples in one frame.
func (p *opusPacketizer) frameLen() int {
	return p.sampleRate * opusFrameDuration / 1000 * p.channels
}

// encode returns one packet per frame. The last frame is zero padded.
func (p *opusPacketizer) encode(pcm []float32) ([][]byte, error) {
	n := p.frameLen()
	packets := make([][]byte, 0, (len(pcm)+n-1)/n)

	frame := make([]float32, n)
	for off := 0; off < len(pcm); off += n {
		end := min(off+n, len(pcm))
		copy(frame, pcm[off:end])
		clear(frame[end-off:])

		size, err := p.enc.EncodeFloat32(frame, p.buf)
		if err != nil {
			return nil, fmt.Errorf("opus encode: %w", err)
		}
		packets = append(packets, slices.Clone(p.buf[:size]))
	}
	return packets, nil
}

// opusHead builds the identification header used as Matroska codec private
// data.
func opusHead(sampleRate, channels int) []byte {
	head := make([]byte, 19)
	copy(head, "OpusHead")
	head[8] = 1 // version
	head[9] = byte(channels)
	binary.LittleEndian.PutUint16(head[10:], opusPreSkip)
	binary.LittleEndian.PutUint32(head[12:], uint32(sampleRate))
	// output gain and mapping family stay zero
	return head
}
