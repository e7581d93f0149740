package clip

import (
	"bytes"
	"fmt"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

// opusPayloadType is the dynamic payload type used for the packets handed to
// the Ogg writer. Only the timestamps matter to it.
const opusPayloadType = 111

type oggEncoder struct {
	opus *opusPacketizer
}

func newOggEncoder(sampleRate, channels int) (Encoder, error) {
	p, err := newOpusPacketizer(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	return &oggEncoder{opus: p}, nil
}

// Encode writes an Ogg Opus file with OpusHead and OpusTags pages.
func (e *oggEncoder) Encode(pcm []float32) ([]byte, error) {
	packets, err := e.opus.encode(pcm)
	if err != nil {
		return nil, err
	}
	if len(packets) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	w, err := oggwriter.NewWith(&buf, uint32(e.opus.sampleRate), uint16(e.opus.channels))
	if err != nil {
		return nil, fmt.Errorf("create ogg writer: %w", err)
	}

	step := uint32(opusClockRate * opusFrameDuration / 1000)
	var ts uint32
	for i, payload := range packets {
		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    opusPayloadType,
				SequenceNumber: uint16(i),
				Timestamp:      ts,
				SSRC:           1,
			},
			Payload: payload,
		}
		if err := w.WriteRTP(pkt); err != nil {
			return nil, fmt.Errorf("write ogg page: %w", err)
		}
		ts += step
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close ogg writer: %w", err)
	}
	return buf.Bytes(), nil
}
