package clip

import (
	"bytes"
	"fmt"
)

type wavEncoder struct {
	sampleRate int
	channels   int
}

func newWAVEncoder(sampleRate, channels int) (Encoder, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("wav: invalid shape %d Hz x %d", sampleRate, channels)
	}
	return &wavEncoder{sampleRate: sampleRate, channels: channels}, nil
}

// Encode writes 16-bit PCM WAV.
func (e *wavEncoder) Encode(pcm []float32) ([]byte, error) {
	dataSize := len(pcm) * 2
	blockAlign := e.channels * 2

	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))

	// RIFF header
	buf.WriteString("RIFF")
	writeUint32LE(buf, uint32(36+dataSize)) // File size - 8
	buf.WriteString("WAVE")

	// fmt chunk
	buf.WriteString("fmt ")
	writeUint32LE(buf, 16)
	writeUint16LE(buf, 1) // PCM
	writeUint16LE(buf, uint16(e.channels))
	writeUint32LE(buf, uint32(e.sampleRate))
	writeUint32LE(buf, uint32(e.sampleRate*blockAlign))
	writeUint16LE(buf, uint16(blockAlign))
	writeUint16LE(buf, 16)

	// data chunk
	buf.WriteString("data")
	writeUint32LE(buf, uint32(dataSize))

	for _, s := range pcm {
		writeUint16LE(buf, uint16(floatToInt16(s)))
	}
	return buf.Bytes(), nil
}

func floatToInt16(s float32) int16 {
	if s > 1.0 {
		s = 1.0
	} else if s < -1.0 {
		s = -1.0
	}
	return int16(s * 32767)
}

func writeUint16LE(w *bytes.Buffer, v uint16) {
	w.WriteByte(byte(v))
	w.WriteByte(byte(v >> 8))
}

func writeUint32LE(w *bytes.Buffer, v uint32) {
	w.WriteByte(byte(v))
	w.WriteByte(byte(v >> 8))
	w.WriteByte(byte(v >> 16))
	w.WriteByte(byte(v >> 24))
}
