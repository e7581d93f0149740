// Package clip encodes captured PCM into self-contained audio clips. Every
// clip carries its own container header so it can be decoded on its own.
package clip

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Container MIME types in default preference order.
const (
	MIMEWebMOpus = "audio/webm;codecs=opus"
	MIMEWebM     = "audio/webm"
	MIMEOggOpus  = "audio/ogg;codecs=opus"
	MIMEWAV      = "audio/wav"
)

// DefaultPreferences is the encoding preference used when none is configured.
var DefaultPreferences = []string{MIMEWebMOpus, MIMEWebM, MIMEOggOpus, MIMEWAV}

var (
	// ErrNoSupportedFormat is returned when no preferred format can be used.
	ErrNoSupportedFormat = errors.New("no supported audio recording format found")

	// ErrRecorderStopped is returned when stopping a recorder twice.
	ErrRecorderStopped = errors.New("recorder already stopped")
)

// Encoder turns one clip worth of interleaved float32 PCM into a complete
// encoded file.
type Encoder interface {
	Encode(pcm []float32) ([]byte, error)
}

type encoderFunc func(sampleRate, channels int) (Encoder, error)

var registry = map[string]encoderFunc{
	MIMEWebMOpus: newWebMEncoder,
	MIMEWebM:     newWebMEncoder,
	MIMEOggOpus:  newOggEncoder,
	MIMEWAV:      newWAVEncoder,
}

// Format is a negotiated encoding for a given capture shape.
type Format struct {
	MIMEType   string
	SampleRate int
	Channels   int

	newEncoder encoderFunc
}

// NewEncoder returns a fresh encoder for one clip.
func (f Format) NewEncoder() (Encoder, error) {
	if f.newEncoder == nil {
		return nil, fmt.Errorf("format %q: %w", f.MIMEType, ErrNoSupportedFormat)
	}
	return f.newEncoder(f.SampleRate, f.Channels)
}

// Negotiate returns the first format in prefs that can encode audio with the
// given shape.
func Negotiate(prefs []string, sampleRate, channels int) (Format, error) {
	if len(prefs) == 0 {
		prefs = DefaultPreferences
	}
	for _, mime := range prefs {
		fn, ok := registry[mime]
		if !ok {
			slog.Debug("audio format unknown", "mime", mime)
			continue
		}
		if _, err := fn(sampleRate, channels); err != nil {
			slog.Debug("audio format unsupported", "mime", mime, "error", err)
			continue
		}
		return Format{MIMEType: mime, SampleRate: sampleRate, Channels: channels, newEncoder: fn}, nil
	}
	return Format{}, ErrNoSupportedFormat
}

// Recorder buffers PCM for one clip and encodes it on Stop.
type Recorder struct {
	mu      sync.Mutex
	enc     Encoder
	pcm     []float32
	stopped bool
}

// NewRecorder creates a recorder that finalizes with enc.
func NewRecorder(enc Encoder) *Recorder {
	return &Recorder{enc: enc}
}

// Write appends samples. Samples written after Stop are dropped.
func (r *Recorder) Write(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.pcm = append(r.pcm, samples...)
}

// Samples returns the number of buffered samples.
func (r *Recorder) Samples() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pcm)
}

// Stop finalizes the clip. An empty recording yields a nil clip.
func (r *Recorder) Stop() ([]byte, error) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil, ErrRecorderStopped
	}
	r.stopped = true
	pcm := r.pcm
	r.pcm = nil
	r.mu.Unlock()

	if len(pcm) == 0 {
		return nil, nil
	}
	data, err := r.enc.Encode(pcm)
	if err != nil {
		return nil, fmt.Errorf("finalize clip: %w", err)
	}
	return data, nil
}
