// Package audiocapture opens live audio tracks from system loopback, the
// microphone or an external PCM command.
package audiocapture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

var (
	// ErrNoAudioTrack is returned when a source yields no usable audio.
	ErrNoAudioTrack = errors.New("no audio track found in captured stream")

	// ErrRunning is returned when starting a capturer twice.
	ErrRunning = errors.New("audio capture already running")

	// ErrStopped is returned when starting a capturer that was released.
	ErrStopped = errors.New("audio capture stopped")
)

// AudioHandler receives interleaved float32 samples in [-1, 1].
type AudioHandler func(samples []float32)

// Capturer is one open audio track. Stop releases it and is idempotent.
type Capturer interface {
	Start(handler AudioHandler) error
	Stop() error
	SampleRate() int
	Channels() int
}

// Source requests access to an audio track.
type Source interface {
	Name() string
	Open(ctx context.Context) (Capturer, error)
}

// Config holds the capture shape.
type Config struct {
	SampleRate int // default 48000 Hz (native Opus rate)
	Channels   int // default 1
}

// DefaultConfig returns the default capture configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate: 48000,
		Channels:   1,
	}
}

func (c Config) withDefaults() Config {
	if c.SampleRate == 0 {
		c.SampleRate = 48000
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
	return c
}

// frameBytes is the size of 20 ms of 16-bit PCM.
func (c Config) frameBytes() int {
	return c.SampleRate / 50 * c.Channels * 2
}

type fallback struct {
	sources []Source
}

// Fallback returns a source that tries each source in order and opens the
// first one that succeeds.
func Fallback(sources ...Source) Source {
	return fallback{sources: sources}
}

func (f fallback) Name() string {
	names := make([]string, len(f.sources))
	for i, s := range f.sources {
		names[i] = s.Name()
	}
	return strings.Join(names, ",")
}

func (f fallback) Open(ctx context.Context) (Capturer, error) {
	var errs []error
	for _, s := range f.sources {
		c, err := s.Open(ctx)
		if err == nil {
			slog.Info("audio source opened", "source", s.Name(), "sample_rate", c.SampleRate())
			return c, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("audio source unavailable", "source", s.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	if len(errs) == 0 {
		return nil, ErrNoAudioTrack
	}
	return nil, errors.Join(errs...)
}

// RMS returns the root mean square level of samples.
func RMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}
