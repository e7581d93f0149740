// Package audiostream turns one live audio track into a sequence of
// self-contained clips sent over the transport.
package audiostream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.aimuz.me/signal/audiocapture"
	"go.aimuz.me/signal/clip"
)

// DefaultClipDuration is the length of one recording segment.
const DefaultClipDuration = 3 * time.Second

// ErrStarted is returned when starting a streamer twice.
var ErrStarted = errors.New("streamer already started")

// Sender is the outbound side of the transport.
type Sender interface {
	IsOpen() bool
	SendBinary(data []byte) error
}

// Clip is one transmitted segment.
type Clip struct {
	Seq        int
	MIMEType   string
	Data       []byte
	CapturedAt time.Time
	Duration   time.Duration
	Voiced     bool // speech was detected while recording
}

// Config configures a Streamer.
type Config struct {
	ClipDuration time.Duration
	Formats      []string // MIME preference order; empty means clip.DefaultPreferences

	// VoiceThreshold is the RMS level counted as speech; 0 selects
	// DefaultVoiceThreshold.
	VoiceThreshold float32
}

// Streamer records back-to-back clips from one track. A fresh recorder is
// used per clip so every clip carries its own container header.
type Streamer struct {
	track  audiocapture.Capturer
	sender Sender
	format clip.Format
	period time.Duration

	// sendMu serializes the halt check with transmission so no clip is sent
	// once Halt has returned.
	sendMu sync.Mutex
	halted bool

	recMu sync.Mutex
	rec   *clip.Recorder

	level    atomic.Uint32 // float32 bits
	activity *Activity
	onClip   []func(Clip)
	started  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// New negotiates the clip format for track. It fails with
// clip.ErrNoSupportedFormat when nothing in cfg.Formats can be encoded.
func New(track audiocapture.Capturer, sender Sender, cfg Config) (*Streamer, error) {
	if cfg.ClipDuration <= 0 {
		cfg.ClipDuration = DefaultClipDuration
	}
	format, err := clip.Negotiate(cfg.Formats, track.SampleRate(), track.Channels())
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Streamer{
		track:    track,
		sender:   sender,
		format:   format,
		period:   cfg.ClipDuration,
		activity: NewActivity(cfg.VoiceThreshold, 0),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, nil
}

// OnClip registers fn to observe every transmitted clip. Must be called
// before Start.
func (s *Streamer) OnClip(fn func(Clip)) {
	s.onClip = append(s.onClip, fn)
}

// MIMEType returns the negotiated clip format.
func (s *Streamer) MIMEType() string { return s.format.MIMEType }

// Level returns the RMS level of the most recent captured chunk.
func (s *Streamer) Level() float32 {
	return math.Float32frombits(s.level.Load())
}

// Speaking reports whether speech is currently detected on the track.
func (s *Streamer) Speaking() bool { return s.activity.Speaking() }

// Done is closed once the loop has exited and the track is released.
func (s *Streamer) Done() <-chan struct{} { return s.done }

// Start begins capture and the clip loop.
func (s *Streamer) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrStarted
	}

	if err := s.track.Start(s.handleAudio); err != nil {
		s.cancel()
		_ = s.track.Stop()
		close(s.done)
		return fmt.Errorf("start audio track: %w", err)
	}

	slog.Info("audio streaming started", "format", s.format.MIMEType,
		"sample_rate", s.format.SampleRate, "clip", s.period)
	go s.run(s.ctx)
	return nil
}

// Halt requests the loop to end. The clip being recorded is discarded when
// its segment completes and the track is released then. No clip is
// transmitted after Halt returns.
func (s *Streamer) Halt() {
	s.sendMu.Lock()
	s.halted = true
	s.sendMu.Unlock()
}

// Stop halts, interrupts the current segment and waits for the track to be
// released. Safe to call repeatedly and on a streamer that never started.
func (s *Streamer) Stop() {
	s.Halt()
	s.cancel()
	if !s.started.Load() {
		return
	}
	<-s.done
}

func (s *Streamer) handleAudio(samples []float32) {
	level := audiocapture.RMS(samples)
	s.level.Store(math.Float32bits(level))
	s.activity.Observe(level)

	s.recMu.Lock()
	rec := s.rec
	s.recMu.Unlock()
	if rec != nil {
		rec.Write(samples)
	}
}

func (s *Streamer) setRecorder(r *clip.Recorder) {
	s.recMu.Lock()
	s.rec = r
	s.recMu.Unlock()
}

func (s *Streamer) run(ctx context.Context) {
	defer close(s.done)
	defer func() {
		if err := s.track.Stop(); err != nil {
			slog.Debug("release audio track", "error", err)
		}
		slog.Info("audio streaming stopped")
	}()

	for seq := 1; ; seq++ {
		enc, err := s.format.NewEncoder()
		if err != nil {
			slog.Error("create clip encoder", "error", err)
			return
		}
		rec := clip.NewRecorder(enc)
		started := time.Now()
		s.setRecorder(rec)

		timer := time.NewTimer(s.period)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}

		s.setRecorder(nil)
		data, err := rec.Stop()

		sent, ok := s.transmit(seq, data, err, started, s.activity.TakeVoiced())
		if !ok {
			return
		}
		if sent != nil {
			for _, fn := range s.onClip {
				fn(*sent)
			}
		}
	}
}

// transmit sends one finalized clip. It returns the sent clip, if any, and
// false when the loop must end.
func (s *Streamer) transmit(seq int, data []byte, encErr error, started time.Time, voiced bool) (*Clip, bool) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.halted {
		slog.Debug("discard clip after halt", "seq", seq, "size", len(data))
		return nil, false
	}
	if encErr != nil {
		slog.Warn("finalize clip failed", "seq", seq, "error", encErr)
		return nil, true
	}
	if len(data) == 0 {
		return nil, true
	}
	if !s.sender.IsOpen() {
		slog.Debug("transport not open, dropping clip", "seq", seq, "size", len(data))
		return nil, true
	}
	if err := s.sender.SendBinary(data); err != nil {
		slog.Warn("send clip failed", "seq", seq, "error", err)
		return nil, true
	}

	slog.Debug("clip sent", "seq", seq, "size", len(data), "format", s.format.MIMEType, "voiced", voiced)
	return &Clip{
		Seq:        seq,
		MIMEType:   s.format.MIMEType,
		Data:       data,
		CapturedAt: started,
		Duration:   time.Since(started),
		Voiced:     voiced,
	}, true
}
