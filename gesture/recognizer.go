package gesture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.aimuz.me/signal/internal/types"
	"go.aimuz.me/signal/vision"
)

var (
	// ErrCameraAccess is returned when the camera cannot be opened. The
	// recognizer stays unusable afterwards.
	ErrCameraAccess = errors.New("camera access failed")

	// ErrRunning is returned when Run is called while already running.
	ErrRunning = errors.New("gesture recognizer already running")
)

// Recognizer samples camera frames and emits commands for recognized poses.
// It does nothing until the detector has loaded and the caller has armed it.
type Recognizer struct {
	camera    vision.Camera
	detector  vision.Detector
	cooldown  *Cooldown
	now       func() time.Time
	onCommand func(types.Command)

	loaded atomic.Bool
	armed  atomic.Bool

	mu      sync.Mutex
	running bool
	failed  error
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithCooldown sets the minimum interval between commands.
func WithCooldown(d time.Duration) Option {
	return func(r *Recognizer) { r.cooldown = NewCooldown(d) }
}

// WithClock overrides the clock used for the cooldown.
func WithClock(now func() time.Time) Option {
	return func(r *Recognizer) { r.now = now }
}

// New creates a recognizer. onCommand is called from the sampling goroutine.
func New(camera vision.Camera, detector vision.Detector, onCommand func(types.Command), opts ...Option) *Recognizer {
	r := &Recognizer{
		camera:    camera,
		detector:  detector,
		cooldown:  NewCooldown(DefaultCooldown),
		now:       time.Now,
		onCommand: onCommand,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetArmed enables or disables command emission.
func (r *Recognizer) SetArmed(armed bool) {
	if r.armed.Swap(armed) != armed {
		slog.Debug("gesture recognizer armed", "armed", armed)
	}
}

// Armed reports the readiness flag.
func (r *Recognizer) Armed() bool { return r.armed.Load() }

// Loaded reports whether the detector has finished initializing.
func (r *Recognizer) Loaded() bool { return r.loaded.Load() }

// Run opens the camera and samples frames until ctx is canceled or the
// stream ends. The camera is released when Run returns.
func (r *Recognizer) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.failed != nil {
		err := r.failed
		r.mu.Unlock()
		return err
	}
	if r.running {
		r.mu.Unlock()
		return ErrRunning
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go r.load(ctx)

	stream, err := r.camera.Open(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrCameraAccess, err)
		r.mu.Lock()
		r.failed = err
		r.mu.Unlock()
		return err
	}
	defer func() {
		if err := stream.Close(); err != nil {
			slog.Debug("release camera", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-stream.Frames():
			if !ok {
				slog.Info("camera stream ended")
				return nil
			}
			r.process(f)
		}
	}
}

func (r *Recognizer) load(ctx context.Context) {
	if r.loaded.Load() {
		return
	}
	if err := r.detector.Init(ctx); err != nil {
		if ctx.Err() == nil {
			slog.Warn("hand detector init failed", "error", err)
		}
		return
	}
	r.loaded.Store(true)
	slog.Info("hand detector ready")
}

func (r *Recognizer) process(f vision.Frame) {
	if !r.loaded.Load() || !r.armed.Load() {
		return
	}

	hands, err := r.detector.Detect(f)
	if err != nil {
		slog.Debug("hand detection failed", "error", err)
		return
	}
	if len(hands) == 0 {
		return
	}

	cmd, ok := Classify(hands[0])
	if !ok || !r.cooldown.Allow(r.now()) {
		return
	}

	slog.Info("gesture recognized", "command", cmd)
	if r.onCommand != nil {
		r.onCommand(cmd)
	}
}
