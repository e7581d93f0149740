package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.aimuz.me/signal/gesture"
)

// GestureStatus reports the recognizer state for display.
type GestureStatus struct {
	Enabled bool `json:"enabled"`
	Loaded  bool `json:"loaded"`
	Armed   bool `json:"armed"`
	Failed  bool `json:"failed"`
}

// GestureAdapter runs the gesture recognizer with proper synchronization.
type GestureAdapter struct {
	mu         sync.Mutex
	recognizer *gesture.Recognizer
	cancel     context.CancelFunc
	done       chan struct{}
	failed     bool
}

// Start runs rec in the background. Stops any existing run first. onErr is
// called once if the recognizer exits with an error.
func (ga *GestureAdapter) Start(ctx context.Context, rec *gesture.Recognizer, onErr func(error)) {
	ga.Stop()

	ga.mu.Lock()
	defer ga.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ga.recognizer = rec
	ga.cancel = cancel
	ga.done = done
	ga.failed = false

	go func() {
		defer close(done)
		err := rec.Run(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		slog.Error("gesture recognizer stopped", "error", err)
		ga.mu.Lock()
		ga.failed = errors.Is(err, gesture.ErrCameraAccess)
		ga.mu.Unlock()
		if onErr != nil {
			onErr(err)
		}
	}()
}

// Stop cancels the run and waits for the camera to be released.
func (ga *GestureAdapter) Stop() {
	ga.mu.Lock()
	cancel, done := ga.cancel, ga.done
	ga.cancel, ga.done = nil, nil
	ga.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// SetArmed arms or disarms the recognizer if one is running.
func (ga *GestureAdapter) SetArmed(armed bool) {
	ga.mu.Lock()
	rec := ga.recognizer
	ga.mu.Unlock()
	if rec != nil {
		rec.SetArmed(armed)
	}
}

// Status returns the current status, safe for concurrent access.
func (ga *GestureAdapter) Status() GestureStatus {
	ga.mu.Lock()
	defer ga.mu.Unlock()

	if ga.recognizer == nil {
		return GestureStatus{}
	}
	return GestureStatus{
		Enabled: true,
		Loaded:  ga.recognizer.Loaded(),
		Armed:   ga.recognizer.Armed(),
		Failed:  ga.failed,
	}
}
