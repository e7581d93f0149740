package feed

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.aimuz.me/signal/internal/types"
)

// Notifier is the best-effort side effect fired for INPUT_REQUIRED signals.
type Notifier interface {
	InputRequired(s types.Signal) error
}

// AppendFunc observes a signal appended at index.
type AppendFunc func(index int, s types.Signal)

// Reducer decodes inbound messages and owns the signal history.
// It is the only writer of the history; Reduce calls must not overlap for
// arrival order to hold, which the session guarantees by feeding it from a
// single goroutine.
type Reducer struct {
	mu       sync.RWMutex
	history  []types.Signal
	notifier Notifier
	onAppend []AppendFunc
	now      func() time.Time
}

// ReducerOption configures a Reducer.
type ReducerOption func(*Reducer)

// WithNotifier sets the INPUT_REQUIRED notifier.
func WithNotifier(n Notifier) ReducerOption {
	return func(r *Reducer) { r.notifier = n }
}

// WithClock overrides the arrival clock.
func WithClock(now func() time.Time) ReducerOption {
	return func(r *Reducer) { r.now = now }
}

// NewReducer creates an empty history.
func NewReducer(opts ...ReducerOption) *Reducer {
	r := &Reducer{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnAppend registers fn to run after every append, outside the history lock.
func (r *Reducer) OnAppend(fn AppendFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onAppend = append(r.onAppend, fn)
}

// Reduce processes one inbound payload. It reports whether the payload was
// appended to the history. Malformed payloads and heartbeats are dropped.
func (r *Reducer) Reduce(payload []byte) bool {
	s, err := ParseSignal(payload)
	if err != nil {
		slog.Warn("drop malformed signal", "error", err, "size", len(payload))
		return false
	}

	if s.Type == types.SignalIdle {
		slog.Debug("backend heartbeat", "title", s.Title, "description", s.Description)
		return false
	}

	s.ID = uuid.NewString()
	s.ReceivedAt = r.now()

	r.mu.Lock()
	r.history = append(r.history, s)
	index := len(r.history) - 1
	observers := r.onAppend
	r.mu.Unlock()

	slog.Info("signal received", "index", index, "type", s.Type, "title", s.Title)

	if s.Type == types.SignalInputRequired && r.notifier != nil {
		if err := r.notifier.InputRequired(s); err != nil {
			slog.Debug("input required notification failed", "error", err)
		}
	}

	for _, fn := range observers {
		fn(index, s)
	}
	return true
}

// Len returns the history length.
func (r *Reducer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.history)
}

// At returns the signal at index i.
func (r *Reducer) At(i int) (types.Signal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.history) {
		return types.Signal{}, false
	}
	return r.history[i], true
}

// History returns a copy of the history, oldest first.
func (r *Reducer) History() []types.Signal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Signal, len(r.history))
	copy(out, r.history)
	return out
}
