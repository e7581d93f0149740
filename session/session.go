// Package session owns the backend connection lifecycle and the
// DISCONNECTED -> CONNECTED -> LISTENING state machine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.aimuz.me/signal/audiocapture"
	"go.aimuz.me/signal/audiostream"
	"go.aimuz.me/signal/internal/types"
	"go.aimuz.me/signal/transport"
)

var (
	// ErrAlreadyConnected is returned by Connect when a connection exists.
	ErrAlreadyConnected = errors.New("session already connected")

	// ErrNotConnected is returned when an operation needs an open connection.
	ErrNotConnected = errors.New("session not connected")

	// ErrNotListening is returned by StopListening outside LISTENING.
	ErrNotListening = errors.New("session not listening")

	// ErrAudioAccess wraps failures to obtain an audio track.
	ErrAudioAccess = errors.New("audio capture unavailable")
)

// MessageHandler consumes inbound text messages one at a time.
type MessageHandler func(payload []byte)

// StatusFunc observes status transitions.
type StatusFunc func(from, to types.Status)

// Config wires a Session.
type Config struct {
	Dialer    transport.Dialer
	Audio     audiocapture.Source
	Stream    audiostream.Config
	OnMessage MessageHandler

	// OnClip observes every clip sent while listening.
	OnClip func(audiostream.Clip)
}

// Session is the connection/session state machine.
type Session struct {
	cfg Config

	mu         sync.Mutex
	status     types.Status
	conn       transport.Conn
	streamer   *audiostream.Streamer
	gen        uint64 // incremented per connection; stale close events are ignored
	connecting bool
	observers  []StatusFunc
}

// New creates a disconnected session.
func New(cfg Config) *Session {
	return &Session{cfg: cfg, status: types.StatusDisconnected}
}

// OnStatusChange registers fn to run after every transition, outside the
// session lock.
func (s *Session) OnStatusChange(fn StatusFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Status returns the current state.
func (s *Session) Status() types.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Streamer returns the active streamer, or nil outside LISTENING.
func (s *Session) Streamer() *audiostream.Streamer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamer
}

// Connect opens the backend connection and moves to CONNECTED.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.status != types.StatusDisconnected || s.connecting {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.connecting = true
	s.mu.Unlock()

	conn, err := s.cfg.Dialer.Dial(ctx)

	s.mu.Lock()
	s.connecting = false
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("connect: %w", err)
	}
	s.gen++
	gen := s.gen
	s.conn = conn
	notify := s.transition(types.StatusConnected)
	s.mu.Unlock()

	notify()
	go s.pump(conn, gen)
	return nil
}

// StartListening requests an audio track and starts streaming clips.
// It requires CONNECTED with an open transport.
func (s *Session) StartListening(ctx context.Context) error {
	s.mu.Lock()
	if s.status != types.StatusConnected || s.conn == nil || !s.conn.IsOpen() {
		s.mu.Unlock()
		return ErrNotConnected
	}
	conn, gen := s.conn, s.gen
	s.mu.Unlock()

	track, err := s.cfg.Audio.Open(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAudioAccess, err)
	}

	streamer, err := audiostream.New(track, conn, s.cfg.Stream)
	if err != nil {
		_ = track.Stop()
		return err
	}
	if s.cfg.OnClip != nil {
		streamer.OnClip(s.cfg.OnClip)
	}

	s.mu.Lock()
	// The connection may have dropped while waiting for the track.
	if s.status != types.StatusConnected || s.gen != gen || !conn.IsOpen() {
		s.mu.Unlock()
		_ = track.Stop()
		return ErrNotConnected
	}
	if err := streamer.Start(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrAudioAccess, err)
	}
	s.streamer = streamer
	notify := s.transition(types.StatusListening)
	s.mu.Unlock()

	notify()
	return nil
}

// StopListening halts streaming and returns to CONNECTED. The in-flight
// clip is discarded and the track is released when its segment ends.
func (s *Session) StopListening() error {
	s.mu.Lock()
	if s.status != types.StatusListening {
		s.mu.Unlock()
		return ErrNotListening
	}
	streamer := s.streamer
	s.streamer = nil
	streamer.Halt()
	notify := s.transition(types.StatusConnected)
	s.mu.Unlock()

	notify()
	return nil
}

// SendCommand sends an out-of-band text command if the transport is open.
// Commands are never queued; failures are dropped.
func (s *Session) SendCommand(cmd string) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil || !conn.IsOpen() {
		slog.Debug("drop command, transport not open", "command", cmd)
		return
	}
	if err := conn.SendText(cmd); err != nil {
		slog.Debug("drop command", "command", cmd, "error", err)
		return
	}
	slog.Info("command sent", "command", cmd)
}

// Disconnect stops streaming, closes the transport and moves to
// DISCONNECTED. Safe to call in any state.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.status == types.StatusDisconnected {
		s.mu.Unlock()
		return
	}
	s.gen++
	finish := s.teardown()
	s.mu.Unlock()

	finish()
}

// pump feeds inbound messages to the handler in arrival order and resets the
// session when the connection ends.
func (s *Session) pump(conn transport.Conn, gen uint64) {
	for msg := range conn.Messages() {
		if s.cfg.OnMessage != nil {
			s.cfg.OnMessage(msg)
		}
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	slog.Warn("backend connection closed", "status", s.status)
	finish := s.teardown()
	s.mu.Unlock()

	_ = conn.Close()
	finish()
}

// teardown detaches the connection and streamer and moves to DISCONNECTED.
// Caller holds mu; the returned func closes the connection, stops the
// streamer and notifies observers, and must run after unlocking.
func (s *Session) teardown() func() {
	conn, streamer := s.conn, s.streamer
	s.conn, s.streamer = nil, nil
	notify := s.transition(types.StatusDisconnected)
	return func() {
		if conn != nil {
			_ = conn.Close()
		}
		if streamer != nil {
			streamer.Stop()
		}
		notify()
	}
}

// transition sets the status and returns a func that notifies observers.
// Caller holds mu; the returned func must run after unlocking.
func (s *Session) transition(to types.Status) func() {
	from := s.status
	s.status = to
	if from == to {
		return func() {}
	}
	slog.Info("session status", "from", from, "to", to)
	observers := s.observers
	return func() {
		for _, fn := range observers {
			fn(from, to)
		}
	}
}
