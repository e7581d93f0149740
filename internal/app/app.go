// Package app provides the core application service behind the terminal UI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.aimuz.me/signal/audiocapture"
	"go.aimuz.me/signal/audiostream"
	"go.aimuz.me/signal/clipboard"
	"go.aimuz.me/signal/config"
	"go.aimuz.me/signal/feed"
	"go.aimuz.me/signal/gesture"
	"go.aimuz.me/signal/hotkey"
	"go.aimuz.me/signal/internal/types"
	"go.aimuz.me/signal/journal"
	"go.aimuz.me/signal/notify"
	"go.aimuz.me/signal/session"
	"go.aimuz.me/signal/transport"
	"go.aimuz.me/signal/vision"
)

var (
	// ErrResponseNotReady is returned by HandleCommand when the foregrounded
	// signal has no suggested response.
	ErrResponseNotReady = errors.New("no suggested response to copy")

	// ErrUnknownCommand is returned for commands the service does not handle.
	ErrUnknownCommand = errors.New("unknown command")
)

// Command sources reported in CommandEvent.
const (
	SourceGesture = "gesture"
	SourceHotkey  = "hotkey"
	SourcePrompt  = "prompt"
)

// Notifier is the side-effect surface used by the service.
type Notifier interface {
	InputRequired(s types.Signal) error
	Copied() error
}

// Service composes the session, the signal history and the command inputs.
// This struct focuses on orchestration; business logic lives in sub-components.
type Service struct {
	cfg *config.Config

	session  *session.Session
	reducer  *feed.Reducer
	selector *feed.Selector
	notifier Notifier
	journal  *journal.Journal
	copyText func(string) error

	camera   vision.Camera
	detector vision.Detector
	gesture  GestureAdapter

	hotkey     *hotkey.Manager
	hotkeyGate *gesture.Cooldown

	dialer transport.Dialer
	audio  audiocapture.Source

	mu        sync.Mutex
	emitters  []Emitter
	sessionID string
}

// Option configures a Service.
type Option func(*Service)

// WithDialer replaces the WebSocket dialer.
func WithDialer(d transport.Dialer) Option {
	return func(s *Service) { s.dialer = d }
}

// WithAudioSource replaces the configured audio source.
func WithAudioSource(src audiocapture.Source) Option {
	return func(s *Service) { s.audio = src }
}

// WithVision enables gesture recognition with the given camera and detector.
func WithVision(cam vision.Camera, det vision.Detector) Option {
	return func(s *Service) { s.camera, s.detector = cam, det }
}

// WithNotifier replaces the sound and desktop notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClipboard replaces the clipboard writer.
func WithClipboard(fn func(string) error) Option {
	return func(s *Service) { s.copyText = fn }
}

// WithJournal records every sent clip in j. The caller owns j.
func WithJournal(j *journal.Journal) Option {
	return func(s *Service) { s.journal = j }
}

// New creates a Service from cfg. Call Start to enable gesture and hotkey
// input.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:        cfg,
		copyText:   clipboard.SetText,
		hotkeyGate: gesture.NewCooldown(cfg.Gesture.Cooldown.Std()),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.dialer == nil {
		s.dialer = transport.NewDialer(transport.Options{URL: cfg.BackendURL})
	}
	if s.audio == nil {
		s.audio = AudioSource(cfg.Audio)
	}
	if s.notifier == nil {
		s.notifier = notify.New(cfg.Notify.Sound, cfg.Notify.Desktop)
	}
	if s.camera == nil && cfg.Gesture.Enabled {
		helper := vision.NewHelper(cfg.Gesture.Command)
		s.camera, s.detector = helper, helper
	}

	s.reducer = feed.NewReducer(feed.WithNotifier(s.notifier))
	s.selector = feed.NewSelector(s.reducer)
	s.session = session.New(session.Config{
		Dialer: s.dialer,
		Audio:  s.audio,
		Stream: audiostream.Config{
			ClipDuration:   cfg.Audio.ClipDuration.Std(),
			Formats:        cfg.Audio.Formats,
			VoiceThreshold: cfg.Audio.VoiceThreshold,
		},
		OnMessage: func(payload []byte) { s.reducer.Reduce(payload) },
		OnClip:    s.recordClip,
	})

	s.session.OnStatusChange(s.onStatus)
	s.reducer.OnAppend(s.onAppend)
	s.selector.OnChange(s.onActive)
	return s
}

// Subscribe registers fn to receive service events.
func (s *Service) Subscribe(fn Emitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitters = append(s.emitters, fn)
}

// Start enables the gesture recognizer and the global hotkey when configured.
func (s *Service) Start(ctx context.Context) error {
	if s.camera != nil && s.detector != nil {
		rec := gesture.New(s.camera, s.detector,
			func(cmd types.Command) {
				if err := s.HandleCommand(cmd, SourceGesture); err != nil {
					slog.Debug("gesture command ignored", "command", cmd, "error", err)
				}
			},
			gesture.WithCooldown(s.cfg.Gesture.Cooldown.Std()),
		)
		s.gesture.Start(ctx, rec, func(err error) { s.emit(EventError, err) })
		s.updateArming()
	}

	if s.cfg.Hotkey.Enabled {
		m, err := hotkey.NewManager(s.cfg.Hotkey.Keys, s.onHotkey)
		if err != nil {
			return fmt.Errorf("setup hotkey: %w", err)
		}
		if err := m.Start(); err != nil {
			slog.Error("start hotkey", "error", err)
		} else {
			s.hotkey = m
		}
	}
	return nil
}

// Shutdown cleans up resources.
func (s *Service) Shutdown() {
	if s.hotkey != nil {
		s.hotkey.Stop()
	}
	s.gesture.Stop()
	s.session.Disconnect()
}

// emit fans an event out to all subscribers.
func (s *Service) emit(name string, data any) {
	s.mu.Lock()
	emitters := s.emitters
	s.mu.Unlock()
	for _, fn := range emitters {
		fn(name, data)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Session
// ─────────────────────────────────────────────────────────────────────────────

// Connect opens the backend connection.
func (s *Service) Connect(ctx context.Context) error {
	return s.session.Connect(ctx)
}

// StartListening starts streaming audio clips.
func (s *Service) StartListening(ctx context.Context) error {
	return s.session.StartListening(ctx)
}

// StopListening stops streaming; the connection stays open.
func (s *Service) StopListening() error {
	return s.session.StopListening()
}

// SendCommand sends a free-form text command to the backend.
func (s *Service) SendCommand(text string) error {
	if s.session.Status() == types.StatusDisconnected {
		return session.ErrNotConnected
	}
	s.session.SendCommand(text)
	return nil
}

// Disconnect closes the backend connection.
func (s *Service) Disconnect() {
	s.session.Disconnect()
}

// Status returns the session status.
func (s *Service) Status() types.Status {
	return s.session.Status()
}

// SessionID identifies the current connection in the clip journal.
func (s *Service) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Level returns the current input level, or 0 when not listening.
func (s *Service) Level() float32 {
	if st := s.session.Streamer(); st != nil {
		return st.Level()
	}
	return 0
}

// Speaking reports whether speech is detected on the audio track.
func (s *Service) Speaking() bool {
	if st := s.session.Streamer(); st != nil {
		return st.Speaking()
	}
	return false
}

// MIMEType returns the negotiated clip format, or "" when not listening.
func (s *Service) MIMEType() string {
	if st := s.session.Streamer(); st != nil {
		return st.MIMEType()
	}
	return ""
}

// Gesture returns the recognizer state.
func (s *Service) Gesture() GestureStatus {
	return s.gesture.Status()
}

func (s *Service) onStatus(from, to types.Status) {
	if from == types.StatusDisconnected && to == types.StatusConnected {
		s.mu.Lock()
		s.sessionID = uuid.NewString()
		s.mu.Unlock()
	}
	s.emit(EventStatus, StatusEvent{From: from, To: to})
	s.updateArming()
}

func (s *Service) recordClip(c audiostream.Clip) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(s.SessionID(), c); err != nil {
		slog.Debug("journal clip", "seq", c.Seq, "error", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Signals
// ─────────────────────────────────────────────────────────────────────────────

// History returns a copy of the signal history.
func (s *Service) History() []types.Signal {
	return s.reducer.History()
}

// Active returns the foregrounded display record.
func (s *Service) Active() (types.Display, bool) {
	return s.selector.Active()
}

// ResponseReady reports whether a suggested response can be copied.
func (s *Service) ResponseReady() bool {
	return s.selector.ResponseReady()
}

// Select foregrounds history entry i.
func (s *Service) Select(i int) error {
	return s.selector.Select(i)
}

func (s *Service) onAppend(index int, sig types.Signal) {
	s.emit(EventSignal, SignalEvent{Index: index, Signal: sig})
	if sig.Type == types.SignalImageGenerated {
		s.saveImage(sig)
	}
}

func (s *Service) onActive(d types.Display) {
	s.emit(EventActive, ActiveEvent{
		Display:       d,
		Total:         s.reducer.Len(),
		ResponseReady: d.Entry().HasSuggestedResponse(),
	})
	s.updateArming()
}

// saveImage writes a generated image to the configured directory.
func (s *Service) saveImage(sig types.Signal) {
	if s.cfg.ImageDir == "" || !sig.HasImage() {
		return
	}
	data, err := sig.Image()
	if err != nil {
		slog.Debug("decode generated image", "id", sig.ID, "error", err)
		return
	}
	if err := os.MkdirAll(s.cfg.ImageDir, 0755); err != nil {
		slog.Debug("create image dir", "error", err)
		return
	}
	name := fmt.Sprintf("signal-%s-%s.png", time.Now().Format("20060102-150405"), sig.ID)
	path := filepath.Join(s.cfg.ImageDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		slog.Debug("save generated image", "error", err)
		return
	}
	slog.Info("generated image saved", "path", path)
}

// ─────────────────────────────────────────────────────────────────────────────
// Commands
// ─────────────────────────────────────────────────────────────────────────────

// HandleCommand executes a user command from any input. COPY_RESPONSE copies
// the foregrounded suggested response, confirms it audibly and tells the
// backend. Side effects are best effort.
func (s *Service) HandleCommand(cmd types.Command, source string) error {
	if cmd != types.CommandCopyResponse {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}

	d, ok := s.selector.Active()
	entry := d.Entry()
	if !ok || !entry.HasSuggestedResponse() {
		return ErrResponseNotReady
	}

	copied := true
	if err := s.copyText(entry.SuggestedResponse); err != nil {
		slog.Debug("copy response", "error", err)
		copied = false
	}
	if err := s.notifier.Copied(); err != nil {
		slog.Debug("play copy confirmation", "error", err)
	}
	s.session.SendCommand(string(cmd))

	slog.Info("command handled", "command", cmd, "source", source, "copied", copied)
	s.emit(EventCommand, CommandEvent{Command: cmd, Source: source, Copied: copied})
	return nil
}

func (s *Service) onHotkey() {
	if !s.hotkeyGate.Allow(time.Now()) {
		return
	}
	if err := s.HandleCommand(types.CommandCopyResponse, SourceHotkey); err != nil {
		slog.Debug("hotkey command ignored", "error", err)
	}
}

// updateArming arms the gesture only while listening with a response ready.
func (s *Service) updateArming() {
	s.gesture.SetArmed(s.session.Status() == types.StatusListening && s.selector.ResponseReady())
}
