// Package hotkey listens for a global keyboard shortcut.
package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// DefaultCombo copies the active suggested response.
const DefaultCombo = "ctrl+shift+c"

// ErrRunning is returned when starting a manager twice.
var ErrRunning = errors.New("hotkey listener already running")

// Manager registers one global shortcut.
type Manager struct {
	keys      []string
	onTrigger func()

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewManager creates a manager for combo (e.g. "ctrl+shift+c").
func NewManager(combo string, onTrigger func()) (*Manager, error) {
	keys, err := ParseCombo(combo)
	if err != nil {
		return nil, err
	}
	return &Manager{keys: keys, onTrigger: onTrigger}, nil
}

// Keys returns the parsed key names.
func (m *Manager) Keys() []string { return m.keys }

// Start installs the global hook. The trigger runs on its own goroutine so
// the hook loop is never blocked.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrRunning
	}

	hook.Register(hook.KeyDown, m.keys, func(hook.Event) {
		go m.onTrigger()
	})

	events := hook.Start()
	m.done = make(chan struct{})
	m.running = true

	go func() {
		defer close(m.done)
		<-hook.Process(events)
	}()

	slog.Info("hotkey registered", "keys", strings.Join(m.keys, "+"))
	return nil
}

// Stop removes the hook.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	done := m.done
	m.mu.Unlock()

	hook.End()
	<-done
}

var modifierAliases = map[string]string{
	"control": "ctrl",
	"command": "cmd",
	"option":  "alt",
	"opt":     "alt",
	"super":   "cmd",
	"win":     "cmd",
}

// ParseCombo splits "Ctrl+Shift+C" into gohook key names.
func ParseCombo(combo string) ([]string, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(combo)), "+")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("invalid hotkey %q", combo)
		}
		if alias, ok := modifierAliases[p]; ok {
			p = alias
		}
		keys = append(keys, p)
	}
	if len(keys) < 2 {
		return nil, fmt.Errorf("hotkey %q needs a modifier", combo)
	}
	return keys, nil
}
