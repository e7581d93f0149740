// Package notify plays notification sounds and desktop alerts.
package notify

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gen2brain/beeep"

	"go.aimuz.me/signal/internal/types"
)

// Tones used for the two notifications.
const (
	alertFreq     = 880.0
	alertDuration = 180 // ms
	successFreq   = 1320.0
	successLength = 90 // ms
)

// Notifier emits audible and optional desktop notifications. Every method
// is best effort; callers are expected to ignore the returned error.
type Notifier struct {
	Sound   bool
	Desktop bool

	beep   func(freq float64, ms int) error
	notify func(title, message string) error
}

// New creates a notifier using the system beeper and notification center.
func New(sound, desktop bool) *Notifier {
	return &Notifier{
		Sound:   sound,
		Desktop: desktop,
		beep:    beeep.Beep,
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// InputRequired alerts the user that a question is waiting for them. The
// alert plays in the background; failures are logged, never returned.
func (n *Notifier) InputRequired(s types.Signal) error {
	go func() {
		if err := n.alert(s); err != nil {
			slog.Debug("input required notification failed", "error", err)
		}
	}()
	return nil
}

func (n *Notifier) alert(s types.Signal) error {
	var errs []error
	if n.Sound {
		if err := n.beep(alertFreq, alertDuration); err != nil {
			errs = append(errs, fmt.Errorf("play alert: %w", err))
		}
	}
	if n.Desktop {
		title := s.Title
		if title == "" {
			title = "Input required"
		}
		if err := n.notify(title, s.Description); err != nil {
			errs = append(errs, fmt.Errorf("desktop notification: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Copied confirms that a response landed on the clipboard.
func (n *Notifier) Copied() error {
	if !n.Sound {
		return nil
	}
	if err := n.beep(successFreq, successLength); err != nil {
		return fmt.Errorf("play success: %w", err)
	}
	return nil
}
