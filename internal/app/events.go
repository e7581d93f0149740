package app

import "go.aimuz.me/signal/internal/types"

// Event names for renderer communication.
const (
	EventStatus  = "status"
	EventSignal  = "signal"
	EventActive  = "active"
	EventCommand = "command"
	EventError   = "error"
)

// Emitter receives service events.
type Emitter func(name string, data any)

// StatusEvent is emitted on every session transition.
type StatusEvent struct {
	From types.Status `json:"from"`
	To   types.Status `json:"to"`
}

// SignalEvent is emitted when a signal is appended to the history.
type SignalEvent struct {
	Index  int          `json:"index"`
	Signal types.Signal `json:"signal"`
}

// ActiveEvent is emitted when the foregrounded entry changes.
type ActiveEvent struct {
	Display       types.Display `json:"display"`
	Total         int           `json:"total"`
	ResponseReady bool          `json:"response_ready"`
}

// CommandEvent is emitted after a user command has been handled.
type CommandEvent struct {
	Command types.Command `json:"command"`
	Source  string        `json:"source"` // "gesture", "hotkey" or "prompt"
	Copied  bool          `json:"copied"`
}
