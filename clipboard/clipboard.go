// Package clipboard reads and writes the system clipboard.
package clipboard

import (
	"errors"
	"fmt"
	"sync"

	"github.com/atotto/clipboard"
)

// ErrUnsupported is returned when no clipboard utility is available.
var ErrUnsupported = errors.New("clipboard unsupported on this system")

var clipboardLock sync.RWMutex

// SetText replaces the clipboard contents with text.
func SetText(text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}

	clipboardLock.Lock()
	defer clipboardLock.Unlock()

	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

// GetText returns the current clipboard text.
func GetText() (string, error) {
	if clipboard.Unsupported {
		return "", ErrUnsupported
	}

	clipboardLock.RLock()
	defer clipboardLock.RUnlock()

	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	return text, nil
}
