package feed

import (
	"errors"
	"sync"

	"go.aimuz.me/signal/internal/types"
)

// ErrIndexOutOfRange is returned when selecting a position past the history.
var ErrIndexOutOfRange = errors.New("history index out of range")

// History is the read-only view of the signal history.
type History interface {
	Len() int
	At(i int) (types.Signal, bool)
}

// ChangeFunc observes the resolved display record after the active index moves.
type ChangeFunc func(d types.Display)

// Selector tracks the active history index. Every arrival moves it to the
// newest entry; Select overrides it until the next arrival.
type Selector struct {
	mu       sync.RWMutex
	history  History
	active   int // -1 when the history is empty
	onChange []ChangeFunc
}

// NewSelector creates a selector over r and follows its arrivals.
func NewSelector(r *Reducer) *Selector {
	s := &Selector{history: r, active: -1}
	r.OnAppend(func(index int, _ types.Signal) {
		s.setActive(index)
	})
	return s
}

// OnChange registers fn to run whenever the active index changes.
func (s *Selector) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Select foregrounds the entry at index i.
func (s *Selector) Select(i int) error {
	if i < 0 || i >= s.history.Len() {
		return ErrIndexOutOfRange
	}
	s.setActive(i)
	return nil
}

// ActiveIndex returns the foregrounded position.
func (s *Selector) ActiveIndex() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, s.active >= 0
}

// Active resolves the foregrounded entry into a display record.
func (s *Selector) Active() (types.Display, bool) {
	s.mu.RLock()
	index := s.active
	s.mu.RUnlock()
	if index < 0 {
		return types.Display{}, false
	}
	return resolve(s.history.At, index)
}

// ResponseReady reports whether the entry at the active index has a
// suggested response. An image entry never borrows its primary's response.
func (s *Selector) ResponseReady() bool {
	d, ok := s.Active()
	return ok && d.Entry().HasSuggestedResponse()
}

func (s *Selector) setActive(i int) {
	s.mu.Lock()
	s.active = i
	observers := s.onChange
	s.mu.Unlock()

	if len(observers) == 0 {
		return
	}
	d, ok := resolve(s.history.At, i)
	if !ok {
		return
	}
	for _, fn := range observers {
		fn(d)
	}
}

// Resolve builds the display record for history[index]. An image entry is
// paired with the nearest preceding non-image entry, which becomes the
// primary content; without one the image entry is its own primary.
func Resolve(history []types.Signal, index int) (types.Display, bool) {
	return resolve(func(i int) (types.Signal, bool) {
		if i < 0 || i >= len(history) {
			return types.Signal{}, false
		}
		return history[i], true
	}, index)
}

func resolve(at func(int) (types.Signal, bool), index int) (types.Display, bool) {
	entry, ok := at(index)
	if !ok {
		return types.Display{}, false
	}
	d := types.Display{Index: index, Primary: entry}
	if entry.Type != types.SignalImageGenerated {
		return d, true
	}

	img := entry
	d.Image = &img
	for i := index - 1; i >= 0; i-- {
		prev, ok := at(i)
		if !ok {
			break
		}
		if prev.Type != types.SignalImageGenerated {
			d.Primary = prev
			break
		}
	}
	return d, true
}
