package session

import (
	"sync/atomic"
	"time"

	"penguinboard/internal/metrics"
	"penguinboard/pkg/penguins"
)

// Session pairs one user's input state with its derived view.
type Session struct {
	ID        string
	State     *State
	View      *View
	CreatedAt time.Time

	lastSeen atomic.Int64
	closed   atomic.Bool
}

func newSession(id string, base penguins.Dataset, initial penguins.Selection, now time.Time, rec metrics.Recorder) *Session {
	state := NewState(initial)
	s := &Session{
		ID:        id,
		State:     state,
		View:      NewView(base, state, rec),
		CreatedAt: now,
	}
	s.lastSeen.Store(now.UnixNano())
	return s
}

// LastSeen reports the most recent access through the manager.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load()).UTC()
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// Close releases the view subscription. Later calls are no-ops.
func (s *Session) Close() { s.close() }

// Closed reports whether the session has been released.
func (s *Session) Closed() bool { return s.closed.Load() }

// close reports whether this call released the session.
func (s *Session) close() bool {
	if !s.closed.CompareAndSwap(false, true) {
		return false
	}
	s.View.Close()
	return true
}
