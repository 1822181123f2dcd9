// Package session owns per-user input state and the derived view computed
// from it. State publishes explicit change events; View subscribes to the
// species selection and recomputes lazily on the next access.
package session

import (
	"fmt"
	"slices"
	"sync"

	"penguinboard/pkg/penguins"
)

// Change describes one parameter transition.
type Change struct {
	Key     string
	Old     any
	New     any
	Version uint64
}

// Listener receives change events. Listeners run synchronously on the
// goroutine that mutated the state, after the state lock is released.
type Listener func(Change)

type subscription struct {
	keys map[string]struct{}
	fn   Listener
}

func (s subscription) wants(key string) bool {
	if len(s.keys) == 0 {
		return true
	}
	_, ok := s.keys[key]
	return ok
}

// State is a change-notified key/value store over the declared input
// parameters. The zero value is not usable; use NewState.
type State struct {
	mu          sync.Mutex
	sel         penguins.Selection
	version     uint64
	keyVersions map[string]uint64
	subs        map[uint64]subscription
	nextSub     uint64
}

// NewState returns a state seeded with initial.
func NewState(initial penguins.Selection) *State {
	if initial.Species == nil {
		initial.Species = penguins.NewSpeciesSet()
	}
	return &State{
		sel:         initial.Clone(),
		keyVersions: make(map[string]uint64),
		subs:        make(map[uint64]subscription),
	}
}

// Get returns the typed value stored under key.
func (s *State) Get(key string) (any, error) {
	param, ok := penguins.LookupParameter(key)
	if !ok {
		return nil, unknownParameter(key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.Value(param.Name)
}

// Set coerces raw and stores it under key. Storing a value equal to the
// current one publishes nothing. Coercion failures are reported as a
// penguins.ParameterError.
func (s *State) Set(key string, raw any) error {
	param, ok := penguins.LookupParameter(key)
	if !ok {
		return unknownParameter(key)
	}
	coerced, err := penguins.Coerce(param.Name, raw)
	if err != nil {
		return penguins.ParameterError{Name: param.Name, Message: err.Error()}
	}

	s.mu.Lock()
	next, err := s.sel.With(param.Name, coerced)
	if err != nil {
		s.mu.Unlock()
		return penguins.ParameterError{Name: param.Name, Message: err.Error()}
	}
	changes := s.commitLocked(next)
	listeners := s.listenersLocked()
	s.mu.Unlock()

	publish(listeners, changes)
	return nil
}

// Apply sets several parameters at once. Either every parameter is applied or,
// when any fails coercion, none is and the sorted errors are returned. One
// event is published per key whose value changed.
func (s *State) Apply(params map[string]any) []penguins.ParameterError {
	if len(params) == 0 {
		return nil
	}
	s.mu.Lock()
	next, errs := penguins.ApplyParameters(s.sel, params)
	if len(errs) > 0 {
		s.mu.Unlock()
		return errs
	}
	changes := s.commitLocked(next)
	listeners := s.listenersLocked()
	s.mu.Unlock()

	publish(listeners, changes)
	return nil
}

// Selection returns a deep copy of the current values.
func (s *State) Selection() penguins.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.Clone()
}

// Version counts committed changes across all keys.
func (s *State) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// KeyVersion returns the global version at which key last changed, or zero
// when it never changed.
func (s *State) KeyVersion(key string) uint64 {
	param, ok := penguins.LookupParameter(key)
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyVersions[param.Name]
}

// Subscribe registers fn for changes to keys, or to every key when none are
// given. The returned func removes the subscription and is safe to call more
// than once.
func (s *State) Subscribe(fn Listener, keys ...string) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	sub := subscription{fn: fn}
	if len(keys) > 0 {
		sub.keys = make(map[string]struct{}, len(keys))
		for _, k := range keys {
			if param, ok := penguins.LookupParameter(k); ok {
				k = param.Name
			}
			sub.keys[k] = struct{}{}
		}
	}

	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = sub
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// species returns the selected species together with the version at which
// the species key last changed, read under one lock.
func (s *State) species() (penguins.SpeciesSet, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.Species.Clone(), s.keyVersions[penguins.KeySelectedSpecies]
}

func (s *State) commitLocked(next penguins.Selection) []Change {
	var changes []Change
	for _, p := range penguins.Parameters() {
		oldVal, _ := s.sel.Value(p.Name)
		newVal, _ := next.Value(p.Name)
		if valuesEqual(oldVal, newVal) {
			continue
		}
		s.version++
		s.keyVersions[p.Name] = s.version
		changes = append(changes, Change{Key: p.Name, Old: oldVal, New: newVal, Version: s.version})
	}
	if len(changes) > 0 {
		s.sel = next
	}
	return changes
}

func (s *State) listenersLocked() []subscription {
	if len(s.subs) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	// registration order
	slices.Sort(ids)
	out := make([]subscription, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}

func publish(listeners []subscription, changes []Change) {
	for _, c := range changes {
		for _, l := range listeners {
			if l.wants(c.Key) {
				l.fn(c)
			}
		}
	}
}

func valuesEqual(a, b any) bool {
	as, aok := a.(penguins.SpeciesSet)
	bs, bok := b.(penguins.SpeciesSet)
	if aok || bok {
		return aok && bok && as.Equal(bs)
	}
	return a == b
}

func unknownParameter(key string) error {
	return fmt.Errorf("%w: %s", penguins.ErrUnknownParameter, key)
}
