package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"penguinboard/internal/metrics"
	platformotel "penguinboard/internal/platform/otel"
	"penguinboard/pkg/penguins"
)

// View is the derived-view accessor for one session. It recomputes the
// filtered records only when the species selection has changed since the
// last access; other parameters never trigger recomputation.
type View struct {
	state    *State
	base     penguins.Dataset
	recorder metrics.Recorder

	mu         sync.Mutex
	cached     []penguins.Record
	computed   bool
	version    uint64
	stale      bool
	recomputes uint64

	listenerMu sync.Mutex
	listeners  []func(Change)

	unsubscribe func()
}

// NewView binds base to state. Close releases the state subscription.
func NewView(base penguins.Dataset, state *State, recorder metrics.Recorder) *View {
	v := &View{
		state:    state,
		base:     base,
		recorder: metrics.OrNop(recorder),
		stale:    true,
	}
	v.unsubscribe = state.Subscribe(v.onSpeciesChange, penguins.KeySelectedSpecies)
	return v
}

func (v *View) onSpeciesChange(c Change) {
	v.mu.Lock()
	v.stale = true
	v.mu.Unlock()

	v.listenerMu.Lock()
	listeners := slices.Clone(v.listeners)
	v.listenerMu.Unlock()
	for _, fn := range listeners {
		fn(c)
	}
}

// OnChange registers fn to run whenever the view becomes stale. Consumers use
// it to re-read FilteredData.
func (v *View) OnChange(fn func(Change)) {
	if fn == nil {
		return
	}
	v.listenerMu.Lock()
	v.listeners = append(v.listeners, fn)
	v.listenerMu.Unlock()
}

// FilteredData returns the records matching the current species selection.
func (v *View) FilteredData() []penguins.Record {
	return v.FilteredDataContext(context.Background())
}

// FilteredDataContext is FilteredData with a parent context for tracing.
// The returned slice is the caller's to keep.
func (v *View) FilteredDataContext(ctx context.Context) []penguins.Record {
	species, version := v.state.species()

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.computed || version != v.version {
		v.recomputeLocked(ctx, species, version)
	}
	out := make([]penguins.Record, len(v.cached))
	copy(out, v.cached)
	return out
}

func (v *View) recomputeLocked(ctx context.Context, species penguins.SpeciesSet, version uint64) {
	_, span := platformotel.Tracer().Start(ctx, "session.view.recompute")
	defer span.End()

	start := time.Now()
	v.cached = penguins.FilteredData(v.base, species)
	v.version = version
	v.computed = true
	v.stale = false
	v.recomputes++

	span.SetAttributes(
		attribute.StringSlice("penguins.species", species.Strings()),
		attribute.Int("penguins.records", len(v.cached)),
	)
	v.recorder.Observe(ctx, metrics.OpViewRecompute, true, time.Since(start))
}

// Stale reports whether the next access will recompute.
func (v *View) Stale() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stale || !v.computed
}

// Recomputes counts how many times the filter has run.
func (v *View) Recomputes() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.recomputes
}

// Base returns the dataset the view filters.
func (v *View) Base() penguins.Dataset { return v.base }

// Close detaches the view from its state.
func (v *View) Close() {
	if v.unsubscribe != nil {
		v.unsubscribe()
	}
}
