package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"penguinboard/internal/metrics"
	"penguinboard/internal/platform/logging"
	"penguinboard/pkg/penguins"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// Defaults applied by NewManager.
const (
	DefaultTTL      = 30 * time.Minute
	DefaultCapacity = 1024
)

// Manager tracks live sessions. Idle sessions expire after the TTL and the
// least recently used session is evicted when capacity is reached. The
// dataset is shared read-only between sessions.
type Manager struct {
	dataset  penguins.Dataset
	initial  penguins.Selection
	ttl      time.Duration
	capacity int
	logger   logging.Logger
	recorder metrics.Recorder
	now      func() time.Time
	newID    func() string

	live  atomic.Int64
	cache *expirable.LRU[string, *Session]
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the idle expiry. Non-positive values disable expiry.
func WithTTL(ttl time.Duration) Option { return func(m *Manager) { m.ttl = ttl } }

// WithCapacity bounds the number of live sessions. Zero means unbounded.
func WithCapacity(n int) Option { return func(m *Manager) { m.capacity = n } }

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option { return func(m *Manager) { m.logger = l } }

// WithRecorder sets the metrics recorder shared by the manager and its views.
func WithRecorder(r metrics.Recorder) Option { return func(m *Manager) { m.recorder = r } }

// WithInitialSelection overrides the selection new sessions start with.
func WithInitialSelection(sel penguins.Selection) Option {
	return func(m *Manager) { m.initial = sel.Clone() }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// WithIDGenerator overrides session id generation.
func WithIDGenerator(fn func() string) Option { return func(m *Manager) { m.newID = fn } }

// NewManager constructs a manager for sessions over dataset.
func NewManager(dataset penguins.Dataset, opts ...Option) *Manager {
	m := &Manager{
		dataset:  dataset,
		initial:  penguins.DefaultSelection(),
		ttl:      DefaultTTL,
		capacity: DefaultCapacity,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.OrNop(m.logger)
	m.recorder = metrics.OrNop(m.recorder)
	if m.capacity < 0 {
		m.capacity = 0
	}
	m.cache = expirable.NewLRU[string, *Session](m.capacity, m.onEvict, m.ttl)
	return m
}

// onEvict runs with the cache lock held and must not call back into it.
func (m *Manager) onEvict(id string, s *Session) {
	if !s.close() {
		return
	}
	n := m.live.Add(-1)
	m.recorder.SetGauge(metrics.GaugeActiveSessions, float64(n))
	m.logger.Debug("session closed", "session_id", id, "live", n)
}

// Dataset returns the shared base dataset.
func (m *Manager) Dataset() penguins.Dataset { return m.dataset }

// Create starts a new session with the initial selection.
func (m *Manager) Create(ctx context.Context) *Session {
	return m.create(ctx, m.newID())
}

func (m *Manager) create(_ context.Context, id string) *Session {
	s := newSession(id, m.dataset, m.initial, m.now().UTC(), m.recorder)
	s.View.OnChange(func(c Change) {
		m.logger.Debug("derived view invalidated", "session_id", id, "version", c.Version)
	})
	n := m.live.Add(1)
	m.cache.Add(id, s)
	m.syncGauge()
	m.logger.Info("session created", "session_id", id, "live", n)
	return s
}

// Get returns the live session for id and refreshes its idle timer.
func (m *Manager) Get(id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	s, ok := m.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	if !m.refresh(id, s) {
		return nil, ErrNotFound
	}
	return s, nil
}

// refresh renews the idle timer of s. A session evicted after the lookup
// is taken back out of the cache instead of being revived.
func (m *Manager) refresh(id string, s *Session) bool {
	s.touch(m.now().UTC())
	m.cache.Add(id, s)
	if !s.Closed() {
		return true
	}
	m.cache.Remove(id)
	m.syncGauge()
	return false
}

// syncGauge publishes the cache size. It must not run inside onEvict.
func (m *Manager) syncGauge() {
	m.recorder.SetGauge(metrics.GaugeActiveSessions, float64(m.cache.Len()))
}

// GetOrCreate returns the session for id, creating a fresh one when id is
// empty or unknown. The boolean reports whether a session was created.
func (m *Manager) GetOrCreate(ctx context.Context, id string) (*Session, bool) {
	if s, err := m.Get(id); err == nil {
		return s, false
	}
	return m.Create(ctx), true
}

// Delete ends the session for id.
func (m *Manager) Delete(id string) error {
	if !m.cache.Remove(id) {
		return ErrNotFound
	}
	m.syncGauge()
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int { return m.cache.Len() }

// Close ends every session.
func (m *Manager) Close() {
	m.cache.Purge()
}
