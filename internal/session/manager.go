// Package session keeps the live flows of a multi-user deployment.
package session

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/ReelPipe/internal/flow"
	"github.com/BTreeMap/ReelPipe/internal/models"
	"github.com/BTreeMap/ReelPipe/internal/scheduler"
)

// DefaultTTL is how long a session may sit idle before ReapIdle evicts it.
const DefaultTTL = 30 * time.Minute

// DefaultReapSchedule runs the idle sweep every minute.
const DefaultReapSchedule = "@every 1m"

// Manager owns the flows by session id. Every flow shares one Timer.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*flow.Flow

	cfg      *flow.Config
	timer    flow.Timer
	ttl      time.Duration
	newID    func() string
	flowOpts []flow.Option

	reapJob int
	sched   *scheduler.Scheduler
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the idle timeout. Non-positive values keep the default.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithFlowOptions passes options to every flow the manager creates.
func WithFlowOptions(opts ...flow.Option) Option {
	return func(m *Manager) { m.flowOpts = append(m.flowOpts, opts...) }
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

// NewManager creates an empty registry for flows built from cfg.
func NewManager(cfg *flow.Config, timer flow.Timer, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*flow.Flow),
		cfg:      cfg,
		timer:    timer,
		ttl:      DefaultTTL,
		newID:    func() string { return uuid.New().String() },
		reapJob:  -1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new flow in TIMELINE_ACTIVE under a fresh id.
func (m *Manager) Create() (string, *flow.Flow, error) {
	id := m.newID()
	slog.Debug("Manager.Create invoked", "sessionID", id)

	f, err := flow.New(id, m.cfg, m.timer, m.flowOpts...)
	if err != nil {
		slog.Error("Manager.Create: flow start failed", "sessionID", id, "error", err)
		return "", nil, fmt.Errorf("create session: %w", err)
	}

	m.mu.Lock()
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		f.Close()
		return "", nil, fmt.Errorf("create session: duplicate id %s", id)
	}
	m.sessions[id] = f
	n := len(m.sessions)
	m.mu.Unlock()

	slog.Info("Session created", "sessionID", id, "active", n)
	return id, f, nil
}

// Get returns the flow for id or models.ErrSessionNotFound.
func (m *Manager) Get(id string) (*flow.Flow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return f, nil
}

// Delete closes and forgets the flow for id.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	f, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return models.ErrSessionNotFound
	}
	f.Close()
	slog.Info("Session deleted", "sessionID", id)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IDs returns the live session ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// ReapIdle closes every session whose last activity is older than the TTL
// at now, and returns how many were evicted.
func (m *Manager) ReapIdle(now time.Time) int {
	cutoff := now.Add(-m.ttl)

	m.mu.Lock()
	var idle []*flow.Flow
	for id, f := range m.sessions {
		if f.LastActivity().Before(cutoff) {
			idle = append(idle, f)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, f := range idle {
		f.Close()
		slog.Debug("Session reaped", "sessionID", f.ID())
	}
	if len(idle) > 0 {
		slog.Info("Manager.ReapIdle evicted idle sessions", "count", len(idle), "ttl", m.ttl)
	}
	return len(idle)
}

// StartReaper registers ReapIdle on s using a cron expression. An empty
// expression uses DefaultReapSchedule.
func (m *Manager) StartReaper(s *scheduler.Scheduler, expr string) error {
	if expr == "" {
		expr = DefaultReapSchedule
	}
	id, err := s.AddJob("session-reaper", expr, func() { m.ReapIdle(time.Now()) })
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.sched, m.reapJob = s, id
	m.mu.Unlock()
	return nil
}

// Close stops the reaper and closes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*flow.Flow)
	sched, job := m.sched, m.reapJob
	m.sched, m.reapJob = nil, -1
	m.mu.Unlock()

	if sched != nil {
		sched.RemoveJob(job)
	}
	for _, f := range sessions {
		f.Close()
	}
	slog.Debug("Manager.Close succeeded", "closed", len(sessions))
}
