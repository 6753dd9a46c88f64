package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"sqltalk/internal/logging"
)

// ManagerConfig controls session lifecycle management.
type ManagerConfig struct {
	// TTL is how long an idle session is retained. Zero disables
	// expiry.
	TTL time.Duration
	// SweepInterval is how often expired sessions are collected.
	SweepInterval time.Duration
	Session       SessionConfig
}

// DefaultManagerConfig returns the calibrated defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		TTL:           30 * time.Minute,
		SweepInterval: time.Minute,
		Session:       DefaultSessionConfig(),
	}
}

type managedSession struct {
	session  *Session
	lastSeen time.Time
}

// Manager keys independent sessions by id. The detector and collaborators
// are shared across sessions; each session owns its history. All methods
// are safe for concurrent use.
type Manager struct {
	detector   *Detector
	generator  Generator
	executor   Executor
	visualizer Visualizer
	cfg        ManagerConfig

	mu       sync.Mutex
	sessions map[string]*managedSession

	done    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// NewManager creates a manager and starts its idle-session sweeper.
func NewManager(detector *Detector, cfg ManagerConfig, generator Generator, executor Executor, visualizer Visualizer) *Manager {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultManagerConfig().SweepInterval
	}
	m := &Manager{
		detector:   detector,
		generator:  generator,
		executor:   executor,
		visualizer: visualizer,
		cfg:        cfg,
		sessions:   make(map[string]*managedSession),
		done:       make(chan struct{}),
	}
	if cfg.TTL > 0 {
		m.wg.Add(1)
		go m.sweep()
	}
	return m
}

// NewSession creates and registers a session with a fresh id.
func (m *Manager) NewSession() *Session {
	id := uuid.NewString()
	s := NewSession(id, m.detector, m.cfg.Session, m.generator, m.executor, m.visualizer)
	m.mu.Lock()
	m.sessions[id] = &managedSession{session: s, lastSeen: time.Now()}
	m.mu.Unlock()
	logging.Session("Created session %s", id)
	return s
}

// Get returns the session with the given id, creating it when unknown.
// Lazy creation lets callers use their own stable keys.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ms, ok := m.sessions[id]; ok {
		ms.lastSeen = time.Now()
		return ms.session
	}
	s := NewSession(id, m.detector, m.cfg.Session, m.generator, m.executor, m.visualizer)
	m.sessions[id] = &managedSession{session: s, lastSeen: time.Now()}
	logging.Session("Created session %s on first use", id)
	return s
}

// Submit routes one turn to the identified session, creating it on first
// use and refreshing its idle timer.
func (m *Manager) Submit(ctx context.Context, id, message string) (*Result, error) {
	return m.Get(id).Submit(ctx, message)
}

// Remove drops a session. Removing an unknown id is a no-op.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Stop shuts down the sweeper. Sessions remain usable afterwards but are
// no longer expired.
func (m *Manager) Stop() {
	m.stopped.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
}

func (m *Manager) sweep() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.expire(time.Now())
		}
	}
}

// expire removes sessions idle past the TTL. Split out from sweep so
// tests can drive it with a synthetic clock.
func (m *Manager) expire(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ms := range m.sessions {
		if now.Sub(ms.lastSeen) > m.cfg.TTL {
			delete(m.sessions, id)
			logging.Session("Expired idle session %s", id)
		}
	}
}
