package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	cfg := DefaultManagerConfig()
	cfg.TTL = ttl
	m := NewManager(patternDetector(), cfg, &fakeGenerator{sql: "SELECT 1"}, nil, nil)
	t.Cleanup(m.Stop)
	return m
}

func TestManagerNoGoroutineLeaks(t *testing.T) {
	// The genai dependency starts an opencensus stats worker at package
	// init; it is process-wide, not a leak of ours.
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	m := NewManager(patternDetector(), DefaultManagerConfig(), nil, nil, nil)
	m.NewSession()
	m.Stop()
}

func TestManagerKeyedSessions(t *testing.T) {
	m := newTestManager(t, time.Hour)

	a := m.Get("alice")
	b := m.Get("bob")
	assert.NotSame(t, a, b)
	assert.Same(t, a, m.Get("alice"), "same key yields the same session")
	assert.Equal(t, 2, m.Len())

	m.Remove("alice")
	assert.Equal(t, 1, m.Len())
	m.Remove("alice") // no-op
}

func TestManagerGeneratedIDsAreUnique(t *testing.T) {
	m := newTestManager(t, time.Hour)

	a := m.NewSession()
	b := m.NewSession()
	require.NotEqual(t, a.ID(), b.ID())
	assert.Same(t, a, m.Get(a.ID()))
}

func TestManagerSubmitRoutes(t *testing.T) {
	m := newTestManager(t, time.Hour)

	_, err := m.Submit(context.Background(), "alice", "show all customers")
	require.NoError(t, err)
	_, err = m.Submit(context.Background(), "alice", "show all invoices")
	require.NoError(t, err)
	_, err = m.Submit(context.Background(), "bob", "show all tracks")
	require.NoError(t, err)

	assert.Equal(t, 2, m.Get("alice").Len())
	assert.Equal(t, 1, m.Get("bob").Len())
}

func TestManagerExpiresIdleSessions(t *testing.T) {
	m := newTestManager(t, time.Minute)

	m.Get("stale")
	m.Get("fresh")
	require.Equal(t, 2, m.Len())

	// Refresh one idle timer, then advance past the TTL from the
	// perspective of the other.
	future := time.Now().Add(2 * time.Minute)
	m.mu.Lock()
	m.sessions["fresh"].lastSeen = future
	m.mu.Unlock()

	m.expire(future)
	assert.Equal(t, 1, m.Len())
	_, remains := m.lookup("fresh")
	assert.True(t, remains)
}

// lookup is a test helper peeking at the session table.
func (m *Manager) lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return ms.session, true
}
