package api

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/sks-levelbuilder/internal/builder"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClockedManager(ttl time.Duration, max int) (*SessionManager, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	sm := NewSessionManager(builder.DefaultOptions(), ttl, max)
	sm.now = clock.Now
	return sm, clock
}

func TestSessionManagerLifecycle(t *testing.T) {
	sm, _ := newClockedManager(0, 0)

	a, err := sm.Create()
	require.NoError(t, err)
	b, err := sm.Create()
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotSame(t, a.Builder, b.Builder)
	assert.Equal(t, 2, sm.Count())

	got, err := sm.Get(a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)

	assert.True(t, sm.Close(a.ID))
	assert.False(t, sm.Close(a.ID))

	_, err = sm.Get(a.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, []string{b.ID}, sm.IDs())
}

func TestSessionsAreIsolated(t *testing.T) {
	sm, _ := newClockedManager(0, 0)
	a, _ := sm.Create()
	b, _ := sm.Create()

	require.NoError(t, a.Builder.AddBlockID(0, "b0"))
	assert.Equal(t, "b0", a.Builder.LevelData()[0])
	assert.Equal(t, "null", b.Builder.LevelData()[0])
}

func TestSessionManagerLimit(t *testing.T) {
	sm, _ := newClockedManager(0, 2)
	a, _ := sm.Create()
	_, err := sm.Create()
	require.NoError(t, err)

	_, err = sm.Create()
	assert.ErrorIs(t, err, ErrTooManySessions)

	sm.Close(a.ID)
	_, err = sm.Create()
	assert.NoError(t, err)
}

func TestSessionExpiry(t *testing.T) {
	sm, clock := newClockedManager(time.Minute, 0)
	idle, _ := sm.Create()
	active, _ := sm.Create()

	clock.Advance(40 * time.Second)
	_, err := sm.Get(active.ID)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	assert.Equal(t, []string{idle.ID}, sm.Sweep())
	assert.Equal(t, 1, sm.Count())

	clock.Advance(2 * time.Minute)
	_, err = sm.Get(active.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound, "expired session is dropped on access")
	assert.Zero(t, sm.Count())
}

func TestSessionJanitor(t *testing.T) {
	sm, clock := newClockedManager(time.Minute, 0)
	s, _ := sm.Create()
	clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	expired := make(chan string, 1)
	sm.StartJanitor(ctx, 10*time.Millisecond, func(id string) { expired <- id })

	select {
	case id := <-expired:
		assert.Equal(t, s.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not sweep expired session")
	}
}

func TestFormatUptime(t *testing.T) {
	cases := map[time.Duration]string{
		5 * time.Second:               "5с",
		2*time.Minute + 3*time.Second: "2м 3с",
		time.Hour + time.Minute:       "1ч 1м 0с",
		49*time.Hour + 30*time.Minute: "2д 1ч 30м 0с",
	}
	for d, want := range cases {
		assert.Equal(t, want, formatUptime(d))
	}
}

func TestServerMetricsSnapshot(t *testing.T) {
	m := NewServerMetrics()
	snap := m.Snapshot()
	assert.GreaterOrEqual(t, snap.UptimeSeconds, int64(0))
	assert.Greater(t, snap.HeapAllocMB, 0.0)
}
