package proxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParsePool(t *testing.T) {
	t.Parallel()

	require.Nil(t, ParsePool(""))
	require.Nil(t, ParsePool("  "))
	require.Equal(t,
		[]string{"http://p1:8080", "http://p2:8080"},
		ParsePool(" http://p1:8080, http://p2:8080 ,"),
	)
}

func TestManager_EmptyPoolAcquiresNothing(t *testing.T) {
	t.Parallel()

	m := NewManager(nil)
	_, ok := m.Acquire()
	require.False(t, ok)
	require.Zero(t, m.Size())
}

func TestManager_RoundRobin(t *testing.T) {
	t.Parallel()

	m := NewManager([]string{"http://a", "http://b", "http://c"})

	got := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		u, ok := m.Acquire()
		require.True(t, ok)
		got = append(got, u)
	}
	require.Equal(t, []string{"http://a", "http://b", "http://c", "http://a", "http://b", "http://c"}, got)
}

func TestManager_CooldownSkipsUnhealthyProxy(t *testing.T) {
	t.Parallel()

	now := time.Unix(5000, 0)
	m := NewManager(
		[]string{"http://a", "http://b"},
		WithFailureThreshold(2),
		WithCooldown(time.Minute),
		WithClock(func() time.Time { return now }),
	)

	m.ReportFailure("http://a")
	m.ReportFailure("http://a")

	for i := 0; i < 4; i++ {
		u, ok := m.Acquire()
		require.True(t, ok)
		require.Equal(t, "http://b", u)
	}

	// Cooldown elapsed: a is selectable again.
	now = now.Add(2 * time.Minute)
	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		u, ok := m.Acquire()
		require.True(t, ok)
		seen[u] = true
	}
	require.True(t, seen["http://a"])
}

func TestManager_AllProxiesCoolingDown(t *testing.T) {
	t.Parallel()

	now := time.Unix(5000, 0)
	m := NewManager(
		[]string{"http://a"},
		WithFailureThreshold(1),
		WithCooldown(time.Minute),
		WithClock(func() time.Time { return now }),
	)

	m.ReportFailure("http://a")
	_, ok := m.Acquire()
	require.False(t, ok)
}

func TestManager_SuccessDecaysFailuresIncrementally(t *testing.T) {
	t.Parallel()

	m := NewManager([]string{"http://a"}, WithFailureThreshold(5))

	m.ReportFailure("http://a")
	m.ReportFailure("http://a")
	m.ReportFailure("http://a")
	m.ReportSuccess("http://a", 100*time.Millisecond)

	snap := m.Snapshot()
	require.Len(t, snap, 1)
	// One success takes a single step off the streak, not a full reset.
	require.Equal(t, 2, snap[0].ConsecutiveFailures)
	require.Equal(t, 3, snap[0].Failures)
	require.Equal(t, 1, snap[0].Successes)
}

func TestManager_LatencyEMA(t *testing.T) {
	t.Parallel()

	m := NewManager([]string{"http://a"})

	m.ReportSuccess("http://a", 100*time.Millisecond)
	snap := m.Snapshot()
	require.Equal(t, 100*time.Millisecond, snap[0].AvgLatency)

	m.ReportSuccess("http://a", 200*time.Millisecond)
	snap = m.Snapshot()
	// 0.2*200 + 0.8*100 = 120ms
	require.Equal(t, 120*time.Millisecond, snap[0].AvgLatency)
}
