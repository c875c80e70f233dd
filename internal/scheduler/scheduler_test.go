package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a9lim/shannon/internal/bus"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "sched.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddJobRejectsInvalidExpr(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddJob(context.Background(), "job1", "not a cron expr", "noop")
	require.ErrorIs(t, err, ErrInvalidExpr)
}

func TestAddJobRejectsDuplicateName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.AddJob(ctx, "job1", "* * * * *", "noop")
	require.NoError(t, err)

	_, err = s.AddJob(ctx, "job1", "*/5 * * * *", "noop")
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestRemoveAndListJobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.AddJob(ctx, "job1", "* * * * *", "noop")
	require.NoError(t, err)

	jobs, err := s.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	ok, err := s.RemoveJob(ctx, "job1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.RemoveJob(ctx, "job1")
	require.NoError(t, err)
	assert.False(t, ok)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []bus.SchedulerTrigger
}

func (f *fakePublisher) Publish(kind bus.Kind, payload any) bus.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if trigger, ok := payload.(bus.SchedulerTrigger); ok {
		f.events = append(f.events, trigger)
	}
	return bus.Event{Kind: kind, Payload: payload}
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestDispatchDueJobsFiresAtMostOncePerTick(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.AddJob(ctx, "every-minute", "* * * * *", "say hi")
	require.NoError(t, err)

	pub := &fakePublisher{}
	sched := New(s, pub, time.Hour, "")
	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sched.now = func() time.Time { return fixed }

	sched.dispatchDueJobs(ctx)
	sched.dispatchDueJobs(ctx)

	assert.Equal(t, 1, pub.count(), "second tick at the same instant must not refire")
}

func TestDispatchDueJobsSkipsDisabledJobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.AddJob(ctx, "job1", "* * * * *", "noop")
	require.NoError(t, err)
	_, err = s.RemoveJob(ctx, "job1")
	require.NoError(t, err)

	pub := &fakePublisher{}
	sched := New(s, pub, time.Hour, "")
	sched.dispatchDueJobs(ctx)
	assert.Equal(t, 0, pub.count())
}

func TestHeartbeatLoopWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartbeat")
	s := newTestStore(t)
	sched := New(s, &fakePublisher{}, 20*time.Millisecond, path)

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)
	time.Sleep(60 * time.Millisecond)
	cancel()
	sched.Stop()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestCheckStaleHeartbeatWarnsOnOldTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartbeat")
	require.NoError(t, os.WriteFile(path, []byte("100\n"), 0o644))

	s := newTestStore(t)
	sched := New(s, &fakePublisher{}, time.Second, path)
	sched.now = func() time.Time { return time.Unix(100000, 0) }

	// Exercises the stale path without asserting on log output directly;
	// a panic or error here would indicate a parsing bug.
	sched.checkStaleHeartbeat()
}
