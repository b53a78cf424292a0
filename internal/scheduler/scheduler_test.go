package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/YKarmar/jobsync/internal/syncer"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls int
	errs  []error // returned in order, nil once exhausted
	ran   chan struct{}
}

func newFakeRunner(errs ...error) *fakeRunner {
	return &fakeRunner{errs: errs, ran: make(chan struct{}, 100)}
}

func (f *fakeRunner) Run(_ context.Context, mb syncer.Mailbox) (*syncer.Summary, error) {
	f.mu.Lock()
	f.calls++
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	f.mu.Unlock()

	f.ran <- struct{}{}
	if err != nil {
		return nil, err
	}
	return &syncer.Summary{MailboxID: mb.ID}, nil
}

func (f *fakeRunner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitRun(t *testing.T, f *fakeRunner) {
	t.Helper()
	select {
	case <-f.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sync run")
	}
}

func startScheduler(t *testing.T, cfg Config, r Runner) *Scheduler {
	t.Helper()
	s, err := New(cfg, r, syncer.Mailbox{ID: "me@example.com"}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{}, newFakeRunner(), syncer.Mailbox{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestScheduler_RunsOnStartAndTrigger(t *testing.T) {
	r := newFakeRunner()
	s := startScheduler(t, Config{Interval: time.Hour, MaxHistory: 10}, r)

	waitRun(t, r)
	require.NoError(t, s.Trigger())
	waitRun(t, r)

	assert.Equal(t, 2, r.Calls())
	require.NoError(t, s.Stop(context.Background()))

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, "startup", history[0].Trigger)
	assert.Equal(t, "manual", history[1].Trigger)
	assert.Equal(t, "me@example.com", history[1].Summary.MailboxID)
}

func TestScheduler_RunsOnInterval(t *testing.T) {
	r := newFakeRunner()
	startScheduler(t, Config{Interval: 10 * time.Millisecond}, r)

	for range 3 {
		waitRun(t, r)
	}
	assert.GreaterOrEqual(t, r.Calls(), 3)
}

func TestScheduler_SyncInProgressIsNotFatal(t *testing.T) {
	r := newFakeRunner(syncer.ErrSyncInProgress)
	s := startScheduler(t, Config{Interval: time.Hour, MaxHistory: 10}, r)

	waitRun(t, r)
	require.NoError(t, s.Trigger())
	waitRun(t, r)

	require.NoError(t, s.Stop(context.Background()))
	history := s.History()
	require.Len(t, history, 2)
	assert.ErrorIs(t, history[0].Err, syncer.ErrSyncInProgress)
	assert.NoError(t, history[1].Err)
}

func TestScheduler_ReauthPausesUntilTrigger(t *testing.T) {
	r := newFakeRunner(syncer.ErrReauthRequired)
	s := startScheduler(t, Config{Interval: 10 * time.Millisecond}, r)

	waitRun(t, r)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, r.Calls())

	require.NoError(t, s.Trigger())
	waitRun(t, r)
	waitRun(t, r)
	assert.GreaterOrEqual(t, r.Calls(), 3)
}

func TestScheduler_OnRunAndHistoryLimit(t *testing.T) {
	r := newFakeRunner()
	s, err := New(Config{Interval: time.Hour, MaxHistory: 1}, r, syncer.Mailbox{ID: "me@example.com"}, nil)
	require.NoError(t, err)

	records := make(chan RunRecord, 10)
	s.OnRun = func(rec RunRecord) { records <- rec }

	require.NoError(t, s.Start(context.Background()))
	<-records
	require.NoError(t, s.Trigger())
	<-records
	require.NoError(t, s.Stop(context.Background()))

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, "manual", history[0].Trigger)
}

func TestScheduler_TriggerWhenStopped(t *testing.T) {
	s, err := New(DefaultConfig(), newFakeRunner(), syncer.Mailbox{ID: "me@example.com"}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Trigger(), ErrSchedulerNotRunning)
	assert.NoError(t, s.Stop(context.Background()))
}
