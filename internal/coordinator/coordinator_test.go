package coordinator

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexjbarnes/guidesync/internal/artifact"
)

// startCoordinator runs the coordinator in the background and tears it
// down with the test.
func startCoordinator(t *testing.T, opts Options) *Coordinator {
	t.Helper()

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	c := New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		_ = c.Run(ctx)
		close(done)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the consumer goroutine a moment to block on the intake
	// channel, otherwise the first offer races it and gets dropped.
	time.Sleep(50 * time.Millisecond)

	return c
}

func waitTrigger(t *testing.T, ch <-chan Trigger, want Trigger) {
	t.Helper()

	select {
	case got := <-ch:
		require.Equal(t, want, got)
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s trigger", want)
	}
}

func requireNoTrigger(t *testing.T, ch <-chan Trigger, within time.Duration) {
	t.Helper()

	select {
	case got := <-ch:
		t.Fatalf("unexpected %s trigger", got)
	case <-time.After(within):
	}
}

func TestOfferRunsPass(t *testing.T) {
	got := make(chan Trigger, 8)

	c := startCoordinator(t, Options{
		Store: artifactStore(t),
		Runner: func(_ context.Context, trigger Trigger) {
			got <- trigger
		},
	})

	c.Offer(TriggerStartup)
	waitTrigger(t, got, TriggerStartup)
}

func TestTriggerDroppedWhileRunning(t *testing.T) {
	started := make(chan Trigger, 8)
	release := make(chan struct{})

	c := startCoordinator(t, Options{
		Store: artifactStore(t),
		Runner: func(_ context.Context, trigger Trigger) {
			started <- trigger
			<-release
		},
	})

	c.Offer(TriggerStartup)
	waitTrigger(t, started, TriggerStartup)
	require.True(t, c.Running())

	// These arrive mid-pass and must be dropped, not queued.
	c.Offer(TriggerInterval)
	c.Offer(TriggerChange)

	close(release)

	requireNoTrigger(t, started, 300*time.Millisecond)

	assert.Eventually(t, func() bool {
		return !c.Running()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionResetsAfterFailedPass(t *testing.T) {
	got := make(chan Trigger, 8)

	c := startCoordinator(t, Options{
		Store: artifactStore(t),
		// A pass whose reconciliation errored still reports the trigger
		// and returns; errors never keep the session open.
		Runner: func(_ context.Context, trigger Trigger) {
			got <- trigger
		},
	})

	c.Offer(TriggerInterval)
	waitTrigger(t, got, TriggerInterval)

	assert.Eventually(t, func() bool {
		return !c.Running()
	}, 2*time.Second, 10*time.Millisecond)

	// The coordinator accepts new triggers once idle again.
	c.Offer(TriggerChange)
	waitTrigger(t, got, TriggerChange)
}

func TestCurrentSessionDuringPass(t *testing.T) {
	started := make(chan Trigger, 1)
	release := make(chan struct{})

	c := startCoordinator(t, Options{
		Store: artifactStore(t),
		Runner: func(_ context.Context, trigger Trigger) {
			started <- trigger
			<-release
		},
	})

	require.Nil(t, c.CurrentSession())

	c.Offer(TriggerChange)
	waitTrigger(t, started, TriggerChange)

	session := c.CurrentSession()
	require.NotNil(t, session)
	assert.Equal(t, TriggerChange, session.Trigger)
	assert.False(t, session.StartedAt.IsZero())

	close(release)
}

func TestStartupCheckFires(t *testing.T) {
	got := make(chan Trigger, 8)

	startCoordinator(t, Options{
		Store:            artifactStore(t),
		AutoCheckOnStart: true,
		StartupDelay:     20 * time.Millisecond,
		Runner: func(_ context.Context, trigger Trigger) {
			got <- trigger
		},
	})

	waitTrigger(t, got, TriggerStartup)
	// The startup check is one-shot.
	requireNoTrigger(t, got, 200*time.Millisecond)
}

func TestStartupCheckDisabled(t *testing.T) {
	got := make(chan Trigger, 8)

	startCoordinator(t, Options{
		Store:        artifactStore(t),
		StartupDelay: 20 * time.Millisecond,
		Runner: func(_ context.Context, trigger Trigger) {
			got <- trigger
		},
	})

	requireNoTrigger(t, got, 200*time.Millisecond)
}

func TestIntervalFires(t *testing.T) {
	got := make(chan Trigger, 8)

	startCoordinator(t, Options{
		Store:           artifactStore(t),
		IntervalEnabled: true,
		IntervalPeriod:  50 * time.Millisecond,
		Runner: func(_ context.Context, trigger Trigger) {
			got <- trigger
		},
	})

	waitTrigger(t, got, TriggerInterval)
	waitTrigger(t, got, TriggerInterval)
}

func TestRestartIntervalStops(t *testing.T) {
	got := make(chan Trigger, 8)

	c := startCoordinator(t, Options{
		Store:           artifactStore(t),
		IntervalEnabled: true,
		IntervalPeriod:  50 * time.Millisecond,
		Runner: func(_ context.Context, trigger Trigger) {
			got <- trigger
		},
	})

	waitTrigger(t, got, TriggerInterval)

	c.RestartInterval(false, 0)

	// Drain anything already in flight, then require silence.
	time.Sleep(100 * time.Millisecond)
	for len(got) > 0 {
		<-got
	}

	requireNoTrigger(t, got, 300*time.Millisecond)
}

func TestRestartIntervalChangesPeriod(t *testing.T) {
	got := make(chan Trigger, 8)

	c := startCoordinator(t, Options{
		Store: artifactStore(t),
		Runner: func(_ context.Context, trigger Trigger) {
			got <- trigger
		},
	})

	requireNoTrigger(t, got, 150*time.Millisecond)

	c.RestartInterval(true, 50*time.Millisecond)
	waitTrigger(t, got, TriggerInterval)
}

func artifactStore(t *testing.T) *artifact.Store {
	t.Helper()

	store, err := artifact.NewStore(t.TempDir(), artifact.DefaultName)
	require.NoError(t, err)

	return store
}

func TestWatchDebounceCoalesces(t *testing.T) {
	store := artifactStore(t)
	got := make(chan Trigger, 8)

	startCoordinator(t, Options{
		Store:             store,
		ChangeSyncEnabled: true,
		DebounceWindow:    150 * time.Millisecond,
		Runner: func(_ context.Context, trigger Trigger) {
			got <- trigger
		},
	})

	// Let the watcher register its directories before modifying.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(store.Root(), artifact.DefaultName)
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("edit\n"), 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	// Three rapid writes collapse into a single pass.
	waitTrigger(t, got, TriggerChange)
	requireNoTrigger(t, got, 400*time.Millisecond)
}

func TestWatchIgnoresUnrelatedFiles(t *testing.T) {
	store := artifactStore(t)
	got := make(chan Trigger, 8)

	startCoordinator(t, Options{
		Store:             store,
		ChangeSyncEnabled: true,
		DebounceWindow:    100 * time.Millisecond,
		Runner: func(_ context.Context, trigger Trigger) {
			got <- trigger
		},
	})

	time.Sleep(100 * time.Millisecond)

	other := filepath.Join(store.Root(), "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("irrelevant\n"), 0o644))

	requireNoTrigger(t, got, 400*time.Millisecond)
}

func TestWatchPicksUpConfigDirCreatedLater(t *testing.T) {
	store := artifactStore(t)
	got := make(chan Trigger, 8)

	startCoordinator(t, Options{
		Store:             store,
		ChangeSyncEnabled: true,
		DebounceWindow:    100 * time.Millisecond,
		Runner: func(_ context.Context, trigger Trigger) {
			got <- trigger
		},
	})

	time.Sleep(100 * time.Millisecond)

	configDir := filepath.Join(store.Root(), artifact.ConfigDirName)
	require.NoError(t, os.Mkdir(configDir, 0o755))

	// The directory creation itself must not trigger a pass, and the
	// watcher needs a beat to add the new directory.
	time.Sleep(150 * time.Millisecond)
	for len(got) > 0 {
		<-got
	}

	path := filepath.Join(configDir, artifact.DefaultName)
	require.NoError(t, os.WriteFile(path, []byte("# Guide\n"), 0o644))

	waitTrigger(t, got, TriggerChange)
}
