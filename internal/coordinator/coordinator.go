// Package coordinator owns the stimuli that invoke reconciliation: a
// one-shot startup check, a recurring interval timer, and a debounced
// local-change notifier. All three feed one intake channel consumed by a
// single goroutine, so at most one reconciliation pass is alive at any
// instant. A trigger firing while a pass runs is dropped, not queued.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/alexjbarnes/guidesync/internal/artifact"
)

// Trigger identifies which stimulus started a pass.
type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerInterval Trigger = "interval"
	TriggerChange   Trigger = "change"
)

const (
	// defaultStartupDelay is how long after process start the one-shot
	// startup check fires.
	defaultStartupDelay = 3 * time.Second

	// defaultDebounceWindow coalesces rapid local modifications: N
	// events within the window produce one pass at the time of the last
	// event plus the window.
	defaultDebounceWindow = 2 * time.Second
)

// Session is the mutual-exclusion token for an in-flight pass. It owns
// no artifact data, only the running flag and the trigger identity.
type Session struct {
	Trigger   Trigger
	StartedAt time.Time
}

// Runner executes one reconciliation pass. It must not panic; errors are
// its own to log and swallow, because autonomous triggers never crash
// the host process.
type Runner func(ctx context.Context, trigger Trigger)

// Watchable is the artifact-store surface the change notifier needs.
type Watchable interface {
	WatchDirs() []string
	IsArtifactPath(absPath string) bool
}

// Options configure a Coordinator.
type Options struct {
	Store  Watchable
	Runner Runner
	Logger *slog.Logger

	AutoCheckOnStart  bool
	IntervalEnabled   bool
	IntervalPeriod    time.Duration
	ChangeSyncEnabled bool

	// StartupDelay and DebounceWindow default when zero.
	StartupDelay   time.Duration
	DebounceWindow time.Duration
}

// Coordinator serializes trigger stimuli into single reconciliation
// passes.
type Coordinator struct {
	store  Watchable
	runner Runner
	logger *slog.Logger

	autoCheckOnStart  bool
	intervalEnabled   bool
	intervalPeriod    time.Duration
	changeSyncEnabled bool
	startupDelay      time.Duration
	debounceWindow    time.Duration

	// intake is unbuffered on purpose: while the consumer is mid-pass
	// there is no receiver, so offers fall through to their default case
	// and the trigger is dropped rather than queued.
	intake chan Trigger

	sessionMu sync.Mutex
	session   *Session

	intervalMu   sync.Mutex
	intervalStop chan struct{}
}

// New creates a coordinator. Run must be called to start it.
func New(opts Options) *Coordinator {
	startupDelay := opts.StartupDelay
	if startupDelay == 0 {
		startupDelay = defaultStartupDelay
	}

	debounce := opts.DebounceWindow
	if debounce == 0 {
		debounce = defaultDebounceWindow
	}

	return &Coordinator{
		store:             opts.Store,
		runner:            opts.Runner,
		logger:            opts.Logger,
		autoCheckOnStart:  opts.AutoCheckOnStart,
		intervalEnabled:   opts.IntervalEnabled,
		intervalPeriod:    opts.IntervalPeriod,
		changeSyncEnabled: opts.ChangeSyncEnabled,
		startupDelay:      startupDelay,
		debounceWindow:    debounce,
		intake:            make(chan Trigger),
	}
}

// Run starts all configured trigger sources and the consumer. It blocks
// until the context is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.consume(gctx)
	})

	if c.changeSyncEnabled {
		g.Go(func() error {
			return c.watch(gctx)
		})
	}

	if c.autoCheckOnStart {
		g.Go(func() error {
			return c.startupCheck(gctx)
		})
	}

	c.RestartInterval(c.intervalEnabled, c.intervalPeriod)
	defer c.RestartInterval(false, 0)

	return g.Wait()
}

// Running reports whether a pass is currently in flight.
func (c *Coordinator) Running() bool {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	return c.session != nil
}

// CurrentSession returns a copy of the in-flight session, or nil.
func (c *Coordinator) CurrentSession() *Session {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	if c.session == nil {
		return nil
	}

	s := *c.session

	return &s
}

// Offer hands a trigger to the consumer. When a pass is already running
// the trigger is dropped; overlapping passes racing on the same local
// file or remote identity are never allowed.
func (c *Coordinator) Offer(trigger Trigger) {
	select {
	case c.intake <- trigger:
	default:
		c.logger.Debug("trigger dropped, sync already running",
			slog.String("trigger", string(trigger)),
		)
	}
}

// consume is the single goroutine that turns triggers into passes. The
// session always resets on completion, success or failure, so no pass
// can leave the coordinator stuck in the running state.
func (c *Coordinator) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case trigger := <-c.intake:
			c.beginSession(trigger)
			c.runner(ctx, trigger)
			c.endSession()
		}
	}
}

func (c *Coordinator) beginSession(trigger Trigger) {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	c.session = &Session{Trigger: trigger, StartedAt: time.Now()}

	c.logger.Debug("sync session started", slog.String("trigger", string(trigger)))
}

func (c *Coordinator) endSession() {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	c.session = nil
}

// startupCheck fires the one-shot startup trigger after a short delay.
func (c *Coordinator) startupCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.startupDelay):
		c.Offer(TriggerStartup)
		return nil
	}
}

// RestartInterval deterministically stops any running interval timer
// and, when enabled, starts a new one with the given period. Called on
// startup, on config changes, and on shutdown (enabled=false).
func (c *Coordinator) RestartInterval(enabled bool, period time.Duration) {
	c.intervalMu.Lock()
	defer c.intervalMu.Unlock()

	if c.intervalStop != nil {
		close(c.intervalStop)
		c.intervalStop = nil
	}

	if !enabled || period <= 0 {
		return
	}

	stop := make(chan struct{})
	c.intervalStop = stop

	go c.intervalLoop(stop, period)

	c.logger.Debug("interval trigger started", slog.Duration("period", period))
}

func (c *Coordinator) intervalLoop(stop chan struct{}, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.Offer(TriggerInterval)
		}
	}
}

// watch monitors the artifact's well-known locations and offers a change
// trigger after the debounce window closes. It blocks until the context
// is cancelled.
func (c *Coordinator) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range c.store.WatchDirs() {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	c.logger.Info("change watcher started")

	// Trailing-edge debounce: every relevant event re-arms the timer, so
	// the trigger lands at (last modification + window).
	debounce := time.NewTimer(c.debounceWindow)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed unexpectedly")
			}

			// The dotted config directory may appear after startup;
			// start watching it so artifact writes inside it are seen.
			if event.Has(fsnotify.Create) && filepath.Base(event.Name) == artifact.ConfigDirName {
				if info, statErr := os.Lstat(event.Name); statErr == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}

				continue
			}

			if !c.store.IsArtifactPath(event.Name) {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				debounce.Reset(c.debounceWindow)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed unexpectedly")
			}

			c.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-debounce.C:
			c.Offer(TriggerChange)
		}
	}
}
