// Package engine implements the reconciliation pass: fingerprint both
// replicas, classify their relationship, and drive the correct one-way
// or user-mediated action. One pass runs at a time; the coordinator
// enforces that.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexjbarnes/guidesync/internal/artifact"
	"github.com/alexjbarnes/guidesync/internal/fingerprint"
	"github.com/alexjbarnes/guidesync/internal/notify"
	"github.com/alexjbarnes/guidesync/internal/remote"
	"github.com/alexjbarnes/guidesync/internal/version"
)

// Mode selects the operating policy for a pass. Timer and file-watch
// triggers run autonomous; an explicit sync command runs interactive.
type Mode int

const (
	Autonomous Mode = iota
	Interactive
)

func (m Mode) String() string {
	if m == Interactive {
		return "interactive"
	}

	return "autonomous"
}

// Action is what a pass decided to do (or did).
type Action int

const (
	ActionNone Action = iota
	ActionDownload
	ActionUpload
	ActionCreateTemplate
	ActionCancelled
)

func (a Action) String() string {
	switch a {
	case ActionDownload:
		return "download"
	case ActionUpload:
		return "upload"
	case ActionCreateTemplate:
		return "create-template"
	case ActionCancelled:
		return "cancelled"
	default:
		return "none"
	}
}

// plan maps a classification to the autonomous action. Ambiguous
// divergence maps to no action: the engine never guesses a direction.
func plan(c Classification) Action {
	switch c {
	case RemoteOnly, DivergedRemoteNewer:
		return ActionDownload
	case LocalOnly, DivergedLocalNewer:
		return ActionUpload
	default:
		return ActionNone
	}
}

// Choice is the user's answer to an interactive decision request.
type Choice int

const (
	ChoiceCancel Choice = iota
	ChoiceDownload
	ChoiceUpload
	ChoiceCreateTemplate
)

// Prompter resolves the decision requests an interactive pass yields.
// diff is a human-readable content preview, empty unless the
// classification is a divergence. A prompt that resolves to ChoiceCancel
// terminates the pass with no side effects.
type Prompter interface {
	Decide(ctx context.Context, c Classification, diff string) (Choice, error)
}

// Store is the local replica surface the engine needs.
type Store interface {
	Read() (content string, present bool, err error)
	Write(content string) error
	EnsureExcluded() error
	RelPath() string
}

// Remote is the remote store surface the engine needs.
type Remote interface {
	Fetch(ctx context.Context, id string) (*remote.Replica, error)
	Create(ctx context.Context, content string) (*remote.PutResult, error)
	Update(ctx context.Context, id, content string) (*remote.PutResult, error)
}

// Identity persists the learned remote replica ID across runs.
type Identity interface {
	RemoteID() string
	SetRemote(id, url string) error
}

// Result is the structured outcome of one pass.
type Result struct {
	Classification Classification
	ActionTaken    Action
	RemoteURL      string
	Err            error
}

// Options configure an Engine.
type Options struct {
	Store       Store
	Remote      Remote
	Identity    Identity
	Prompter    Prompter
	Notifier    notify.Notifier
	Logger      *slog.Logger
	AutoExclude bool

	// RemoteID overrides the persisted identity when set (the remoteId
	// config option).
	RemoteID string

	// Now stamps LAST_MODIFIED on uploads. Defaults to time.Now.
	Now func() time.Time
}

// Engine runs reconciliation passes. It holds no artifact data between
// passes; every pass re-reads both replicas.
type Engine struct {
	store       Store
	remote      Remote
	identity    Identity
	prompter    Prompter
	notifier    notify.Notifier
	logger      *slog.Logger
	autoExclude bool
	remoteID    string
	now         func() time.Time
}

// New creates an engine from options.
func New(opts Options) *Engine {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		store:       opts.Store,
		remote:      opts.Remote,
		identity:    opts.Identity,
		prompter:    opts.Prompter,
		notifier:    notifier,
		logger:      opts.Logger,
		autoExclude: opts.AutoExclude,
		remoteID:    opts.RemoteID,
		now:         now,
	}
}

// resolveRemoteID returns the configured override or the persisted
// identity, or "" when no remote replica exists yet.
func (e *Engine) resolveRemoteID() string {
	if e.remoteID != "" {
		return e.remoteID
	}

	return e.identity.RemoteID()
}

// Classify runs the read-and-classify half of a pass without acting.
// Used by the status command.
func (e *Engine) Classify(ctx context.Context) (Classification, error) {
	local, rep, err := e.observe(ctx)
	if err != nil {
		return 0, err
	}

	return Classify(local, rep), nil
}

// observe reads both replicas. A remote 404 becomes an absent snapshot;
// a transport failure propagates so callers never mistake an unreachable
// store for an empty one.
func (e *Engine) observe(ctx context.Context) (local, rem Snapshot, err error) {
	text, present, err := e.store.Read()
	if err != nil {
		return Snapshot{}, Snapshot{}, fmt.Errorf("reading local artifact: %w", err)
	}

	if present {
		local = Present(text)
	}

	id := e.resolveRemoteID()
	if id == "" {
		// No remote identity has ever been minted: the remote replica
		// cannot exist.
		return local, Absent(), nil
	}

	rep, err := e.remote.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return local, Absent(), nil
		}

		return Snapshot{}, Snapshot{}, err
	}

	return local, Present(rep.Content), nil
}

// Run executes one complete fetch-classify-act cycle. The returned
// Result always carries the classification when one was computed; Err is
// set when the pass failed partway.
func (e *Engine) Run(ctx context.Context, mode Mode) Result {
	local, rem, err := e.observe(ctx)
	if err != nil {
		return Result{ActionTaken: ActionNone, Err: err}
	}

	c := Classify(local, rem)

	e.logger.Debug("classified replicas",
		slog.String("classification", c.String()),
		slog.String("mode", mode.String()),
	)

	if mode == Interactive {
		return e.runInteractive(ctx, c, local, rem)
	}

	return e.runAutonomous(ctx, c, local, rem)
}

func (e *Engine) runAutonomous(ctx context.Context, c Classification, local, rem Snapshot) Result {
	switch plan(c) {
	case ActionDownload:
		if err := e.download(rem.Text); err != nil {
			return Result{Classification: c, Err: err}
		}

		e.notifier.Notify("guide updated", "downloaded the newer remote copy")

		return Result{Classification: c, ActionTaken: ActionDownload}

	case ActionUpload:
		res := e.upload(ctx, c, local, rem)
		if res.Err == nil && res.ActionTaken == ActionUpload {
			e.notifier.Notify("guide published", "uploaded the newer local copy")
		}

		return res

	default:
		// BothAbsent, Identical, and ambiguous divergence are all
		// no-ops when unattended.
		return Result{Classification: c, ActionTaken: ActionNone}
	}
}

func (e *Engine) runInteractive(ctx context.Context, c Classification, local, rem Snapshot) Result {
	if c == Identical {
		// Already synced; the caller reports it.
		return Result{Classification: c, ActionTaken: ActionNone}
	}

	if e.prompter == nil {
		return Result{Classification: c, Err: fmt.Errorf("interactive mode requires a prompter")}
	}

	var diff string
	if c.Diverged() {
		diff = diffPreview(local.Text, rem.Text)
	}

	choice, err := e.prompter.Decide(ctx, c, diff)
	if err != nil {
		return Result{Classification: c, Err: fmt.Errorf("resolving decision: %w", err)}
	}

	switch choice {
	case ChoiceDownload:
		if err := e.download(rem.Text); err != nil {
			return Result{Classification: c, Err: err}
		}

		return Result{Classification: c, ActionTaken: ActionDownload}

	case ChoiceUpload:
		return e.upload(ctx, c, local, rem)

	case ChoiceCreateTemplate:
		if err := e.store.Write(artifact.Template); err != nil {
			return Result{Classification: c, Err: fmt.Errorf("creating template: %w", err)}
		}

		return Result{Classification: c, ActionTaken: ActionCreateTemplate}

	default:
		// Cancel terminates the pass with no side effects.
		return Result{Classification: c, ActionTaken: ActionCancelled}
	}
}

// download writes the remote content verbatim to the local replica and,
// when configured, ensures the artifact path is in the exclusion list.
func (e *Engine) download(content string) error {
	if err := e.store.Write(content); err != nil {
		return fmt.Errorf("writing downloaded artifact: %w", err)
	}

	e.logger.Info("downloaded remote artifact",
		slog.String("path", e.store.RelPath()),
		slog.Int("bytes", len(content)),
	)

	if e.autoExclude {
		if err := e.store.EnsureExcluded(); err != nil {
			// The download itself succeeded; a broken exclusion list is
			// worth a warning, not a failed pass.
			e.logger.Warn("updating exclusion list", slog.String("error", err.Error()))
		}
	}

	return nil
}

// upload publishes the local content. The fingerprint check runs first:
// when the stored remote content matches apart from the marker, no
// version bump and no write happen at all. Otherwise the next patch
// version and a fresh timestamp are injected, written back to the local
// replica, and the result transmitted. A transport failure leaves both
// replicas at their prior state.
func (e *Engine) upload(ctx context.Context, c Classification, local, rem Snapshot) Result {
	if rem.Present && fingerprint.Equal(local.Text, rem.Text) {
		e.logger.Debug("upload short-circuited, content identical to remote")
		return Result{Classification: c, ActionTaken: ActionNone}
	}

	meta := version.Metadata{
		Version:      version.NextVersion(local.Text),
		LastModified: e.now().UTC().Truncate(time.Second),
	}

	stamped := version.Inject(local.Text, meta)

	// The bumped marker is written back locally before transmitting so
	// the two replicas carry the same metadata after a successful put.
	if err := e.store.Write(stamped); err != nil {
		return Result{Classification: c, Err: fmt.Errorf("stamping local artifact: %w", err)}
	}

	id := e.resolveRemoteID()

	var (
		res *remote.PutResult
		err error
	)

	if id == "" {
		res, err = e.remote.Create(ctx, stamped)
	} else {
		res, err = e.remote.Update(ctx, id, stamped)
	}

	if err != nil {
		return Result{Classification: c, Err: err}
	}

	if id == "" {
		if err := e.identity.SetRemote(res.ID, res.URL); err != nil {
			// The upload worked; losing the minted ID would orphan the
			// replica, so this is a real failure.
			return Result{Classification: c, ActionTaken: ActionUpload, Err: err}
		}

		e.logger.Info("created remote replica",
			slog.String("id", res.ID),
			slog.String("url", res.URL),
		)
	}

	e.logger.Info("uploaded local artifact",
		slog.String("version", meta.Version.String()),
		slog.Int("bytes", len(stamped)),
	)

	return Result{Classification: c, ActionTaken: ActionUpload, RemoteURL: res.URL}
}
