// Command guidesync keeps one named guide document in sync between the
// working directory and its remote replica. The sync and status commands
// run one-shot; run starts the background daemon.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexjbarnes/guidesync/internal/artifact"
	"github.com/alexjbarnes/guidesync/internal/config"
	"github.com/alexjbarnes/guidesync/internal/coordinator"
	"github.com/alexjbarnes/guidesync/internal/engine"
	"github.com/alexjbarnes/guidesync/internal/logging"
	"github.com/alexjbarnes/guidesync/internal/notify"
	"github.com/alexjbarnes/guidesync/internal/remote"
	"github.com/alexjbarnes/guidesync/internal/state"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "guidesync",
		Short:         "Keep a guide document in sync with its remote replica",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.guidesync/config.yaml)")

	root.AddCommand(
		newSyncCmd(&configPath),
		newRunCmd(&configPath),
		newStatusCmd(&configPath),
		newConfigureCmd(&configPath),
	)

	return root
}

// resolveConfigPath falls back to the per-user default when --config is
// not given.
func resolveConfigPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}

	return config.DefaultPath()
}

// app bundles the wired components a command needs. Close releases the
// state database.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	state  *state.State
	store  *artifact.Store
	engine *engine.Engine
}

func (a *app) Close() {
	if a.state != nil {
		a.state.Close()
	}
}

// buildApp loads config and wires store, remote client, state, and
// engine. prompter may be nil for autonomous-only callers.
func buildApp(configFlag string, prompter engine.Prompter) (*app, error) {
	path, err := resolveConfigPath(configFlag)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment, cfg.LogFile)

	appState, err := state.Load()
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}

	store, err := artifact.NewStore(cfg.WorkDir, cfg.ArtifactName)
	if err != nil {
		appState.Close()
		return nil, fmt.Errorf("opening artifact store: %w", err)
	}

	client := remote.NewClient(cfg.RemoteBaseURL, cfg.RemoteToken, nil)

	eng := engine.New(engine.Options{
		Store:       store,
		Remote:      client,
		Identity:    appState,
		Prompter:    prompter,
		Notifier:    notify.FromConfig(cfg.NotificationsEnabled, logger),
		Logger:      logger,
		AutoExclude: cfg.AutoExclude,
		RemoteID:    cfg.RemoteID,
	})

	return &app{
		cfg:    cfg,
		logger: logger,
		state:  appState,
		store:  store,
		engine: eng,
	}, nil
}

// recordResult persists the pass outcome so status can report it later.
func recordResult(a *app, res engine.Result, trigger string) {
	rec := state.SyncRecord{
		Classification: res.Classification.String(),
		Action:         res.ActionTaken.String(),
		Trigger:        trigger,
		Time:           time.Now().UTC(),
	}

	if res.Err != nil {
		rec.Error = res.Err.Error()
	}

	if err := a.state.SetLastSync(rec); err != nil {
		a.logger.Warn("recording sync outcome", slog.String("error", err.Error()))
	}
}

func newSyncCmd(configPath *string) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the guide now, asking before anything destructive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(*configPath, &consolePrompter{})
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.engine.Run(cmd.Context(), engine.Interactive)
			recordResult(a, res, "manual")

			if jsonOut {
				return printResultJSON(cmd, res)
			}

			printResult(cmd, a, res)

			return res.Err
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the outcome as JSON")

	return cmd
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sync daemon until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(*configPath)
		},
	}
}

func runDaemon(configFlag string) error {
	a, err := buildApp(configFlag, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	a.logger.Info("guidesync starting",
		slog.String("version", Version),
		slog.String("workdir", a.cfg.WorkDir),
		slog.String("artifact", a.store.Name()),
		slog.Bool("interval", a.cfg.IntervalSyncEnabled),
		slog.Bool("change", a.cfg.ChangeSyncEnabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	coord := coordinator.New(coordinator.Options{
		Store:             a.store,
		Logger:            a.logger,
		AutoCheckOnStart:  a.cfg.AutoCheckOnStart,
		IntervalEnabled:   a.cfg.IntervalSyncEnabled,
		IntervalPeriod:    time.Duration(a.cfg.IntervalSyncMinutes) * time.Minute,
		ChangeSyncEnabled: a.cfg.ChangeSyncEnabled,
		Runner: func(ctx context.Context, trigger coordinator.Trigger) {
			res := a.engine.Run(ctx, engine.Autonomous)
			recordResult(a, res, string(trigger))

			if res.Err != nil {
				// Autonomous passes log and move on; the next trigger
				// retries from scratch.
				a.logger.Error("sync pass failed",
					slog.String("trigger", string(trigger)),
					slog.String("error", res.Err.Error()),
				)

				return
			}

			a.logger.Info("sync pass finished",
				slog.String("trigger", string(trigger)),
				slog.String("classification", res.Classification.String()),
				slog.String("action", res.ActionTaken.String()),
			)
		},
	})

	if err := coord.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	a.logger.Info("guidesync stopped")

	return nil
}

func newStatusCmd(configPath *string) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show how local and remote copies relate, without acting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(*configPath, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.engine.Classify(cmd.Context())
			if err != nil {
				return err
			}

			last, err := a.state.LastSync()
			if err != nil {
				a.logger.Warn("reading last sync record", slog.String("error", err.Error()))
			}

			if jsonOut {
				return printStatusJSON(cmd, a, c, last)
			}

			printStatus(cmd, a, c, last)

			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the status as JSON")

	return cmd
}

func printResultJSON(cmd *cobra.Command, res engine.Result) error {
	out := struct {
		Classification string `json:"classification"`
		ActionTaken    string `json:"actionTaken"`
		RemoteURL      string `json:"remoteUrl,omitempty"`
		Error          string `json:"error,omitempty"`
	}{
		Classification: res.Classification.String(),
		ActionTaken:    res.ActionTaken.String(),
		RemoteURL:      res.RemoteURL,
	}

	if res.Err != nil {
		out.Error = res.Err.Error()
	}

	enc := json.NewEncoder(cmd.OutOrStdout())

	if err := enc.Encode(out); err != nil {
		return err
	}

	return res.Err
}

func printStatusJSON(cmd *cobra.Command, a *app, c engine.Classification, last *state.SyncRecord) error {
	out := struct {
		Classification string            `json:"classification"`
		Artifact       string            `json:"artifact"`
		RemoteID       string            `json:"remoteId,omitempty"`
		RemoteURL      string            `json:"remoteUrl,omitempty"`
		LastSync       *state.SyncRecord `json:"lastSync,omitempty"`
	}{
		Classification: c.String(),
		Artifact:       a.store.RelPath(),
		RemoteID:       a.state.RemoteID(),
		RemoteURL:      a.state.RemoteURL(),
		LastSync:       last,
	}

	return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
}
