package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/alexjbarnes/guidesync/internal/config"
)

func newConfigureCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Edit the configuration interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := resolveConfigPath(*configPath)
			if err != nil {
				return err
			}

			cfg, err := config.Load(path)
			if err != nil {
				// A broken file should still be editable; start over from
				// defaults rather than refusing to run.
				fmt.Fprintf(cmd.ErrOrStderr(), "config unreadable (%v), starting from defaults\n", err)
				cfg = config.Defaults()
			}

			if err := runConfigureForm(cfg); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					fmt.Fprintln(cmd.OutOrStdout(), "aborted, nothing saved")
					return nil
				}

				return err
			}

			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("saved ")+path)

			return nil
		},
	}
}

// runConfigureForm edits cfg in place. Interval minutes go through a
// string field because the form renders free-text input; validation
// enforces the documented range before the form can complete.
func runConfigureForm(cfg *config.Config) error {
	interval := strconv.Itoa(cfg.IntervalSyncMinutes)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Remote base URL").
				Value(&cfg.RemoteBaseURL).
				Validate(requireNonEmpty("remote base URL")),
			huh.NewInput().
				Title("Remote token").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.RemoteToken),
			huh.NewInput().
				Title("Remote replica ID (leave empty to learn it on first upload)").
				Value(&cfg.RemoteID),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Guide filename").
				Value(&cfg.ArtifactName).
				Validate(requireNonEmpty("guide filename")),
			huh.NewInput().
				Title("Workspace directory").
				Value(&cfg.WorkDir).
				Validate(requireNonEmpty("workspace directory")),
			huh.NewConfirm().
				Title("Add the guide to .gitignore after downloads?").
				Value(&cfg.AutoExclude),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Check for changes shortly after startup?").
				Value(&cfg.AutoCheckOnStart),
			huh.NewConfirm().
				Title("Sync on a recurring interval?").
				Value(&cfg.IntervalSyncEnabled),
			huh.NewInput().
				Title(fmt.Sprintf("Interval in minutes (%d-%d)", config.IntervalMinMinutes, config.IntervalMaxMinutes)).
				Value(&interval).
				Validate(validateInterval),
			huh.NewConfirm().
				Title("Sync when the local guide changes?").
				Value(&cfg.ChangeSyncEnabled),
			huh.NewConfirm().
				Title("Announce autonomous downloads and uploads?").
				Value(&cfg.NotificationsEnabled),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Environment").
				Options(
					huh.NewOption("development (readable text logs)", "development"),
					huh.NewOption("production (JSON logs)", "production"),
				).
				Value(&cfg.Environment),
			huh.NewInput().
				Title("Log file (empty for stdout only)").
				Value(&cfg.LogFile),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	cfg.IntervalSyncMinutes, _ = strconv.Atoi(interval)

	return nil
}

func requireNonEmpty(what string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s must not be empty", what)
		}

		return nil
	}
}

func validateInterval(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("must be a number")
	}

	if n < config.IntervalMinMinutes || n > config.IntervalMaxMinutes {
		return fmt.Errorf("must be between %d and %d", config.IntervalMinMinutes, config.IntervalMaxMinutes)
	}

	return nil
}
