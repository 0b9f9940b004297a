package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/alexjbarnes/guidesync/internal/engine"
	"github.com/alexjbarnes/guidesync/internal/state"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
	addStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	removeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// consolePrompter resolves interactive decision requests with a terminal
// select form. Aborting the form counts as cancel.
type consolePrompter struct{}

func (p *consolePrompter) Decide(ctx context.Context, c engine.Classification, diff string) (engine.Choice, error) {
	if diff != "" {
		fmt.Println(titleStyle.Render("Content differences:"))
		fmt.Println(renderDiff(diff))
	}

	title, options := promptFor(c)

	choice := engine.ChoiceCancel

	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[engine.Choice]().
			Title(title).
			Options(options...).
			Value(&choice),
	))

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return engine.ChoiceCancel, nil
		}

		return engine.ChoiceCancel, fmt.Errorf("running prompt: %w", err)
	}

	return choice, nil
}

// promptFor maps a classification to its question and the actions the
// user may take. Every prompt carries a cancel option.
func promptFor(c engine.Classification) (string, []huh.Option[engine.Choice]) {
	cancel := huh.NewOption("Cancel, touch nothing", engine.ChoiceCancel)

	switch c {
	case engine.BothAbsent:
		return "No guide exists locally or remotely.", []huh.Option[engine.Choice]{
			huh.NewOption("Create a starter guide locally", engine.ChoiceCreateTemplate),
			cancel,
		}

	case engine.RemoteOnly:
		return "A remote guide exists but there is no local copy.", []huh.Option[engine.Choice]{
			huh.NewOption("Download the remote guide", engine.ChoiceDownload),
			cancel,
		}

	case engine.LocalOnly:
		return "The local guide has never been published.", []huh.Option[engine.Choice]{
			huh.NewOption("Upload the local guide", engine.ChoiceUpload),
			cancel,
		}

	case engine.DivergedRemoteNewer:
		return "Both copies changed; the remote one is newer.", []huh.Option[engine.Choice]{
			huh.NewOption("Keep remote, overwrite local", engine.ChoiceDownload),
			huh.NewOption("Keep local, overwrite remote", engine.ChoiceUpload),
			cancel,
		}

	case engine.DivergedLocalNewer:
		return "Both copies changed; the local one is newer.", []huh.Option[engine.Choice]{
			huh.NewOption("Keep local, overwrite remote", engine.ChoiceUpload),
			huh.NewOption("Keep remote, overwrite local", engine.ChoiceDownload),
			cancel,
		}

	default:
		return "Both copies changed and no direction is safe to infer.", []huh.Option[engine.Choice]{
			huh.NewOption("Keep local, overwrite remote", engine.ChoiceUpload),
			huh.NewOption("Keep remote, overwrite local", engine.ChoiceDownload),
			cancel,
		}
	}
}

func renderDiff(diff string) string {
	var b strings.Builder

	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+ "):
			b.WriteString(addStyle.Render(line))
		case strings.HasPrefix(line, "- "):
			b.WriteString(removeStyle.Render(line))
		default:
			b.WriteString(faintStyle.Render(line))
		}

		b.WriteByte('\n')
	}

	return strings.TrimRight(b.String(), "\n")
}

func printResult(cmd *cobra.Command, a *app, res engine.Result) {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, faintStyle.Render("state: ")+res.Classification.String())

	switch {
	case res.Err != nil:
		fmt.Fprintln(out, errStyle.Render("sync failed: ")+res.Err.Error())

	case res.ActionTaken == engine.ActionDownload:
		fmt.Fprintln(out, okStyle.Render("downloaded remote guide to ")+a.store.RelPath())

	case res.ActionTaken == engine.ActionUpload:
		line := okStyle.Render("uploaded local guide")
		if res.RemoteURL != "" {
			line += faintStyle.Render(" (" + res.RemoteURL + ")")
		}

		fmt.Fprintln(out, line)

	case res.ActionTaken == engine.ActionCreateTemplate:
		fmt.Fprintln(out, okStyle.Render("created starter guide at ")+a.store.RelPath())

	case res.ActionTaken == engine.ActionCancelled:
		fmt.Fprintln(out, warnStyle.Render("cancelled, nothing changed"))

	case res.Classification == engine.Identical:
		fmt.Fprintln(out, okStyle.Render("already in sync"))

	default:
		fmt.Fprintln(out, faintStyle.Render("nothing to do"))
	}
}

func printStatus(cmd *cobra.Command, a *app, c engine.Classification, last *state.SyncRecord) {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, titleStyle.Render("guidesync status"))
	fmt.Fprintln(out, faintStyle.Render("artifact: ")+a.store.RelPath())
	fmt.Fprintln(out, faintStyle.Render("state:    ")+c.String())

	if id := a.state.RemoteID(); id != "" {
		fmt.Fprintln(out, faintStyle.Render("remote:   ")+id)
	}

	if url := a.state.RemoteURL(); url != "" {
		fmt.Fprintln(out, faintStyle.Render("url:      ")+url)
	}

	if last == nil {
		fmt.Fprintln(out, faintStyle.Render("last sync: never"))
		return
	}

	line := fmt.Sprintf("last sync: %s (%s, %s)",
		last.Time.Local().Format("2006-01-02 15:04:05"), last.Trigger, last.Action)

	if last.Error != "" {
		line += errStyle.Render(" failed: " + last.Error)
	}

	fmt.Fprintln(out, faintStyle.Render(line))
}
