package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ptx/internal/tasks"
	"github.com/desertthunder/ptx/internal/ui"
	"github.com/desertthunder/ptx/internal/shared"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for playlist transfer.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	source, dest, err := r.catalogPair(ctx, cmd.String("source"), cmd.String("dest"))
	if err != nil {
		return err
	}

	// Logs go to a file so they do not interleave with rendering.
	fileLogger, err := shared.NewFileLogger(cmd.String("log"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	opts := tasks.EngineOpts{Logger: r.logger, Workers: r.config.Transfer.Workers, NameSuffix: r.config.Transfer.NameSuffix}
	recorder, closeHistory := r.history()
	defer closeHistory()
	if recorder != nil {
		opts.Recorder = recorder
	}
	engine := tasks.NewPlaylistEngine(source, dest, opts)

	model := ui.NewModel(ctx, source, engine, ui.ModelOpts{
		Destination:  dest.Name(),
		SummaryLimit: r.summaryLimit(),
		AuditPath: func(playlistID string) string {
			return shared.ExpandTemplate(r.config.Transfer.LogFile, playlistID, r.now())
		},
	})

	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
