package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/goose/internal/shared"
	"github.com/desertthunder/goose/internal/ui"
	"github.com/desertthunder/goose/internal/workspace"
	"github.com/urfave/cli/v3"
)

// Console launches the terminal workspace editor over the acquisition pool.
func (r *Runner) Console(ctx context.Context, cmd *cli.Command) error {
	fileLogger, err := shared.NewFileLogger(cmd.String("log"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	s, err := r.openStack(ctx, stackOpts{Pool: true, Progress: true})
	defer s.Close()
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, ui.Options{
		Acquire:   s.pool,
		Library:   s.tracks,
		Workspace: workspace.New(0, s.tracks, fileLogger),
		Progress:  s.progress,
		ExportDir: cmd.String("export-dir"),
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running console: %w", err)
	}

	return nil
}
