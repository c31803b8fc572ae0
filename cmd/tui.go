package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sonatura/ytms/internal/shared"
	"github.com/sonatura/ytms/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI searches the catalog and launches the interactive result picker.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}
	if r.cache == nil {
		return fmt.Errorf("%w: no storage configured", shared.ErrMissingConfig)
	}

	songs, err := r.client.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(songs) == 0 {
		return r.writePlain("No results for %q\n", query)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/ytms-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, songs, r.cache, query)
	p := tea.NewProgram(model)

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if m, ok := final.(*ui.Model); ok && m.Selected() != nil && m.URL() != "" {
		r.writePlain("%s • %s\n", m.Selected().Title, m.Selected().Artist)
		return r.writePlain("%s\n", m.URL())
	}
	return nil
}
