package cli

// This file contains the list command for displaying stored sessions.

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/masklinn/pytest-sessions/pkg/sessions/store"
)

func (a *App) list(ctx *cli.Context) error {
	dir := ctx.String("dir")
	limit := ctx.Int("limit")

	names, err := store.ListSessions(dir)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(names) == 0 {
		fmt.Println("No sessions found")
		return nil
	}

	display := names
	if limit > 0 && limit < len(display) {
		display = display[len(display)-limit:]
	}

	fmt.Printf("\n=== Sessions (%d total) ===\n\n", len(names))

	for _, name := range display {
		path := filepath.Join(dir, name)

		status := "✗ partial "
		if store.IsComplete(path) {
			status = "✓ complete"
		}

		counts := a.summarize(path)
		fmt.Printf("%s  %s%s\n", status, name, counts)
	}
	return nil
}

// summarize renders a session's outcome tallies, empty when the store
// cannot be read.
func (a *App) summarize(path string) string {
	st, err := store.Open(path)
	if err != nil {
		a.logger.Debug().Err(err).Str("path", path).Msg("cannot open session")
		return ""
	}
	defer st.Close()

	counts, err := st.OutcomeCounts()
	if err != nil {
		a.logger.Debug().Err(err).Str("path", path).Msg("cannot read session")
		return ""
	}

	out := ""
	for _, o := range []store.Outcome{
		store.Passed, store.Failed, store.Error, store.Skipped,
		store.XFailed, store.XPassed, store.Warnings, store.Pending,
	} {
		if n := counts[o]; n > 0 {
			out += fmt.Sprintf("  %s=%d", o, n)
		}
	}
	return out
}
