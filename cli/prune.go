package cli

// This file contains the prune command for enforcing retention.

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/masklinn/pytest-sessions/pkg/sessions/store"
)

func (a *App) prune(ctx *cli.Context) error {
	dir := ctx.String("dir")
	keep := ctx.Int("keep")
	if keep < 1 {
		return fmt.Errorf("at least one session must be retained, got %d", keep)
	}

	removed, err := store.Prune(dir, keep)
	if err != nil {
		return fmt.Errorf("failed to prune sessions: %w", err)
	}

	a.logger.Info().
		Str("dir", dir).
		Int("removed", removed).
		Int("keep", keep).
		Msg("pruned sessions")
	fmt.Printf("Removed %d session(s)\n", removed)
	return nil
}
