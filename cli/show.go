package cli

// This file contains the show command for inspecting one session.

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/masklinn/pytest-sessions/pkg/sessions/store"
)

func (a *App) show(ctx *cli.Context) error {
	dir := ctx.String("dir")

	path := ctx.Args().First()
	switch {
	case path == "":
		latest, err := store.LatestComplete(dir)
		if err != nil {
			return err
		}
		if latest == "" {
			fmt.Println("No complete session found")
			return nil
		}
		path = latest
	case !filepath.IsAbs(path):
		path = filepath.Join(dir, path)
	}

	st, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer st.Close()

	var records []store.Record
	if ctx.Bool("collect") {
		records, err = st.CollectRecords()
	} else {
		records, err = st.TestRecords()
	}
	if err != nil {
		return err
	}

	fmt.Printf("\n=== %s (%d records) ===\n\n", filepath.Base(path), len(records))

	for _, rec := range records {
		fmt.Printf("%-8s  %s\n", rec.Outcome, rec.NodeID)
		if rec.Location != nil {
			fmt.Printf("          %s:%d\n", rec.Location.Filename, rec.Location.Line+1)
		}
	}
	return nil
}
