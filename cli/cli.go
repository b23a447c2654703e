package cli

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const AppName = "sessionctl"

// App is the command-line front end over a sessions directory: it
// lists, inspects and prunes stored session databases.
type App struct {
	logger zerolog.Logger
	cli    *cli.App
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		cli: &cli.App{
			Name:  AppName,
			Usage: "Inspect and manage stored test session databases",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "dir",
					Aliases: []string{"d"},
					Usage:   "Sessions directory",
					Value:   ".sessions",
				},
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
			},
			Before: func(ctx *cli.Context) error {
				if ctx.Bool("verbose") {
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
				return nil
			},
		},
	}
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List stored sessions, oldest first",
		Action: app.list,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of results, newest kept (default: all)",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "show",
		Usage:     "Show the recorded outcomes of a session",
		ArgsUsage: "[NAME]",
		Action:    app.show,
		Description: `Show the recorded outcomes of a session.

Arguments:
  NAME    Session name within the directory, or an absolute path.
          Defaults to the most recent complete session.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "collect",
				Usage: "Show collection failures and skips instead of tests",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "prune",
		Usage:  "Remove the oldest sessions beyond the retention limit",
		Action: app.prune,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "keep",
				Aliases: []string{"k"},
				Usage:   "Number of sessions to retain",
				Value:   100,
			},
		},
	})
	return app
}

// SetVersion records release metadata injected at build time.
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	a.logger.Debug().
		Str("version", version).
		Str("commit", commit).
		Str("date", date).
		Msg("version info")
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}
