// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
		},
	}
}

// setupCommand writes the config file and migrates the ledger.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml if missing and run ledger migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   r.configPath,
			},
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Roll the latest migration back instead",
			},
		},
		Action: r.Setup,
	}
}

// botCommand runs the Discord bot.
func botCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "bot",
		Usage: "Run the Discord bot",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-server",
				Usage: "Do not serve the account link callbacks alongside the bot",
			},
		},
		Action: r.Bot,
	}
}

// serveCommand runs the account link web service on its own.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve OAuth callbacks, Subsonic art and health checks",
		Action: r.Serve,
	}
}

// acquireCommand resolves one request through the acquisition pipeline.
func acquireCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "acquire",
		Aliases: []string{"get"},
		Usage:   "Resolve a search, link or playlist name into stored tracks",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "query",
			},
		},
		Flags:  jsonFlags(),
		Action: r.Acquire,
	}
}

// migrateCommand upgrades stored documents to the current schema.
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Upgrade stored documents to the current schema",
		Commands: []*cli.Command{
			{
				Name:   "tracks",
				Usage:  "Upgrade stale track documents",
				Action: r.MigrateTracks,
			},
			{
				Name:   "users",
				Usage:  "Upgrade stale user documents",
				Action: r.MigrateUsers,
			},
		},
	}
}

// playlistCommand works with saved playlists.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "Saved playlist operations",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List saved playlists",
				Flags:  jsonFlags(),
				Action: r.PlaylistList,
			},
			{
				Name:  "show",
				Usage: "Show the tracks of a saved playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags:  jsonFlags(),
				Action: r.PlaylistShow,
			},
			{
				Name:  "export",
				Usage: "Export a saved playlist to CSV, Markdown or text",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: csv, md or txt",
						Value:   "md",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path (default: derived from the playlist name)",
					},
				},
				Action: r.PlaylistExport,
			},
		},
	}
}

// statsCommand reports library size and recent plays.
func statsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show library size and recent plays",
		Flags: append(jsonFlags(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of recent plays to show",
				Value: 10,
			},
		),
		Action: r.Stats,
	}
}

// consoleCommand launches the terminal workspace editor.
func consoleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "console",
		Usage: "Edit a playlist workspace in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "export-dir",
				Usage: "Directory Markdown exports are written to",
				Value: "exports",
			},
			&cli.StringFlag{
				Name:  "log",
				Usage: "Log file while the console is open",
				Value: "./tmp/goose-console.log",
			},
		},
		Action: r.Console,
	}
}
