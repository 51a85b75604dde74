// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// archiveCommand handles synchronization cycles
func archiveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "archive",
		Aliases: []string{"arc"},
		Usage:   "Mirror the station feed into the archive playlists",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run one synchronization cycle",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Fetch and filter only; no playlist or state mutation",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the cycle summary as JSON",
					},
				},
				Action: r.ArchiveRun,
			},
			{
				Name:  "loop",
				Usage: "Run cycles repeatedly until interrupted",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:    "interval",
						Aliases: []string{"i"},
						Usage:   "Delay between cycles",
						Value:   0,
					},
				},
				Action: r.ArchiveLoop,
			},
		},
	}
}

// spotifyCommand handles Spotify credential provisioning
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify authentication",
		Commands: []*cli.Command{
			{
				Name:  "auth",
				Usage: "Obtain a refresh token via the OAuth2 authorization flow",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "Address for the loopback callback server",
						Value: "localhost:8080",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path to save the received tokens (JSON)",
					},
				},
				Action: r.SpotifyAuth,
			},
		},
	}
}

// feedCommand inspects the broadcast feed
func feedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "feed",
		Usage: "Broadcast feed operations",
		Commands: []*cli.Command{
			{
				Name:  "peek",
				Usage: "Fetch and print the station's recent plays",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "fresh-only",
						Usage: "Show only plays not yet in the ledger",
					},
				},
				Action: r.FeedPeek,
			},
		},
	}
}

// historyCommand lists journaled appends and runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show journaled archive activity",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of entries",
				Value:   20,
			},
			&cli.BoolFlag{
				Name:  "runs",
				Usage: "Show cycle summaries instead of tracks",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}

// statusCommand reports local and remote archive state
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show ledger size, active volume, and remote track count",
		Action: r.Status,
	}
}

// setupCommand scaffolds config and the journal database
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize config file and journal database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}
