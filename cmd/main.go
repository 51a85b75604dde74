package main

import (
	"context"
	"os"

	"github.com/castwell/airchive/internal/feed"
	"github.com/castwell/airchive/internal/shared"
	"github.com/castwell/airchive/internal/spotify"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	shared.LoadDotenv()

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}
	config.ApplyEnv()

	feedClient := feed.NewClient(config.Feed.BaseURL, nil)

	var spotifyClient *spotify.Client
	if config.Credentials.Spotify.ClientID != "" && config.Credentials.Spotify.ClientSecret != "" {
		if client, err := spotify.NewClient(config.Credentials.Spotify, spotify.Opts{
			AppendRate: config.Archive.AppendRate,
		}); err == nil {
			spotifyClient = client
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:  config,
		Feed:    feedClient,
		Spotify: spotifyClient,
		Logger:  logger,
	})

	app := &cli.Command{
		Name:     "airchive",
		Usage:    "Mirror a SiriusXM station's plays into rotating Spotify archive playlists",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
