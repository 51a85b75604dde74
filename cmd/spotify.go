package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/castwell/airchive/internal/server"
	"github.com/castwell/airchive/internal/shared"
	"github.com/urfave/cli/v3"
)

// SpotifyAuth runs the authorization-code flow against a loopback callback
// server and prints the resulting refresh token.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	if r.oauth == nil {
		return fmt.Errorf("%w: set SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET", shared.ErrMissingCredentials)
	}

	state := shared.GenerateID()
	authURL := r.oauth.AuthCodeURL(state)

	r.writePlain("Open this URL in your browser, log in, and authorize the app:\n\n")
	r.writePlain("%s\n\n", authURL)
	r.writePlain("Waiting for the callback on %s...\n", cmd.String("listen"))

	callback := server.NewCallbackServer(r.oauth, state)
	token, err := callback.ListenAndWait(ctx, cmd.String("listen"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	if token.RefreshToken == "" {
		return fmt.Errorf("%w: authorization succeeded but no refresh token was returned", shared.ErrNoRefreshToken)
	}

	outputPath := cmd.String("output")
	if outputPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		outputPath = filepath.Join(homeDir, ".airchive", "spotify_tokens.json")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tokenJSON, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}

	if err := os.WriteFile(outputPath, tokenJSON, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	r.logger.Info("tokens saved", "path", outputPath)

	r.writePlain("\n✓ Authorization successful\n")
	r.writePlain("Refresh token: %s\n", token.RefreshToken)
	r.writePlain("\nNext steps:\n")
	r.writePlain("1. Set SPOTIFY_REFRESH_TOKEN in the environment or config.toml\n")
	r.writePlain("2. Run 'airchive archive run' to start archiving\n")

	return nil
}
