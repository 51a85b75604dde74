package main

import (
	"context"

	"github.com/castwell/airchive/internal/archive"
	"github.com/castwell/airchive/internal/store"
	"github.com/urfave/cli/v3"
)

// Status reports the local ledger and rotation state, plus the remote track
// count when credentials are available.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	seen := store.NewFileLedger(r.config.Archive.LedgerPath, r.logger).Load()
	state := store.NewFileState(r.config.Archive.StatePath, r.logger).Load()

	r.writePlain("Station:      %s\n", r.config.Feed.Channel)
	r.writePlain("Ledger:       %d tracks seen\n", seen.Len())
	r.writePlain("Volume:       %d\n", state.Volume)

	if !state.Initialized() {
		r.writePlain("Playlist:     none yet (bootstrap state)\n")
		return nil
	}

	r.writePlain("Playlist:     %s (%s)\n", archive.VolumeName(r.config.Archive.PlaylistPrefix, state.Volume), state.PlaylistID)

	if r.remote == nil {
		r.writePlain("Remote count: unavailable (no credentials)\n")
		return nil
	}

	count, err := r.remote.TrackCount(ctx, state.PlaylistID)
	if err != nil {
		r.writePlain("Remote count: unavailable (%v)\n", err)
		return nil
	}

	r.writePlain("Remote count: %d of %d", count, r.config.Archive.MaxCapacity)
	if store.NeedsRotation(count, r.config.Archive.MaxCapacity, r.config.Archive.RotationMargin) {
		r.writePlain(" (rotation due)")
	}
	r.writePlain("\n")

	return nil
}
