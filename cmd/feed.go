package main

import (
	"context"

	"github.com/castwell/airchive/internal/store"
	"github.com/urfave/cli/v3"
)

// FeedPeek fetches and prints the station's recent plays in archival order.
func (r *Runner) FeedPeek(ctx context.Context, cmd *cli.Command) error {
	tracks, err := r.feed.RecentTracks(ctx, r.config.Feed.Channel)
	if err != nil {
		return err
	}

	if cmd.Bool("fresh-only") {
		seen := store.NewFileLedger(r.config.Archive.LedgerPath, r.logger).Load()
		filtered := tracks[:0]
		for _, track := range tracks {
			if !seen.Contains(track.Key) {
				filtered = append(filtered, track)
			}
		}
		tracks = filtered
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, true)
	}

	for i, track := range tracks {
		r.writePlain("%3d. %s — %s\n", i+1, track.Artist, track.Title)
	}
	r.writePlain("%d plays (station %s)\n", len(tracks), r.config.Feed.Channel)

	return nil
}
