package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/castwell/airchive/internal/archive"
	"github.com/castwell/airchive/internal/models"
	"github.com/castwell/airchive/internal/store"
	"github.com/urfave/cli/v3"
)

// ArchiveRun executes one synchronization cycle.
//
// A failed cycle is logged, never escalated: the command exits zero so the
// scheduler's next invocation retries naturally.
func (r *Runner) ArchiveRun(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("dry-run") {
		return r.dryRun(ctx)
	}

	archiver, cleanup, err := r.newArchiver()
	if err != nil {
		return err
	}
	defer cleanup()

	progressCh := make(chan archive.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.logger.Info(update.Message, "phase", update.Phase.String())
		}
	}()

	result, runErr := archiver.Run(ctx, progressCh)
	close(progressCh)
	<-done

	if runErr != nil {
		r.logger.Error("cycle ended early", "error", runErr)
	}

	if cmd.Bool("json") {
		return r.writeJSON(summarize(result), true)
	}

	r.writePlain("Fetched %d plays, %d fresh\n", result.Fetched, result.Fresh)
	r.writePlain("Appended %d tracks to volume %d", result.Appended, result.Volume)
	if result.Rotated {
		r.writePlain(" (rotated)")
	}
	r.writePlain("\n")
	if result.Skipped > 0 {
		r.writePlain("Skipped %d tracks with no Spotify match\n", result.Skipped)
	}
	if result.Partial() {
		r.writePlain("Cycle ended early: %v\n", result.Err)
	}

	return nil
}

// ArchiveLoop runs cycles on a ticker until interrupted.
func (r *Runner) ArchiveLoop(ctx context.Context, cmd *cli.Command) error {
	interval := cmd.Duration("interval")
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	archiver, cleanup, err := r.newArchiver()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r.logger.Info("starting archive loop", "interval", interval)

	for {
		result, runErr := archiver.Run(ctx, nil)
		if runErr != nil {
			if errors.Is(runErr, context.Canceled) {
				return nil
			}
			r.logger.Error("cycle ended early", "error", runErr)
		} else {
			r.logger.Info("cycle complete", "fetched", result.Fetched, "appended", result.Appended, "volume", result.Volume)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("archive loop stopped")
			return nil
		case <-time.After(interval):
		}
	}
}

// dryRun fetches and filters the batch without touching remote or local state.
func (r *Runner) dryRun(ctx context.Context) error {
	batch, err := r.feed.RecentTracks(ctx, r.config.Feed.Channel)
	if err != nil {
		r.logger.Error("feed fetch failed", "error", err)
		return nil
	}

	seen := store.NewFileLedger(r.config.Archive.LedgerPath, r.logger).Load()
	fresh := 0
	for _, track := range batch {
		if !seen.Contains(track.Key) {
			fresh++
			r.writePlain("+ %s — %s\n", track.Artist, track.Title)
		}
	}

	r.writePlain("%d plays fetched, %d would be archived\n", len(batch), fresh)
	return nil
}

type cycleSummary struct {
	Fetched    int    `json:"fetched"`
	Fresh      int    `json:"fresh"`
	Appended   int    `json:"appended"`
	Skipped    int    `json:"skipped"`
	Rotated    bool   `json:"rotated"`
	Volume     int    `json:"volume"`
	PlaylistID string `json:"playlist_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

func summarize(result *models.SyncResult) cycleSummary {
	s := cycleSummary{
		Fetched:    result.Fetched,
		Fresh:      result.Fresh,
		Appended:   result.Appended,
		Skipped:    result.Skipped,
		Rotated:    result.Rotated,
		Volume:     result.Volume,
		PlaylistID: result.PlaylistID,
	}
	if result.Err != nil {
		s.Error = result.Err.Error()
	}
	return s
}
