package main

import (
	"context"

	"github.com/castwell/airchive/internal/repositories"
	"github.com/urfave/cli/v3"
)

// History lists journaled appends, or cycle summaries with --runs.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openJournalDB()
	if err != nil {
		return err
	}
	defer db.Close()

	journal := repositories.NewJournalRepository(db)
	limit := int(cmd.Int("limit"))

	if cmd.Bool("runs") {
		runs, err := journal.RecentRuns(limit)
		if err != nil {
			return err
		}

		if cmd.Bool("json") {
			return r.writeJSON(runs, true)
		}

		for _, run := range runs {
			status := "ok"
			if run.ErrorMsg != "" {
				status = run.ErrorMsg
			}
			r.writePlain("%s  vol %d  fetched %d  appended %d  skipped %d  %s\n",
				run.StartedAt.Local().Format("2006-01-02 15:04"), run.Volume, run.Fetched, run.Appended, run.Skipped, status)
		}
		return nil
	}

	tracks, err := journal.RecentTracks(limit)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, true)
	}

	for _, track := range tracks {
		r.writePlain("%s  vol %d  %s — %s\n",
			track.ArchivedAt.Local().Format("2006-01-02 15:04"), track.Volume, track.Artist, track.Title)
	}

	total, err := journal.CountArchived()
	if err != nil {
		return err
	}
	r.writePlain("%d tracks archived in total\n", total)

	return nil
}
