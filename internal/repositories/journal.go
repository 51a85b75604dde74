// package repositories implements SQLite persistence for the archive journal.
//
// The journal is telemetry, not source of truth: the dedup guarantee lives in
// the ledger file. Journal rows power the history command and post-hoc
// debugging of cycles.
package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/castwell/airchive/internal/models"
)

// JournalRepository records confirmed appends and cycle summaries in SQLite.
type JournalRepository struct {
	db *sql.DB
}

// NewJournalRepository creates a JournalRepository with the given database connection
func NewJournalRepository(db *sql.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// RecordTrack inserts one confirmed append.
//
// Re-recording a track key is a no-op rather than an error: the ledger already
// guarantees at-most-once archival, and a duplicate-on-retry cycle may legally
// confirm the same key twice.
func (r *JournalRepository) RecordTrack(track models.ArchivedTrack) error {
	query := `
		INSERT INTO archived_tracks (
			id, track_key, uri, title, artist, playlist_id, volume, archived_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		track.ID,
		track.Key,
		track.URI,
		track.Title,
		track.Artist,
		track.PlaylistID,
		track.Volume,
		track.ArchivedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil
		}
		return fmt.Errorf("failed to insert archived track: %w", err)
	}

	return nil
}

// RecordRun inserts one cycle summary.
func (r *JournalRepository) RecordRun(run models.RunRecord) error {
	query := `
		INSERT INTO archive_runs (
			id, started_at, finished_at, fetched, fresh, appended,
			skipped, rotated, volume, playlist_id, error_message
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var errorMessage any = run.ErrorMsg
	if run.ErrorMsg == "" {
		errorMessage = nil
	}

	_, err := r.db.Exec(query,
		run.ID,
		run.StartedAt,
		run.FinishedAt,
		run.Fetched,
		run.Fresh,
		run.Appended,
		run.Skipped,
		run.Rotated,
		run.Volume,
		run.PlaylistID,
		errorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run record: %w", err)
	}

	return nil
}

// RecentTracks returns the most recently archived tracks, newest first.
func (r *JournalRepository) RecentTracks(limit int) ([]models.ArchivedTrack, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, track_key, uri, title, artist, playlist_id, volume, archived_at
		FROM archived_tracks
		ORDER BY archived_at DESC, track_key DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.ArchivedTrack
	for rows.Next() {
		var t models.ArchivedTrack
		var archivedAt time.Time
		if err := rows.Scan(&t.ID, &t.Key, &t.URI, &t.Title, &t.Artist, &t.PlaylistID, &t.Volume, &archivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan archived track: %w", err)
		}
		t.ArchivedAt = archivedAt
		tracks = append(tracks, t)
	}

	return tracks, rows.Err()
}

// RecentRuns returns the most recent cycle summaries, newest first.
func (r *JournalRepository) RecentRuns(limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, started_at, finished_at, fetched, fresh, appended,
			skipped, rotated, volume, playlist_id, error_message
		FROM archive_runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		var run models.RunRecord
		var errorMessage sql.NullString
		if err := rows.Scan(
			&run.ID, &run.StartedAt, &run.FinishedAt, &run.Fetched, &run.Fresh,
			&run.Appended, &run.Skipped, &run.Rotated, &run.Volume,
			&run.PlaylistID, &errorMessage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		run.ErrorMsg = errorMessage.String
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// CountArchived returns the total number of journaled appends.
func (r *JournalRepository) CountArchived() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM archived_tracks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count archived tracks: %w", err)
	}
	return count, nil
}
