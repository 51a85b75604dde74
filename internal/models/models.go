// package models defines the data model for the broadcast archive engine
package models

import (
	"fmt"
	"strings"
	"time"
)

// CandidateTrack is one play reported by the broadcast feed for the current
// cycle. It is transient: never persisted, only filtered and resolved.
//
// Batch ordering is chronological (oldest first) so archival order matches
// broadcast order.
type CandidateTrack struct {
	Key    string // dedup key, see TrackKey
	Title  string
	Artist string
}

// TrackKey builds the canonical dedup key for a play.
//
// The key intentionally ignores the resolved URI: the same song reported
// again days later must hash identically even if resolution would differ.
func TrackKey(title, artist string) string {
	return fmt.Sprintf("%s - %s", strings.ToLower(strings.TrimSpace(artist)), strings.ToLower(strings.TrimSpace(title)))
}

// SyncResult summarizes one synchronization cycle for logging and the journal.
type SyncResult struct {
	Fetched    int    // plays reported by the feed
	Fresh      int    // plays not yet in the ledger
	Appended   int    // tracks confirmed appended this cycle
	Skipped    int    // fresh plays with no resolvable Spotify track
	Rotated    bool   // whether a volume rotation occurred
	Volume     int    // active volume after the cycle
	PlaylistID string // active playlist after the cycle
	Err        error  // partial-failure cause, nil on full success
}

// Partial reports whether the cycle ended early after confirming some appends.
func (r *SyncResult) Partial() bool {
	return r.Err != nil
}

// ArchivedTrack is a journal row for one confirmed playlist append.
type ArchivedTrack struct {
	ID         string
	Key        string
	URI        string
	Title      string
	Artist     string
	PlaylistID string
	Volume     int
	ArchivedAt time.Time
}

// RunRecord is a journal row summarizing one cycle.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Fetched    int
	Fresh      int
	Appended   int
	Skipped    int
	Rotated    bool
	Volume     int
	PlaylistID string
	ErrorMsg   string
}
