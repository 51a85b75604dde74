// package archive implements the synchronization cycle that mirrors a
// broadcast feed into rotating Spotify playlists.
//
// The Archiver is the only component with side effects beyond its own data: it
// filters the feed batch through the dedup ledger, decides rotation through the
// playlist state, mutates the remote playlist, and commits ledger and state
// only for confirmed appends. A failed cycle never prevents the next one; the
// feed presents still-unseen tracks again on the next invocation, so there is
// no in-process retry loop.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/castwell/airchive/internal/models"
	"github.com/castwell/airchive/internal/shared"
	"github.com/castwell/airchive/internal/store"
	"github.com/charmbracelet/log"
)

// Feed is the broadcast feed fetcher collaborator.
type Feed interface {
	// RecentTracks returns the station's recently played tracks in
	// chronological order. Failures are transient.
	RecentTracks(ctx context.Context, channel string) ([]models.CandidateTrack, error)
}

// PlaylistService is the remote playlist API collaborator.
type PlaylistService interface {
	CreatePlaylist(ctx context.Context, name, description string, public bool) (string, error)
	RenamePlaylist(ctx context.Context, playlistID, name string) error
	TrackCount(ctx context.Context, playlistID string) (int, error)
	// AddTracks appends uris in order and returns how many were confirmed.
	AddTracks(ctx context.Context, playlistID string, uris []string) (int, error)
	// SearchTrack resolves a play to a track URI, or shared.ErrTrackNotFound.
	SearchTrack(ctx context.Context, title, artist string) (string, error)
}

// Ledger loads and saves the dedup ledger.
type Ledger interface {
	Load() *store.SeenTrackSet
	Save(*store.SeenTrackSet) error
}

// State loads and saves the playlist rotation state.
type State interface {
	Load() store.PlaylistState
	Save(store.PlaylistState) error
}

// Journal records confirmed appends and cycle summaries. Implementations must
// treat failures as non-fatal; the archiver only logs them.
type Journal interface {
	RecordTrack(track models.ArchivedTrack) error
	RecordRun(run models.RunRecord) error
}

// Opts configures an Archiver.
type Opts struct {
	Channel        string
	PlaylistPrefix string
	MaxCapacity    int // default store.DefaultMaxCapacity
	RotationMargin int // headroom reserved below MaxCapacity
	Public         bool
}

// Archiver drives one synchronization cycle per Run call.
type Archiver struct {
	feed    Feed
	remote  PlaylistService
	ledger  Ledger
	state   State
	journal Journal
	logger  *log.Logger
	opts    Opts
}

// NewArchiver creates an Archiver. journal may be nil to disable journaling.
func NewArchiver(feed Feed, remote PlaylistService, ledger Ledger, state State, journal Journal, logger *log.Logger, opts Opts) *Archiver {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if opts.MaxCapacity <= 0 {
		opts.MaxCapacity = store.DefaultMaxCapacity
	}
	return &Archiver{
		feed:    feed,
		remote:  remote,
		ledger:  ledger,
		state:   state,
		journal: journal,
		logger:  logger,
		opts:    opts,
	}
}

// VolumeName returns the display name of an open archive volume.
func VolumeName(prefix string, volume int) string {
	return fmt.Sprintf("%s — Vol. %d", prefix, volume)
}

// ClosedVolumeName returns the display name a volume gets once it is full.
func ClosedVolumeName(prefix string, volume int) string {
	return fmt.Sprintf("%s — Vol. %d (closed)", prefix, volume)
}

type resolvedTrack struct {
	track models.CandidateTrack
	uri   string
}

// sendProgress sends a progress update through the channel without blocking.
func (a *Archiver) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run executes one synchronization cycle.
//
// The returned SyncResult is always non-nil and reflects confirmed progress. A
// non-nil error means the cycle ended early; everything the result counts as
// appended or skipped has already been durably recorded, and the remainder of
// the batch will reappear in the next cycle's feed. Errors here are for
// logging, never for terminating the process.
func (a *Archiver) Run(ctx context.Context, progress chan<- ProgressUpdate) (*models.SyncResult, error) {
	started := time.Now()

	seen := a.ledger.Load()
	st := a.state.Load()

	result := &models.SyncResult{Volume: st.Volume, PlaylistID: st.PlaylistID}

	a.sendProgress(progress, fetchFeedUpdate(a.opts.Channel))
	batch, err := a.feed.RecentTracks(ctx, a.opts.Channel)
	if err != nil {
		// Clean abort: no state was mutated, the next cycle retries.
		return a.finish(result, started, err)
	}
	result.Fetched = len(batch)

	// Stations replay songs within the feed window, so the batch itself can
	// carry the same key twice; only the first occurrence is eligible.
	fresh := make([]models.CandidateTrack, 0, len(batch))
	accepted := make(map[string]bool, len(batch))
	for _, track := range batch {
		if seen.Contains(track.Key) || accepted[track.Key] {
			continue
		}
		accepted[track.Key] = true
		fresh = append(fresh, track)
	}
	result.Fresh = len(fresh)
	a.sendProgress(progress, filterUpdate(len(fresh), len(batch)))

	if len(fresh) == 0 {
		return a.finish(result, started, nil)
	}

	resolved, cycleErr := a.resolve(ctx, progress, fresh, seen, result)

	if len(resolved) > 0 {
		if err := a.preparePlaylist(ctx, progress, &st, result); err != nil {
			a.commit(seen, result)
			return a.finish(result, started, err)
		}

		uris := make([]string, len(resolved))
		for i, r := range resolved {
			uris[i] = r.uri
		}

		a.sendProgress(progress, appendUpdate(len(uris)))
		confirmed, appendErr := a.remote.AddTracks(ctx, st.PlaylistID, uris)
		result.Appended = confirmed

		// Only confirmed appends become seen; the unconfirmed suffix stays
		// eligible for retry. Duplicate-on-retry is acceptable, silent loss
		// is not.
		for _, r := range resolved[:confirmed] {
			seen.Record(r.track.Key)
			a.journalTrack(r, st)
		}

		if appendErr != nil && cycleErr == nil {
			cycleErr = appendErr
		}
	}

	a.commit(seen, result)
	a.sendProgress(progress, commitUpdate(result.Appended))

	return a.finish(result, started, cycleErr)
}

// resolve maps fresh plays to track URIs, preserving batch order.
//
// Plays with no match anywhere on Spotify are recorded as seen so they are not
// searched again forever. A remote failure stops resolution; the unresolved
// remainder retries next cycle.
func (a *Archiver) resolve(ctx context.Context, progress chan<- ProgressUpdate, fresh []models.CandidateTrack, seen *store.SeenTrackSet, result *models.SyncResult) ([]resolvedTrack, error) {
	resolved := make([]resolvedTrack, 0, len(fresh))

	for i, track := range fresh {
		a.sendProgress(progress, resolveUpdate(i+1, len(fresh), &track))

		uri, err := a.remote.SearchTrack(ctx, track.Title, track.Artist)
		if err != nil {
			if errors.Is(err, shared.ErrTrackNotFound) {
				a.logger.Info("not found on spotify", "artist", track.Artist, "title", track.Title)
				seen.Record(track.Key)
				result.Skipped++
				continue
			}
			a.logger.Warn("track resolution failed, deferring remainder", "error", err)
			return resolved, err
		}

		resolved = append(resolved, resolvedTrack{track: track, uri: uri})
	}

	return resolved, nil
}

// preparePlaylist ensures st points at a playlist with enough headroom for the
// batch, creating the first volume or rotating to the next one as needed.
// State is persisted immediately after any remote playlist creation so a crash
// cannot orphan the new playlist.
func (a *Archiver) preparePlaylist(ctx context.Context, progress chan<- ProgressUpdate, st *store.PlaylistState, result *models.SyncResult) error {
	if !st.Initialized() {
		name := VolumeName(a.opts.PlaylistPrefix, st.Volume)
		a.sendProgress(progress, createVolumeUpdate(name))

		id, err := a.createVolume(ctx, st.Volume)
		if err != nil {
			return err
		}
		st.Activate(id)
		result.Volume = st.Volume
		result.PlaylistID = id
		return a.state.Save(*st)
	}

	count, err := a.remote.TrackCount(ctx, st.PlaylistID)
	if err != nil {
		if !isNotFound(err) {
			return err
		}
		// Active volume deleted remotely; start the next one rather than fail.
		a.logger.Warn("active playlist missing, starting a new volume", "playlist", st.PlaylistID, "volume", st.Volume)
		return a.advanceVolume(ctx, st, result)
	}

	if !store.NeedsRotation(count, a.opts.MaxCapacity, a.opts.RotationMargin) {
		return nil
	}

	a.sendProgress(progress, rotateVolumeUpdate(count, st.Volume))

	closed := ClosedVolumeName(a.opts.PlaylistPrefix, st.Volume)
	if err := a.remote.RenamePlaylist(ctx, st.PlaylistID, closed); err != nil {
		return err
	}

	if err := a.advanceVolume(ctx, st, result); err != nil {
		return err
	}
	result.Rotated = true
	return nil
}

// advanceVolume creates the playlist for the next volume and advances state.
func (a *Archiver) advanceVolume(ctx context.Context, st *store.PlaylistState, result *models.SyncResult) error {
	id, err := a.createVolume(ctx, st.Volume+1)
	if err != nil {
		return err
	}
	st.Advance(id)
	result.Volume = st.Volume
	result.PlaylistID = id
	return a.state.Save(*st)
}

func (a *Archiver) createVolume(ctx context.Context, volume int) (string, error) {
	name := VolumeName(a.opts.PlaylistPrefix, volume)
	description := fmt.Sprintf("Archive of station %s, volume %d (auto-generated).", a.opts.Channel, volume)
	id, err := a.remote.CreatePlaylist(ctx, name, description, a.opts.Public)
	if err != nil {
		return "", err
	}
	a.logger.Info("created playlist", "name", name, "id", id)
	return id, nil
}

// commit persists the ledger when the cycle made durable progress. Cycles that
// recorded nothing leave the file untouched.
func (a *Archiver) commit(seen *store.SeenTrackSet, result *models.SyncResult) {
	if result.Appended == 0 && result.Skipped == 0 {
		return
	}
	if err := a.ledger.Save(seen); err != nil {
		a.logger.Error("failed to save ledger", "error", err)
		if result.Err == nil {
			result.Err = err
		}
	}
}

// journalTrack records one confirmed append; failures are logged only.
func (a *Archiver) journalTrack(r resolvedTrack, st store.PlaylistState) {
	if a.journal == nil {
		return
	}
	entry := models.ArchivedTrack{
		ID:         shared.GenerateID(),
		Key:        r.track.Key,
		URI:        r.uri,
		Title:      r.track.Title,
		Artist:     r.track.Artist,
		PlaylistID: st.PlaylistID,
		Volume:     st.Volume,
		ArchivedAt: time.Now().UTC(),
	}
	if err := a.journal.RecordTrack(entry); err != nil {
		a.logger.Warn("failed to journal track", "key", r.track.Key, "error", err)
	}
}

// finish stamps the result, journals the run summary, and returns.
func (a *Archiver) finish(result *models.SyncResult, started time.Time, err error) (*models.SyncResult, error) {
	if err != nil && result.Err == nil {
		result.Err = err
	}

	if a.journal != nil {
		record := models.RunRecord{
			ID:         shared.GenerateID(),
			StartedAt:  started.UTC(),
			FinishedAt: time.Now().UTC(),
			Fetched:    result.Fetched,
			Fresh:      result.Fresh,
			Appended:   result.Appended,
			Skipped:    result.Skipped,
			Rotated:    result.Rotated,
			Volume:     result.Volume,
			PlaylistID: result.PlaylistID,
		}
		if result.Err != nil {
			record.ErrorMsg = result.Err.Error()
		}
		if jerr := a.journal.RecordRun(record); jerr != nil {
			a.logger.Warn("failed to journal run", "error", jerr)
		}
	}

	return result, result.Err
}

func isNotFound(err error) bool {
	var apiErr interface{ NotFound() bool }
	return errors.As(err, &apiErr) && apiErr.NotFound()
}
