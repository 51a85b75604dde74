package archive

import (
	"context"
	"errors"
	"testing"

	"github.com/castwell/airchive/internal/models"
	"github.com/castwell/airchive/internal/store"
	tu "github.com/castwell/airchive/internal/testing"
)

func testOpts() Opts {
	return Opts{
		Channel:        "1stwave",
		PlaylistPrefix: "Archive",
		MaxCapacity:    10,
		RotationMargin: 2,
	}
}

type fixture struct {
	feed    *tu.MockFeed
	remote  *tu.FakeSpotify
	ledger  *tu.MemLedger
	state   *tu.MemState
	journal *tu.MemJournal
}

func newFixture(tracks ...models.CandidateTrack) *fixture {
	return &fixture{
		feed:    &tu.MockFeed{Tracks: tracks},
		remote:  tu.NewFakeSpotify(),
		ledger:  tu.NewMemLedger(),
		state:   tu.NewMemState(),
		journal: &tu.MemJournal{},
	}
}

func (f *fixture) archiver(opts Opts) *Archiver {
	return NewArchiver(f.feed, f.remote, f.ledger, f.state, f.journal, nil, opts)
}

func TestRunBootstrap(t *testing.T) {
	tracks := []models.CandidateTrack{
		tu.Candidate("Blue Monday", "New Order"),
		tu.Candidate("A Forest", "The Cure"),
	}
	f := newFixture(tracks...)
	for _, track := range tracks {
		f.remote.AddToLibrary(track.Title, track.Artist)
	}

	result, err := f.archiver(testOpts()).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected clean cycle, got %v", err)
	}

	t.Run("Creates First Volume", func(t *testing.T) {
		if len(f.remote.Created) != 1 {
			t.Fatalf("expected one playlist, got %d", len(f.remote.Created))
		}
		if f.remote.Created[0] != "Archive — Vol. 1" {
			t.Errorf("unexpected playlist name %q", f.remote.Created[0])
		}
		if f.state.State.Volume != 1 {
			t.Errorf("expected volume 1, got %d", f.state.State.Volume)
		}
		if f.state.State.PlaylistID == "" {
			t.Error("expected playlist id persisted")
		}
	})

	t.Run("Appends Full Batch In Order", func(t *testing.T) {
		if result.Appended != 2 {
			t.Errorf("expected 2 appended, got %d", result.Appended)
		}
		pl := f.remote.Playlists[result.PlaylistID]
		if len(pl.Tracks) != 2 {
			t.Fatalf("expected 2 tracks on playlist, got %d", len(pl.Tracks))
		}
		if pl.Tracks[0] != "spotify:track:"+tracks[0].Key {
			t.Error("expected batch order preserved")
		}
	})

	t.Run("Records Appends As Seen", func(t *testing.T) {
		if f.ledger.Len() != 2 {
			t.Errorf("expected 2 ledger keys, got %d", f.ledger.Len())
		}
		for _, track := range tracks {
			if !f.ledger.Contains(track.Key) {
				t.Errorf("expected %q in ledger", track.Key)
			}
		}
	})

	t.Run("Journals Tracks And Run", func(t *testing.T) {
		if len(f.journal.Tracks) != 2 {
			t.Errorf("expected 2 journaled tracks, got %d", len(f.journal.Tracks))
		}
		if len(f.journal.Runs) != 1 {
			t.Fatalf("expected 1 journaled run, got %d", len(f.journal.Runs))
		}
		run := f.journal.Runs[0]
		if run.Fetched != 2 || run.Fresh != 2 || run.Appended != 2 {
			t.Errorf("unexpected run counters: %+v", run)
		}
	})
}

func TestRunIdempotence(t *testing.T) {
	tracks := []models.CandidateTrack{
		tu.Candidate("Love Will Tear Us Apart", "Joy Division"),
	}
	f := newFixture(tracks...)
	f.remote.AddToLibrary(tracks[0].Title, tracks[0].Artist)

	archiver := f.archiver(testOpts())

	if _, err := archiver.Run(context.Background(), nil); err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}
	saves := f.ledger.SaveCount

	result, err := archiver.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}

	if result.Fresh != 0 || result.Appended != 0 {
		t.Errorf("expected no-op second cycle, got fresh=%d appended=%d", result.Fresh, result.Appended)
	}
	if len(f.remote.AllAppended()) != 1 {
		t.Errorf("expected no duplicate archival, playlist holds %d tracks", len(f.remote.AllAppended()))
	}
	if f.ledger.SaveCount != saves {
		t.Error("no-op cycle should not rewrite the ledger")
	}
	if len(f.remote.Created) != 1 {
		t.Errorf("expected no extra playlists, got %d", len(f.remote.Created))
	}
}

func TestRunInBatchDuplicate(t *testing.T) {
	replayed := tu.Candidate("Blue Monday", "New Order")
	other := tu.Candidate("A Forest", "The Cure")
	// The station replayed the song within the feed window.
	f := newFixture(replayed, other, replayed)
	f.remote.AddToLibrary(replayed.Title, replayed.Artist)
	f.remote.AddToLibrary(other.Title, other.Artist)

	result, err := f.archiver(testOpts()).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected clean cycle, got %v", err)
	}

	if result.Fetched != 3 || result.Fresh != 2 {
		t.Errorf("expected 3 fetched and 2 fresh, got %+v", result)
	}
	if result.Appended != 2 {
		t.Errorf("expected each key appended once, got %d", result.Appended)
	}

	counts := make(map[string]int)
	for _, uri := range f.remote.AllAppended() {
		counts[uri]++
	}
	if counts["spotify:track:"+replayed.Key] != 1 {
		t.Errorf("replayed track archived %d times, want 1", counts["spotify:track:"+replayed.Key])
	}
	if len(f.journal.Tracks) != 2 {
		t.Errorf("expected 2 journaled tracks, got %d", len(f.journal.Tracks))
	}
}

func TestRunFeedFailure(t *testing.T) {
	f := newFixture()
	f.feed.Err = errors.New("feed unavailable")

	result, err := f.archiver(testOpts()).Run(context.Background(), nil)
	if err == nil {
		t.Fatal("expected an error")
	}

	if result.Fetched != 0 || result.Appended != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
	if f.ledger.SaveCount != 0 {
		t.Error("fetch failure must not touch the ledger")
	}
	if f.state.SaveCount != 0 {
		t.Error("fetch failure must not touch the state")
	}
	if len(f.journal.Runs) != 1 || f.journal.Runs[0].ErrorMsg == "" {
		t.Error("expected the failed run journaled with its error")
	}
}

func TestRunEmptyBatch(t *testing.T) {
	f := newFixture()

	result, err := f.archiver(testOpts()).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected clean cycle, got %v", err)
	}

	if result.Fetched != 0 || result.Fresh != 0 {
		t.Errorf("expected empty counters, got %+v", result)
	}
	if len(f.remote.Created) != 0 {
		t.Error("empty batch should not create playlists")
	}
	if f.ledger.SaveCount != 0 {
		t.Error("empty batch should not rewrite the ledger")
	}
}

func TestRunSkipsUnresolvable(t *testing.T) {
	found := tu.Candidate("Bela Lugosi's Dead", "Bauhaus")
	missing := tu.Candidate("Obscure B-Side", "Unknown Band")
	f := newFixture(missing, found)
	f.remote.AddToLibrary(found.Title, found.Artist)

	result, err := f.archiver(testOpts()).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected clean cycle, got %v", err)
	}

	if result.Skipped != 1 || result.Appended != 1 {
		t.Errorf("expected 1 skipped and 1 appended, got %+v", result)
	}
	if !f.ledger.Contains(missing.Key) {
		t.Error("unresolvable track should be recorded as seen")
	}
	if !f.ledger.Contains(found.Key) {
		t.Error("appended track should be recorded as seen")
	}
}

func TestRunSkipOnlyBatchStillCommits(t *testing.T) {
	missing := tu.Candidate("Nowhere", "Nobody")
	f := newFixture(missing)

	result, err := f.archiver(testOpts()).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected clean cycle, got %v", err)
	}

	if result.Skipped != 1 || result.Appended != 0 {
		t.Errorf("expected skip-only cycle, got %+v", result)
	}
	if !f.ledger.Contains(missing.Key) {
		t.Error("skipped key should be durably saved")
	}
	if len(f.remote.Created) != 0 {
		t.Error("nothing resolved, no playlist should be created")
	}
}

func TestRunResolutionFailureDefersRemainder(t *testing.T) {
	tracks := []models.CandidateTrack{
		tu.Candidate("Temptation", "New Order"),
	}
	f := newFixture(tracks...)
	f.remote.SearchErr = &tu.APIFailure{Status: 500}

	result, err := f.archiver(testOpts()).Run(context.Background(), nil)
	if err == nil {
		t.Fatal("expected an error")
	}

	if result.Appended != 0 || result.Skipped != 0 {
		t.Errorf("expected no progress, got %+v", result)
	}
	if f.ledger.SaveCount != 0 {
		t.Error("transient resolution failure must not record the track as seen")
	}

	// Remote recovers; the same track comes back from the feed and lands.
	f.remote.SearchErr = nil
	f.remote.AddToLibrary(tracks[0].Title, tracks[0].Artist)

	result, err = f.archiver(testOpts()).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("recovery cycle failed: %v", err)
	}
	if result.Appended != 1 {
		t.Errorf("expected deferred track appended, got %+v", result)
	}
}

func TestRunPartialAppendDurability(t *testing.T) {
	titles := []string{"Ceremony", "Transmission", "Atmosphere", "Disorder", "Isolation"}
	tracks := make([]models.CandidateTrack, len(titles))
	f := newFixture()
	for i, title := range titles {
		tracks[i] = tu.Candidate(title, "Joy Division")
		f.remote.AddToLibrary(title, "Joy Division")
	}
	f.feed.Tracks = tracks
	f.remote.AppendFailAfter = 3

	result, err := f.archiver(testOpts()).Run(context.Background(), nil)
	if err == nil {
		t.Fatal("expected an error from the interrupted append")
	}

	t.Run("Confirmed Prefix Recorded", func(t *testing.T) {
		if result.Appended != 3 {
			t.Errorf("expected 3 appended, got %d", result.Appended)
		}
		for _, track := range tracks[:3] {
			if !f.ledger.Contains(track.Key) {
				t.Errorf("confirmed track %q missing from ledger", track.Key)
			}
		}
		for _, track := range tracks[3:] {
			if f.ledger.Contains(track.Key) {
				t.Errorf("unconfirmed track %q must stay eligible for retry", track.Key)
			}
		}
		if len(f.journal.Tracks) != 3 {
			t.Errorf("expected 3 journaled tracks, got %d", len(f.journal.Tracks))
		}
	})

	t.Run("Next Cycle Converges", func(t *testing.T) {
		f.remote.AppendFailAfter = -1

		result, err := f.archiver(testOpts()).Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("expected clean cycle, got %v", err)
		}
		if result.Fresh != 2 || result.Appended != 2 {
			t.Errorf("expected the 2 deferred tracks, got %+v", result)
		}

		all := f.remote.AllAppended()
		if len(all) != 5 {
			t.Fatalf("expected 5 tracks archived total, got %d", len(all))
		}
		seen := make(map[string]bool)
		for _, uri := range all {
			if seen[uri] {
				t.Errorf("duplicate archival of %s", uri)
			}
			seen[uri] = true
		}
	})
}

func TestRunRotation(t *testing.T) {
	fill := func(t *testing.T, f *fixture, count int) string {
		t.Helper()
		id, err := f.remote.CreatePlaylist(context.Background(), "Archive — Vol. 1", "", false)
		if err != nil {
			t.Fatalf("failed to seed playlist: %v", err)
		}
		for i := 0; i < count; i++ {
			f.remote.Playlists[id].Tracks = append(f.remote.Playlists[id].Tracks, "spotify:track:seed")
		}
		f.state.State = store.PlaylistState{PlaylistID: id, Volume: 1}
		return id
	}

	t.Run("Rotates At Threshold", func(t *testing.T) {
		track := tu.Candidate("Fascination Street", "The Cure")
		f := newFixture(track)
		f.remote.AddToLibrary(track.Title, track.Artist)
		oldID := fill(t, f, 8) // 8 + margin 2 >= capacity 10

		result, err := f.archiver(testOpts()).Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("expected clean cycle, got %v", err)
		}

		if !result.Rotated {
			t.Error("expected rotation")
		}
		if f.state.State.Volume != 2 {
			t.Errorf("expected volume 2, got %d", f.state.State.Volume)
		}
		if f.state.State.PlaylistID == oldID {
			t.Error("expected a new active playlist")
		}
		if f.remote.Playlists[oldID].Name != "Archive — Vol. 1 (closed)" {
			t.Errorf("expected closed volume renamed, got %q", f.remote.Playlists[oldID].Name)
		}
		if len(f.remote.Playlists[f.state.State.PlaylistID].Tracks) != 1 {
			t.Error("expected append to land on the new volume")
		}
		if len(f.remote.Playlists[oldID].Tracks) != 8 {
			t.Error("closed volume must not receive new tracks")
		}
	})

	t.Run("No Rotation Below Threshold", func(t *testing.T) {
		track := tu.Candidate("Lullaby", "The Cure")
		f := newFixture(track)
		f.remote.AddToLibrary(track.Title, track.Artist)
		id := fill(t, f, 7) // 7 + margin 2 < capacity 10

		result, err := f.archiver(testOpts()).Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("expected clean cycle, got %v", err)
		}

		if result.Rotated {
			t.Error("unexpected rotation")
		}
		if f.state.State.Volume != 1 || f.state.State.PlaylistID != id {
			t.Errorf("state should be unchanged, got %+v", f.state.State)
		}
		if len(f.remote.Playlists[id].Tracks) != 8 {
			t.Errorf("expected append on the active volume, got %d tracks", len(f.remote.Playlists[id].Tracks))
		}
	})

	t.Run("Rename Failure Keeps Current Volume", func(t *testing.T) {
		track := tu.Candidate("Plainsong", "The Cure")
		f := newFixture(track)
		f.remote.AddToLibrary(track.Title, track.Artist)
		id := fill(t, f, 9)
		f.remote.RenameErr = &tu.APIFailure{Status: 503}

		_, err := f.archiver(testOpts()).Run(context.Background(), nil)
		if err == nil {
			t.Fatal("expected an error")
		}

		if f.state.State.Volume != 1 || f.state.State.PlaylistID != id {
			t.Errorf("failed rotation must not advance state, got %+v", f.state.State)
		}
		if f.ledger.Len() != 0 {
			t.Error("nothing appended, ledger should be untouched")
		}
	})
}

func TestRunLostPlaylistRecovery(t *testing.T) {
	track := tu.Candidate("Just Like Heaven", "The Cure")
	f := newFixture(track)
	f.remote.AddToLibrary(track.Title, track.Artist)
	// State points at a playlist the remote no longer has.
	f.state.State = store.PlaylistState{PlaylistID: "pl-deleted", Volume: 3}

	result, err := f.archiver(testOpts()).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected clean cycle, got %v", err)
	}

	if f.state.State.Volume != 4 {
		t.Errorf("expected volume advanced to 4, got %d", f.state.State.Volume)
	}
	if len(f.remote.Created) != 1 || f.remote.Created[0] != "Archive — Vol. 4" {
		t.Errorf("expected replacement volume created, got %v", f.remote.Created)
	}
	if result.Rotated {
		t.Error("recovery is not a rotation")
	}
	if result.Appended != 1 {
		t.Errorf("expected append to land on the replacement, got %+v", result)
	}
}

func TestRunCreateFailure(t *testing.T) {
	track := tu.Candidate("Pictures of You", "The Cure")
	f := newFixture(track)
	f.remote.AddToLibrary(track.Title, track.Artist)
	f.remote.CreateErr = &tu.APIFailure{Status: 503}

	_, err := f.archiver(testOpts()).Run(context.Background(), nil)
	if err == nil {
		t.Fatal("expected an error")
	}

	if f.state.SaveCount != 0 {
		t.Error("failed creation must not persist state")
	}
	if f.ledger.Contains(track.Key) {
		t.Error("nothing landed, the track must stay eligible")
	}
}

func TestRunProgressUpdates(t *testing.T) {
	track := tu.Candidate("Close to Me", "The Cure")
	f := newFixture(track)
	f.remote.AddToLibrary(track.Title, track.Artist)

	progress := make(chan ProgressUpdate, 32)
	if _, err := f.archiver(testOpts()).Run(context.Background(), progress); err != nil {
		t.Fatalf("expected clean cycle, got %v", err)
	}
	close(progress)

	phases := make(map[Phase]bool)
	for update := range progress {
		phases[update.Phase] = true
	}
	for _, want := range []Phase{FetchFeed, FilterTracks, ResolveTracks, CreateVolume, AppendTracks, Commit} {
		if !phases[want] {
			t.Errorf("expected a %s update", want)
		}
	}
}

func TestVolumeNames(t *testing.T) {
	if got := VolumeName("Archive", 3); got != "Archive — Vol. 3" {
		t.Errorf("unexpected open name %q", got)
	}
	if got := ClosedVolumeName("Archive", 3); got != "Archive — Vol. 3 (closed)" {
		t.Errorf("unexpected closed name %q", got)
	}
}
