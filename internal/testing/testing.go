// package testing contains shared test doubles for the archive engine's
// collaborators: the broadcast feed, the Spotify API, and the state stores.
package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/castwell/airchive/internal/models"
	"github.com/castwell/airchive/internal/shared"
	"github.com/castwell/airchive/internal/store"
)

// MockFeed is a test double for the broadcast feed fetcher.
type MockFeed struct {
	Tracks []models.CandidateTrack
	Err    error
	Calls  int
}

func (f *MockFeed) RecentTracks(ctx context.Context, channel string) ([]models.CandidateTrack, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]models.CandidateTrack, len(f.Tracks))
	copy(out, f.Tracks)
	return out, nil
}

// Candidate builds a CandidateTrack with its canonical key.
func Candidate(title, artist string) models.CandidateTrack {
	return models.CandidateTrack{Key: models.TrackKey(title, artist), Title: title, Artist: artist}
}

// APIFailure mimics a remote API error with a status code.
type APIFailure struct {
	Status int
}

func (e *APIFailure) Error() string { return fmt.Sprintf("fake API error: status %d", e.Status) }

func (e *APIFailure) Retryable() bool { return e.Status == 429 || e.Status >= 500 }

func (e *APIFailure) NotFound() bool { return e.Status == 404 }

// FakePlaylist is one playlist held by FakeSpotify.
type FakePlaylist struct {
	ID     string
	Name   string
	Tracks []string
}

// FakeSpotify is an in-memory stand-in for the playlist API client.
//
// Error fields inject failures per operation; AppendFailAfter limits how many
// URIs a single AddTracks call confirms before failing (negative disables).
type FakeSpotify struct {
	mu sync.Mutex

	Playlists map[string]*FakePlaylist
	Library   map[string]string // track key -> URI

	CreateErr error
	RenameErr error
	CountErr  error
	SearchErr error
	AppendErr error

	AppendFailAfter int
	AppendCalls     [][]string
	Created         []string // playlist names in creation order

	nextID int
}

func NewFakeSpotify() *FakeSpotify {
	return &FakeSpotify{
		Playlists:       make(map[string]*FakePlaylist),
		Library:         make(map[string]string),
		AppendFailAfter: -1,
	}
}

// AddToLibrary makes a track resolvable via SearchTrack and returns its URI.
func (s *FakeSpotify) AddToLibrary(title, artist string) string {
	key := models.TrackKey(title, artist)
	uri := "spotify:track:" + key
	s.Library[key] = uri
	return uri
}

func (s *FakeSpotify) CreatePlaylist(ctx context.Context, name, description string, public bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CreateErr != nil {
		return "", s.CreateErr
	}

	s.nextID++
	id := fmt.Sprintf("pl-%d", s.nextID)
	s.Playlists[id] = &FakePlaylist{ID: id, Name: name}
	s.Created = append(s.Created, name)
	return id, nil
}

func (s *FakeSpotify) RenamePlaylist(ctx context.Context, playlistID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.RenameErr != nil {
		return s.RenameErr
	}

	pl, ok := s.Playlists[playlistID]
	if !ok {
		return &APIFailure{Status: 404}
	}
	pl.Name = name
	return nil
}

func (s *FakeSpotify) TrackCount(ctx context.Context, playlistID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CountErr != nil {
		return 0, s.CountErr
	}

	pl, ok := s.Playlists[playlistID]
	if !ok {
		return 0, &APIFailure{Status: 404}
	}
	return len(pl.Tracks), nil
}

func (s *FakeSpotify) AddTracks(ctx context.Context, playlistID string, uris []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.AppendCalls = append(s.AppendCalls, append([]string(nil), uris...))

	pl, ok := s.Playlists[playlistID]
	if !ok {
		return 0, &APIFailure{Status: 404}
	}

	confirmed := 0
	for _, uri := range uris {
		if s.AppendFailAfter >= 0 && confirmed >= s.AppendFailAfter {
			err := s.AppendErr
			if err == nil {
				err = &APIFailure{Status: 503}
			}
			return confirmed, err
		}
		pl.Tracks = append(pl.Tracks, uri)
		confirmed++
	}

	if s.AppendErr != nil {
		return confirmed, s.AppendErr
	}
	return confirmed, nil
}

func (s *FakeSpotify) SearchTrack(ctx context.Context, title, artist string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SearchErr != nil {
		return "", s.SearchErr
	}

	uri, ok := s.Library[models.TrackKey(title, artist)]
	if !ok {
		return "", fmt.Errorf("%w: %s — %s", shared.ErrTrackNotFound, artist, title)
	}
	return uri, nil
}

// AllAppended returns every URI confirmed across all AddTracks calls, in order.
func (s *FakeSpotify) AllAppended() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []string
	for _, pl := range s.Playlists {
		all = append(all, pl.Tracks...)
	}
	return all
}

// MemLedger is an in-memory dedup ledger store.
//
// Load returns a fresh working copy so only Save makes mutations durable,
// matching the file-backed ledger's load/save boundary.
type MemLedger struct {
	keys      []string
	SaveErr   error
	SaveCount int
}

func NewMemLedger(keys ...string) *MemLedger {
	return &MemLedger{keys: keys}
}

func (m *MemLedger) Load() *store.SeenTrackSet {
	return store.NewSeenTrackSet(m.keys...)
}

func (m *MemLedger) Save(set *store.SeenTrackSet) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.keys = set.Keys()
	m.SaveCount++
	return nil
}

// Contains reports whether key has been durably saved.
func (m *MemLedger) Contains(key string) bool {
	for _, k := range m.keys {
		if k == key {
			return true
		}
	}
	return false
}

// Len returns the number of durably saved keys.
func (m *MemLedger) Len() int { return len(m.keys) }

// MemState is an in-memory playlist state store.
type MemState struct {
	State     store.PlaylistState
	SaveErr   error
	SaveCount int
}

func NewMemState() *MemState {
	return &MemState{State: store.BootstrapState()}
}

func (m *MemState) Load() store.PlaylistState { return m.State }

func (m *MemState) Save(state store.PlaylistState) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.State = state
	m.SaveCount++
	return nil
}

// MemJournal collects journal records in memory.
type MemJournal struct {
	Tracks   []models.ArchivedTrack
	Runs     []models.RunRecord
	TrackErr error
	RunErr   error
}

func (j *MemJournal) RecordTrack(track models.ArchivedTrack) error {
	if j.TrackErr != nil {
		return j.TrackErr
	}
	j.Tracks = append(j.Tracks, track)
	return nil
}

func (j *MemJournal) RecordRun(run models.RunRecord) error {
	if j.RunErr != nil {
		return j.RunErr
	}
	j.Runs = append(j.Runs, run)
	return nil
}
