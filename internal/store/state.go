package store

import (
	"encoding/json"
	"os"

	"github.com/castwell/airchive/internal/shared"
	"github.com/charmbracelet/log"
)

// DefaultMaxCapacity is Spotify's playlist track limit.
const DefaultMaxCapacity = 10000

// PlaylistState tracks the active archive playlist and its volume number.
//
// PlaylistID is empty only in the bootstrap state, before the first volume has
// been created. Volume never decreases.
type PlaylistState struct {
	PlaylistID string `json:"current_playlist_id,omitempty"`
	Volume     int    `json:"current_volume"`
}

// BootstrapState returns the initial state: no playlist, volume 1.
func BootstrapState() PlaylistState {
	return PlaylistState{Volume: 1}
}

// Initialized reports whether a playlist has been created for the current volume.
func (s PlaylistState) Initialized() bool {
	return s.PlaylistID != ""
}

// Activate records the playlist created for the current volume.
//
// This is the bootstrap transition: the volume number does not change.
func (s *PlaylistState) Activate(playlistID string) {
	s.PlaylistID = playlistID
}

// Advance moves to the next volume, pointing at the freshly created playlist.
//
// The remote playlist must already exist; Advance is a pure state transition.
func (s *PlaylistState) Advance(playlistID string) {
	s.Volume++
	s.PlaylistID = playlistID
}

// NeedsRotation reports whether the active playlist is close enough to capacity
// that the next batch must go to a new volume.
//
// The margin exists because the track count is observed once per cycle and a
// batch may add more tracks than the remaining headroom. Checking before
// writing keeps the playlist from ever exceeding the platform limit.
func NeedsRotation(currentTrackCount, maxCapacity, rotationMargin int) bool {
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxCapacity
	}
	return currentTrackCount+rotationMargin >= maxCapacity
}

// FileState persists a PlaylistState as a JSON object.
type FileState struct {
	path   string
	logger *log.Logger
}

// NewFileState creates a state store backed by the file at path.
func NewFileState(path string, logger *log.Logger) *FileState {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &FileState{path: path, logger: logger}
}

// Load deserializes the state file, failing soft to the bootstrap state on a
// missing or malformed file.
func (f *FileState) Load() PlaylistState {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			f.logger.Warn("failed to read playlist state, bootstrapping", "path", f.path, "error", err)
		}
		return BootstrapState()
	}

	var state PlaylistState
	if err := json.Unmarshal(data, &state); err != nil {
		f.logger.Warn("playlist state file is malformed, bootstrapping", "path", f.path, "error", err)
		return BootstrapState()
	}

	if state.Volume < 1 {
		state.Volume = 1
	}

	return state
}

// Save serializes the state atomically.
func (f *FileState) Save(state PlaylistState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return shared.WriteFileAtomic(f.path, data, 0644)
}
