// package store owns the two persisted state files behind the archiver: the
// dedup ledger (seen.json) and the playlist rotation state (meta.json).
//
// Both loads fail soft: a missing or corrupt file degrades to a defined default
// instead of an error, because losing local state must never halt the pipeline.
// Both saves use a write-new-then-replace discipline so a crash mid-write can
// never tear the previous contents.
package store

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/castwell/airchive/internal/shared"
	"github.com/charmbracelet/log"
)

// SeenTrackSet is the set of track keys already handled by the archiver.
//
// Membership test and insertion are the only operations; the set never shrinks
// except by deleting the ledger file.
type SeenTrackSet struct {
	keys map[string]struct{}
}

// NewSeenTrackSet creates a set containing the given keys, dropping duplicates.
func NewSeenTrackSet(keys ...string) *SeenTrackSet {
	s := &SeenTrackSet{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	return s
}

// Contains reports whether key has been recorded.
func (s *SeenTrackSet) Contains(key string) bool {
	_, ok := s.keys[key]
	return ok
}

// Record inserts key into the set. Recording an already-present key is a no-op.
func (s *SeenTrackSet) Record(key string) {
	s.keys[key] = struct{}{}
}

// Len returns the number of recorded keys.
func (s *SeenTrackSet) Len() int {
	return len(s.keys)
}

// Keys returns all recorded keys in sorted order for stable serialization.
func (s *SeenTrackSet) Keys() []string {
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FileLedger persists a SeenTrackSet as a JSON array of strings.
type FileLedger struct {
	path   string
	logger *log.Logger
}

// NewFileLedger creates a ledger backed by the file at path.
func NewFileLedger(path string, logger *log.Logger) *FileLedger {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &FileLedger{path: path, logger: logger}
}

// Load deserializes the ledger file.
//
// A missing or malformed file yields an empty set, never an error: re-archiving
// a handful of tracks is acceptable, halting the pipeline is not.
func (l *FileLedger) Load() *SeenTrackSet {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn("failed to read ledger, starting empty", "path", l.path, "error", err)
		}
		return NewSeenTrackSet()
	}

	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		l.logger.Warn("ledger file is malformed, starting empty", "path", l.path, "error", err)
		return NewSeenTrackSet()
	}

	return NewSeenTrackSet(keys...)
}

// Save serializes the full set atomically.
func (l *FileLedger) Save(set *SeenTrackSet) error {
	data, err := json.MarshalIndent(set.Keys(), "", "  ")
	if err != nil {
		return err
	}
	return shared.WriteFileAtomic(l.path, data, 0644)
}
