package archive

import (
	"fmt"

	"github.com/castwell/airchive/internal/models"
)

// ProgressUpdate represents a progress event during a synchronization cycle.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Cycle phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
}

// Operation phase enumeration
type Phase int

const (
	FetchFeed Phase = iota
	FilterTracks
	ResolveTracks
	CreateVolume
	RotateVolume
	AppendTracks
	Commit
)

func (p Phase) String() string {
	switch p {
	case FetchFeed:
		return "fetch_feed"
	case FilterTracks:
		return "filter_tracks"
	case ResolveTracks:
		return "resolve_tracks"
	case CreateVolume:
		return "create_volume"
	case RotateVolume:
		return "rotate_volume"
	case AppendTracks:
		return "append_tracks"
	case Commit:
		return "commit"
	default:
		return ""
	}
}

func fetchFeedUpdate(channel string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchFeed,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching recent plays for station %s...", channel),
	}
}

func filterUpdate(fresh, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FilterTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%d of %d plays not yet archived", fresh, total),
	}
}

func resolveUpdate(step, total int, track *models.CandidateTrack) ProgressUpdate {
	msg := "Resolving tracks on Spotify..."
	if track != nil {
		msg = fmt.Sprintf("Searching: %s — %s", track.Artist, track.Title)
	}
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: msg,
	}
}

func createVolumeUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreateVolume,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist %q", name),
	}
}

func rotateVolumeUpdate(count, volume int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RotateVolume,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Volume %d holds %d tracks, rotating to volume %d", volume, count, volume+1),
	}
}

func appendUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AppendTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Appending %d tracks...", count),
	}
}

func commitUpdate(appended int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Commit,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Recorded %d appended tracks", appended),
	}
}
