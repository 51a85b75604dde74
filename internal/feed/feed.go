// package feed implements the broadcast feed fetcher for xmplaylist.com
// station endpoints.
//
// The fetcher is an external collaborator to the archive engine: it exposes a
// single operation, RecentTracks, and any failure (network, blocking, bad
// payload) is transient; the next scheduled cycle simply retries.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/castwell/airchive/internal/models"
	"github.com/castwell/airchive/internal/shared"
)

const defaultBaseURL = "https://xmplaylist.com/api"

// Client fetches recently played tracks for a station.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a feed client for the given API base URL.
func NewClient(baseURL string, client *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// stationResponse mirrors the station endpoint payload.
type stationResponse struct {
	Tracks []stationTrack `json:"tracks"`
}

type stationTrack struct {
	Song   string `json:"song"`
	Artist string `json:"artist"`
}

// RecentTracks returns the station's recently played tracks in chronological
// order (the endpoint reports newest first; archival wants oldest first so the
// playlist preserves broadcast order).
//
// Entries without both a song and an artist are dropped.
func (c *Client) RecentTracks(ctx context.Context, channel string) ([]models.CandidateTrack, error) {
	endpoint := fmt.Sprintf("%s/station/%s", c.baseURL, channel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: station %s returned status %d", shared.ErrFeedUnavailable, channel, resp.StatusCode)
	}

	var payload stationResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: failed to decode station response: %v", shared.ErrFeedUnavailable, err)
	}

	tracks := make([]models.CandidateTrack, 0, len(payload.Tracks))
	for _, item := range payload.Tracks {
		title := strings.TrimSpace(item.Song)
		artist := strings.TrimSpace(item.Artist)
		if title == "" || artist == "" {
			continue
		}
		tracks = append(tracks, models.CandidateTrack{
			Key:    models.TrackKey(title, artist),
			Title:  title,
			Artist: artist,
		})
	}

	// Newest-first from the API; reverse so older plays are archived first.
	for i, j := 0, len(tracks)-1; i < j; i, j = i+1, j-1 {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	}

	return tracks, nil
}
