// Spotify Web API client scoped to the archive engine's needs: playlist
// creation, renaming, track counts, ordered appends, and track search.
//
// Spotify API request/response shapes based on https://developer.spotify.com/documentation/web-api/reference/
package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/castwell/airchive/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// Spotify accepts at most 100 URIs per append request.
	appendChunkSize = 100
)

// APIError is a non-2xx response from the Spotify API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("spotify API error: status %d", e.Status)
}

// Retryable reports whether a later cycle may succeed without operator action.
// Auth failures are not retryable; rate limits and server errors are.
func (e *APIError) Retryable() bool {
	switch {
	case e.Status == http.StatusTooManyRequests:
		return true
	case e.Status >= 500:
		return true
	default:
		return false
	}
}

// NotFound reports whether the requested resource no longer exists, which for
// playlists means the active volume was deleted remotely.
func (e *APIError) NotFound() bool {
	return e.Status == http.StatusNotFound
}

// Client implements the playlist operations the archiver needs.
//
// Authentication uses a long-lived refresh token through [oauth2]; access
// tokens are minted and renewed transparently by the token source.
type Client struct {
	config     *oauth2.Config
	httpClient *http.Client
	userID     string
	limiter    *rate.Limiter
	baseURL    string
}

// Opts tunes a Client beyond its credentials.
type Opts struct {
	BaseURL    string       // API base URL override, used by tests
	HTTPClient *http.Client // transport override; nil keeps the oauth2 client
	AppendRate float64      // append requests per second, default 5
}

// NewClient creates a Spotify client from credentials.
//
// A refresh token is required for playlist mutation; create one with the
// authorization flow (see the spotify auth command).
func NewClient(creds shared.SpotifyConfig, opts Opts) (*Client, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	redirectURI := creds.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"playlist-modify-public",
			"playlist-modify-private",
			"playlist-read-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	appendRate := opts.AppendRate
	if appendRate <= 0 {
		appendRate = 5.0
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}

	c := &Client{
		config:  config,
		userID:  creds.UserID,
		limiter: rate.NewLimiter(rate.Limit(appendRate), 1),
		baseURL: baseURL,
	}

	if opts.HTTPClient != nil {
		c.httpClient = opts.HTTPClient
	} else if creds.RefreshToken != "" {
		token := &oauth2.Token{RefreshToken: creds.RefreshToken}
		c.httpClient = oauth2.NewClient(context.Background(), config.TokenSource(context.Background(), token))
	}

	return c, nil
}

// AuthCodeURL returns the authorization URL for the refresh-token provisioning flow.
func (c *Client) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token carrying a refresh token.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return c.config.Exchange(ctx, code)
}

// doRequest performs an authenticated request against the Spotify API,
// JSON-encoding body (when non-nil) and decoding into result (when non-nil).
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	if c.httpClient == nil {
		return fmt.Errorf("%w: no refresh token configured", shared.ErrNotAuthenticated)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: string(raw)}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// CreatePlaylist creates a playlist for the configured user and returns its id.
func (c *Client) CreatePlaylist(ctx context.Context, name, description string, public bool) (string, error) {
	if c.userID == "" {
		return "", fmt.Errorf("%w: user_id is required to create playlists", shared.ErrMissingCredentials)
	}

	payload := map[string]any{
		"name":        name,
		"description": description,
		"public":      public,
	}

	var created struct {
		ID string `json:"id"`
	}

	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(c.userID))
	if err := c.doRequest(ctx, http.MethodPost, endpoint, payload, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: playlist created without an id", shared.ErrAPIRequest)
	}

	return created.ID, nil
}

// RenamePlaylist changes a playlist's display name.
func (c *Client) RenamePlaylist(ctx context.Context, playlistID, name string) error {
	payload := map[string]any{"name": name}
	endpoint := fmt.Sprintf("/playlists/%s", url.PathEscape(playlistID))
	return c.doRequest(ctx, http.MethodPut, endpoint, payload, nil)
}

// TrackCount returns the number of tracks currently in the playlist.
func (c *Client) TrackCount(ctx context.Context, playlistID string) (int, error) {
	var resp struct {
		Tracks struct {
			Total int `json:"total"`
		} `json:"tracks"`
	}

	endpoint := fmt.Sprintf("/playlists/%s?fields=tracks.total", url.PathEscape(playlistID))
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return 0, err
	}

	return resp.Tracks.Total, nil
}

// AddTracks appends uris to the playlist in order, in chunks of 100, pacing
// requests through the client's rate limiter.
//
// Returns the number of URIs confirmed appended. On error the count covers
// only fully confirmed chunks, so callers can persist exactly the confirmed
// prefix and retry the rest next cycle.
func (c *Client) AddTracks(ctx context.Context, playlistID string, uris []string) (int, error) {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))

	confirmed := 0
	for start := 0; start < len(uris); start += appendChunkSize {
		end := min(start+appendChunkSize, len(uris))
		chunk := uris[start:end]

		if err := c.limiter.Wait(ctx); err != nil {
			return confirmed, err
		}

		payload := map[string]any{"uris": chunk}
		if err := c.doRequest(ctx, http.MethodPost, endpoint, payload, nil); err != nil {
			return confirmed, err
		}

		confirmed += len(chunk)
	}

	return confirmed, nil
}

// SearchTrack resolves a title/artist pair to a track URI.
//
// Tries a field-qualified query first, then a broad query; returns
// [shared.ErrTrackNotFound] when neither matches.
func (c *Client) SearchTrack(ctx context.Context, title, artist string) (string, error) {
	qualified := fmt.Sprintf("track:%s artist:%s", title, artist)
	if uri, err := c.searchOne(ctx, qualified); err != nil || uri != "" {
		return uri, err
	}

	broad := fmt.Sprintf("%s %s", title, artist)
	if uri, err := c.searchOne(ctx, broad); err != nil || uri != "" {
		return uri, err
	}

	return "", fmt.Errorf("%w: %s — %s", shared.ErrTrackNotFound, artist, title)
}

// searchOne runs a single search query and returns the top hit's URI, or "" on no hit.
func (c *Client) searchOne(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", "1")

	var resp struct {
		Tracks struct {
			Items []struct {
				URI string `json:"uri"`
			} `json:"items"`
		} `json:"tracks"`
	}

	if err := c.doRequest(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &resp); err != nil {
		return "", err
	}

	if len(resp.Tracks.Items) == 0 {
		return "", nil
	}
	return resp.Tracks.Items[0].URI, nil
}
