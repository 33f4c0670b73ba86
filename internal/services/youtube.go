// YouTube Music implementation of [Catalog]
//
// Communicates with the ytmusicapi proxy server (FastAPI, port 8080 by default).
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/ptx/internal/models"
	"github.com/desertthunder/ptx/internal/shared"
)

const (
	defaultYTBaseURL = "http://127.0.0.1:8080"
	youtubeMusicURL  = "https://music.youtube.com"
)

var youtubeCapabilities = Capabilities{
	DirectISRCQuery:    false,
	MaxSearchResults:   50,
	DefaultSearchLimit: 5,
	BatchSize:          50,
	SupportsVisibility: true,
}

// YouTubeArtist represents an artist in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type youtubeAlbum struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeTrack represents a track/video in YouTube Music responses.
type YouTubeTrack struct {
	VideoID     string          `json:"videoId"`
	Title       string          `json:"title"`
	Artists     []YouTubeArtist `json:"artists"`
	Album       *youtubeAlbum   `json:"album"`
	DurationSec int             `json:"duration_seconds"`
	ISRC        string          `json:"isrc,omitempty"`
}

// YouTubePlaylist represents a playlist from YouTube Music.
type YouTubePlaylist struct {
	ID          string         `json:"id"`
	PlaylistID  string         `json:"playlistId"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Privacy     string         `json:"privacy"`
	TrackCount  int            `json:"trackCount"`
	Count       int            `json:"count"`
	Tracks      []YouTubeTrack `json:"tracks,omitempty"`
}

type youtubeCreateRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	PrivacyStatus string `json:"privacy_status"`
}

type youtubeAddRequest struct {
	VideoIDs []string `json:"video_ids"`
}

// YouTubeService implements [Catalog] and [PlaylistLister] for YouTube Music via the proxy.
type YouTubeService struct {
	baseURL    string
	authFile   string
	httpClient *http.Client
}

// NewYouTubeService creates a new YouTube Music service instance.
// authFile is the ytmusicapi browser.json or oauth.json path forwarded to the proxy.
func NewYouTubeService(baseURL, authFile string) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}
	return &YouTubeService{
		baseURL:    baseURL,
		authFile:   authFile,
		httpClient: http.DefaultClient,
	}
}

func (y *YouTubeService) Name() string { return YouTubeName }

func (y *YouTubeService) Capabilities() Capabilities { return youtubeCapabilities }

// SetHTTPClient sets the client used for proxy requests.
func (y *YouTubeService) SetHTTPClient(client *http.Client) {
	if client != nil {
		y.httpClient = client
	}
}

// Authenticate checks that an auth file is configured and the proxy reports healthy.
func (y *YouTubeService) Authenticate(ctx context.Context) error {
	if y.authFile == "" {
		return fmt.Errorf("%w: %w: youtube auth_file is not configured", shared.ErrAuthFailed, shared.ErrMissingCredentials)
	}
	if err := y.doRequest(ctx, http.MethodGet, "/health", nil, nil); err != nil {
		return fmt.Errorf("%w: youtube music proxy at %s: %w", shared.ErrAuthFailed, y.baseURL, err)
	}
	return nil
}

func (y *YouTubeService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, y.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if y.authFile != "" {
		req.Header.Set("X-Auth-File", y.authFile)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readStatusError(YouTubeName, resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Playlists retrieves the library playlists via GET /api/library/playlists.
func (y *YouTubeService) Playlists(ctx context.Context) ([]models.Playlist, error) {
	var ytPlaylists []YouTubePlaylist
	if err := y.doRequest(ctx, http.MethodGet, "/api/library/playlists", nil, &ytPlaylists); err != nil {
		return nil, err
	}

	playlists := make([]models.Playlist, len(ytPlaylists))
	for i, ytp := range ytPlaylists {
		playlists[i] = *ytp.toModel()
	}
	return playlists, nil
}

// FetchPlaylist retrieves a playlist with its tracks via GET /api/playlists/{id}.
func (y *YouTubeService) FetchPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	var ytp YouTubePlaylist
	if err := y.doRequest(ctx, http.MethodGet, "/api/playlists/"+url.PathEscape(playlistID), nil, &ytp); err != nil {
		if hasStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: youtube playlist %s", shared.ErrPlaylistNotFound, playlistID)
		}
		return nil, err
	}
	if ytp.ID == "" && ytp.PlaylistID == "" {
		ytp.ID = playlistID
	}

	playlist := ytp.toModel()
	for _, ytt := range ytp.Tracks {
		if ytt.VideoID == "" {
			continue
		}
		playlist.Tracks = append(playlist.Tracks, ytt.toModel())
	}
	return playlist, nil
}

// Search calls GET /api/search with the songs filter. ISRC-only queries are rejected.
func (y *YouTubeService) Search(ctx context.Context, q Query) ([]models.Track, error) {
	text := textQuery(q.Title, q.Artist)
	if text == "" {
		return nil, fmt.Errorf("%w: youtube search needs a title", shared.ErrInvalidInput)
	}
	limit := clampLimit(q.Limit, youtubeCapabilities.DefaultSearchLimit, youtubeCapabilities.MaxSearchResults)

	params := url.Values{}
	params.Set("q", text)
	params.Set("filter", "songs")
	params.Set("limit", strconv.Itoa(limit))

	var results []YouTubeTrack
	if err := y.doRequest(ctx, http.MethodGet, "/api/search?"+params.Encode(), nil, &results); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(results))
	for _, ytt := range results {
		if ytt.VideoID == "" {
			continue
		}
		tracks = append(tracks, ytt.toModel())
		if len(tracks) == limit {
			break
		}
	}
	return tracks, nil
}

// CreatePlaylist creates an empty playlist via POST /api/playlists.
func (y *YouTubeService) CreatePlaylist(ctx context.Context, name, description string, public bool) (*models.Playlist, error) {
	body := youtubeCreateRequest{
		Title:         name,
		Description:   description,
		PrivacyStatus: privacyStatus(public),
	}

	var createResp struct {
		PlaylistID string `json:"playlist_id"`
	}
	if err := y.doRequest(ctx, http.MethodPost, "/api/playlists", body, &createResp); err != nil {
		return nil, err
	}
	if createResp.PlaylistID == "" {
		return nil, fmt.Errorf("%w: proxy returned no playlist id", shared.ErrAPIRequest)
	}

	return &models.Playlist{
		ID:          createResp.PlaylistID,
		Name:        name,
		Description: description,
		Public:      public,
		URL:         youtubeMusicURL + "/playlist?list=" + createResp.PlaylistID,
		Service:     YouTubeName,
	}, nil
}

// AddTracks appends video ids via POST /api/playlists/{id}/items.
func (y *YouTubeService) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}
	if len(trackIDs) > youtubeCapabilities.BatchSize {
		return fmt.Errorf("%w: maximum %d video IDs per request", shared.ErrInvalidInput, youtubeCapabilities.BatchSize)
	}

	endpoint := "/api/playlists/" + url.PathEscape(playlistID) + "/items"
	return y.doRequest(ctx, http.MethodPost, endpoint, youtubeAddRequest{VideoIDs: trackIDs}, nil)
}

func privacyStatus(public bool) string {
	if public {
		return "PUBLIC"
	}
	return "PRIVATE"
}

func (p YouTubePlaylist) toModel() *models.Playlist {
	id := p.ID
	if id == "" {
		id = p.PlaylistID
	}
	count := p.TrackCount
	if count == 0 {
		count = max(p.Count, len(p.Tracks))
	}
	return &models.Playlist{
		ID:          id,
		Name:        p.Title,
		Description: p.Description,
		Public:      p.Privacy == "PUBLIC",
		URL:         youtubeMusicURL + "/playlist?list=" + id,
		Service:     YouTubeName,
		TrackCount:  count,
	}
}

func (t YouTubeTrack) toModel() models.Track {
	track := models.Track{
		ID:       t.VideoID,
		Title:    t.Title,
		Artist:   "Unknown",
		ISRC:     t.ISRC,
		Duration: t.DurationSec * 1000,
		URL:      youtubeMusicURL + "/watch?v=" + t.VideoID,
		Service:  YouTubeName,
	}
	if len(t.Artists) > 0 {
		track.Artist = t.Artists[0].Name
	}
	if t.Album != nil {
		track.Album = t.Album.Name
	}
	return track
}
