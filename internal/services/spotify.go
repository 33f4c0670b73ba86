// Spotify Web API implementation of [Catalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/ptx/internal/models"
	"github.com/desertthunder/ptx/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL   = "https://accounts.spotify.com/authorize"
	spotifyTokenURL  = "https://accounts.spotify.com/api/token"
	spotifyBaseURL   = "https://api.spotify.com/v1"
	spotifyOpenURL   = "https://open.spotify.com"
	spotifyTrackURI  = "spotify:track:"
	spotifyPageLimit = 50
)

var spotifyCapabilities = Capabilities{
	DirectISRCQuery:    true,
	MaxSearchResults:   50,
	DefaultSearchLimit: 5,
	BatchSize:          100,
	SupportsVisibility: true,
}

type followers struct {
	Total int `json:"total"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	Explicit     bool            `json:"explicit"`
	ExternalIDs  externalIDs     `json:"external_ids"`
	ExternalURLs externalURLs    `json:"external_urls"`
	URI          string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
	URI         string `json:"uri"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil for items removed from the catalog.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	IsLocal bool          `json:"is_local"`
	Track   *SpotifyTrack `json:"track"`
}

// spotifyTrackPage is one page of playlist items.
type spotifyTrackPage struct {
	Items []SpotifyPlaylistTrack `json:"items"`
	Total int                    `json:"total"`
	Next  *string                `json:"next"`
}

// SpotifyPlaylist represents a Spotify playlist with its first page of tracks.
type SpotifyPlaylist struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Owner        Owner            `json:"owner"`
	Public       bool             `json:"public"`
	Tracks       spotifyTrackPage `json:"tracks"`
	ExternalURLs externalURLs     `json:"external_urls"`
	URI          string           `json:"uri"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Next   *string                 `json:"next"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	Owner        Owner               `json:"owner"`
	Public       bool                `json:"public"`
	Tracks       simplePlaylistTrack `json:"tracks"`
	ExternalURLs externalURLs        `json:"external_urls"`
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

type spotifyCreatePlaylist struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

type spotifyAddItems struct {
	URIs []string `json:"uris"`
}

// SpotifyService implements [Catalog] and [PlaylistLister] for the Spotify Web API.
// Uses [oauth2] for authentication with automatic token refresh.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	httpClient     *http.Client
	authClient     *http.Client
	baseURL        string
	onTokenRefresh TokenRefreshFunc
	user           *SpotifyUser
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id in credentials", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret in credentials", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		baseURL:    spotifyBaseURL,
	}, nil
}

func (s *SpotifyService) Name() string { return SpotifyName }

func (s *SpotifyService) Capabilities() Capabilities { return spotifyCapabilities }

// Config returns the OAuth2 configuration used for the authorization code flow.
func (s *SpotifyService) Config() *oauth2.Config { return s.config }

// SetHTTPClient sets the client used for API and token refresh requests.
func (s *SpotifyService) SetHTTPClient(client *http.Client) {
	if client != nil {
		s.httpClient = client
	}
}

// SetToken sets the OAuth2 token used by [SpotifyService.Authenticate].
func (s *SpotifyService) SetToken(token *oauth2.Token) { s.token = token }

// SetTokenRefreshCallback registers a callback invoked whenever the token is refreshed.
func (s *SpotifyService) SetTokenRefreshCallback(callback TokenRefreshFunc) {
	s.onTokenRefresh = callback
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token and stores it on the service.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %w", shared.ErrAuthFailed, err)
	}
	s.token = token
	return token, nil
}

// Authenticate builds an auto-refreshing client from the stored token and verifies it against /me.
func (s *SpotifyService) Authenticate(ctx context.Context) error {
	if s.token == nil {
		return fmt.Errorf("%w: %w: run 'ptx auth spotify' first", shared.ErrAuthFailed, shared.ErrNotAuthenticated)
	}

	base := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, s.httpClient)
	source := newTokenSource(base, s.config, s.token, s.httpClient, s.onTokenRefresh)
	s.authClient = oauth2.NewClient(base, source)

	user, err := s.UserProfile(ctx)
	if err != nil {
		s.authClient = nil
		return fmt.Errorf("%w: spotify: %w", shared.ErrAuthFailed, err)
	}
	s.user = user
	return nil
}

// doRequest performs an authenticated JSON request against the Spotify API.
//
// endpoint is either a path below the base URL or an absolute "next" URL.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if s.authClient == nil {
		return shared.ErrNotAuthenticated
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.authClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readStatusError(SpotifyName, resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FetchPlaylist retrieves a playlist and follows the track pages until exhausted.
// Removed and local items carry no catalog track and are skipped.
func (s *SpotifyService) FetchPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	var sp SpotifyPlaylist
	if err := s.doRequest(ctx, http.MethodGet, "/playlists/"+url.PathEscape(playlistID), nil, &sp); err != nil {
		if hasStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: spotify playlist %s", shared.ErrPlaylistNotFound, playlistID)
		}
		return nil, err
	}

	playlist := &models.Playlist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		Public:      sp.Public,
		URL:         sp.ExternalURLs.Spotify,
		Service:     SpotifyName,
		TrackCount:  sp.Tracks.Total,
	}
	if playlist.URL == "" {
		playlist.URL = spotifyOpenURL + "/playlist/" + sp.ID
	}

	page := sp.Tracks
	for {
		for _, item := range page.Items {
			if item.Track == nil || item.IsLocal || item.Track.ID == "" {
				continue
			}
			playlist.Tracks = append(playlist.Tracks, item.Track.toModel())
		}
		if page.Next == nil || *page.Next == "" {
			break
		}
		next := *page.Next
		page = spotifyTrackPage{}
		if err := s.doRequest(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
	}
	return playlist, nil
}

// Search queries /search with the isrc: operator when q.ISRC is set, or track:/artist: otherwise.
func (s *SpotifyService) Search(ctx context.Context, q Query) ([]models.Track, error) {
	var query string
	limit := clampLimit(q.Limit, spotifyCapabilities.DefaultSearchLimit, spotifyCapabilities.MaxSearchResults)
	switch {
	case q.ISRC != "":
		query = "isrc:" + q.ISRC
	case q.Title != "":
		query = "track:" + q.Title
		if q.Artist != "" {
			query += " artist:" + q.Artist
		}
	default:
		return nil, fmt.Errorf("%w: search needs an ISRC or title", shared.ErrInvalidInput)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", fmt.Sprint(limit))

	var response spotifySearchResponse
	if err := s.doRequest(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(response.Tracks.Items))
	for _, item := range response.Tracks.Items {
		tracks = append(tracks, item.toModel())
	}
	return tracks, nil
}

// CreatePlaylist creates an empty playlist owned by the authenticated user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name, description string, public bool) (*models.Playlist, error) {
	if s.user == nil {
		return nil, shared.ErrNotAuthenticated
	}

	var sp SpotifyPlaylist
	body := spotifyCreatePlaylist{Name: name, Description: description, Public: public}
	endpoint := "/users/" + url.PathEscape(s.user.ID) + "/playlists"
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &sp); err != nil {
		return nil, err
	}

	playlist := &models.Playlist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		Public:      sp.Public,
		URL:         sp.ExternalURLs.Spotify,
		Service:     SpotifyName,
	}
	if playlist.URL == "" {
		playlist.URL = spotifyOpenURL + "/playlist/" + sp.ID
	}
	return playlist, nil
}

// AddTracks appends trackIDs to a playlist in a single request.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}
	if len(trackIDs) > spotifyCapabilities.BatchSize {
		return fmt.Errorf("%w: maximum %d track IDs per request", shared.ErrInvalidInput, spotifyCapabilities.BatchSize)
	}

	uris := make([]string, len(trackIDs))
	for i, id := range trackIDs {
		uris[i] = spotifyTrackURI + id
	}

	endpoint := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	return s.doRequest(ctx, http.MethodPost, endpoint, spotifyAddItems{URIs: uris}, nil)
}

// UserPlaylists retrieves the current user's playlists with pagination.
func (s *SpotifyService) UserPlaylists(ctx context.Context, limit, offset int) (*SpotifyPaginatedPlaylists, error) {
	limit = clampLimit(limit, 20, spotifyPageLimit)
	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedPlaylists
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// CoverImage returns the URL of the largest cover image of a playlist, or "" when it has none.
func (s *SpotifyService) CoverImage(ctx context.Context, playlistID string) (string, error) {
	var images []SpotifyImage
	if err := s.doRequest(ctx, http.MethodGet, "/playlists/"+url.PathEscape(playlistID)+"/images", nil, &images); err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", nil
	}
	return images[0].URL, nil
}

// Playlists retrieves all playlists for the authenticated user, without tracks.
func (s *SpotifyService) Playlists(ctx context.Context) ([]models.Playlist, error) {
	var playlists []models.Playlist
	offset := 0

	for {
		response, err := s.UserPlaylists(ctx, spotifyPageLimit, offset)
		if err != nil {
			return nil, err
		}

		for _, sp := range response.Items {
			playlists = append(playlists, models.Playlist{
				ID:          sp.ID,
				Name:        sp.Name,
				Description: sp.Description,
				TrackCount:  sp.Tracks.Total,
				Public:      sp.Public,
				URL:         sp.ExternalURLs.Spotify,
				Service:     SpotifyName,
			})
		}

		if response.Next == nil || len(response.Items) == 0 {
			break
		}
		offset += len(response.Items)
	}
	return playlists, nil
}

func (t SpotifyTrack) toModel() models.Track {
	track := models.Track{
		ID:       t.ID,
		Title:    t.Name,
		Artist:   "Unknown",
		Album:    t.Album.Name,
		ISRC:     t.ExternalIDs.ISRC,
		Duration: t.DurationMS,
		URL:      t.ExternalURLs.Spotify,
		Service:  SpotifyName,
	}
	if len(t.Artists) > 0 {
		track.Artist = t.Artists[0].Name
	}
	if track.URL == "" && t.ID != "" {
		track.URL = spotifyOpenURL + "/track/" + t.ID
	}
	return track
}
