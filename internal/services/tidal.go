// TIDAL implementation of [Catalog] over the v1 REST API.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/ptx/internal/models"
	"github.com/desertthunder/ptx/internal/shared"
	"golang.org/x/oauth2"
)

const (
	tidalAPIURL    = "https://api.tidal.com/v1"
	tidalAuthURL   = "https://auth.tidal.com/v1/oauth2"
	tidalListenURL = "https://listen.tidal.com"
	tidalPageLimit = 100
)

var tidalCapabilities = Capabilities{
	DirectISRCQuery:    false,
	MaxSearchResults:   300,
	DefaultSearchLimit: 10,
	BatchSize:          100,
	SupportsVisibility: false,
}

type tidalArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type tidalAlbum struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// TidalTrack is a track record as returned by playlist and search endpoints.
type TidalTrack struct {
	ID       int64         `json:"id"`
	Title    string        `json:"title"`
	Version  string        `json:"version"`
	Duration int           `json:"duration"` // seconds
	ISRC     string        `json:"isrc"`
	Artist   *tidalArtist  `json:"artist"`
	Artists  []tidalArtist `json:"artists"`
	Album    *tidalAlbum   `json:"album"`
}

// TidalPlaylist is playlist metadata.
type TidalPlaylist struct {
	UUID           string `json:"uuid"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	NumberOfTracks int    `json:"numberOfTracks"`
}

type tidalSession struct {
	SessionID   string `json:"sessionId"`
	UserID      int64  `json:"userId"`
	CountryCode string `json:"countryCode"`
}

type tidalPage[T any] struct {
	Items              []T `json:"items"`
	Limit              int `json:"limit"`
	Offset             int `json:"offset"`
	TotalNumberOfItems int `json:"totalNumberOfItems"`
}

// TidalService implements [Catalog] and [PlaylistLister] for TIDAL.
//
// Tokens come from the OAuth2 device authorization flow ([TidalService.DeviceLogin]).
type TidalService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	httpClient     *http.Client
	authClient     *http.Client
	baseURL        string
	countryCode    string
	onTokenRefresh TokenRefreshFunc
	session        *tidalSession
}

// NewTidalService creates a TIDAL service for the given OAuth2 client.
// countryCode may be empty, in which case the session's country is used.
func NewTidalService(clientID, clientSecret, countryCode string) (*TidalService, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing tidal client_id", shared.ErrMissingCredentials)
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{"r_usr", "w_usr", "w_sub"},
		Endpoint: oauth2.Endpoint{
			DeviceAuthURL: tidalAuthURL + "/device_authorization",
			TokenURL:      tidalAuthURL + "/token",
			AuthStyle:     oauth2.AuthStyleInParams,
		},
	}

	return &TidalService{
		config:      config,
		httpClient:  http.DefaultClient,
		baseURL:     tidalAPIURL,
		countryCode: strings.ToUpper(countryCode),
	}, nil
}

func (s *TidalService) Name() string { return TidalName }

func (s *TidalService) Capabilities() Capabilities { return tidalCapabilities }

// SetHTTPClient sets the client used for API, device login and refresh requests.
func (s *TidalService) SetHTTPClient(client *http.Client) {
	if client != nil {
		s.httpClient = client
	}
}

// SetToken sets the OAuth2 token used by [TidalService.Authenticate].
func (s *TidalService) SetToken(token *oauth2.Token) { s.token = token }

// SetTokenRefreshCallback registers a callback invoked whenever the token is refreshed.
func (s *TidalService) SetTokenRefreshCallback(callback TokenRefreshFunc) {
	s.onTokenRefresh = callback
}

// DeviceLogin runs the device authorization flow. prompt receives the verification
// URI and user code, and the call blocks until the user approves or ctx ends.
func (s *TidalService) DeviceLogin(ctx context.Context, prompt func(*oauth2.DeviceAuthResponse)) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)

	auth, err := s.config.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: device authorization: %w", shared.ErrAuthFailed, err)
	}
	if prompt != nil {
		prompt(auth)
	}

	token, err := s.config.DeviceAccessToken(ctx, auth)
	if err != nil {
		return nil, fmt.Errorf("%w: device token: %w", shared.ErrAuthFailed, err)
	}
	s.token = token
	return token, nil
}

// Authenticate builds an auto-refreshing client and opens a session to learn the user and country.
func (s *TidalService) Authenticate(ctx context.Context) error {
	if s.token == nil {
		return fmt.Errorf("%w: %w: run 'ptx auth tidal' first", shared.ErrAuthFailed, shared.ErrNotAuthenticated)
	}

	base := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, s.httpClient)
	source := newTokenSource(base, s.config, s.token, s.httpClient, s.onTokenRefresh)
	s.authClient = oauth2.NewClient(base, source)

	var session tidalSession
	if _, err := s.doRequest(ctx, http.MethodGet, "/sessions", nil, nil, "", &session); err != nil {
		s.authClient = nil
		return fmt.Errorf("%w: tidal: %w", shared.ErrAuthFailed, err)
	}
	if s.countryCode == "" {
		s.countryCode = session.CountryCode
	}
	s.session = &session
	return nil
}

// doRequest performs an authenticated request. query always gains the countryCode,
// form (when non-nil) is sent url-encoded, and a non-empty etag is sent as If-None-Match.
// The response headers are returned on success.
func (s *TidalService) doRequest(ctx context.Context, method, endpoint string, query, form url.Values, etag string, result any) (http.Header, error) {
	if s.authClient == nil {
		return nil, shared.ErrNotAuthenticated
	}

	if query == nil {
		query = url.Values{}
	}
	if s.countryCode != "" {
		query.Set("countryCode", s.countryCode)
	}
	apiURL := s.baseURL + endpoint
	if encoded := query.Encode(); encoded != "" {
		apiURL += "?" + encoded
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := s.authClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, readStatusError(TidalName, resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.Header, nil
}

// playlistMeta fetches playlist metadata and its ETag.
func (s *TidalService) playlistMeta(ctx context.Context, playlistID string) (*TidalPlaylist, string, error) {
	var tp TidalPlaylist
	header, err := s.doRequest(ctx, http.MethodGet, "/playlists/"+url.PathEscape(playlistID), nil, nil, "", &tp)
	if err != nil {
		if hasStatus(err, http.StatusNotFound) {
			return nil, "", fmt.Errorf("%w: tidal playlist %s", shared.ErrPlaylistNotFound, playlistID)
		}
		return nil, "", err
	}
	return &tp, header.Get("ETag"), nil
}

// FetchPlaylist retrieves playlist metadata and pages through its tracks.
//
// TIDAL does not report visibility, so the playlist is always returned as private.
func (s *TidalService) FetchPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	tp, _, err := s.playlistMeta(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	playlist := tp.toModel()
	endpoint := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	for offset := 0; ; {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(tidalPageLimit))
		query.Set("offset", strconv.Itoa(offset))

		var page tidalPage[TidalTrack]
		if _, err := s.doRequest(ctx, http.MethodGet, endpoint, query, nil, "", &page); err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if item.ID == 0 {
				continue
			}
			playlist.Tracks = append(playlist.Tracks, item.toModel())
		}

		offset += len(page.Items)
		if len(page.Items) == 0 || offset >= page.TotalNumberOfItems {
			break
		}
	}
	return playlist, nil
}

// Search runs a free text search of "artist title", paging until q.Limit results are collected.
// TIDAL has no ISRC query operator; ISRC-only queries are rejected.
func (s *TidalService) Search(ctx context.Context, q Query) ([]models.Track, error) {
	text := textQuery(q.Artist, q.Title)
	if text == "" {
		return nil, fmt.Errorf("%w: tidal search needs a title", shared.ErrInvalidInput)
	}
	limit := clampLimit(q.Limit, tidalCapabilities.DefaultSearchLimit, tidalCapabilities.MaxSearchResults)

	var tracks []models.Track
	for offset := 0; offset < limit; {
		query := url.Values{}
		query.Set("query", text)
		query.Set("limit", strconv.Itoa(min(tidalPageLimit, limit-offset)))
		query.Set("offset", strconv.Itoa(offset))

		var page tidalPage[TidalTrack]
		if _, err := s.doRequest(ctx, http.MethodGet, "/search/tracks", query, nil, "", &page); err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			tracks = append(tracks, item.toModel())
		}

		offset += len(page.Items)
		if len(page.Items) == 0 || offset >= page.TotalNumberOfItems {
			break
		}
	}
	if len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}

// CreatePlaylist creates an empty playlist for the session user. public is ignored.
func (s *TidalService) CreatePlaylist(ctx context.Context, name, description string, public bool) (*models.Playlist, error) {
	if s.session == nil {
		return nil, shared.ErrNotAuthenticated
	}

	form := url.Values{}
	form.Set("title", name)
	form.Set("description", description)

	var tp TidalPlaylist
	endpoint := fmt.Sprintf("/users/%d/playlists", s.session.UserID)
	if _, err := s.doRequest(ctx, http.MethodPost, endpoint, nil, form, "", &tp); err != nil {
		return nil, err
	}
	return tp.toModel(), nil
}

// AddTracks appends trackIDs using the playlist's current ETag.
func (s *TidalService) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}
	if len(trackIDs) > tidalCapabilities.BatchSize {
		return fmt.Errorf("%w: maximum %d track IDs per request", shared.ErrInvalidInput, tidalCapabilities.BatchSize)
	}

	_, etag, err := s.playlistMeta(ctx, playlistID)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("trackIds", strings.Join(trackIDs, ","))
	form.Set("onDupes", "SKIP")
	form.Set("onArtifactNotFound", "SKIP")

	endpoint := "/playlists/" + url.PathEscape(playlistID) + "/items"
	_, err = s.doRequest(ctx, http.MethodPost, endpoint, nil, form, etag, nil)
	return err
}

// Playlists retrieves all playlists owned by the session user.
func (s *TidalService) Playlists(ctx context.Context) ([]models.Playlist, error) {
	if s.session == nil {
		return nil, shared.ErrNotAuthenticated
	}

	var playlists []models.Playlist
	endpoint := fmt.Sprintf("/users/%d/playlists", s.session.UserID)
	for offset := 0; ; {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(tidalPageLimit))
		query.Set("offset", strconv.Itoa(offset))

		var page tidalPage[TidalPlaylist]
		if _, err := s.doRequest(ctx, http.MethodGet, endpoint, query, nil, "", &page); err != nil {
			return nil, err
		}
		for _, tp := range page.Items {
			playlists = append(playlists, *tp.toModel())
		}

		offset += len(page.Items)
		if len(page.Items) == 0 || offset >= page.TotalNumberOfItems {
			break
		}
	}
	return playlists, nil
}

func (t TidalTrack) toModel() models.Track {
	id := strconv.FormatInt(t.ID, 10)
	track := models.Track{
		ID:       id,
		Title:    t.Title,
		Artist:   "Unknown",
		ISRC:     t.ISRC,
		Duration: t.Duration * 1000,
		URL:      tidalListenURL + "/track/" + id,
		Service:  TidalName,
	}
	switch {
	case t.Artist != nil && t.Artist.Name != "":
		track.Artist = t.Artist.Name
	case len(t.Artists) > 0:
		track.Artist = t.Artists[0].Name
	}
	if t.Album != nil {
		track.Album = t.Album.Title
	}
	return track
}

func (p TidalPlaylist) toModel() *models.Playlist {
	return &models.Playlist{
		ID:          p.UUID,
		Name:        p.Title,
		Description: p.Description,
		URL:         tidalListenURL + "/playlist/" + p.UUID,
		Service:     TidalName,
		TrackCount:  p.NumberOfTracks,
	}
}
