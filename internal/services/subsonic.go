// Subsonic implementation of [Catalog] for self-hosted servers (Navidrome, Gonic, Airsonic).
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/desertthunder/ptx/internal/models"
	"github.com/desertthunder/ptx/internal/shared"
	"github.com/supersonic-app/go-subsonic/subsonic"
)

const subsonicClientName = "ptx"

var subsonicCapabilities = Capabilities{
	DirectISRCQuery:    false,
	MaxSearchResults:   500,
	DefaultSearchLimit: 10,
	BatchSize:          100,
	SupportsVisibility: true,
}

// subsonicAPI is the subset of [subsonic.Client] used by [SubsonicService].
type subsonicAPI interface {
	Authenticate(password string) error
	Search3(query string, parameters map[string]string) (*subsonic.SearchResult3, error)
	GetPlaylist(id string) (*subsonic.Playlist, error)
	GetPlaylists(parameters map[string]string) ([]*subsonic.Playlist, error)
	Get(endpoint string, parameters map[string]string) (*subsonic.Response, error)
	UpdatePlaylistTracks(playlistID string, trackIDsToAdd []string, trackIndexesToRemove []int) error
}

// SubsonicService implements [Catalog] and [PlaylistLister] over the Subsonic REST API.
//
// The client library is synchronous; context cancellation is checked between calls.
type SubsonicService struct {
	serverURL  string
	username   string
	password   string
	httpClient *http.Client

	mu     sync.Mutex
	client subsonicAPI
}

// NewSubsonicService creates a service for the server at serverURL.
func NewSubsonicService(serverURL, username, password string) (*SubsonicService, error) {
	if serverURL == "" || username == "" {
		return nil, fmt.Errorf("%w: subsonic server_url and username are required", shared.ErrMissingCredentials)
	}
	if _, err := url.Parse(serverURL); err != nil {
		return nil, fmt.Errorf("%w: subsonic server_url: %w", shared.ErrInvalidConfig, err)
	}
	return &SubsonicService{
		serverURL:  strings.TrimRight(serverURL, "/"),
		username:   username,
		password:   password,
		httpClient: http.DefaultClient,
	}, nil
}

func (s *SubsonicService) Name() string { return SubsonicName }

func (s *SubsonicService) Capabilities() Capabilities { return subsonicCapabilities }

// SetHTTPClient sets the client used for server requests.
func (s *SubsonicService) SetHTTPClient(client *http.Client) {
	if client != nil {
		s.httpClient = client
	}
}

// Authenticate connects and pings the server with salted token auth.
func (s *SubsonicService) Authenticate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}

	client := &subsonic.Client{
		Client:     s.httpClient,
		BaseUrl:    s.serverURL,
		User:       s.username,
		ClientName: subsonicClientName,
	}
	if err := client.Authenticate(s.password); err != nil {
		return fmt.Errorf("%w: subsonic %s: %w", shared.ErrAuthFailed, s.serverURL, err)
	}
	s.client = client
	return nil
}

func (s *SubsonicService) api(ctx context.Context) (subsonicAPI, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return s.client, nil
}

// FetchPlaylist retrieves a playlist and its entries.
func (s *SubsonicService) FetchPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	client, err := s.api(ctx)
	if err != nil {
		return nil, err
	}

	sp, err := client.GetPlaylist(playlistID)
	if err != nil {
		return nil, fmt.Errorf("%w: subsonic playlist %s: %w", shared.ErrPlaylistNotFound, playlistID, err)
	}

	playlist := s.toPlaylist(sp)
	for _, child := range sp.Entry {
		if child == nil {
			continue
		}
		playlist.Tracks = append(playlist.Tracks, s.toTrack(child))
	}
	return playlist, nil
}

// Search runs search3 restricted to songs with a free text "title artist" query.
func (s *SubsonicService) Search(ctx context.Context, q Query) ([]models.Track, error) {
	text := textQuery(q.Title, q.Artist)
	if text == "" {
		return nil, fmt.Errorf("%w: subsonic search needs a title", shared.ErrInvalidInput)
	}
	limit := clampLimit(q.Limit, subsonicCapabilities.DefaultSearchLimit, subsonicCapabilities.MaxSearchResults)

	client, err := s.api(ctx)
	if err != nil {
		return nil, err
	}

	result, err := client.Search3(text, map[string]string{
		"songCount":   strconv.Itoa(limit),
		"songOffset":  "0",
		"artistCount": "0",
		"albumCount":  "0",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: subsonic search: %w", shared.ErrAPIRequest, err)
	}
	if result == nil {
		return nil, nil
	}

	tracks := make([]models.Track, 0, len(result.Song))
	for _, child := range result.Song {
		if child == nil {
			continue
		}
		tracks = append(tracks, s.toTrack(child))
	}
	return tracks, nil
}

// CreatePlaylist creates a playlist and applies description and visibility with updatePlaylist.
//
// Servers older than API 1.14 return no body from createPlaylist; the new playlist is then
// looked up by name.
func (s *SubsonicService) CreatePlaylist(ctx context.Context, name, description string, public bool) (*models.Playlist, error) {
	client, err := s.api(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.Get("createPlaylist", map[string]string{"name": name})
	if err != nil {
		return nil, fmt.Errorf("%w: subsonic createPlaylist: %w", shared.ErrAPIRequest, err)
	}

	var sp *subsonic.Playlist
	if resp != nil && resp.Playlist != nil {
		sp = resp.Playlist
	} else {
		if sp, err = s.findPlaylistByName(client, name); err != nil {
			return nil, err
		}
	}

	update := map[string]string{
		"playlistId": sp.ID,
		"comment":    description,
		"public":     strconv.FormatBool(public),
	}
	if _, err := client.Get("updatePlaylist", update); err != nil {
		return nil, fmt.Errorf("%w: subsonic updatePlaylist: %w", shared.ErrAPIRequest, err)
	}

	playlist := s.toPlaylist(sp)
	playlist.Description = description
	playlist.Public = public
	return playlist, nil
}

// findPlaylistByName returns the last playlist named name, which is the newest on common servers.
func (s *SubsonicService) findPlaylistByName(client subsonicAPI, name string) (*subsonic.Playlist, error) {
	playlists, err := client.GetPlaylists(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: subsonic getPlaylists: %w", shared.ErrAPIRequest, err)
	}
	var found *subsonic.Playlist
	for _, p := range playlists {
		if p != nil && p.Name == name {
			found = p
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: created playlist %q not listed", shared.ErrAPIRequest, name)
	}
	return found, nil
}

// AddTracks appends all songs in a single updatePlaylist call, so a batch is added whole or not at all.
func (s *SubsonicService) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}
	if len(trackIDs) > subsonicCapabilities.BatchSize {
		return fmt.Errorf("%w: maximum %d song IDs per request", shared.ErrInvalidInput, subsonicCapabilities.BatchSize)
	}

	client, err := s.api(ctx)
	if err != nil {
		return err
	}
	if err := client.UpdatePlaylistTracks(playlistID, trackIDs, nil); err != nil {
		return fmt.Errorf("%w: subsonic add %d songs: %w", shared.ErrAPIRequest, len(trackIDs), err)
	}
	return nil
}

// Playlists lists the playlists visible to the user.
func (s *SubsonicService) Playlists(ctx context.Context) ([]models.Playlist, error) {
	client, err := s.api(ctx)
	if err != nil {
		return nil, err
	}

	sps, err := client.GetPlaylists(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: subsonic getPlaylists: %w", shared.ErrAPIRequest, err)
	}

	playlists := make([]models.Playlist, 0, len(sps))
	for _, sp := range sps {
		if sp != nil {
			playlists = append(playlists, *s.toPlaylist(sp))
		}
	}
	return playlists, nil
}

// Subsonic has no canonical web URL for playlists or songs, so URL is left empty.
func (s *SubsonicService) toPlaylist(sp *subsonic.Playlist) *models.Playlist {
	return &models.Playlist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Comment,
		Public:      sp.Public,
		Service:     SubsonicName,
		TrackCount:  sp.SongCount,
	}
}

func (s *SubsonicService) toTrack(child *subsonic.Child) models.Track {
	track := models.Track{
		ID:       child.ID,
		Title:    child.Title,
		Artist:   child.Artist,
		Album:    child.Album,
		Duration: child.Duration * 1000,
		Service:  SubsonicName,
	}
	if track.Artist == "" {
		track.Artist = "Unknown"
	}
	return track
}
