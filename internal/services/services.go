package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/ptx/internal/models"
	"github.com/desertthunder/ptx/internal/shared"
)

// Capabilities describes what search and write operations a catalog supports.
//
// The matcher picks its tiers from this profile instead of branching on the catalog name.
type Capabilities struct {
	DirectISRCQuery    bool // catalog can filter a search by exact ISRC
	MaxSearchResults   int  // largest result set a single logical search may return
	DefaultSearchLimit int  // result limit for structured title/artist queries
	BatchSize          int  // max track ids per add-tracks call
	SupportsVisibility bool // catalog honors the public/private flag on create
}

// Query is a catalog search request.
//
// A non-empty ISRC requests an exact-ISRC search and is only valid for catalogs with DirectISRCQuery.
// Otherwise Title is required and Artist optionally narrows the search.
type Query struct {
	ISRC   string
	Title  string
	Artist string
	Limit  int
}

// Catalog is a music catalog the transfer engine can read from and write to.
type Catalog interface {
	// Name returns the catalog identifier (e.g. "spotify"), also stamped on every returned track.
	Name() string

	// Capabilities returns the catalog's search/write profile.
	Capabilities() Capabilities

	// Authenticate verifies or establishes credentials. Returns an error wrapping [shared.ErrAuthFailed] on failure.
	Authenticate(ctx context.Context) error

	// FetchPlaylist retrieves a playlist with all tracks in playback order.
	// Fails with [shared.ErrPlaylistNotFound] or [shared.ErrAuthFailed].
	FetchPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// Search runs one catalog search and returns candidates in catalog ranking order.
	// An empty result is not an error.
	Search(ctx context.Context, q Query) ([]models.Track, error)

	// CreatePlaylist creates an empty playlist.
	CreatePlaylist(ctx context.Context, name, description string, public bool) (*models.Playlist, error)

	// AddTracks appends track ids, in order, to a playlist. Callers keep len(trackIDs) <= BatchSize.
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error
}

// PlaylistLister is implemented by catalogs that can enumerate the user's playlists.
type PlaylistLister interface {
	Playlists(ctx context.Context) ([]models.Playlist, error)
}

// Names of the supported catalogs.
const (
	SpotifyName  = "spotify"
	TidalName    = "tidal"
	YouTubeName  = "youtube"
	SubsonicName = "subsonic"
)

// CatalogNames lists every supported catalog identifier.
func CatalogNames() []string {
	return []string{SpotifyName, TidalName, YouTubeName, SubsonicName}
}

// CanonicalName maps user-facing aliases to a catalog identifier.
func CanonicalName(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "spotify", "spot":
		return SpotifyName, nil
	case "tidal":
		return TidalName, nil
	case "youtube", "ytmusic", "yt", "ytm":
		return YouTubeName, nil
	case "subsonic", "navidrome":
		return SubsonicName, nil
	default:
		return "", fmt.Errorf("%w: unknown catalog %q (must be one of %s)", shared.ErrInvalidArgument, name, strings.Join(CatalogNames(), ", "))
	}
}

// Batches splits ids into consecutive chunks of at most size, preserving order.
func Batches(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}

// clampLimit bounds a requested limit to [1, max], defaulting to def when unset.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		limit = def
	}
	if max > 0 && limit > max {
		limit = max
	}
	if limit <= 0 {
		limit = 1
	}
	return limit
}

// textQuery joins the non-empty parts of a free text search.
func textQuery(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
