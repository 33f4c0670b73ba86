// Package services defines the [Catalog] interface for music catalogs and implements it for
// Spotify, TIDAL, YouTube Music and Subsonic.
//
// # Catalog Interface
//
// Every catalog exposes the same operations (authenticate, fetch, search, create, add) plus a
// [Capabilities] profile. Callers such as the matcher pick strategies from the profile rather
// than from the catalog name.
//
// Tracks and playlists returned by a catalog are stamped with its [Catalog.Name].
//
// # Spotify
//
// [SpotifyService] uses the OAuth2 authorization code flow. Tokens are refreshed automatically
// and each new token is handed to the registered [TokenRefreshFunc] so it can be persisted.
// Searches use the isrc:, track: and artist: field operators.
//
// # TIDAL
//
// [TidalService] authenticates with the OAuth2 device flow and talks to the v1 REST API.
// Adding items requires the playlist's current ETag.
//
// # YouTube Music
//
// [YouTubeService] communicates with the ytmusicapi proxy. The auth_file path is sent via the
// X-Auth-File header on each request.
//
// # Subsonic
//
// [SubsonicService] wraps go-subsonic for Navidrome and compatible servers.
//
// # Error Handling
//
// Non-2xx responses become a [StatusError] that unwraps to a shared sentinel:
//   - [shared.ErrAuthFailed] : 401 or 403
//   - [shared.ErrServiceUnavailable] : 502, 503 or 504
//   - [shared.ErrAPIRequest] : anything else
//
// Missing playlists are reported as [shared.ErrPlaylistNotFound].
package services
