package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/ptx/internal/shared"
	"golang.org/x/oauth2"
)

func testSpotifyCredentials() map[string]string {
	return map[string]string{
		"client_id":     "test_client_id",
		"client_secret": "test_client_secret",
	}
}

// newTestSpotify returns an authenticated service pointed at an httptest server running mux.
func newTestSpotify(t *testing.T, mux *http.ServeMux) *SpotifyService {
	t.Helper()

	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test_access_token" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"status":401,"message":"Invalid access token"}}`)
			return
		}
		fmt.Fprint(w, `{"id":"user-1","display_name":"Test User"}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv, err := NewSpotifyService(testSpotifyCredentials())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	srv.baseURL = server.URL
	srv.SetHTTPClient(server.Client())
	srv.SetToken(&oauth2.Token{AccessToken: "test_access_token", TokenType: "Bearer"})

	if err := srv.Authenticate(context.Background()); err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	return srv
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			credentials := testSpotifyCredentials()
			credentials["redirect_uri"] = "http://127.0.0.1:9999/callback"

			srv, err := NewSpotifyService(credentials)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.Name() != SpotifyName {
				t.Errorf("expected service name %q, got %s", SpotifyName, srv.Name())
			}
			if srv.config.RedirectURL != "http://127.0.0.1:9999/callback" {
				t.Errorf("unexpected redirect URI %s", srv.config.RedirectURL)
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "test_client_secret"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "test_client_id"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Default Redirect URI", func(t *testing.T) {
			srv, err := NewSpotifyService(testSpotifyCredentials())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.config.RedirectURL != "http://127.0.0.1:3000/callback" {
				t.Errorf("expected default redirect URI, got %s", srv.config.RedirectURL)
			}
		})

		t.Run("Write Scopes", func(t *testing.T) {
			srv, _ := NewSpotifyService(testSpotifyCredentials())
			scopes := strings.Join(srv.config.Scopes, " ")
			for _, scope := range []string{"playlist-modify-public", "playlist-modify-private"} {
				if !strings.Contains(scopes, scope) {
					t.Errorf("expected scope %s", scope)
				}
			}
		})
	})

	t.Run("Get AuthURL", func(t *testing.T) {
		srv, err := NewSpotifyService(testSpotifyCredentials())
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		authURL := srv.GetAuthURL("test_state")
		if !strings.Contains(authURL, "accounts.spotify.com") {
			t.Error("auth URL should contain Spotify domain")
		}
		if !strings.Contains(authURL, "test_client_id") {
			t.Error("auth URL should contain client_id")
		}
		if !strings.Contains(authURL, "test_state") {
			t.Error("auth URL should contain state")
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		t.Run("Without Token", func(t *testing.T) {
			srv, _ := NewSpotifyService(testSpotifyCredentials())
			err := srv.Authenticate(context.Background())
			if !errors.Is(err, shared.ErrAuthFailed) || !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrAuthFailed and ErrNotAuthenticated, got %v", err)
			}
		})

		t.Run("With Token", func(t *testing.T) {
			srv := newTestSpotify(t, http.NewServeMux())
			if srv.user == nil || srv.user.ID != "user-1" {
				t.Errorf("expected profile to be loaded, got %+v", srv.user)
			}
		})

		t.Run("Rejected Token", func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"error":{"status":401,"message":"The access token expired"}}`)
			})
			server := httptest.NewServer(mux)
			defer server.Close()

			srv, _ := NewSpotifyService(testSpotifyCredentials())
			srv.baseURL = server.URL
			srv.SetToken(&oauth2.Token{AccessToken: "stale"})

			err := srv.Authenticate(context.Background())
			if !errors.Is(err, shared.ErrAuthFailed) {
				t.Fatalf("expected ErrAuthFailed, got %v", err)
			}
			if !strings.Contains(err.Error(), "The access token expired") {
				t.Errorf("expected API message in error, got %v", err)
			}
		})
	})

	t.Run("Catalog Interface", func(t *testing.T) {
		srv, _ := NewSpotifyService(testSpotifyCredentials())
		var _ Catalog = srv
		var _ PlaylistLister = srv

		caps := srv.Capabilities()
		if !caps.DirectISRCQuery || caps.BatchSize != 100 || !caps.SupportsVisibility {
			t.Errorf("unexpected capabilities %+v", caps)
		}
	})

	t.Run("FetchPlaylist", func(t *testing.T) {
		mux := http.NewServeMux()
		var serverURL string
		mux.HandleFunc("GET /playlists/pl1", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{
				"id": "pl1", "name": "Road Trip", "description": "summer", "public": true,
				"external_urls": {"spotify": "https://open.spotify.com/playlist/pl1"},
				"tracks": {
					"total": 3,
					"next": "%s/playlists/pl1/tracks?offset=2",
					"items": [
						{"track": {"id": "t1", "name": "One", "duration_ms": 1000,
							"artists": [{"name": "A"}, {"name": "B"}], "album": {"name": "Al"},
							"external_ids": {"isrc": "USAAA0000001"},
							"external_urls": {"spotify": "https://open.spotify.com/track/t1"}}},
						{"track": null}
					]
				}
			}`, serverURL)
		})
		mux.HandleFunc("GET /playlists/pl1/tracks", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("offset") != "2" {
				t.Errorf("expected offset=2, got %s", r.URL.RawQuery)
			}
			fmt.Fprint(w, `{"total": 3, "next": null, "items": [
				{"track": {"id": "t2", "name": "Two", "artists": [], "album": {"name": ""}}}
			]}`)
		})
		mux.HandleFunc("GET /playlists/missing", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"status":404,"message":"Not found."}}`)
		})

		srv := newTestSpotify(t, mux)
		serverURL = srv.baseURL

		t.Run("follows pages and skips removed items", func(t *testing.T) {
			playlist, err := srv.FetchPlaylist(context.Background(), "pl1")
			if err != nil {
				t.Fatalf("FetchPlaylist failed: %v", err)
			}
			if playlist.Name != "Road Trip" || !playlist.Public || playlist.Service != SpotifyName {
				t.Errorf("unexpected playlist %+v", playlist)
			}
			if len(playlist.Tracks) != 2 {
				t.Fatalf("expected 2 tracks, got %d", len(playlist.Tracks))
			}

			first := playlist.Tracks[0]
			if first.Artist != "A" || first.ISRC != "USAAA0000001" || first.Duration != 1000 {
				t.Errorf("unexpected first track %+v", first)
			}
			second := playlist.Tracks[1]
			if second.Artist != "Unknown" || second.URL != "https://open.spotify.com/track/t2" {
				t.Errorf("unexpected second track %+v", second)
			}
		})

		t.Run("not found", func(t *testing.T) {
			_, err := srv.FetchPlaylist(context.Background(), "missing")
			if !errors.Is(err, shared.ErrPlaylistNotFound) {
				t.Errorf("expected ErrPlaylistNotFound, got %v", err)
			}
		})
	})

	t.Run("Search", func(t *testing.T) {
		var queries []string
		mux := http.NewServeMux()
		mux.HandleFunc("GET /search", func(w http.ResponseWriter, r *http.Request) {
			queries = append(queries, r.URL.Query().Get("q")+"|"+r.URL.Query().Get("limit"))
			fmt.Fprint(w, `{"tracks": {"items": [
				{"id": "s1", "name": "Song", "artists": [{"name": "Band"}], "album": {"name": "LP"},
				 "external_ids": {"isrc": "GBAAA1111111"}}
			]}}`)
		})
		srv := newTestSpotify(t, mux)

		tracks, err := srv.Search(context.Background(), Query{ISRC: "GBAAA1111111", Limit: 1})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(tracks) != 1 || tracks[0].ID != "s1" || tracks[0].Service != SpotifyName {
			t.Errorf("unexpected tracks %+v", tracks)
		}

		if _, err := srv.Search(context.Background(), Query{Title: "Song", Artist: "Band"}); err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if _, err := srv.Search(context.Background(), Query{Title: "Song", Limit: 500}); err != nil {
			t.Fatalf("Search failed: %v", err)
		}

		want := []string{"isrc:GBAAA1111111|1", "track:Song artist:Band|5", "track:Song|50"}
		if strings.Join(queries, ",") != strings.Join(want, ",") {
			t.Errorf("expected queries %v, got %v", want, queries)
		}

		if _, err := srv.Search(context.Background(), Query{}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for empty query, got %v", err)
		}
	})

	t.Run("CreatePlaylist And AddTracks", func(t *testing.T) {
		var created spotifyCreatePlaylist
		var added spotifyAddItems
		mux := http.NewServeMux()
		mux.HandleFunc("POST /users/user-1/playlists", func(w http.ResponseWriter, r *http.Request) {
			if err := json.NewDecoder(r.Body).Decode(&created); err != nil {
				t.Errorf("bad body: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id": "new1", "name": "Copy", "public": false,
				"external_urls": {"spotify": "https://open.spotify.com/playlist/new1"}}`)
		})
		mux.HandleFunc("POST /playlists/new1/tracks", func(w http.ResponseWriter, r *http.Request) {
			if err := json.NewDecoder(r.Body).Decode(&added); err != nil {
				t.Errorf("bad body: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"snapshot_id": "abc"}`)
		})
		srv := newTestSpotify(t, mux)

		playlist, err := srv.CreatePlaylist(context.Background(), "Copy", "desc", false)
		if err != nil {
			t.Fatalf("CreatePlaylist failed: %v", err)
		}
		if playlist.ID != "new1" || playlist.URL != "https://open.spotify.com/playlist/new1" {
			t.Errorf("unexpected playlist %+v", playlist)
		}
		if created.Name != "Copy" || created.Description != "desc" || created.Public {
			t.Errorf("unexpected create body %+v", created)
		}

		if err := srv.AddTracks(context.Background(), "new1", []string{"a", "b"}); err != nil {
			t.Fatalf("AddTracks failed: %v", err)
		}
		if strings.Join(added.URIs, ",") != "spotify:track:a,spotify:track:b" {
			t.Errorf("unexpected uris %v", added.URIs)
		}

		tooMany := make([]string, 101)
		if err := srv.AddTracks(context.Background(), "new1", tooMany); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for oversized batch, got %v", err)
		}
	})

	t.Run("Playlists", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /me/playlists", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("offset") == "0" {
				fmt.Fprint(w, `{"items": [{"id": "p1", "name": "First", "tracks": {"total": 4}}], "next": "more"}`)
				return
			}
			fmt.Fprint(w, `{"items": [{"id": "p2", "name": "Second", "tracks": {"total": 2}}], "next": null}`)
		})
		srv := newTestSpotify(t, mux)

		playlists, err := srv.Playlists(context.Background())
		if err != nil {
			t.Fatalf("Playlists failed: %v", err)
		}
		if len(playlists) != 2 || playlists[0].TrackCount != 4 || playlists[1].ID != "p2" {
			t.Errorf("unexpected playlists %+v", playlists)
		}
	})

	t.Run("SetTokenRefreshCallback", func(t *testing.T) {
		srv, _ := NewSpotifyService(testSpotifyCredentials())

		srv.SetTokenRefreshCallback(func(token *oauth2.Token) {})
		if srv.onTokenRefresh == nil {
			t.Error("expected callback to be set")
		}

		srv.SetTokenRefreshCallback(nil)
		if srv.onTokenRefresh != nil {
			t.Error("expected callback to be nil")
		}
	})

	t.Run("refreshableTokenSource", func(t *testing.T) {
		t.Run("calls callback on first token fetch", func(t *testing.T) {
			var capturedToken *oauth2.Token

			source := &refreshableTokenSource{
				source: &mockTokenSource{token: &oauth2.Token{AccessToken: "test_token"}},
				callback: func(token *oauth2.Token) {
					capturedToken = token
				},
			}

			token, err := source.Token()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if capturedToken == nil || capturedToken.AccessToken != "test_token" {
				t.Errorf("expected captured token, got %+v", capturedToken)
			}
			if token.AccessToken != "test_token" {
				t.Errorf("expected returned token to be 'test_token', got %s", token.AccessToken)
			}
		})

		t.Run("calls callback when token changes", func(t *testing.T) {
			callCount := 0
			mockSource := &mockTokenSource{token: &oauth2.Token{AccessToken: "token1"}}

			source := &refreshableTokenSource{
				source:   mockSource,
				callback: func(token *oauth2.Token) { callCount++ },
			}

			_, _ = source.Token()
			mockSource.token = &oauth2.Token{AccessToken: "token2"}
			token2, _ := source.Token()

			if callCount != 2 {
				t.Errorf("expected callback called twice, got %d", callCount)
			}
			if token2.AccessToken != "token2" {
				t.Errorf("expected new token, got %s", token2.AccessToken)
			}
		})

		t.Run("doesn't call callback when token unchanged", func(t *testing.T) {
			callCount := 0
			source := &refreshableTokenSource{
				source:   &mockTokenSource{token: &oauth2.Token{AccessToken: "same_token"}},
				callback: func(token *oauth2.Token) { callCount++ },
			}

			source.Token()
			source.Token()
			source.Token()

			if callCount != 1 {
				t.Errorf("expected callback called once, got %d", callCount)
			}
		})

		t.Run("skips callback for the seeded token", func(t *testing.T) {
			called := false
			config := &oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: "http://127.0.0.1:0/token"}}
			token := &oauth2.Token{AccessToken: "stored"}

			source := newTokenSource(context.Background(), config, token, nil, func(*oauth2.Token) { called = true })
			got, err := source.Token()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got.AccessToken != "stored" {
				t.Errorf("expected stored token, got %s", got.AccessToken)
			}
			if called {
				t.Error("callback should not fire for an unchanged token")
			}
		})

		t.Run("handles nil callback gracefully", func(t *testing.T) {
			source := &refreshableTokenSource{
				source: &mockTokenSource{token: &oauth2.Token{AccessToken: "test_token"}},
			}

			token, err := source.Token()
			if err != nil {
				t.Fatalf("expected no error with nil callback, got %v", err)
			}
			if token.AccessToken != "test_token" {
				t.Error("expected token to be returned despite nil callback")
			}
		})

		t.Run("propagates source errors", func(t *testing.T) {
			source := &refreshableTokenSource{
				source: &mockTokenSource{err: errors.New("token source error")},
				callback: func(token *oauth2.Token) {
					t.Error("callback should not be called on error")
				},
			}

			token, err := source.Token()
			if err == nil || !strings.Contains(err.Error(), "token source error") {
				t.Errorf("expected source error, got %v", err)
			}
			if token != nil {
				t.Error("expected nil token on error")
			}
		})
	})
}

// mockTokenSource implements [oauth2.TokenSource] for testing
type mockTokenSource struct {
	token *oauth2.Token
	err   error
}

func (m *mockTokenSource) Token() (*oauth2.Token, error) {
	return m.token, m.err
}

func TestSpotifyCoverImage(t *testing.T) {
	t.Run("returns first image", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /playlists/pl1/images", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[{"url":"https://i.scdn.co/large.jpg","height":640,"width":640},{"url":"https://i.scdn.co/small.jpg","height":60,"width":60}]`)
		})
		srv := newTestSpotify(t, mux)

		got, err := srv.CoverImage(context.Background(), "pl1")
		if err != nil {
			t.Fatalf("CoverImage() error = %v", err)
		}
		if got != "https://i.scdn.co/large.jpg" {
			t.Errorf("expected large image, got %q", got)
		}
	})

	t.Run("no images", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /playlists/pl2/images", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[]`)
		})
		srv := newTestSpotify(t, mux)

		got, err := srv.CoverImage(context.Background(), "pl2")
		if err != nil || got != "" {
			t.Errorf("expected empty URL and no error, got %q, %v", got, err)
		}
	})

	t.Run("unknown playlist", func(t *testing.T) {
		srv := newTestSpotify(t, http.NewServeMux())

		if _, err := srv.CoverImage(context.Background(), "missing"); err == nil {
			t.Error("expected error for unknown playlist")
		}
	})
}
