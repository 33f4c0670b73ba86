package services

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/ptx/internal/shared"
)

func TestBatches(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}

	tc := []struct {
		name string
		size int
		want []string
	}{
		{name: "exact multiple", size: 5, want: []string{"a,b,c,d,e"}},
		{name: "remainder", size: 2, want: []string{"a,b", "c,d", "e"}},
		{name: "size one", size: 1, want: []string{"a", "b", "c", "d", "e"}},
		{name: "non-positive size", size: 0, want: []string{"a,b,c,d,e"}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			batches := Batches(ids, tt.size)
			var got []string
			for _, b := range batches {
				got = append(got, strings.Join(b, ","))
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Batches(%d) = %v, want %v", tt.size, got, tt.want)
			}
		})
	}

	t.Run("empty", func(t *testing.T) {
		if got := Batches(nil, 100); len(got) != 0 {
			t.Errorf("expected no batches, got %v", got)
		}
	})
}

func TestCanonicalName(t *testing.T) {
	tc := map[string]string{
		"spotify":   SpotifyName,
		" Spotify ": SpotifyName,
		"TIDAL":     TidalName,
		"ytmusic":   YouTubeName,
		"yt":        YouTubeName,
		"navidrome": SubsonicName,
	}
	for in, want := range tc {
		got, err := CanonicalName(in)
		if err != nil || got != want {
			t.Errorf("CanonicalName(%q) = %q, %v; want %q", in, got, err, want)
		}
	}

	if _, err := CanonicalName("deezer"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestClampLimit(t *testing.T) {
	tc := []struct {
		limit, def, max, want int
	}{
		{0, 5, 50, 5},
		{10, 5, 50, 10},
		{500, 5, 50, 50},
		{-1, 0, 50, 1},
		{7, 5, 0, 7},
	}
	for _, tt := range tc {
		if got := clampLimit(tt.limit, tt.def, tt.max); got != tt.want {
			t.Errorf("clampLimit(%d, %d, %d) = %d, want %d", tt.limit, tt.def, tt.max, got, tt.want)
		}
	}
}

func TestCapabilitiesProfiles(t *testing.T) {
	tc := []struct {
		name string
		caps Capabilities
	}{
		{SpotifyName, spotifyCapabilities},
		{TidalName, tidalCapabilities},
		{YouTubeName, youtubeCapabilities},
		{SubsonicName, subsonicCapabilities},
	}
	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if tt.caps.DefaultSearchLimit <= 0 || tt.caps.DefaultSearchLimit > tt.caps.MaxSearchResults {
				t.Errorf("default limit %d outside (0, %d]", tt.caps.DefaultSearchLimit, tt.caps.MaxSearchResults)
			}
			if tt.caps.BatchSize <= 0 {
				t.Errorf("batch size must be positive, got %d", tt.caps.BatchSize)
			}
		})
	}
}

func TestStatusError(t *testing.T) {
	tc := []struct {
		code int
		want error
	}{
		{http.StatusUnauthorized, shared.ErrAuthFailed},
		{http.StatusForbidden, shared.ErrAuthFailed},
		{http.StatusServiceUnavailable, shared.ErrServiceUnavailable},
		{http.StatusBadRequest, shared.ErrAPIRequest},
		{http.StatusNotFound, shared.ErrAPIRequest},
	}
	for _, tt := range tc {
		err := &StatusError{Service: "test", StatusCode: tt.code}
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: expected %v", tt.code, tt.want)
		}
	}

	t.Run("reads message fields", func(t *testing.T) {
		bodies := map[string]string{
			`{"error":{"status":400,"message":"spotify says no"}}`: "spotify says no",
			`{"status":400,"userMessage":"tidal says no"}`:         "tidal says no",
			`{"detail":"proxy says no"}`:                           "proxy says no",
			`not json`:                                             "",
		}
		for body, want := range bodies {
			rec := httptest.NewRecorder()
			rec.WriteHeader(http.StatusBadRequest)
			rec.WriteString(body)

			se := readStatusError("test", rec.Result())
			if se.Message != want {
				t.Errorf("body %s: expected message %q, got %q", body, want, se.Message)
			}
		}
	})
}

func TestRateLimitedClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewRateLimitedClient(20, time.Second)
	if _, ok := client.Transport.(*rateLimitedTransport); !ok {
		t.Fatalf("expected rate limited transport, got %T", client.Transport)
	}

	start := time.Now()
	for range 25 {
		resp, err := client.Get(server.URL)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("expected limiter to slow 25 requests at 20 rps, took %s", elapsed)
	}

	if unlimited := NewRateLimitedClient(0, 0); unlimited.Transport != http.DefaultTransport {
		t.Error("expected default transport when rps is not positive")
	}
}
