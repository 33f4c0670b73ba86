// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/desertthunder/ptx/internal/models"
	"github.com/desertthunder/ptx/internal/services"
	"github.com/desertthunder/ptx/internal/shared"
)

// MockCatalog is a scriptable [services.Catalog] and [services.PlaylistLister] that records calls.
type MockCatalog struct {
	CatalogName string
	Caps        services.Capabilities

	AuthErr     error
	Source      map[string]*models.Playlist
	FetchErr    error
	SearchFunc  func(q services.Query) ([]models.Track, error)
	CreateErr   error
	CreatedID   string
	AddErr      error
	FailAddCall int // 1-based AddTracks call that returns AddErr; 0 fails every call
	ListErr     error
	SearchDelay func()

	mu      sync.Mutex
	calls   []string
	queries []services.Query
	created []models.Playlist
	added   [][]string
}

// NewMockCatalog returns a mock named name with caps and no playlists.
func NewMockCatalog(name string, caps services.Capabilities) *MockCatalog {
	return &MockCatalog{CatalogName: name, Caps: caps, Source: map[string]*models.Playlist{}}
}

func (m *MockCatalog) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *MockCatalog) Name() string                        { return m.CatalogName }
func (m *MockCatalog) Capabilities() services.Capabilities { return m.Caps }

func (m *MockCatalog) Authenticate(ctx context.Context) error {
	m.record("Authenticate")
	return m.AuthErr
}

func (m *MockCatalog) FetchPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	m.record("FetchPlaylist")
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	p, ok := m.Source[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	copied := *p
	copied.Tracks = append([]models.Track(nil), p.Tracks...)
	return &copied, nil
}

func (m *MockCatalog) Search(ctx context.Context, q services.Query) ([]models.Track, error) {
	m.mu.Lock()
	m.calls = append(m.calls, "Search")
	m.queries = append(m.queries, q)
	m.mu.Unlock()

	if m.SearchDelay != nil {
		m.SearchDelay()
	}
	if m.SearchFunc == nil {
		return nil, nil
	}
	return m.SearchFunc(q)
}

func (m *MockCatalog) CreatePlaylist(ctx context.Context, name, description string, public bool) (*models.Playlist, error) {
	m.record("CreatePlaylist")
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}

	id := m.CreatedID
	if id == "" {
		id = "created-1"
	}
	p := models.Playlist{
		ID:          id,
		Name:        name,
		Description: description,
		Public:      public,
		URL:         "https://" + m.CatalogName + ".example/playlist/" + id,
		Service:     m.CatalogName,
	}

	m.mu.Lock()
	m.created = append(m.created, p)
	m.mu.Unlock()
	return &p, nil
}

func (m *MockCatalog) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	m.mu.Lock()
	m.calls = append(m.calls, "AddTracks")
	call := len(m.added) + 1
	fail := m.AddErr != nil && (m.FailAddCall == 0 || m.FailAddCall == call)
	m.added = append(m.added, append([]string(nil), trackIDs...))
	m.mu.Unlock()

	if fail {
		return m.AddErr
	}
	return nil
}

func (m *MockCatalog) Playlists(ctx context.Context) ([]models.Playlist, error) {
	m.record("Playlists")
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	ids := make([]string, 0, len(m.Source))
	for id := range m.Source {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]models.Playlist, 0, len(ids))
	for _, id := range ids {
		p := *m.Source[id]
		p.TrackCount = len(p.Tracks)
		p.Tracks = nil
		out = append(out, p)
	}
	return out, nil
}

// Calls returns the recorded method names in call order.
func (m *MockCatalog) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Queries returns the recorded search queries.
func (m *MockCatalog) Queries() []services.Query {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]services.Query(nil), m.queries...)
}

// Created returns the playlists created so far.
func (m *MockCatalog) Created() []models.Playlist {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Playlist(nil), m.created...)
}

// Added returns every AddTracks batch, including failed ones.
func (m *MockCatalog) Added() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.added...)
}

// Track builds a catalog track with a derived URL.
func Track(service, id, title, artist, isrc string) models.Track {
	return models.Track{
		ID:      id,
		Title:   title,
		Artist:  artist,
		ISRC:    isrc,
		URL:     "https://" + service + ".example/track/" + id,
		Service: service,
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
