// package formatter renders playlists and transfer outcomes to files: playlist exports
// (JSON, CSV, Markdown, plain text) and the per-run audit CSV.
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ptx/internal/models"
	"github.com/desertthunder/ptx/internal/shared"
)

// Format is a playlist export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// ParseFormat resolves a user-supplied format name. Empty means JSON.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q (want json, csv, markdown or txt)", shared.ErrInvalidArgument, name)
	}
}

// ExportOpts tunes [Export].
type ExportOpts struct {
	CoverURL string       // Markdown only; downloaded next to README.md when set
	Client   *http.Client // Used for the cover download; defaults to [http.DefaultClient]
	Logger   *log.Logger
}

// Export writes playlist in format using base as the path prefix and returns the files written.
//
// JSON writes {base}.json, CSV writes {base}_tracks.csv and {base}_metadata.json, text writes
// {base}_tracks.txt, and Markdown writes the directory {base}/ with README.md and an optional cover.
func Export(ctx context.Context, format Format, playlist *models.Playlist, base string, opts ExportOpts) ([]string, error) {
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}

	switch format {
	case FormatJSON:
		data, err := shared.MarshalJSON(playlist, true)
		if err != nil {
			return nil, fmt.Errorf("failed to encode playlist: %w", err)
		}
		return writeFiles(map[string][]byte{base + ".json": data})

	case FormatCSV:
		tracks, err := EncodeCSV(playlist)
		if err != nil {
			return nil, err
		}
		metadata, err := EncodeMetadata(*playlist)
		if err != nil {
			return nil, err
		}
		return writeFiles(map[string][]byte{base + "_tracks.csv": tracks, base + "_metadata.json": metadata})

	case FormatText:
		return writeFiles(map[string][]byte{base + "_tracks.txt": EncodeText(playlist)})

	case FormatMarkdown:
		if err := os.MkdirAll(base, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		var files []string
		cover := ""
		if opts.CoverURL != "" {
			path := filepath.Join(base, "cover.jpg")
			if err := saveCover(ctx, opts.Client, opts.CoverURL, path); err != nil {
				opts.Logger.Warn("skipping cover image", "playlist", playlist.ID, "err", err)
			} else {
				cover = filepath.Base(path)
				files = append(files, path)
			}
		}
		written, err := writeFiles(map[string][]byte{filepath.Join(base, "README.md"): EncodeMarkdown(playlist, cover)})
		return append(files, written...), err

	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
}

// writeFiles writes each file and returns the paths in sorted order.
func writeFiles(files map[string][]byte) ([]string, error) {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	slices.Sort(paths)

	for _, path := range paths {
		if err := os.WriteFile(path, files[path], 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
		}
	}
	return paths, nil
}

// EncodeCSV renders one row per track in playlist order.
func EncodeCSV(playlist *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{{"Position", "Title", "Artist", "Album", "Duration", "ISRC", "Service", "ID", "URL"}}
	for i, t := range playlist.Tracks {
		rows = append(rows, []string{
			strconv.Itoa(i + 1), t.Title, t.Artist, t.Album, shared.FormatDuration(t.Duration), t.ISRC, t.Service, t.ID, t.URL,
		})
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to encode CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeMarkdown renders playlist as a README, linking cover when it is non-empty.
func EncodeMarkdown(playlist *models.Playlist, cover string) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", playlist.Name)
	if cover != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", cover)
	}
	if playlist.Description != "" {
		fmt.Fprintf(&buf, "> %s\n\n", playlist.Description)
	}

	fmt.Fprintf(&buf, "| | |\n|---|---|\n")
	if playlist.Service != "" {
		fmt.Fprintf(&buf, "| Catalog | %s |\n", playlist.Service)
	}
	if playlist.URL != "" {
		fmt.Fprintf(&buf, "| Link | %s |\n", playlist.URL)
	}
	fmt.Fprintf(&buf, "| Tracks | %d |\n", len(playlist.Tracks))
	fmt.Fprintf(&buf, "| Visibility | %s |\n\n", shared.VisibilityString(playlist.Public))

	buf.WriteString("## Tracks\n\n")
	for i, t := range playlist.Tracks {
		line := fmt.Sprintf("%s - %s", t.Artist, t.Title)
		if t.URL != "" {
			line = fmt.Sprintf("[%s](%s)", line, t.URL)
		}
		if t.Album != "" {
			line += fmt.Sprintf(" (%s)", t.Album)
		}
		fmt.Fprintf(&buf, "%d. %s [%s]\n", i+1, line, shared.FormatDuration(t.Duration))
	}
	return buf.Bytes()
}

// EncodeText renders a plain numbered track list.
func EncodeText(playlist *models.Playlist) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", playlist.Name)
	if playlist.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", playlist.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(playlist.Tracks))

	for i, t := range playlist.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, t.Artist, t.Title)
	}
	return buf.Bytes()
}

// EncodeMetadata renders playlist without its tracks as indented JSON.
func EncodeMetadata(playlist models.Playlist) ([]byte, error) {
	playlist.TrackCount = len(playlist.Tracks)
	playlist.Tracks = nil
	data, err := shared.MarshalJSON(playlist, true)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return data, nil
}

// DownloadImage fetches url with client and returns the body.
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty image URL", shared.ErrInvalidArgument)
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: image download returned %d", shared.ErrAPIRequest, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func saveCover(ctx context.Context, client *http.Client, url, path string) error {
	data, err := DownloadImage(ctx, client, url)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// WriteManifest writes v as indented JSON to path.
func WriteManifest(v any, path string) error {
	data, err := shared.MarshalJSON(v, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// SafeFilename replaces characters that are unsafe in file names. Catalog ids are not always path-safe.
func SafeFilename(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if safe == "" || safe == "." || safe == ".." {
		return "playlist"
	}
	return safe
}
