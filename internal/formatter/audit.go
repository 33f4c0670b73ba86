package formatter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/desertthunder/ptx/internal/models"
)

// AuditColumns is the fixed track table header of an audit log.
var AuditColumns = []string{
	"Status",
	"SourceTitle", "SourceArtist", "SourceAlbum", "SourceISRC", "SourceURL",
	"DestTitle", "DestArtist", "DestAlbum", "DestISRC", "DestURL",
}

// AuditHeaderRows is the number of rows preceding the column header.
const AuditHeaderRows = 7

// WriteAuditLog writes the per-track transfer audit to path as CSV, creating parent directories.
func WriteAuditLog(path string, src, dst *models.Playlist, outcomes []models.MatchOutcome) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create audit directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close audit log: %w", cerr)
		}
	}()

	return EncodeAuditLog(f, src, dst, outcomes)
}

// EncodeAuditLog renders the audit header block and one row per outcome to w.
func EncodeAuditLog(w io.Writer, src, dst *models.Playlist, outcomes []models.MatchOutcome) error {
	writer := csv.NewWriter(w)

	header := [][]string{
		{"Playlist Transfer Log"},
		{},
		{"Source Playlist:", playlistName(src)},
		{"Source URL:", orNA(playlistURL(src))},
		{"Destination Playlist:", playlistName(dst)},
		{"Destination URL:", orNA(playlistURL(dst))},
		{},
		AuditColumns,
	}
	if err := writer.WriteAll(header); err != nil {
		return fmt.Errorf("failed to write audit header: %w", err)
	}

	for _, o := range outcomes {
		if err := writer.Write(auditRow(o)); err != nil {
			return fmt.Errorf("failed to write audit row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

func auditRow(o models.MatchOutcome) []string {
	row := []string{
		o.Status(),
		o.Source.Title,
		o.Source.Artist,
		o.Source.Album,
		o.Source.ISRC,
		o.Source.URL,
		"", "", "", "", "",
	}
	if o.Found && o.Dest != nil {
		row[6] = o.Dest.Title
		row[7] = o.Dest.Artist
		row[8] = o.Dest.Album
		row[9] = o.Dest.ISRC
		row[10] = o.Dest.URL
	}
	return row
}

func playlistName(p *models.Playlist) string {
	if p == nil {
		return ""
	}
	return p.Name
}

func playlistURL(p *models.Playlist) string {
	if p == nil {
		return ""
	}
	return p.URL
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
