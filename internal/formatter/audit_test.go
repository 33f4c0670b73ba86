package formatter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/ptx/internal/models"
	th "github.com/desertthunder/ptx/internal/testing"
)

func readAudit(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open audit log: %v", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("audit log is not valid CSV: %v", err)
	}
	return records
}

// trackRows returns the rows after the column header. Blank rows are skipped by the reader.
func trackRows(t *testing.T, records [][]string) [][]string {
	t.Helper()
	for i, rec := range records {
		if len(rec) > 0 && rec[0] == "Status" {
			return records[i+1:]
		}
	}
	t.Fatalf("column header not found in %v", records)
	return nil
}

func TestWriteAuditLog(t *testing.T) {
	src := &models.Playlist{Name: "Road Trip", URL: "https://open.spotify.com/playlist/abc"}
	dst := &models.Playlist{Name: "Road Trip (transferred)", URL: "https://listen.tidal.com/playlist/xyz"}

	found := th.Track("tidal", "t1", "Song One", "Artist", "ISRC00000001")
	found.Album = "Dest Album"
	outcomes := []models.MatchOutcome{
		models.Matched(th.Track("spotify", "s1", "Song One", "Artist", "ISRC00000001"), &found, models.TierArtistMatch),
		models.NotFound(th.Track("spotify", "s2", "Song, Two", "Other", ""), nil),
	}

	t.Run("header and rows", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "audit.csv")
		if err := WriteAuditLog(path, src, dst, outcomes); err != nil {
			t.Fatalf("WriteAuditLog failed: %v", err)
		}

		content := th.MustReadFile(t, path)
		if !strings.HasPrefix(content, "Playlist Transfer Log\n\nSource Playlist:,Road Trip\n") {
			t.Errorf("unexpected header block:\n%s", content)
		}

		records := readAudit(t, path)
		want := [][]string{
			{"Playlist Transfer Log"},
			{"Source Playlist:", "Road Trip"},
			{"Source URL:", "https://open.spotify.com/playlist/abc"},
			{"Destination Playlist:", "Road Trip (transferred)"},
			{"Destination URL:", "https://listen.tidal.com/playlist/xyz"},
		}
		for i, w := range want {
			if strings.Join(records[i], "|") != strings.Join(w, "|") {
				t.Errorf("header row %d = %v, want %v", i, records[i], w)
			}
		}

		if strings.Join(records[5], ",") != strings.Join(AuditColumns, ",") {
			t.Errorf("column header = %v", records[5])
		}

		rows := trackRows(t, records)
		if len(rows) != len(outcomes) {
			t.Fatalf("expected %d rows, got %d", len(outcomes), len(rows))
		}

		first := rows[0]
		if len(first) != 11 {
			t.Fatalf("expected 11 columns, got %d", len(first))
		}
		if first[0] != "Found" || first[1] != "Song One" || first[6] != "Song One" || first[8] != "Dest Album" {
			t.Errorf("unexpected found row: %v", first)
		}
		if first[10] != "https://tidal.example/track/t1" {
			t.Errorf("expected dest URL, got %q", first[10])
		}

		second := rows[1]
		if second[0] != "Not Found" || second[1] != "Song, Two" {
			t.Errorf("unexpected not-found row: %v", second)
		}
		for i := 6; i < 11; i++ {
			if second[i] != "" {
				t.Errorf("expected blank dest column %d, got %q", i, second[i])
			}
		}
	})

	t.Run("header only for empty playlist", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.csv")
		if err := WriteAuditLog(path, src, dst, nil); err != nil {
			t.Fatalf("WriteAuditLog failed: %v", err)
		}
		if rows := trackRows(t, readAudit(t, path)); len(rows) != 0 {
			t.Errorf("expected no track rows, got %v", rows)
		}
	})

	t.Run("missing URLs render N/A", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "na.csv")
		if err := WriteAuditLog(path, &models.Playlist{Name: "A"}, &models.Playlist{Name: "B"}, nil); err != nil {
			t.Fatalf("WriteAuditLog failed: %v", err)
		}
		records := readAudit(t, path)
		if records[2][1] != "N/A" || records[4][1] != "N/A" {
			t.Errorf("expected N/A URLs, got %v and %v", records[2], records[4])
		}
	})

	t.Run("creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "2024", "audit.csv")
		if err := WriteAuditLog(path, src, dst, outcomes); err != nil {
			t.Fatalf("WriteAuditLog failed: %v", err)
		}
		th.AssertFileExists(t, path)
	})

	t.Run("unwritable path", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := WriteAuditLog(filepath.Join(blocker, "audit.csv"), src, dst, outcomes); err == nil {
			t.Error("expected error when parent is a file")
		}
	})

	t.Run("writer failure", func(t *testing.T) {
		if err := EncodeAuditLog(&th.FWriter{}, src, dst, outcomes); err == nil {
			t.Error("expected error from failing writer")
		}
	})
}
