package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/ptx/internal/models"
	"github.com/desertthunder/ptx/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func newRecord(source, status string) *models.TransferRecord {
	started := time.Now().Add(-time.Minute).UTC().Truncate(time.Second)
	opts := models.TransferRecordOpts{
		SourceService:      source,
		SourcePlaylistID:   "pl1",
		SourcePlaylistName: "Road Trip",
		DestService:        "tidal",
		DestPlaylistID:     "dst1",
		DestPlaylistName:   "Road Trip (transferred)",
		DestPlaylistURL:    "https://tidal.example/playlist/dst1",
		Status:             models.TransferStatus(status),
		TracksTotal:        3,
		TracksMatched:      2,
		TracksAdded:        2,
		AuditPath:          "audit.csv",
		StartedAt:          started,
		CompletedAt:        started.Add(30 * time.Second),
	}
	if status == string(models.TransferFailed) {
		opts.FailedState = "add_tracks"
		opts.ErrorMessage = "adding tracks failed: batch 2/2"
	}
	return models.NewTransferRecord(opts)
}

func testOutcomes() []models.MatchOutcome {
	found := models.Track{ID: "d1", Title: "Song", Artist: "Band", URL: "https://tidal.example/track/d1", Service: "tidal"}
	return []models.MatchOutcome{
		models.Matched(models.Track{ID: "s1", Title: "Song", Artist: "Band", ISRC: "USAAA0000001"}, &found, models.TierCandidateISRC),
		models.NotFound(models.Track{ID: "s2", Title: "Other", Artist: "Band"}, fmt.Errorf("%w: tidal: timeout", shared.ErrTrackSearch)),
	}
}

func TestTransferRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTransferRepository(db)
		record := newRecord("spotify", "completed")

		if err := repo.Create(record); err != nil {
			t.Fatalf("failed to create transfer: %v", err)
		}

		if record.ID() == "" {
			t.Error("transfer ID should be set after creation")
		}
		if record.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", record.Sequence())
		}
	})

	t.Run("CreateKeepsID", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTransferRepository(db)
		record := newRecord("spotify", "completed")
		record.SetID("run-123")

		if err := repo.Create(record); err != nil {
			t.Fatalf("failed to create transfer: %v", err)
		}
		if _, err := repo.Get("run-123"); err != nil {
			t.Errorf("expected transfer to be stored under its own ID: %v", err)
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTransferRepository(db)
		record := newRecord("spotify", "failed")

		if err := repo.Create(record); err != nil {
			t.Fatalf("failed to create transfer: %v", err)
		}

		retrieved, err := repo.Get(record.ID())
		if err != nil {
			t.Fatalf("failed to get transfer: %v", err)
		}

		if retrieved.SourcePlaylistName() != "Road Trip" || retrieved.DestPlaylistURL() != record.DestPlaylistURL() {
			t.Errorf("playlist fields not round-tripped: %s %s", retrieved.SourcePlaylistName(), retrieved.DestPlaylistURL())
		}
		if retrieved.Status() != models.TransferFailed || retrieved.FailedState() != "add_tracks" {
			t.Errorf("expected failed at add_tracks, got %s at %s", retrieved.Status(), retrieved.FailedState())
		}
		if retrieved.TracksTotal() != 3 || retrieved.TracksMatched() != 2 || retrieved.TracksAdded() != 2 {
			t.Errorf("unexpected counts %d/%d/%d", retrieved.TracksTotal(), retrieved.TracksMatched(), retrieved.TracksAdded())
		}
		if !retrieved.StartedAt().Equal(record.StartedAt()) {
			t.Errorf("expected started_at %v, got %v", record.StartedAt(), retrieved.StartedAt())
		}
		if retrieved.Sequence() != record.Sequence() {
			t.Errorf("expected sequence %d, got %d", record.Sequence(), retrieved.Sequence())
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTransferRepository(db)
		record := newRecord("spotify", "completed")

		if err := repo.Create(record); err != nil {
			t.Fatalf("failed to create transfer: %v", err)
		}

		record.SetStatus(models.TransferFailed)
		record.SetErrorMessage("rolled back")
		record.SetAuditPath("")

		if err := repo.Update(record); err != nil {
			t.Fatalf("failed to update transfer: %v", err)
		}

		retrieved, err := repo.Get(record.ID())
		if err != nil {
			t.Fatalf("failed to get transfer: %v", err)
		}
		if retrieved.Status() != models.TransferFailed || retrieved.ErrorMessage() != "rolled back" || retrieved.AuditPath() != "" {
			t.Errorf("update not persisted: %s %q %q", retrieved.Status(), retrieved.ErrorMessage(), retrieved.AuditPath())
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTransferRepository(db)
		record := newRecord("spotify", "completed")

		if err := repo.Create(record); err != nil {
			t.Fatalf("failed to create transfer: %v", err)
		}

		if err := repo.Delete(record.ID()); err != nil {
			t.Fatalf("failed to delete transfer: %v", err)
		}

		if _, err := repo.Get(record.ID()); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound after delete, got %v", err)
		}
		if err := repo.Delete(record.ID()); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("expected second delete to fail, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTransferRepository(db)
		for _, r := range []*models.TransferRecord{
			newRecord("spotify", "completed"),
			newRecord("youtube", "failed"),
			newRecord("spotify", "failed"),
		} {
			if err := repo.Create(r); err != nil {
				t.Fatalf("failed to create transfer: %v", err)
			}
		}

		all, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list transfers: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 transfers, got %d", len(all))
		}
		if all[0].Sequence() != 3 {
			t.Errorf("expected newest first, got sequence %d", all[0].Sequence())
		}

		failed, err := repo.List(map[string]any{"status": "failed", "source_service": "spotify"})
		if err != nil {
			t.Fatalf("failed to list transfers: %v", err)
		}
		if len(failed) != 1 || failed[0].SourceService() != "spotify" {
			t.Errorf("expected one failed spotify transfer, got %d", len(failed))
		}

		limited, err := repo.List(map[string]any{"limit": 2})
		if err != nil {
			t.Fatalf("failed to list transfers: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("expected 2 transfers, got %d", len(limited))
		}
	})

	t.Run("Outcomes", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTransferRepository(db)
		record := newRecord("spotify", "completed")
		if err := repo.Create(record); err != nil {
			t.Fatalf("failed to create transfer: %v", err)
		}

		if err := repo.AddOutcomes(record.ID(), testOutcomes()); err != nil {
			t.Fatalf("failed to add outcomes: %v", err)
		}

		tracks, err := repo.Outcomes(record.ID())
		if err != nil {
			t.Fatalf("failed to get outcomes: %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(tracks))
		}
		if tracks[0].Position != 1 || tracks[0].Tier != "candidate_isrc" || tracks[0].DestID != "d1" {
			t.Errorf("unexpected first track %+v", tracks[0])
		}
		if tracks[1].Status != "Not Found" || tracks[1].DestID != "" || tracks[1].Error == "" {
			t.Errorf("unexpected second track %+v", tracks[1])
		}
	})
}

func TestTransferRepositoryErrors(t *testing.T) {
	t.Run("ValidationError", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTransferRepository(db)
		record := models.NewTransferRecord(models.TransferRecordOpts{SourceService: "spotify", Status: models.TransferCompleted})

		if err := repo.Create(record); err == nil {
			t.Fatal("expected validation error for missing destination")
		}
	})

	t.Run("DuplicateID", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTransferRepository(db)
		first := newRecord("spotify", "completed")
		first.SetID("dup")
		second := newRecord("spotify", "completed")
		second.SetID("dup")

		if err := repo.Create(first); err != nil {
			t.Fatalf("failed to create first transfer: %v", err)
		}
		if err := repo.Create(second); err == nil {
			t.Fatal("expected error when creating transfer with duplicate ID")
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if _, err := NewTransferRepository(db).Get("nonexistent-id"); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Fatalf("expected ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("UpdateNotFound", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		record := newRecord("spotify", "completed")
		record.SetID("nonexistent-id")
		if err := NewTransferRepository(db).Update(record); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Fatalf("expected ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("OutcomesForUnknownTransfer", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if err := NewTransferRepository(db).AddOutcomes("missing", testOutcomes()); err == nil {
			t.Fatal("expected foreign key error")
		}
	})

	t.Run("ClosedDatabase", func(t *testing.T) {
		db := setupTestDB(t)
		db.Close()

		repo := NewTransferRepository(db)
		if err := repo.Create(newRecord("spotify", "completed")); err == nil {
			t.Error("expected error on closed database")
		}
		if _, err := repo.List(nil); err == nil {
			t.Error("expected error on closed database")
		}
	})
}

func TestHistoryRecorder(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	history := NewHistoryRecorder(NewTransferRepository(db))

	record := newRecord("spotify", "completed")
	if err := history.Record(record, testOutcomes()); err != nil {
		t.Fatalf("failed to record transfer: %v", err)
	}
	if err := history.Record(newRecord("youtube", "failed"), nil); err != nil {
		t.Fatalf("failed to record transfer without outcomes: %v", err)
	}

	shown, err := history.Show(record.ID())
	if err != nil {
		t.Fatalf("failed to show transfer: %v", err)
	}
	if shown.Record.ID() != record.ID() || len(shown.Tracks) != 2 {
		t.Errorf("unexpected transfer %s with %d tracks", shown.Record.ID(), len(shown.Tracks))
	}

	recent, err := history.Recent(1)
	if err != nil {
		t.Fatalf("failed to list recent transfers: %v", err)
	}
	if len(recent) != 1 || recent[0].SourceService() != "youtube" {
		t.Errorf("expected latest youtube transfer, got %v", recent)
	}

	if err := history.Record(models.NewTransferRecord(models.TransferRecordOpts{}), nil); err == nil {
		t.Error("expected invalid record to be rejected")
	}
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "transfers")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for unknown sequence table")
	}
	if _, err := NextSequence(db, "transfers; DROP TABLE transfers"); err == nil {
		t.Error("expected error for invalid table name")
	}
}
