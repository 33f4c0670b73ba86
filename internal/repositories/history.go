package repositories

import (
	"fmt"

	"github.com/desertthunder/ptx/internal/models"
)

// HistoryRecorder implements tasks.Recorder using TransferRepository.
//
// Stores the run summary and then its per-track outcomes. A record that fails validation is rejected
// before anything is written.
type HistoryRecorder struct {
	repo *TransferRepository
}

// NewHistoryRecorder creates a new HistoryRecorder with the given repository
func NewHistoryRecorder(repo *TransferRepository) *HistoryRecorder {
	return &HistoryRecorder{repo: repo}
}

// Record persists one finished transfer run.
func (h *HistoryRecorder) Record(record *models.TransferRecord, outcomes []models.MatchOutcome) error {
	if err := h.repo.Create(record); err != nil {
		return fmt.Errorf("failed to record transfer: %w", err)
	}
	if len(outcomes) == 0 {
		return nil
	}
	if err := h.repo.AddOutcomes(record.ID(), outcomes); err != nil {
		return fmt.Errorf("failed to record transfer tracks: %w", err)
	}
	return nil
}

// Transfer is a stored run with its track rows.
type Transfer struct {
	Record *models.TransferRecord
	Tracks []models.TransferTrack
}

// Show loads a transfer and its track rows.
func (h *HistoryRecorder) Show(id string) (*Transfer, error) {
	record, err := h.repo.Get(id)
	if err != nil {
		return nil, err
	}
	tracks, err := h.repo.Outcomes(id)
	if err != nil {
		return nil, err
	}
	return &Transfer{Record: record, Tracks: tracks}, nil
}

// Recent lists the latest transfers, newest first. A non-positive limit lists everything.
func (h *HistoryRecorder) Recent(limit int) ([]*models.TransferRecord, error) {
	return h.repo.List(map[string]any{"limit": limit})
}
