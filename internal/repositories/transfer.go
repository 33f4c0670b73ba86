package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ptx/internal/models"
	"github.com/desertthunder/ptx/internal/shared"
)

const transferColumns = `
	id, sequence, source_service, source_playlist_id, source_playlist_name,
	dest_service, dest_playlist_id, dest_playlist_name, dest_playlist_url,
	status, failed_state, error_message, tracks_total, tracks_matched,
	tracks_added, audit_path, started_at, completed_at, created_at,
	updated_at, deleted_at
`

// TransferRepository implements models.Repository[*models.TransferRecord] for transfer history.
//
// Handles transfer CRUD operations with soft delete support, plus the per-track outcomes of each run.
type TransferRepository struct {
	db *sql.DB
}

// NewTransferRepository creates a new TransferRepository with the given database connection
func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Create inserts a transfer record with the next sequence. A record without an ID gets a generated one.
func (r *TransferRepository) Create(record *models.TransferRecord) error {
	if record.ID() == "" {
		record.SetID(shared.GenerateID())
	}

	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "transfers")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	record.SetSequence(sequence)

	query := `INSERT INTO transfers (` + transferColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Exec(query,
		record.ID(),
		sequence,
		record.SourceService(),
		record.SourcePlaylistID(),
		record.SourcePlaylistName(),
		record.DestService(),
		record.DestPlaylistID(),
		record.DestPlaylistName(),
		record.DestPlaylistURL(),
		string(record.Status()),
		record.FailedState(),
		record.ErrorMessage(),
		record.TracksTotal(),
		record.TracksMatched(),
		record.TracksAdded(),
		record.AuditPath(),
		record.StartedAt(),
		record.CompletedAt(),
		record.CreatedAt(),
		record.UpdatedAt(),
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}

	return nil
}

// Get retrieves a transfer by ID, excluding soft-deleted transfers
func (r *TransferRepository) Get(id string) (*models.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = ? AND deleted_at IS NULL`

	record, err := scanTransfer(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transfer %s", shared.ErrRecordNotFound, id)
	}
	return record, err
}

// Update writes the mutable fields of an existing transfer
func (r *TransferRepository) Update(record *models.TransferRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	record.SetUpdatedAt(now)

	query := `
		UPDATE transfers
		SET status = ?, error_message = ?, tracks_added = ?, audit_path = ?,
			dest_playlist_url = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		string(record.Status()),
		record.ErrorMessage(),
		record.TracksAdded(),
		record.AuditPath(),
		record.DestPlaylistURL(),
		record.CompletedAt(),
		now,
		record.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update transfer: %w", err)
	}

	return expectAffected(result, record.ID())
}

// Delete soft-deletes a transfer by ID. Its track rows are kept until the transfer is purged.
func (r *TransferRepository) Delete(id string) error {
	query := `
		UPDATE transfers
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete transfer: %w", err)
	}

	return expectAffected(result, id)
}

// List retrieves transfers matching the given criteria, newest first, excluding soft-deleted transfers.
//
// Supported criteria: status, source_service, dest_service, source_playlist_id (strings) and limit (int).
func (r *TransferRepository) List(criteria map[string]any) ([]*models.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE deleted_at IS NULL`
	args := []any{}

	for _, column := range []string{"status", "source_service", "dest_service", "source_playlist_id"} {
		if v, ok := criteria[column].(string); ok && v != "" {
			query += " AND " + column + " = ?"
			args = append(args, v)
		}
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var records []*models.TransferRecord
	for rows.Next() {
		record, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// AddOutcomes stores one row per outcome, positioned from 1 in source order, in a single transaction.
func (r *TransferRepository) AddOutcomes(transferID string, outcomes []models.MatchOutcome) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO transfer_tracks (
			transfer_id, position, status, tier, source_title, source_artist,
			source_isrc, source_id, dest_title, dest_artist, dest_id, dest_url, error
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, o := range outcomes {
		tt := models.NewTransferTrack(transferID, i+1, o)
		_, err := stmt.Exec(
			tt.TransferID, tt.Position, tt.Status, tt.Tier, tt.SourceTitle, tt.SourceArtist,
			tt.SourceISRC, tt.SourceID, tt.DestTitle, tt.DestArtist, tt.DestID, tt.DestURL, tt.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transfer track %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Outcomes retrieves the stored track rows of a transfer ordered by position
func (r *TransferRepository) Outcomes(transferID string) ([]models.TransferTrack, error) {
	query := `
		SELECT
			transfer_id, position, status, tier, source_title, source_artist,
			source_isrc, source_id, dest_title, dest_artist, dest_id, dest_url, error
		FROM transfer_tracks
		WHERE transfer_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.Query(query, transferID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.TransferTrack
	for rows.Next() {
		var tt models.TransferTrack
		if err := rows.Scan(
			&tt.TransferID, &tt.Position, &tt.Status, &tt.Tier, &tt.SourceTitle, &tt.SourceArtist,
			&tt.SourceISRC, &tt.SourceID, &tt.DestTitle, &tt.DestArtist, &tt.DestID, &tt.DestURL, &tt.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transfer track: %w", err)
		}
		tracks = append(tracks, tt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanTransfer scans one transfers row. [sql.ErrNoRows] is returned unwrapped.
func scanTransfer(row scanner) (*models.TransferRecord, error) {
	var (
		opts      models.TransferRecordOpts
		status    string
		sequence  int
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := row.Scan(
		&opts.ID, &sequence, &opts.SourceService, &opts.SourcePlaylistID, &opts.SourcePlaylistName,
		&opts.DestService, &opts.DestPlaylistID, &opts.DestPlaylistName, &opts.DestPlaylistURL,
		&status, &opts.FailedState, &opts.ErrorMessage, &opts.TracksTotal, &opts.TracksMatched,
		&opts.TracksAdded, &opts.AuditPath, &opts.StartedAt, &opts.CompletedAt, &createdAt,
		&updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transfer: %w", err)
	}
	opts.Status = models.TransferStatus(status)

	var deleted *time.Time
	if deletedAt.Valid {
		deleted = &deletedAt.Time
	}
	return models.RestoreTransferRecord(opts, sequence, createdAt, updatedAt, deleted), nil
}

func expectAffected(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: transfer %s not found or already deleted", shared.ErrRecordNotFound, id)
	}
	return nil
}
