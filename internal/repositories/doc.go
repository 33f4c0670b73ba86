// Package repositories implements SQLite persistence for transfer history.
//
// Key Implementations:
//   - [TransferRepository] : Transfer run summaries with status and service queries, plus per-track outcomes
//   - [HistoryRecorder] : Adapter that lets the transfer engine record finished runs
//
// Records are soft-deleted via deleted_at timestamps and excluded from queries by default.
// Sequence numbers provide stable, human-readable ordering (e.g., transfer #15) independent of UUIDs and timestamps.
// [NextSequence] bumps the per-table counter kept in a single-row <table>_sequence table.
package repositories
