// Package models defines domain entities and persistence interfaces for the ptx playlist transfer tool.
//
// The package contains two categories of types:
//
// 1. Value records passed between catalogs, the matcher, and the transfer engine
//   - [Track] : Song metadata with ISRC for cross-catalog matching
//   - [Playlist] : Playlist metadata and its ordered tracks
//   - [MatchOutcome] : Per-track resolution result for one transfer run
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [TransferRecord] : One transfer run with counts, status, and playlist references
//   - [TransferTrack] : One persisted outcome row belonging to a transfer
//
// Value records are never mutated after a catalog constructs them; resolution produces a new [Track].
// Persistent entities implement the [Model] interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
