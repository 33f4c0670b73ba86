// Package tasks orchestrates playlist operations between music catalogs with real-time progress reporting.
//
// # Core Operations
//
//  1. [PlaylistEngine.Run] : Full source → destination transfer
//     - Authenticates both catalogs, source first
//     - Fetches the source playlist and creates the destination playlist
//     - Resolves each track through the [matcher.Matcher] tiers, optionally with a worker pool
//     - Adds found tracks in source order, in batches sized by the destination
//     - Writes a CSV audit log when a path is given
//
//  2. [PlaylistEngine.Diff] : Compare playlists across catalogs
//     - Fetches both playlists
//     - Pairs tracks by ISRC, normalized title/artist key, then fuzzy key
//     - Reports matched pairs, missing tracks, and extra tracks
//
//  3. [BulkExport] : Export many playlists from one catalog
//     - Rate-limited worker pool writing JSON, CSV, Markdown or text files
//     - Writes a manifest.json describing every export
//
// # Failure Model
//
// Run stops at the first authentication, fetch, create or batch-add failure and returns the
// sentinel from [shared] wrapped with context. Search failures never stop a run; they become
// not-found outcomes. A failed audit write is reported through [TransferRunResult.AuditErr].
// The result is returned on failure as well, so callers can see which state failed and which
// tracks were already committed.
//
// # Progress Reporting
//
// All operations send [ProgressUpdate] values over an optional channel. Sends never block;
// updates are dropped when the receiver falls behind.
//
// # History
//
// An optional [Recorder] receives every finished run, failed or not. Recording errors are logged
// and never change the run outcome.
package tasks
