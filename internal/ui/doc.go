// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for a playlist transfer:
//  1. [PlaylistListView] : Browse and select playlists from the source catalog
//  2. [TrackListView] : Preview tracks before transfer
//  3. [ConfirmView] : Confirm the destination playlist name
//  4. [TransferView] : Monitor progress with a spinner while tracks are matched
//  5. [ResultView] : Display match counts, unmatched tracks, and the audit log path
//
// The source catalog must implement [services.PlaylistLister]. The (view) [Model] implements bubbletea's
// Init/Update/View pattern, receiving messages via the [Msg] union type. Progress updates flow through a
// channel from the [tasks.PlaylistEngine], so status reporting never blocks the transfer.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, /, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
