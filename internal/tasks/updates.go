package tasks

import (
	"fmt"

	"github.com/desertthunder/ptx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	State   State  // Pipeline state that emitted the update
	Step    int    // Current step number within the state
	Total   int    // Total steps in this state
	Message string // Human-readable message for display
	Data    any    // Optional state-specific data for advanced UIs
}

// State enumerates the transfer pipeline states, plus the auxiliary diff and export phases.
type State int

const (
	StateInit State = iota
	StateAuthSource
	StateAuthDest
	StateFetchSource
	StateCreateDest
	StateResolve
	StateAddTracks
	StateWriteAudit
	StateDone
	StateFailed
	StateFetchDest
	StateCompare
	StateExport
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateAuthSource:
		return "authenticate_source"
	case StateAuthDest:
		return "authenticate_destination"
	case StateFetchSource:
		return "fetch_source"
	case StateCreateDest:
		return "create_destination"
	case StateResolve:
		return "resolve_tracks"
	case StateAddTracks:
		return "add_tracks"
	case StateWriteAudit:
		return "write_audit"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateFetchDest:
		return "fetch_dest"
	case StateCompare:
		return "compare"
	case StateExport:
		return "export_playlist"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func authUpdate(state State, name string) ProgressUpdate {
	return ProgressUpdate{
		State:   state,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Authenticating with %s...", name),
	}
}

func fetchSourceUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		State:   StateFetchSource,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching source playlist (%s)...", name),
	}
}

func fetchDestUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		State:   StateFetchDest,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching destination playlist (%s)...", name),
	}
}

func foundPlaylistUpdate(pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		State:   StateFetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", pl.Name, len(pl.Tracks)),
		Data:    pl,
	}
}

func createDestinationUpdate(name, service string) ProgressUpdate {
	return ProgressUpdate{
		State:   StateCreateDest,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist %q on %s...", name, service),
	}
}

func createPlaylistUpdate(pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		State:   StateCreateDest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}

func resolveTrackUpdate(step, total int, outcome models.MatchOutcome) ProgressUpdate {
	mark := "✓"
	if !outcome.Found {
		mark = "✗"
	}
	return ProgressUpdate{
		State:   StateResolve,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s - %s", step, total, mark, outcome.Source.Artist, outcome.Source.Title),
		Data:    outcome,
	}
}

func addBatchUpdate(step, total, size int) ProgressUpdate {
	return ProgressUpdate{
		State:   StateAddTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Adding %d tracks...", step, total, size),
	}
}

func auditUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		State:   StateWriteAudit,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Writing audit log to %s", path),
	}
}

func doneUpdate(result *TransferRunResult) ProgressUpdate {
	return ProgressUpdate{
		State:   StateDone,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Transferred %d/%d tracks", result.Matched(), result.Total()),
		Data:    result,
	}
}

func failedUpdate(at State, err error) ProgressUpdate {
	return ProgressUpdate{
		State:   StateFailed,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Transfer failed during %s: %v", at, err),
		Data:    err,
	}
}

func compareUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		State:   StateCompare,
		Step:    step,
		Total:   total,
		Message: "Comparing tracks...",
	}
}

func exportingPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		State:   StateExport,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		State:   StateExport,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		State:   StateExport,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
