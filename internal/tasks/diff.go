package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/ptx/internal/matcher"
	"github.com/desertthunder/ptx/internal/models"
	"github.com/desertthunder/ptx/internal/shared"
)

// TransferDiffResult contains the results of comparing a source playlist with a destination playlist.
type TransferDiffResult struct {
	SourcePlaylist *models.Playlist
	DestPlaylist   *models.Playlist
	Matched        []matcher.Pair // Source order
	MissingInDest  []models.Track // In source but not in dest
	ExtraInDest    []models.Track // In dest but not in source
}

// MatchedCount is the number of paired tracks.
func (d *TransferDiffResult) MatchedCount() int { return len(d.Matched) }

// Diff compares a source playlist with a destination playlist by ISRC, normalized key, then fuzzy key.
func (e *PlaylistEngine) Diff(ctx context.Context, progress chan<- ProgressUpdate, sourceID, destID string) (*TransferDiffResult, error) {
	if e.source == nil || e.dest == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	if err := e.source.Authenticate(ctx); err != nil {
		return nil, authError(e.source.Name(), err)
	}
	if err := e.dest.Authenticate(ctx); err != nil {
		return nil, authError(e.dest.Name(), err)
	}

	sendProgress(progress, fetchSourceUpdate(1, 2, e.source.Name()))
	src, err := e.source.FetchPlaylist(ctx, sourceID)
	if err != nil {
		return nil, fetchError(e.source.Name(), sourceID, err)
	}

	sendProgress(progress, fetchDestUpdate(2, 2, e.dest.Name()))
	dst, err := e.dest.FetchPlaylist(ctx, destID)
	if err != nil {
		return nil, fetchError(e.dest.Name(), destID, err)
	}

	sendProgress(progress, compareUpdate(1, 1))
	cmp := matcher.Compare(src.Tracks, dst.Tracks)
	e.logger.Debug("compared playlists", "matched", len(cmp.Matched), "missing", len(cmp.Missing), "extra", len(cmp.Extra))

	return &TransferDiffResult{
		SourcePlaylist: src,
		DestPlaylist:   dst,
		Matched:        cmp.Matched,
		MissingInDest:  cmp.Missing,
		ExtraInDest:    cmp.Extra,
	}, nil
}
