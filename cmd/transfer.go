package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"

	"github.com/desertthunder/ptx/internal/models"
	"github.com/desertthunder/ptx/internal/repositories"
	"github.com/desertthunder/ptx/internal/services"
	"github.com/desertthunder/ptx/internal/shared"
	"github.com/desertthunder/ptx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// catalogPair resolves distinct source and destination catalogs.
func (r *Runner) catalogPair(ctx context.Context, source, dest string) (services.Catalog, services.Catalog, error) {
	src, err := r.catalog(ctx, source)
	if err != nil {
		return nil, nil, err
	}
	dst, err := r.catalog(ctx, dest)
	if err != nil {
		return nil, nil, err
	}
	if src.Name() == dst.Name() {
		return nil, nil, fmt.Errorf("%w: source and destination must be different catalogs (both %s)", shared.ErrInvalidArgument, src.Name())
	}
	return src, dst, nil
}

// history opens the history database and returns a recorder for it.
//
// Failures are logged and leave history disabled; the returned close func is always safe to call.
func (r *Runner) history() (*repositories.HistoryRecorder, func()) {
	db, err := r.openDB(r.config.Database)
	if err != nil {
		r.logger.Warn("transfer history disabled", "err", err)
		return nil, func() {}
	}
	return repositories.NewHistoryRecorder(repositories.NewTransferRepository(db)), func() { closeDB(r, db) }
}

func closeDB(r *Runner, db *sql.DB) {
	if err := db.Close(); err != nil {
		r.logger.Warn("failed to close database", "err", err)
	}
}

// printProgress drains progress until it is closed. The returned WaitGroup completes once it has.
func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate) *sync.WaitGroup {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.printUpdate(update)
		}
	}()
	return &wg
}

func (r *Runner) printUpdate(update tasks.ProgressUpdate) {
	switch update.State {
	case tasks.StateAuthSource, tasks.StateAuthDest:
		r.writePlain("%s %s\n", r.mark("🔑", "*"), update.Message)
	case tasks.StateFetchSource, tasks.StateFetchDest:
		r.writePlain("%s %s\n", r.mark("📥", "*"), update.Message)
	case tasks.StateCreateDest:
		r.writePlain("%s %s\n", r.mark("📝", "*"), update.Message)
	case tasks.StateResolve:
		if update.Step == 1 {
			r.writePlain("\n%s Matching %d tracks...\n", r.mark("🔍", "*"), update.Total)
		}
		r.writePlain("   %s\n", update.Message)
	case tasks.StateAddTracks:
		r.writePlain("%s %s\n", r.mark("➕", "*"), update.Message)
	case tasks.StateWriteAudit:
		r.writePlain("%s %s\n", r.mark("🧾", "*"), update.Message)
	case tasks.StateExport, tasks.StateCompare:
		r.writePlain("%s %s\n", r.mark("📦", "*"), update.Message)
	}
}

// TransferRun copies a playlist from one catalog to another.
func (r *Runner) TransferRun(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "source catalog", "destination catalog", "playlist id")
	if err != nil {
		return err
	}
	source, dest, err := r.catalogPair(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	playlistID := args[2]
	now := r.now()

	auditPath := ""
	if !cmd.Bool("no-audit") {
		auditPath = cmd.String("log-file")
		if auditPath == "" {
			auditPath = r.config.Transfer.LogFile
		}
		auditPath = shared.ExpandTemplate(auditPath, playlistID, now)
	}

	workers := r.config.Transfer.Workers
	if cmd.IsSet("workers") {
		workers = cmd.Int("workers")
	}

	opts := tasks.EngineOpts{Logger: r.logger, Workers: workers, NameSuffix: r.config.Transfer.NameSuffix}
	if !cmd.Bool("no-history") {
		recorder, closeHistory := r.history()
		defer closeHistory()
		if recorder != nil {
			opts.Recorder = recorder
		}
	}

	engine := tasks.NewPlaylistEngine(source, dest, opts)
	req := tasks.TransferRequest{
		SourcePlaylistID: playlistID,
		DestinationName:  shared.ExpandTemplate(cmd.String("name"), playlistID, now),
		AuditPath:        auditPath,
	}

	r.logger.Info("starting transfer", "source", source.Name(), "dest", dest.Name(), "playlist", playlistID)
	asJSON := cmd.Bool("json")

	progress := make(chan tasks.ProgressUpdate, 64)
	var done *sync.WaitGroup
	if !asJSON {
		r.writePlain("Transferring %s playlist %s to %s\n\n", source.Name(), playlistID, dest.Name())
		done = r.printProgress(progress)
	}

	result, err := engine.Run(ctx, progress, req)
	close(progress)
	if done != nil {
		done.Wait()
	}

	if asJSON && result != nil {
		if werr := r.writeJSON(newTransferReport(result), true); werr != nil {
			return werr
		}
		return err
	}
	if err != nil {
		if result != nil && len(result.Outcomes) > 0 {
			r.writePlain("\n%s\n", result.Summary(r.summaryLimit()))
		}
		if result != nil && len(result.AddedTrackIDs) > 0 {
			r.writePlain("\n%d tracks were added in %d batches before the failure.\n", len(result.AddedTrackIDs), result.BatchesCommitted)
		}
		return err
	}

	r.printResult(result)
	return nil
}

func (r *Runner) printResult(result *tasks.TransferRunResult) {
	r.writePlain("\n")
	r.writePlainHeader("Transfer Complete!")
	r.writePlain("Source:      %s (%d tracks)\n", result.SourcePlaylist.Name, result.Total())
	r.writePlain("Destination: %s\n", result.DestPlaylist.Name)
	if result.DestPlaylist.URL != "" {
		r.writePlain("URL:         %s\n", result.DestPlaylist.URL)
	}
	r.writePlain("Match rate:  %.1f%%\n\n", result.MatchPercentage())
	r.writePlain("%s\n", result.Summary(r.summaryLimit()))

	if result.AuditPath != "" {
		r.writePlain("\nAudit log: %s\n", result.AuditPath)
	}
	if result.AuditErr != nil {
		r.writePlain("\n%s Warning: %v\n", r.mark("⚠️", "!"), result.AuditErr)
	}
}

func (r *Runner) summaryLimit() int {
	if r.config.Transfer.SummaryLimit > 0 {
		return r.config.Transfer.SummaryLimit
	}
	return 5
}

// transferReport is the JSON shape of a transfer result.
type transferReport struct {
	ID               string         `json:"id"`
	State            string         `json:"state"`
	FailedAt         string         `json:"failed_at,omitempty"`
	Error            string         `json:"error,omitempty"`
	SourcePlaylistID string         `json:"source_playlist_id"`
	SourceName       string         `json:"source_name,omitempty"`
	DestPlaylistID   string         `json:"dest_playlist_id,omitempty"`
	DestName         string         `json:"dest_name,omitempty"`
	DestURL          string         `json:"dest_url,omitempty"`
	Total            int            `json:"total"`
	Matched          int            `json:"matched"`
	Added            int            `json:"added"`
	AuditPath        string         `json:"audit_path,omitempty"`
	AuditError       string         `json:"audit_error,omitempty"`
	Tracks           []trackOutcome `json:"tracks"`
}

type trackOutcome struct {
	Position int    `json:"position"`
	Status   string `json:"status"`
	Tier     string `json:"tier,omitempty"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	DestID   string `json:"dest_id,omitempty"`
}

func newTransferReport(result *tasks.TransferRunResult) transferReport {
	report := transferReport{
		ID:               result.ID,
		State:            result.State.String(),
		SourcePlaylistID: result.SourcePlaylistID,
		Total:            result.Total(),
		Matched:          result.Matched(),
		Added:            len(result.AddedTrackIDs),
		AuditPath:        result.AuditPath,
		Tracks:           make([]trackOutcome, 0, len(result.Outcomes)),
	}
	if result.Err != nil {
		report.FailedAt = result.FailedAt.String()
		report.Error = result.Err.Error()
	}
	if result.AuditErr != nil {
		report.AuditError = result.AuditErr.Error()
	}
	if src := result.SourcePlaylist; src != nil {
		report.SourceName = src.Name
	}
	if dst := result.DestPlaylist; dst != nil {
		report.DestPlaylistID, report.DestName, report.DestURL = dst.ID, dst.Name, dst.URL
	}
	for i, o := range result.Outcomes {
		t := trackOutcome{Position: i + 1, Status: o.Status(), Title: o.Source.Title, Artist: o.Source.Artist}
		if o.Found && o.Dest != nil {
			t.Tier, t.DestID = o.Tier.String(), o.Dest.ID
		}
		report.Tracks = append(report.Tracks, t)
	}
	return report
}

// TransferDiff compares two playlists and shows missing tracks.
func (r *Runner) TransferDiff(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "source catalog", "destination catalog", "source playlist id", "destination playlist id")
	if err != nil {
		return err
	}
	source, dest, err := r.catalogPair(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	engine := tasks.NewPlaylistEngine(source, dest, tasks.EngineOpts{Logger: r.logger})
	asJSON := cmd.Bool("json")

	progress := make(chan tasks.ProgressUpdate, 8)
	var done *sync.WaitGroup
	if !asJSON {
		done = r.printProgress(progress)
	}
	result, err := engine.Diff(ctx, progress, args[2], args[3])
	close(progress)
	if done != nil {
		done.Wait()
	}
	if err != nil {
		return err
	}

	if asJSON {
		return r.writeJSON(map[string]any{
			"source":          result.SourcePlaylist.Name,
			"destination":     result.DestPlaylist.Name,
			"matched":         result.MatchedCount(),
			"missing_in_dest": result.MissingInDest,
			"extra_in_dest":   result.ExtraInDest,
		}, true)
	}

	r.writePlain("\n%s Source: %s (%d tracks)\n", r.mark("✓", "*"), result.SourcePlaylist.Name, len(result.SourcePlaylist.Tracks))
	r.writePlain("%s Destination: %s (%d tracks)\n\n", r.mark("✓", "*"), result.DestPlaylist.Name, len(result.DestPlaylist.Tracks))

	r.writePlainHeader("Comparison Results")
	r.writePlain("Matched: %d tracks\n", result.MatchedCount())
	r.writePlain("Missing from destination: %d tracks\n", len(result.MissingInDest))
	r.writePlain("Extra in destination: %d tracks\n\n", len(result.ExtraInDest))

	for _, section := range []struct {
		title  string
		tracks []models.Track
	}{
		{"Missing from destination", result.MissingInDest},
		{"Extra in destination (not in source)", result.ExtraInDest},
	} {
		if len(section.tracks) == 0 {
			continue
		}
		r.writePlain("%s:\n", section.title)
		rows := make([][]string, len(section.tracks))
		for i, t := range section.tracks {
			rows[i] = []string{strconv.Itoa(i + 1), t.Artist, t.Title, t.Album}
		}
		r.writeTable([]string{"#", "Artist", "Title", "Album"}, rows, alignRight)
	}
	return nil
}
