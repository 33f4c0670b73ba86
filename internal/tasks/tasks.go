package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ptx/internal/formatter"
	"github.com/desertthunder/ptx/internal/matcher"
	"github.com/desertthunder/ptx/internal/models"
	"github.com/desertthunder/ptx/internal/services"
	"github.com/desertthunder/ptx/internal/shared"
)

// DefaultNameSuffix is appended to the source playlist name when no destination name is given.
const DefaultNameSuffix = " (transferred)"

const maxWorkers = 10

// Recorder persists finished transfer runs. Failed runs are recorded too.
type Recorder interface {
	Record(record *models.TransferRecord, outcomes []models.MatchOutcome) error
}

// EngineOpts configures a [PlaylistEngine].
type EngineOpts struct {
	Logger     *log.Logger // Defaults to a discard logger
	Recorder   Recorder    // Optional transfer history
	Workers    int         // Concurrent track searches; values below 2 run sequentially
	NameSuffix string      // Defaults to [DefaultNameSuffix]
}

// TransferRequest describes one transfer run.
type TransferRequest struct {
	SourcePlaylistID string
	DestinationName  string // Empty derives the name from the source playlist
	AuditPath        string // Empty skips the audit log
}

// TransferRunResult contains all data from a transfer run, including partial state on failure.
type TransferRunResult struct {
	ID               string
	State            State // StateDone or StateFailed once Run returns
	FailedAt         State // State that failed, when State is StateFailed
	Err              error
	SourcePlaylistID string
	SourcePlaylist   *models.Playlist
	DestPlaylist     *models.Playlist
	Outcomes         []models.MatchOutcome // One per source track, in source order
	AddedTrackIDs    []string              // Destination ids committed before any batch failure
	BatchesCommitted int
	AuditPath        string
	AuditErr         error // Non-fatal audit failure wrapping [shared.ErrAuditWrite]
	StartedAt        time.Time
	CompletedAt      time.Time
}

// Success reports whether the run reached [StateDone].
func (r *TransferRunResult) Success() bool {
	return r.State == StateDone
}

// Total is the number of tracks in the source playlist.
func (r *TransferRunResult) Total() int {
	if r.SourcePlaylist != nil {
		return len(r.SourcePlaylist.Tracks)
	}
	return len(r.Outcomes)
}

// Matched counts found outcomes.
func (r *TransferRunResult) Matched() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Found {
			n++
		}
	}
	return n
}

// MatchPercentage returns matched tracks as a share of the total.
func (r *TransferRunResult) MatchPercentage() float64 {
	if r.Total() == 0 {
		return 0
	}
	return float64(r.Matched()) / float64(r.Total()) * 100
}

// FoundIDs returns destination ids of found outcomes in source order.
func (r *TransferRunResult) FoundIDs() []string {
	ids := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Found && o.Dest != nil {
			ids = append(ids, o.Dest.ID)
		}
	}
	return ids
}

// Unmatched returns the source tracks that were not found, in source order.
func (r *TransferRunResult) Unmatched() []models.Track {
	var tracks []models.Track
	for _, o := range r.Outcomes {
		if !o.Found {
			tracks = append(tracks, o.Source)
		}
	}
	return tracks
}

// TransferSummary is the human-facing digest of a run.
type TransferSummary struct {
	Matched   int
	Total     int
	Unmatched []models.Track // At most the requested limit
	Remaining int            // Unmatched tracks beyond the limit
}

// Summary returns match counts and the first limit unmatched tracks.
func (r *TransferRunResult) Summary(limit int) TransferSummary {
	unmatched := r.Unmatched()
	s := TransferSummary{Matched: r.Matched(), Total: r.Total()}
	if limit < 0 {
		limit = 0
	}
	if len(unmatched) > limit {
		s.Remaining = len(unmatched) - limit
		unmatched = unmatched[:limit]
	}
	s.Unmatched = unmatched
	return s
}

func (s TransferSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tracks found: %d/%d", s.Matched, s.Total)
	if missing := s.Total - s.Matched; missing > 0 {
		fmt.Fprintf(&b, "\nTracks not found: %d", missing)
		for _, t := range s.Unmatched {
			fmt.Fprintf(&b, "\n  - %s - %s", t.Artist, t.Title)
		}
		if s.Remaining > 0 {
			fmt.Fprintf(&b, "\n  ... and %d more", s.Remaining)
		}
	}
	return b.String()
}

// PlaylistEngine transfers playlists from a source catalog to a destination catalog.
type PlaylistEngine struct {
	source   services.Catalog
	dest     services.Catalog
	matcher  *matcher.Matcher
	logger   *log.Logger
	recorder Recorder
	workers  int
	suffix   string
}

// NewPlaylistEngine creates a new PlaylistEngine bound to source and dest.
func NewPlaylistEngine(source, dest services.Catalog, opts EngineOpts) *PlaylistEngine {
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	workers := max(opts.Workers, 1)
	if workers > maxWorkers {
		workers = maxWorkers
	}
	suffix := opts.NameSuffix
	if suffix == "" {
		suffix = DefaultNameSuffix
	}

	e := &PlaylistEngine{
		source:   source,
		dest:     dest,
		logger:   logger,
		recorder: opts.Recorder,
		workers:  workers,
		suffix:   suffix,
	}
	if dest != nil {
		e.matcher = matcher.NewMatcher(dest, logger)
	}
	return e
}

// DestinationName returns name, or the source playlist name plus the configured suffix when name is blank.
func (e *PlaylistEngine) DestinationName(src *models.Playlist, name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return src.Name + e.suffix
}

// Run performs a full transfer.
//
// Authentication, fetch and create failures return before any later step runs. Per-track search
// failures become not-found outcomes. A batch-add failure is fatal, but the result still reports
// which tracks were committed. An audit failure only sets AuditErr. The returned result is non-nil
// whenever both catalogs are set, including on failure.
func (e *PlaylistEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, req TransferRequest) (*TransferRunResult, error) {
	if e.source == nil || e.dest == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	result := &TransferRunResult{
		ID:               shared.GenerateID(),
		State:            StateInit,
		SourcePlaylistID: req.SourcePlaylistID,
		AuditPath:        req.AuditPath,
		StartedAt:        time.Now(),
	}
	logger := shared.WithLogger(e.logger, "run", result.ID[:8])

	err := e.run(ctx, progress, req, result, logger)
	result.CompletedAt = time.Now()
	if err != nil {
		result.FailedAt = result.State
		result.State = StateFailed
		result.Err = err
		logger.Error("transfer failed", "state", result.FailedAt, "err", err)
		sendProgress(progress, failedUpdate(result.FailedAt, err))
	} else {
		result.State = StateDone
		logger.Info("transfer complete", "matched", result.Matched(), "total", result.Total(), "added", len(result.AddedTrackIDs))
		sendProgress(progress, doneUpdate(result))
	}

	e.record(result, logger)
	return result, err
}

func (e *PlaylistEngine) run(ctx context.Context, progress chan<- ProgressUpdate, req TransferRequest, result *TransferRunResult, logger *log.Logger) error {
	if strings.TrimSpace(req.SourcePlaylistID) == "" {
		return fmt.Errorf("%w: source playlist ID", shared.ErrMissingArgument)
	}

	result.State = StateAuthSource
	sendProgress(progress, authUpdate(StateAuthSource, e.source.Name()))
	if err := e.source.Authenticate(ctx); err != nil {
		return authError(e.source.Name(), err)
	}

	result.State = StateAuthDest
	sendProgress(progress, authUpdate(StateAuthDest, e.dest.Name()))
	if err := e.dest.Authenticate(ctx); err != nil {
		return authError(e.dest.Name(), err)
	}

	result.State = StateFetchSource
	sendProgress(progress, fetchSourceUpdate(1, 1, e.source.Name()))
	src, err := e.source.FetchPlaylist(ctx, req.SourcePlaylistID)
	if err != nil {
		return fetchError(e.source.Name(), req.SourcePlaylistID, err)
	}
	if src == nil {
		return fmt.Errorf("%w: %s: %s", shared.ErrPlaylistNotFound, e.source.Name(), req.SourcePlaylistID)
	}
	result.SourcePlaylist = src
	logger.Info("fetched source playlist", "name", src.Name, "tracks", len(src.Tracks))
	sendProgress(progress, foundPlaylistUpdate(src))

	result.State = StateCreateDest
	name := e.DestinationName(src, req.DestinationName)
	if src.Public && !e.dest.Capabilities().SupportsVisibility {
		logger.Warn("destination does not support visibility, playlist may be private", "service", e.dest.Name())
	}
	sendProgress(progress, createDestinationUpdate(name, e.dest.Name()))
	dst, err := e.dest.CreatePlaylist(ctx, name, src.Description, src.Public)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", shared.ErrPlaylistCreate, e.dest.Name(), err)
	}
	if dst == nil || dst.ID == "" {
		return fmt.Errorf("%w: %s returned no playlist id", shared.ErrPlaylistCreate, e.dest.Name())
	}
	result.DestPlaylist = dst
	sendProgress(progress, createPlaylistUpdate(dst))

	result.State = StateResolve
	result.Outcomes = e.resolve(ctx, progress, src.Tracks)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("track resolution interrupted: %w", err)
	}

	result.State = StateAddTracks
	if err := e.addTracks(ctx, progress, dst.ID, result); err != nil {
		return err
	}

	if req.AuditPath != "" {
		result.State = StateWriteAudit
		sendProgress(progress, auditUpdate(req.AuditPath))
		if err := formatter.WriteAuditLog(req.AuditPath, src, dst, result.Outcomes); err != nil {
			result.AuditErr = fmt.Errorf("%w: %w", shared.ErrAuditWrite, err)
			logger.Warn("failed to write audit log", "path", req.AuditPath, "err", err)
		}
	}
	return nil
}

// resolve matches every track and returns outcomes indexed by source position.
func (e *PlaylistEngine) resolve(ctx context.Context, progress chan<- ProgressUpdate, tracks []models.Track) []models.MatchOutcome {
	total := len(tracks)
	outcomes := make([]models.MatchOutcome, total)
	workers := min(e.workers, total)

	if workers <= 1 {
		for i, track := range tracks {
			if err := ctx.Err(); err != nil {
				outcomes[i] = models.NotFound(track, err)
				continue
			}
			outcomes[i] = e.resolveOne(ctx, track)
			sendProgress(progress, resolveTrackUpdate(i+1, total, outcomes[i]))
		}
		return outcomes
	}

	jobs := make(chan int)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = e.resolveOne(ctx, tracks[i])

				mu.Lock()
				done++
				step := done
				mu.Unlock()
				sendProgress(progress, resolveTrackUpdate(step, total, outcomes[i]))
			}
		}()
	}

	for i := range tracks {
		select {
		case <-ctx.Done():
			outcomes[i] = models.NotFound(tracks[i], ctx.Err())
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	return outcomes
}

func (e *PlaylistEngine) resolveOne(ctx context.Context, track models.Track) models.MatchOutcome {
	outcome, err := e.matcher.SearchTrack(ctx, track)
	if err != nil {
		e.logger.Debug("track search degraded to not found", "title", track.Title, "err", err)
	}
	return outcome
}

// addTracks submits found ids in source order, one destination batch at a time.
func (e *PlaylistEngine) addTracks(ctx context.Context, progress chan<- ProgressUpdate, playlistID string, result *TransferRunResult) error {
	ids := result.FoundIDs()
	if len(ids) == 0 {
		e.logger.Info("no matched tracks to add")
		return nil
	}

	batches := services.Batches(ids, e.dest.Capabilities().BatchSize)
	for i, batch := range batches {
		sendProgress(progress, addBatchUpdate(i+1, len(batches), len(batch)))
		if err := e.dest.AddTracks(ctx, playlistID, batch); err != nil {
			return fmt.Errorf("%w: batch %d/%d after %d tracks added: %w",
				shared.ErrBatchAdd, i+1, len(batches), len(result.AddedTrackIDs), err)
		}
		result.AddedTrackIDs = append(result.AddedTrackIDs, batch...)
		result.BatchesCommitted++
	}
	return nil
}

func (e *PlaylistEngine) record(result *TransferRunResult, logger *log.Logger) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(result.Record(e.source.Name(), e.dest.Name()), result.Outcomes); err != nil {
		logger.Warn("failed to record transfer history", "err", err)
	}
}

// Record converts the run into a persistable [models.TransferRecord].
func (r *TransferRunResult) Record(sourceService, destService string) *models.TransferRecord {
	opts := models.TransferRecordOpts{
		ID:               r.ID,
		SourceService:    sourceService,
		SourcePlaylistID: r.SourcePlaylistID,
		DestService:      destService,
		Status:           models.TransferCompleted,
		TracksTotal:      r.Total(),
		TracksMatched:    r.Matched(),
		TracksAdded:      len(r.AddedTrackIDs),
		AuditPath:        r.AuditPath,
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
	}
	if r.SourcePlaylist != nil {
		if r.SourcePlaylist.ID != "" {
			opts.SourcePlaylistID = r.SourcePlaylist.ID
		}
		opts.SourcePlaylistName = r.SourcePlaylist.Name
	}
	if r.DestPlaylist != nil {
		opts.DestPlaylistID = r.DestPlaylist.ID
		opts.DestPlaylistName = r.DestPlaylist.Name
		opts.DestPlaylistURL = r.DestPlaylist.URL
	}
	if r.State == StateFailed {
		opts.Status = models.TransferFailed
		opts.FailedState = r.FailedAt.String()
		if r.Err != nil {
			opts.ErrorMessage = r.Err.Error()
		}
	}
	if r.AuditErr != nil {
		opts.AuditPath = ""
	}
	return models.NewTransferRecord(opts)
}

func authError(service string, err error) error {
	if errors.Is(err, shared.ErrAuthFailed) {
		return fmt.Errorf("%s: %w", service, err)
	}
	return fmt.Errorf("%w: %s: %w", shared.ErrAuthFailed, service, err)
}

func fetchError(service, id string, err error) error {
	if errors.Is(err, shared.ErrPlaylistNotFound) || errors.Is(err, shared.ErrAuthFailed) {
		return fmt.Errorf("%s: fetch playlist %s: %w", service, id, err)
	}
	return fmt.Errorf("%w: %s: %s: %w", shared.ErrPlaylistNotFound, service, id, err)
}
