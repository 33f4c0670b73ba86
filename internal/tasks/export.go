package tasks

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ptx/internal/formatter"
	"github.com/desertthunder/ptx/internal/models"
	"github.com/desertthunder/ptx/internal/services"
	"github.com/desertthunder/ptx/internal/shared"
	"golang.org/x/time/rate"
)

// BulkExportOpts contains configuration for bulk playlist exports.
type BulkExportOpts struct {
	Format        string                                               // Export format: json, csv, markdown, txt
	OutputDir     string                                               // Base output directory (default: {catalog}_export_{epoch})
	NumWorkers    int                                                  // Concurrent workers (default: 5, max: 10)
	RateLimit     float64                                              // Playlist fetches per second (default: 5)
	GetCoverImage func(ctx context.Context, id string) (string, error) // Optional cover art URL lookup for markdown
	Client        *http.Client                                         // Cover downloads; defaults to [http.DefaultClient]
	Logger        *log.Logger
}

// PlaylistExportJob is one fetched playlist waiting to be written.
type PlaylistExportJob struct {
	PlaylistID string
	Playlist   *models.Playlist
}

// PlaylistExportResult reports the files written for one playlist.
type PlaylistExportResult struct {
	PlaylistID   string   `json:"playlist_id"`
	PlaylistName string   `json:"playlist_name"`
	Success      bool     `json:"success"`
	Files        []string `json:"files,omitempty"`
	Error        error    `json:"-"`
	ErrorMessage string   `json:"error,omitempty"`
}

// BulkExportResult summarizes a bulk export and doubles as its manifest.
type BulkExportResult struct {
	Service           string                 `json:"service"`
	Format            string                 `json:"format"`
	ExportedAt        time.Time              `json:"exported_at"`
	TotalPlaylists    int                    `json:"total_playlists"`
	SuccessfulExports int                    `json:"successful_exports"`
	FailedExports     int                    `json:"failed_exports"`
	OutputDirectory   string                 `json:"output_directory"`
	ManifestPath      string                 `json:"-"`
	Results           []PlaylistExportResult `json:"results"`
}

// BulkExport exports multiple playlists from catalog concurrently with rate limiting and progress tracking.
//
// Playlists are fetched sequentially under the limiter and written by a worker pool.
// Partial failures are reported per playlist; a manifest summarizing the run is written last.
func BulkExport(ctx context.Context, prog chan<- ProgressUpdate, catalog services.Catalog, ids []string, opts BulkExportOpts) (*BulkExportResult, error) {
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	format, err := formatter.ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("%s_export_%d", catalog.Name(), time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > maxWorkers {
		opts.NumWorkers = maxWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		Service:         catalog.Name(),
		Format:          string(format),
		ExportedAt:      time.Now().UTC(),
		TotalPlaylists:  len(ids),
		OutputDirectory: opts.OutputDir,
		Results:         make([]PlaylistExportResult, 0, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan PlaylistExportJob, len(ids))
	results := make(chan PlaylistExportResult, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go exportWorker(ctx, &wg, jobs, results, format, opts)
	}

	go func() {
		defer close(jobs)
		sendProgress(prog, fetchSourceUpdate(1, len(ids), catalog.Name()))
		for i, playlistID := range ids {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			pl, err := catalog.FetchPlaylist(ctx, playlistID)
			if err != nil {
				results <- failedExport(playlistID, fmt.Sprintf("Unknown (%s)", playlistID), fmt.Errorf("failed to fetch playlist: %w", err))
				continue
			}

			jobs <- PlaylistExportJob{PlaylistID: playlistID, Playlist: pl}
			sendProgress(prog, exportingPlaylistUpdate(i+1, len(ids), pl.Name))
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			sendProgress(prog, exportCompletedUpdate(completed, len(ids), res.PlaylistName, len(res.Files)))
		} else {
			result.FailedExports++
			sendProgress(prog, exportFailedUpdate(completed, len(ids), res.PlaylistName, res.Error))
		}
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// exportWorker is a worker goroutine that exports playlists from the jobs channel.
func exportWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan PlaylistExportJob, results chan<- PlaylistExportResult, format formatter.Format, opts BulkExportOpts) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			results <- failedExport(job.PlaylistID, job.Playlist.Name, ctx.Err())
			continue
		default:
		}

		results <- exportSinglePlaylist(ctx, job, format, opts)
	}
}

// exportSinglePlaylist writes one playlist in the requested format.
func exportSinglePlaylist(ctx context.Context, j PlaylistExportJob, format formatter.Format, opts BulkExportOpts) PlaylistExportResult {
	exportOpts := formatter.ExportOpts{Client: opts.Client, Logger: opts.Logger}
	if format == formatter.FormatMarkdown && opts.GetCoverImage != nil {
		if url, err := opts.GetCoverImage(ctx, j.PlaylistID); err == nil {
			exportOpts.CoverURL = url
		} else {
			opts.Logger.Debug("no cover image", "playlist", j.PlaylistID, "err", err)
		}
	}

	base := filepath.Join(opts.OutputDir, formatter.SafeFilename(j.PlaylistID))
	files, err := formatter.Export(ctx, format, j.Playlist, base, exportOpts)
	if err != nil {
		return failedExport(j.PlaylistID, j.Playlist.Name, fmt.Errorf("%s export failed: %w", format, err))
	}
	return PlaylistExportResult{PlaylistID: j.PlaylistID, PlaylistName: j.Playlist.Name, Success: true, Files: files}
}

func failedExport(id, name string, err error) PlaylistExportResult {
	return PlaylistExportResult{
		PlaylistID:   id,
		PlaylistName: name,
		Error:        err,
		ErrorMessage: err.Error(),
	}
}
