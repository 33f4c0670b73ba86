package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/ptx/internal/services"
	"github.com/desertthunder/ptx/internal/shared"
	"github.com/desertthunder/ptx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// coverImager is implemented by catalogs that expose playlist artwork.
type coverImager interface {
	CoverImage(ctx context.Context, playlistID string) (string, error)
}

// authenticated resolves and authenticates a catalog.
func (r *Runner) authenticated(ctx context.Context, name string) (services.Catalog, error) {
	catalog, err := r.catalog(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := catalog.Authenticate(ctx); err != nil {
		return nil, err
	}
	return catalog, nil
}

// PlaylistList lists the user's playlists on a catalog.
func (r *Runner) PlaylistList(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "catalog")
	if err != nil {
		return err
	}
	catalog, err := r.authenticated(ctx, args[0])
	if err != nil {
		return err
	}
	lister, ok := catalog.(services.PlaylistLister)
	if !ok {
		return fmt.Errorf("%w: %s cannot list playlists", shared.ErrNotImplemented, catalog.Name())
	}

	r.logger.Info("listing playlists", "catalog", catalog.Name())
	playlists, err := lister.Playlists(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	if limit := cmd.Int("limit"); limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	return r.jsonOr(cmd.Bool("json"), playlists, func() error {
		r.writePlain("Found %d playlists on %s:\n", len(playlists), catalog.Name())
		rows := make([][]string, len(playlists))
		for i, p := range playlists {
			rows[i] = []string{p.ID, p.Name, strconv.Itoa(p.TrackCount), shared.VisibilityString(p.Public)}
		}
		return r.writeTable([]string{"ID", "Name", "Tracks", "Visibility"}, rows, alignLeft, alignLeft, alignRight)
	})
}

// PlaylistExport writes playlists to files in the requested format.
func (r *Runner) PlaylistExport(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, "catalog", "playlist id")
	if err != nil {
		return err
	}
	catalog, err := r.authenticated(ctx, args[0])
	if err != nil {
		return err
	}
	ids := cmd.Args().Slice()[1:]

	opts := tasks.BulkExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate-limit"),
		Client:     services.NewRateLimitedClient(r.config.HTTP.RequestsPerSecond, r.config.HTTP.TimeoutDuration()),
		Logger:     r.logger,
	}
	if imager, ok := catalog.(coverImager); ok {
		opts.GetCoverImage = imager.CoverImage
	}

	progress := make(chan tasks.ProgressUpdate, len(ids)*2+1)
	done := r.printProgress(progress)
	result, err := tasks.BulkExport(ctx, progress, catalog, ids, opts)
	close(progress)
	done.Wait()
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete")
	r.writePlain("Exported:  %d/%d playlists\n", result.SuccessfulExports, result.TotalPlaylists)
	r.writePlain("Directory: %s\n", result.OutputDirectory)
	if result.ManifestPath != "" {
		r.writePlain("Manifest:  %s\n", result.ManifestPath)
	}
	if result.FailedExports > 0 {
		r.writePlain("\nFailed:\n")
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  - %s: %s\n", res.PlaylistID, res.ErrorMessage)
			}
		}
		return fmt.Errorf("%w: %d of %d playlists failed to export", shared.ErrAPIRequest, result.FailedExports, result.TotalPlaylists)
	}
	return nil
}
