package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ptx/internal/services"
	"github.com/desertthunder/ptx/internal/shared"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/oauth2"
)

// CatalogFactory builds an unauthenticated catalog client by canonical name.
type CatalogFactory func(ctx context.Context, name string) (services.Catalog, error)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	tty        bool
	catalogs   CatalogFactory
	openDB     func(shared.DatabaseConfig) (*sql.DB, error)
	now        func() time.Time
	saveMu     sync.Mutex
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Catalogs   CatalogFactory                               // Defaults to clients built from Config
	OpenDB     func(shared.DatabaseConfig) (*sql.DB, error) // Defaults to [shared.OpenMigrated]
	Now        func() time.Time
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.OpenDB == nil {
		opts.OpenDB = shared.OpenMigrated
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		tty:        isTerminal(opts.Output),
		catalogs:   opts.Catalogs,
		openDB:     opts.OpenDB,
		now:        opts.Now,
	}
	if r.catalogs == nil {
		r.catalogs = r.newCatalog
	}
	return r
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// catalog resolves name to a configured catalog client.
func (r *Runner) catalog(ctx context.Context, name string) (services.Catalog, error) {
	canonical, err := services.CanonicalName(name)
	if err != nil {
		return nil, err
	}
	return r.catalogs(ctx, canonical)
}

// newCatalog builds a catalog client from the loaded config. Every client shares the
// configured rate limit and timeout; OAuth clients persist refreshed tokens.
func (r *Runner) newCatalog(ctx context.Context, name string) (services.Catalog, error) {
	creds := r.config.Credentials
	client := services.NewRateLimitedClient(r.config.HTTP.RequestsPerSecond, r.config.HTTP.TimeoutDuration())

	switch name {
	case services.SpotifyName:
		svc, err := services.NewSpotifyService(creds.Spotify.Map())
		if err != nil {
			return nil, err
		}
		svc.SetHTTPClient(client)
		svc.SetToken(creds.Spotify.Token())
		svc.SetTokenRefreshCallback(r.persistToken(ctx, name))
		return svc, nil
	case services.TidalName:
		svc, err := services.NewTidalService(creds.Tidal.ClientID, creds.Tidal.ClientSecret, creds.Tidal.CountryCode)
		if err != nil {
			return nil, err
		}
		svc.SetHTTPClient(client)
		svc.SetToken(creds.Tidal.Token())
		svc.SetTokenRefreshCallback(r.persistToken(ctx, name))
		return svc, nil
	case services.YouTubeName:
		svc := services.NewYouTubeService(creds.YouTube.ProxyURL, creds.YouTube.AuthFile)
		svc.SetHTTPClient(client)
		return svc, nil
	case services.SubsonicName:
		svc, err := services.NewSubsonicService(creds.Subsonic.ServerURL, creds.Subsonic.Username, creds.Subsonic.Password)
		if err != nil {
			return nil, err
		}
		svc.SetHTTPClient(client)
		return svc, nil
	default:
		return nil, fmt.Errorf("%w: unknown catalog %q", shared.ErrInvalidArgument, name)
	}
}

// persistToken returns a refresh callback that stores the token for name and saves the config.
func (r *Runner) persistToken(ctx context.Context, name string) services.TokenRefreshFunc {
	return func(token *oauth2.Token) {
		if err := r.saveToken(ctx, name, token); err != nil {
			r.logger.Warn("failed to persist refreshed token", "catalog", name, "err", err)
			return
		}
		r.logger.Debug("persisted refreshed token", "catalog", name)
	}
}

func (r *Runner) saveToken(ctx context.Context, name string, token *oauth2.Token) error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	var target *shared.OAuthTokenConfig
	switch name {
	case services.SpotifyName:
		target = &r.config.Credentials.Spotify.OAuthTokenConfig
	case services.TidalName:
		target = &r.config.Credentials.Tidal.OAuthTokenConfig
	default:
		return fmt.Errorf("%w: %s does not use OAuth tokens", shared.ErrInvalidArgument, name)
	}
	if err := target.Update(token); err != nil {
		return err
	}
	if r.configPath == "" {
		return fmt.Errorf("%w: no config file to save %s token to", shared.ErrMissingConfig, name)
	}
	return shared.SaveConfig(ctx, r.configPath, r.config)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	return r.writePlain("\n"+format+"\n", args...)
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// mark returns the emoji prefix on a terminal and the plain fallback otherwise.
func (r *Runner) mark(emoji, plain string) string {
	if r.tty {
		return emoji
	}
	return plain
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func (r *Runner) writeTable(headers []string, rows [][]string, aligns ...columnAlignment) error {
	return r.writePlain("%s\n", renderTable(headers, rows, aligns))
}

// jsonOr writes data as JSON when asJSON is set, and otherwise calls plain.
func (r *Runner) jsonOr(asJSON bool, data any, plain func() error) error {
	if asJSON {
		return r.writeJSON(data, true)
	}
	return plain()
}
