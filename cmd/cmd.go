// submodule cmd contains command definitions
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/desertthunder/ptx/internal/shared"
	"github.com/urfave/cli/v3"
)

// app builds the root command.
func (r *Runner) app() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file (default: ./config.toml, then ~/.config/ptx/config.toml)",
			Sources: cli.EnvVars("PTX_CONFIG"),
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "Path to a .env file (default: ./.env, then ~/.config/ptx/.env)",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level: debug, info, warn, error",
			Value:   "info",
			Sources: cli.EnvVars("PTX_LOG_LEVEL"),
		},
	}
	for _, f := range credentialFlags {
		flags = append(flags, &cli.StringFlag{Name: f.name, Usage: f.usage, Sources: cli.EnvVars(f.env)})
	}

	return &cli.Command{
		Name:     "ptx",
		Usage:    "Transfer playlists between Spotify, TIDAL, YouTube Music and Subsonic",
		Version:  "0.1.0",
		Flags:    flags,
		Before:   r.before,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistCommand, transferCommand, historyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// credentialFlag is a global flag that overrides one credential from the config file.
type credentialFlag struct {
	name  string
	env   string
	usage string
	apply func(c *shared.CredentialsConfig, v string)
}

var credentialFlags = []credentialFlag{
	{"spotify-client-id", "SPOTIFY_CLIENT_ID", "Spotify client ID", func(c *shared.CredentialsConfig, v string) { c.Spotify.ClientID = v }},
	{"spotify-client-secret", "SPOTIFY_CLIENT_SECRET", "Spotify client secret", func(c *shared.CredentialsConfig, v string) { c.Spotify.ClientSecret = v }},
	{"spotify-redirect-uri", "SPOTIFY_REDIRECT_URI", "Spotify OAuth redirect URI", func(c *shared.CredentialsConfig, v string) { c.Spotify.RedirectURI = v }},
	{"tidal-client-id", "TIDAL_CLIENT_ID", "TIDAL client ID", func(c *shared.CredentialsConfig, v string) { c.Tidal.ClientID = v }},
	{"tidal-client-secret", "TIDAL_CLIENT_SECRET", "TIDAL client secret", func(c *shared.CredentialsConfig, v string) { c.Tidal.ClientSecret = v }},
	{"youtube-proxy-url", "YTMUSIC_PROXY_URL", "YouTube Music proxy URL", func(c *shared.CredentialsConfig, v string) { c.YouTube.ProxyURL = v }},
	{"youtube-auth-file", "YTMUSIC_AUTH_FILE", "ytmusicapi auth file forwarded to the proxy", func(c *shared.CredentialsConfig, v string) { c.YouTube.AuthFile = v }},
	{"subsonic-url", "SUBSONIC_URL", "Subsonic server URL", func(c *shared.CredentialsConfig, v string) { c.Subsonic.ServerURL = v }},
	{"subsonic-user", "SUBSONIC_USER", "Subsonic username", func(c *shared.CredentialsConfig, v string) { c.Subsonic.Username = v }},
	{"subsonic-password", "SUBSONIC_PASSWORD", "Subsonic password", func(c *shared.CredentialsConfig, v string) { c.Subsonic.Password = v }},
}

// before loads the env file and config, then applies credential overrides with
// flag > environment > config priority.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := shared.SetLogLevel(r.logger, cmd.String("log-level")); err != nil {
		return ctx, err
	}

	envPath, err := shared.LoadEnvFile(cmd.String("env-file"))
	if err != nil {
		return ctx, fmt.Errorf("%w: env file: %v", shared.ErrInvalidConfig, err)
	}
	if envPath != "" {
		r.logger.Debug("loaded env file", "path", envPath)
	}

	explicit := cmd.String("config")
	path, err := shared.FindConfig(explicit)
	switch {
	case err == nil:
		config, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, err
		}
		r.config, r.configPath = config, path
		r.logger.Debug("loaded config", "path", path)
	case errors.Is(err, shared.ErrMissingConfig) && explicit == "":
		r.logger.Debug("no config file found, using defaults")
	default:
		return ctx, err
	}

	for _, f := range credentialFlags {
		if v, ok := credentialValue(cmd, f); ok {
			f.apply(&r.config.Credentials, v)
		}
	}
	return ctx, nil
}

// credentialValue returns the flag value, or the environment value when the flag is unset.
// Values from --env-file are loaded after flag parsing, so the environment is read again here.
func credentialValue(cmd *cli.Command, f credentialFlag) (string, bool) {
	if cmd.IsSet(f.name) {
		return cmd.String(f.name), true
	}
	if v := os.Getenv(f.env); v != "" {
		return v, true
	}
	return "", false
}

// requireArgs returns the first len(names) positional arguments, failing on the first missing one.
func requireArgs(cmd *cli.Command, names ...string) ([]string, error) {
	args := cmd.Args()
	values := make([]string, len(names))
	for i, name := range names {
		if args.Len() <= i || args.Get(i) == "" {
			return nil, fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
		}
		values[i] = args.Get(i)
	}
	return values, nil
}

func jsonFlag() cli.Flag { return &cli.BoolFlag{Name: "json", Usage: "Output JSON"} }

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write the example configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Config path (default: ~/.config/ptx/config.toml)",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the history database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles interactive authentication flows.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage catalog authentication",
		Commands: []*cli.Command{
			{
				Name:  "spotify",
				Usage: "Authorize with Spotify through the browser (OAuth2 authorization code)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "no-browser", Usage: "Print the authorization URL instead of opening a browser"},
					&cli.DurationFlag{Name: "timeout", Usage: "How long to wait for the callback", Value: defaultAuthTimeout},
				},
				Action: r.AuthSpotify,
			},
			{
				Name:   "tidal",
				Usage:  "Authorize with TIDAL using a device code",
				Action: r.AuthTidal,
			},
			{
				Name:   "status",
				Usage:  "Authenticate every configured catalog and report the result",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.AuthStatus,
			},
		},
	}
}

// playlistCommand handles read-only playlist operations.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Playlist operations",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List your playlists on a catalog",
				ArgsUsage: "<catalog>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of playlists to show"},
					jsonFlag(),
				},
				Action: r.PlaylistList,
			},
			{
				Name:      "export",
				Usage:     "Export playlists to files",
				ArgsUsage: "<catalog> <playlist-id>...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "json, csv, markdown or txt", Value: "json"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory (default: {catalog}_export_{timestamp})"},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent writers", Value: 5},
					&cli.FloatFlag{Name: "rate-limit", Usage: "Playlist fetches per second", Value: 5},
				},
				Action: r.PlaylistExport,
			},
		},
	}
}

// transferCommand handles playlist transfer operations
func transferCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "transfer",
		Usage: "Transfer playlists between catalogs",
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Copy a playlist from one catalog to another",
				ArgsUsage: "<source> <destination> <playlist-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "Destination playlist name; supports {date}, {datetime}, {timestamp}, {playlist_id}",
					},
					&cli.StringFlag{
						Name:  "log-file",
						Usage: "Write a per-track audit CSV to this path; supports the same placeholders (default [transfer].log_file, none when empty)",
					},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent track searches (default from config)"},
					&cli.BoolFlag{Name: "no-audit", Usage: "Skip writing the audit CSV"},
					&cli.BoolFlag{Name: "no-history", Usage: "Do not record the run in the history database"},
					jsonFlag(),
				},
				Action: r.TransferRun,
			},
			{
				Name:      "diff",
				Usage:     "Compare two playlists and show missing tracks",
				ArgsUsage: "<source> <destination> <source-playlist-id> <destination-playlist-id>",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.TransferDiff,
			},
		},
	}
}

// historyCommand reads the transfer history database.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show past transfers",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List recent transfers",
				Flags:  []cli.Flag{&cli.IntFlag{Name: "limit", Usage: "Maximum number of transfers", Value: 20}, jsonFlag()},
				Action: r.HistoryList,
			},
			{
				Name:      "show",
				Usage:     "Show one transfer with its tracks",
				ArgsUsage: "<transfer-id>",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.HistoryShow,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive playlist transfer.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for playlist transfer",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Usage: "Source catalog", Value: "spotify"},
			&cli.StringFlag{Name: "dest", Aliases: []string{"d"}, Usage: "Destination catalog", Required: true},
			&cli.StringFlag{Name: "log", Usage: "Log file while the TUI is running", Value: "./tmp/ptx-tui.log"},
		},
		Action: r.TUI,
	}
}
