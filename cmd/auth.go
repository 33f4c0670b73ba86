package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ptx/internal/server"
	"github.com/desertthunder/ptx/internal/services"
	"github.com/desertthunder/ptx/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const defaultAuthTimeout = 2 * time.Minute

// AuthSpotify performs the OAuth2 authorization code flow for Spotify.
//
// Starts the local callback server, opens the browser for user authorization, and saves the exchanged token.
func (r *Runner) AuthSpotify(ctx context.Context, cmd *cli.Command) error {
	if r.configPath == "" {
		return fmt.Errorf("%w: run 'ptx setup config' first so tokens can be saved", shared.ErrMissingConfig)
	}

	catalog, err := r.catalog(ctx, services.SpotifyName)
	if err != nil {
		return err
	}
	spotify, ok := catalog.(*services.SpotifyService)
	if !ok {
		return fmt.Errorf("%w: spotify catalog does not support authorization", shared.ErrInvalidArgument)
	}

	redirect := spotify.Config().RedirectURL
	state := shared.GenerateID()
	handler := server.NewOAuthHandler(spotify, state, server.CallbackPath(redirect))
	authURL := spotify.GetAuthURL(state)
	noBrowser := cmd.Bool("no-browser")

	token, err := server.AwaitCallback(ctx, handler, server.AwaitCallbackOpts{
		Addr:    r.config.Server.Addr(),
		Timeout: cmd.Duration("timeout"),
		Logger:  r.logger,
		Ready: func(addr string) {
			r.writePlain("Waiting for authorization on %s\n", redirect)
			if !noBrowser {
				if err := shared.OpenBrowser(authURL); err == nil {
					r.writePlain("A browser window has been opened. If it did not, visit:\n\n  %s\n\n", authURL)
					return
				}
			}
			r.writePlain("Open this URL to authorize ptx:\n\n  %s\n\n", authURL)
		},
	})
	if err != nil {
		return err
	}

	if err := r.saveToken(ctx, services.SpotifyName, token); err != nil {
		return fmt.Errorf("failed to save spotify token: %w", err)
	}

	r.writePlainln("%s Authorization successful", r.mark("✓", "OK"))
	r.writePlain("Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: ptx playlist list spotify\n")
	return nil
}

// AuthTidal performs the OAuth2 device authorization flow for TIDAL.
func (r *Runner) AuthTidal(ctx context.Context, cmd *cli.Command) error {
	if r.configPath == "" {
		return fmt.Errorf("%w: run 'ptx setup config' first so tokens can be saved", shared.ErrMissingConfig)
	}

	catalog, err := r.catalog(ctx, services.TidalName)
	if err != nil {
		return err
	}
	tidal, ok := catalog.(*services.TidalService)
	if !ok {
		return fmt.Errorf("%w: tidal catalog does not support device login", shared.ErrInvalidArgument)
	}

	token, err := tidal.DeviceLogin(ctx, func(auth *oauth2.DeviceAuthResponse) {
		uri := auth.VerificationURIComplete
		if uri == "" {
			uri = auth.VerificationURI
		}
		r.writePlain("Visit %s and enter code %s\n", uri, auth.UserCode)
		if err := shared.OpenBrowser(uri); err != nil {
			r.logger.Debug("could not open browser", "err", err)
		}
		r.writePlain("Waiting for approval...\n")
	})
	if err != nil {
		return err
	}

	if err := r.saveToken(ctx, services.TidalName, token); err != nil {
		return fmt.Errorf("failed to save tidal token: %w", err)
	}

	r.writePlainln("%s Authorization successful", r.mark("✓", "OK"))
	r.writePlain("Tokens saved to %s\n", r.configPath)
	return nil
}

// authStatus is the outcome of authenticating one catalog.
type authStatus struct {
	Catalog       string `json:"catalog"`
	Configured    bool   `json:"configured"`
	Authenticated bool   `json:"authenticated"`
	Error         string `json:"error,omitempty"`
}

// AuthStatus authenticates every configured catalog and reports the result.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	statuses := make([]authStatus, 0, len(services.CatalogNames()))
	for _, name := range services.CatalogNames() {
		status := authStatus{Catalog: name}

		catalog, err := r.catalog(ctx, name)
		if err != nil {
			if !errors.Is(err, shared.ErrMissingCredentials) {
				status.Error = err.Error()
			}
			statuses = append(statuses, status)
			continue
		}
		status.Configured = true

		if err := catalog.Authenticate(ctx); err != nil {
			r.logger.Debug("authentication failed", "catalog", name, "err", err)
			status.Configured = !errors.Is(err, shared.ErrMissingCredentials)
			status.Error = err.Error()
		} else {
			status.Authenticated = true
		}
		statuses = append(statuses, status)
	}

	return r.jsonOr(cmd.Bool("json"), statuses, func() error {
		rows := make([][]string, 0, len(statuses))
		for _, s := range statuses {
			state := "not configured"
			switch {
			case s.Authenticated:
				state = r.mark("✓ authenticated", "authenticated")
			case s.Configured:
				state = r.mark("✗ failed", "failed")
			}
			rows = append(rows, []string{s.Catalog, state, s.Error})
		}
		return r.writeTable([]string{"Catalog", "Status", "Detail"}, rows)
	})
}
