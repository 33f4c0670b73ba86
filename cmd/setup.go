package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/desertthunder/ptx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration file.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if path == "" {
		dir, err := shared.UserConfigDir()
		if err != nil {
			return fmt.Errorf("failed to resolve config directory: %w", err)
		}
		path = filepath.Join(dir, shared.ConfigFileName)
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)

	r.writePlain("%s Config written to %s\n", r.mark("✓", "OK"), path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Add catalog credentials to %s (or export them, e.g. SPOTIFY_CLIENT_ID)\n", path)
	r.writePlain("2. Run 'ptx auth spotify' or 'ptx auth tidal'\n")
	r.writePlain("3. Run 'ptx setup database' to enable transfer history\n")
	return nil
}

// SetupDatabase initializes the history database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Database
	r.logger.Info("initializing database", "path", cfg.Path)

	db, err := shared.NewDatabase(cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer closeDB(r, db)

	shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)

	pending, err := shared.PendingMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to check migrations: %w", err)
	}
	r.logger.Info("running database migrations", "pending", len(pending))

	applied, err := shared.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	version, err := shared.CurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", cfg.Path)
	return r.writePlain("%s Database %s ready (schema version %d, %d migrations applied)\n", r.mark("✓", "OK"), cfg.Path, version, applied)
}
