package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/goose/internal/bot"
	"github.com/desertthunder/goose/internal/player"
	"github.com/desertthunder/goose/internal/server"
	"github.com/desertthunder/goose/internal/shared"
	"github.com/desertthunder/goose/internal/workspace"
	"github.com/mileusna/crontab"
	"github.com/urfave/cli/v3"
)

const janitorInterval = time.Minute

// Bot runs the Discord bot until interrupted, with the web service and the maintenance
// jobs alongside it.
func (r *Runner) Bot(ctx context.Context, cmd *cli.Command) error {
	if r.config.Discord.Token == "" {
		return fmt.Errorf("%w: set discord.token or DISCORD_TOKEN", shared.ErrMissingConfig)
	}

	s, err := r.openStack(ctx, stackOpts{Pool: true})
	defer s.Close()
	if err != nil {
		return err
	}

	players := player.NewPlayers(s.tracks, r.logger)
	defer players.DecommissionAll()
	workspaces := workspace.NewWorkspaces(s.tracks, r.logger)

	ctab, err := r.schedule(ctx, s)
	if err != nil {
		return err
	}
	defer ctab.Shutdown()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	run := func(f func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f(ctx); err != nil {
				errs <- err
				cancel()
			}
		}()
	}

	run(func(ctx context.Context) error {
		workspaces.Janitor(ctx, janitorInterval, r.config.Maintenance.IdleWorkspaces(), r.logger)
		return nil
	})
	if !cmd.Bool("no-server") {
		srv := server.New(r.config.Server, server.NewRouter(s.routes(), r.logger), r.logger)
		run(srv.Run)
	}

	b := bot.New(r.config.Discord, s.actions(r, players, workspaces), r.logger)
	err = b.Run(ctx)
	cancel()
	wg.Wait()
	close(errs)

	for e := range errs {
		err = errors.Join(err, e)
	}
	return err
}

// Serve runs the web service alone, for deployments that keep it apart from the bot.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStack(ctx, stackOpts{Store: true})
	defer s.Close()
	if err != nil {
		return err
	}

	ctab, err := r.schedule(ctx, s)
	if err != nil {
		return err
	}
	defer ctab.Shutdown()

	srv := server.New(r.config.Server, server.NewRouter(s.routes(), r.logger), r.logger)
	return srv.Run(ctx)
}

// schedule registers the configured maintenance jobs. Empty schedules are skipped.
func (r *Runner) schedule(ctx context.Context, s *stack) (*crontab.Crontab, error) {
	ctab := crontab.New()
	logger := shared.WithLogger(r.logger, "module", "maintenance")
	m := r.config.Maintenance

	if m.PruneLinks != "" {
		err := ctab.AddJob(m.PruneLinks, func() {
			n, err := s.links.Prune(ctx)
			if err != nil {
				logger.Warn("failed to prune link states", "error", err)
				return
			}
			if n > 0 {
				logger.Debug("pruned link states", "count", n)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("%w: maintenance.prune_links: %v", shared.ErrInvalidConfig, err)
		}
	}

	if m.Migrate != "" && s.engine != nil {
		err := ctab.AddJob(m.Migrate, func() {
			tracks, err := s.engine.MigrateTracks(ctx, s.tracks)
			if err != nil {
				logger.Warn("track migration failed", "error", err)
			}
			users, err := s.engine.MigrateUsers(ctx, s.users)
			if err != nil {
				logger.Warn("user migration failed", "error", err)
			}
			logger.Info("migrated stale documents", "tracks", tracks, "users", users)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: maintenance.migrate: %v", shared.ErrInvalidConfig, err)
		}
	}
	return ctab, nil
}
