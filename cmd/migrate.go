package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// MigrateTracks upgrades every stale track document.
func (r *Runner) MigrateTracks(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStack(ctx, stackOpts{Store: true})
	defer s.Close()
	if err != nil {
		return err
	}

	n, err := s.engine.MigrateTracks(ctx, s.tracks)
	if err != nil {
		return fmt.Errorf("failed to migrate tracks: %w", err)
	}
	r.writePlain("✓ Upgraded %d tracks\n", n)
	return nil
}

// MigrateUsers upgrades every stale user document.
func (r *Runner) MigrateUsers(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStack(ctx, stackOpts{Store: true})
	defer s.Close()
	if err != nil {
		return err
	}

	n, err := s.engine.MigrateUsers(ctx, s.users)
	if err != nil {
		return fmt.Errorf("failed to migrate users: %w", err)
	}
	r.writePlain("✓ Upgraded %d users\n", n)
	return nil
}
