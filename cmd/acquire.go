package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/goose/internal/shared"
	"github.com/urfave/cli/v3"
)

// Acquire resolves a query the way /play does and prints what was stored.
func (r *Runner) Acquire(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	s, err := r.openStack(ctx, stackOpts{Pool: true})
	defer s.Close()
	if err != nil {
		return err
	}

	res := s.pool.SubmitResult(ctx, query)
	if res.Err != nil {
		return fmt.Errorf("failed to acquire %q: %w", query, res.Err)
	}
	r.logger.Debug("acquired", "correlation", res.CorrelationID, "tracks", len(res.Tracks))

	if cmd.Bool("json") {
		return r.writeJSON(res.Tracks, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%d tracks for %q", len(res.Tracks), query))
	r.writeTracks(res.Tracks)
	return nil
}
