package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/goose/internal/formatter"
	"github.com/desertthunder/goose/internal/shared"
	"github.com/urfave/cli/v3"
)

// PlaylistList prints the names of saved playlists.
func (r *Runner) PlaylistList(ctx context.Context, cmd *cli.Command) error {
	tracks, s, err := r.library(ctx)
	defer s.Close()
	if err != nil {
		return err
	}

	names, err := tracks.ListPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("failed to list playlists: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(names, cmd.Bool("pretty"))
	}

	if len(names) == 0 {
		r.writePlain("No saved playlists.\n")
		return nil
	}
	r.writePlainHeader(fmt.Sprintf("%d saved playlists", len(names)))
	for _, name := range names {
		r.writePlain("  %s\n", name)
	}
	return nil
}

// PlaylistShow prints the tracks of one saved playlist.
func (r *Runner) PlaylistShow(ctx context.Context, cmd *cli.Command) error {
	export, err := r.loadExport(ctx, cmd.StringArg("name"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(export.Tracks, cmd.Bool("pretty"))
	}

	meta := export.Metadata()
	r.writePlainHeader(fmt.Sprintf("%s (%d tracks, %s)", export.Name, meta.Tracks, formatter.FormatDuration(meta.Duration)))
	r.writeTracks(export.Tracks)
	return nil
}

// PlaylistExport writes a saved playlist to disk.
func (r *Runner) PlaylistExport(ctx context.Context, cmd *cli.Command) error {
	export, err := r.loadExport(ctx, cmd.StringArg("name"))
	if err != nil {
		return err
	}
	output := cmd.String("output")

	switch strings.ToLower(cmd.String("format")) {
	case "csv":
		res, err := formatter.WriteCSVExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Playlist exported to %s\n", res.TracksFile)
		r.writePlain("  Metadata: %s\n", res.MetadataFile)
	case "md", "markdown":
		res, err := formatter.WriteMarkdownExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Playlist exported to %s\n", res.Directory)
		for _, f := range res.Files {
			r.writePlain("  %s\n", f)
		}
	case "txt", "text":
		path, err := formatter.WriteTextExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Playlist exported to %s\n", path)
	default:
		return fmt.Errorf("%w: format %q (want csv, md or txt)", shared.ErrInvalidArgument, cmd.String("format"))
	}

	r.logger.Info("exported playlist", "name", export.Name, "tracks", len(export.Tracks))
	return nil
}

// loadExport fetches a saved playlist by its sanitized name.
func (r *Runner) loadExport(ctx context.Context, name string) (*formatter.Export, error) {
	name = shared.SanitizePlaylist(name)
	if name == "" {
		return nil, fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	tracks, s, err := r.library(ctx)
	defer s.Close()
	if err != nil {
		return nil, err
	}

	list, err := tracks.GetPlaylist(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load %q: %w", name, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, name)
	}
	return &formatter.Export{Name: name, Tracks: list}, nil
}
