package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/goose/internal/formatter"
	"github.com/desertthunder/goose/internal/models"
	"github.com/urfave/cli/v3"
)

// playStat is one recent play with the lifetime counts of its track.
type playStat struct {
	TrackID  string    `json:"trackId"`
	Track    string    `json:"track"`
	GuildID  string    `json:"guildId"`
	Success  bool      `json:"success"`
	PlayedAt time.Time `json:"playedAt"`
	Plays    int       `json:"plays"`
	Failures int       `json:"failures"`
}

type libraryStats struct {
	Tracks int64      `json:"tracks"`
	Recent []playStat `json:"recent"`
}

// Stats prints the library size and the latest plays from the ledger.
func (r *Runner) Stats(ctx context.Context, cmd *cli.Command) error {
	tracks, s, err := r.library(ctx)
	defer s.Close()
	if err != nil {
		return err
	}

	var out libraryStats
	if out.Tracks, err = tracks.CountTracks(ctx); err != nil {
		return fmt.Errorf("failed to count tracks: %w", err)
	}

	events, err := s.plays.Recent(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	for _, e := range events {
		stat := playStat{TrackID: e.TrackID, Track: e.TrackID, GuildID: e.GuildID, Success: e.Success, PlayedAt: e.PlayedAt}
		if stat.Plays, stat.Failures, err = s.plays.Counts(ctx, e.TrackID); err != nil {
			return err
		}
		if t, err := tracks.GetTrack(ctx, models.ByGooseID(e.TrackID)); err == nil {
			stat.Track = formatter.TrackLine(*t)
		}
		out.Recent = append(out.Recent, stat)
	}

	if cmd.Bool("json") {
		return r.writeJSON(out, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%d tracks in the library", out.Tracks))
	if len(out.Recent) == 0 {
		r.writePlain("No plays recorded.\n")
		return nil
	}
	for _, p := range out.Recent {
		mark := "✓"
		if !p.Success {
			mark = warnColor.Sprint("✗")
		}
		r.writePlain("%s %s %s\n", mark, p.Track, mutedColor.Sprintf("(%d plays, %d failed, %s)",
			p.Plays, p.Failures, p.PlayedAt.Local().Format(time.DateTime)))
	}
	return nil
}
