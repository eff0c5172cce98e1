package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/goose/internal/bot"
	"github.com/desertthunder/goose/internal/migrations"
	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/player"
	"github.com/desertthunder/goose/internal/repositories"
	"github.com/desertthunder/goose/internal/server"
	"github.com/desertthunder/goose/internal/services"
	"github.com/desertthunder/goose/internal/shared"
	"github.com/desertthunder/goose/internal/tasks"
	"github.com/desertthunder/goose/internal/workspace"
)

const closeTimeout = 10 * time.Second

// stack holds everything a long-running command needs. Adapters whose credentials are
// missing stay nil.
type stack struct {
	ledger *sql.DB
	conn   *repositories.Connection

	tracks   *repositories.TrackRepository
	users    *repositories.UserRepository
	links    *repositories.LinkStateRepository
	plays    *repositories.PlayEventRepository
	searches *repositories.SearchCacheRepository

	youtube  *services.YouTubeService
	spotify  *services.SpotifyService
	napster  *services.NapsterService
	subsonic *services.SubsonicService
	lastfm   *services.LastFMService

	engine   *migrations.Engine
	pool     *tasks.Pool
	progress chan tasks.ProgressUpdate
}

// stackOpts selects the optional parts of a stack.
type stackOpts struct {
	Store    bool // Connect the document store
	Pool     bool // Start the acquisition pool; implies Store
	Progress bool // Give the pool a progress channel
}

// openStack opens the ledger and, as requested, the document store and acquisition pool.
// Close releases whatever was opened, even after an error.
func (r *Runner) openStack(ctx context.Context, opts stackOpts) (*stack, error) {
	s := &stack{}
	logger := r.logger

	ledger, err := shared.OpenLedger(r.config.Database)
	if err != nil {
		return s, fmt.Errorf("failed to open ledger: %w", err)
	}
	s.ledger = ledger
	s.links = repositories.NewLinkStateRepository(ledger)
	s.plays = repositories.NewPlayEventRepository(ledger)
	s.searches = repositories.NewSearchCacheRepository(ledger)

	s.openServices(r)
	if !opts.Store && !opts.Pool {
		return s, nil
	}

	s.conn = repositories.NewConnection(r.config.Mongo, logger)
	if err := s.conn.Connect(ctx); err != nil {
		return s, err
	}
	trackColl, err := s.conn.Collection(ctx, r.config.Mongo.TrackCollection)
	if err != nil {
		return s, err
	}
	userColl, err := s.conn.Collection(ctx, r.config.Mongo.UserCollection)
	if err != nil {
		return s, err
	}

	s.tracks = repositories.NewTrackRepository(trackColl, logger)
	s.tracks.SetPlayEvents(s.plays)
	if err := s.tracks.EnsureIndexes(ctx); err != nil {
		return s, err
	}
	s.users = repositories.NewUserRepository(userColl, s.tracks, logger)

	var migrationOpts []migrations.Option
	if s.subsonic != nil {
		migrationOpts = append(migrationOpts, migrations.WithSubsonic(s.subsonic))
	}
	s.engine = migrations.NewEngine(s.tracks, s.users, logger, migrationOpts...)
	s.tracks.SetUpgrader(s.engine)
	s.users.SetUpgrader(s.engine)

	if opts.Pool {
		poolOpts := tasks.PoolOptsFromConfig(r.config.Acquire)
		if opts.Progress {
			s.progress = make(chan tasks.ProgressUpdate, 16)
			poolOpts.Progress = s.progress
		}
		s.pool = tasks.NewPool(s.pipeline(r), poolOpts, logger)
	}
	return s, nil
}

// openServices builds every adapter the configuration has credentials for.
func (s *stack) openServices(r *Runner) {
	c := r.config.Credentials
	s.youtube = services.NewYouTubeService(c.YouTube, r.logger)

	var err error
	if s.spotify, err = services.NewSpotifyService(c.Spotify, r.logger); err != nil {
		r.logger.Debug("spotify disabled", "error", err)
	}
	if s.napster, err = services.NewNapsterService(c.Napster, "", r.logger); err != nil {
		r.logger.Debug("napster disabled", "error", err)
	}
	if s.subsonic, err = services.NewSubsonicService(c.Subsonic, r.config.RootURL, r.logger); err != nil {
		r.logger.Debug("subsonic disabled", "error", err)
	}
	if s.lastfm, err = services.NewLastFMService(c.LastFM, "", r.logger); err != nil {
		r.logger.Debug("lastfm disabled", "error", err)
	}
}

// pipeline registers every configured adapter.
func (s *stack) pipeline(r *Runner) *tasks.Pipeline {
	opts := []tasks.PipelineOption{
		tasks.WithSource(s.youtube),
		tasks.WithSearchCache(s.searches),
		tasks.WithClassifier(tasks.NewClassifier(r.config.Credentials.Subsonic.Hosts)),
		tasks.WithOfficialLinks(services.NewMusicBrainzService("", r.logger)),
	}
	if s.spotify != nil {
		opts = append(opts, tasks.WithSource(s.spotify))
	}
	if s.napster != nil {
		opts = append(opts, tasks.WithSource(s.napster))
	}
	if s.subsonic != nil {
		opts = append(opts, tasks.WithSource(s.subsonic))
	}
	return tasks.NewPipeline(s.tracks, r.logger, opts...)
}

// actions wires the bot commands. Unconfigured link providers get no auth URL.
func (s *stack) actions(r *Runner, players *player.Players, workspaces *workspace.Workspaces) *bot.Actions {
	urls := map[string]bot.AuthURL{}
	if s.spotify != nil {
		urls[models.ServiceSpotify] = s.spotify.AuthCodeURL
	}
	if s.napster != nil {
		urls[models.ServiceNapster] = s.napster.AuthCodeURL
	}
	if s.lastfm != nil {
		root := r.config.RootURL
		urls[models.ServiceLastFM] = func(state string) string {
			return s.lastfm.AuthURL(root + "/lastfm?state=" + state)
		}
	}

	return bot.NewActions(bot.Deps{
		Acquire:    s.pool,
		Players:    players,
		Workspaces: workspaces,
		Users:      s.users,
		Tracks:     s.tracks,
		Links:      s.links,
		AuthURLs:   urls,
		Roles:      r.config.Discord.Roles,
	}, r.logger)
}

// routes builds the web service dependencies, leaving out what is not configured.
func (s *stack) routes() server.Deps {
	d := server.Deps{States: s.links}
	if s.users != nil {
		d.Accounts = s.users
	}
	if s.conn != nil {
		d.Store = s.conn
	}
	if s.spotify != nil {
		d.Spotify = server.SpotifyProvider(s.spotify)
	}
	if s.napster != nil {
		d.Napster = server.NapsterProvider(s.napster)
	}
	if s.lastfm != nil {
		d.LastFM = s.lastfm
	}
	if s.subsonic != nil {
		d.Art = s.subsonic
	}
	return d
}

// Close stops the pool and closes the stores in reverse order of opening.
func (s *stack) Close() error {
	var errs []error
	if s.pool != nil {
		s.pool.Close()
	}
	if s.progress != nil {
		close(s.progress)
	}
	if s.conn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := s.conn.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close ledger: %w", err))
		}
	}
	return errors.Join(errs...)
}

// library returns the injected track store or connects to the document store. The stack
// must be closed even on error.
func (r *Runner) library(ctx context.Context) (tracks models.TrackStore, s *stack, err error) {
	if r.tracks != nil {
		s, err = r.openStack(ctx, stackOpts{})
		return r.tracks, s, err
	}
	s, err = r.openStack(ctx, stackOpts{Store: true})
	if err != nil {
		return nil, s, err
	}
	return s.tracks, s, nil
}
