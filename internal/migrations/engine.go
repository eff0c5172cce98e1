// package migrations upgrades stored track and user documents to the current schema
package migrations

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/shared"
)

// TrackWriter persists an upgraded track.
type TrackWriter interface {
	ReplaceTrack(ctx context.Context, t *models.Track) (int, error)
}

// UserWriter persists an upgraded user.
type UserWriter interface {
	ReplaceUser(ctx context.Context, u *models.User) (int, error)
}

// TextSearcher finds a source by free text. Nil, nil means no match.
type TextSearcher interface {
	FromText(ctx context.Context, query string) (*models.TrackSource, error)
}

// StaleTrackLister lists stored tracks below [models.TrackVersion].
type StaleTrackLister interface {
	StaleTracks(ctx context.Context) ([]models.LegacyTrack, error)
}

// StaleUserLister lists stored users below [models.UserVersion].
type StaleUserLister interface {
	StaleUsers(ctx context.Context) ([]models.User, error)
}

type trackStep func(ctx context.Context, t *models.Track, legacy []models.YouTubeSource)

type userStep func(u *models.User)

// Engine walks documents forward one version at a time and writes the result back once.
//
// Write-back failures are logged and never retried; the upgraded document is returned either way.
type Engine struct {
	tracks   TrackWriter
	users    UserWriter
	subsonic TextSearcher
	logger   *log.Logger

	trackSteps map[int]trackStep
	userSteps  map[int]userStep
}

type Option func(*Engine)

// WithSubsonic enables the Subsonic lookup of the track 0→1 step.
func WithSubsonic(s TextSearcher) Option {
	return func(e *Engine) { e.subsonic = s }
}

func NewEngine(tracks TrackWriter, users UserWriter, logger *log.Logger, opts ...Option) *Engine {
	e := &Engine{
		tracks: tracks,
		users:  users,
		logger: shared.WithLogger(logger, "module", "migrations"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.trackSteps = map[int]trackStep{0: e.trackV0}
	e.userSteps = map[int]userStep{0: userV0}
	return e
}

// trackV0 moves top-level youtube into audioSource and looks the track up on Subsonic.
func (e *Engine) trackV0(ctx context.Context, t *models.Track, legacy []models.YouTubeSource) {
	if len(legacy) > 0 {
		t.AudioSource.YouTube = append([]models.YouTubeSource(nil), legacy...)
	}

	if e.subsonic != nil {
		query := shared.SearchQuery(t.Goose.Track.Name, t.Goose.Artist.Name)
		s, err := e.subsonic.FromText(ctx, query)
		switch {
		case err != nil:
			e.logger.Warn("subsonic lookup failed", "id", t.Goose.ID, "query", query, "error", err)
		case s != nil:
			t.AudioSource.Subsonic = s
			t.Goose.Track.Duration = s.Duration
		}
	}
	t.Version = 1
}

// userV0 adds the goose identity.
func userV0(u *models.User) {
	u.Goose = models.UserGoose{
		ID:       shared.GenerateID(),
		Locale:   u.Discord.Locale,
		Username: u.Discord.Username.Current,
	}
	u.Version = 1
}

// UpgradeTrack returns doc at [models.TrackVersion], persisting it when anything changed.
// A document that is already current is returned as-is with a warning.
func (e *Engine) UpgradeTrack(ctx context.Context, doc *models.LegacyTrack) *models.Track {
	t := doc.Track.Clone()
	if t.Version == models.TrackVersion {
		e.logger.Warn("upgrade requested for current track", "id", t.Goose.ID)
		return &t
	}

	e.logger.Info("migrating track", "id", t.Goose.ID, "from", t.Version)
	for t.Version < models.TrackVersion {
		step, ok := e.trackSteps[t.Version]
		if !ok {
			e.logger.Error("no migration for track version", "id", t.Goose.ID, "version", t.Version)
			return &t
		}
		step(ctx, &t, doc.YouTube)
	}
	if t.Version != models.TrackVersion {
		e.logger.Error("track version ahead of schema", "id", t.Goose.ID, "version", t.Version)
		return &t
	}

	e.logger.Info("track migrated", "id", t.Goose.ID, "version", t.Version)
	n, err := e.tracks.ReplaceTrack(ctx, &t)
	switch {
	case err != nil:
		e.logger.Warn("track write-back failed", "name", t.Goose.Track.Name, "error", err)
	case n != 1:
		e.logger.Warn("track write-back modified unexpected count", "name", t.Goose.Track.Name, "modified", n)
	}
	return &t
}

// UpgradeUser returns u at [models.UserVersion], persisting it when anything changed.
func (e *Engine) UpgradeUser(ctx context.Context, u *models.User) *models.User {
	c := *u
	if c.Version == models.UserVersion {
		e.logger.Warn("upgrade requested for current user", "discord", c.Discord.ID)
		return &c
	}

	e.logger.Info("migrating user", "discord", c.Discord.ID, "username", c.Discord.Username.Current, "from", c.Version)
	for c.Version < models.UserVersion {
		step, ok := e.userSteps[c.Version]
		if !ok {
			e.logger.Error("no migration for user version", "discord", c.Discord.ID, "version", c.Version)
			return &c
		}
		step(&c)
	}
	if c.Version != models.UserVersion {
		e.logger.Error("user version ahead of schema", "discord", c.Discord.ID, "version", c.Version)
		return &c
	}

	e.logger.Info("user migrated", "username", c.Goose.Username, "version", c.Version)
	n, err := e.users.ReplaceUser(ctx, &c)
	switch {
	case err != nil:
		e.logger.Warn("user write-back failed", "username", c.Goose.Username, "error", err)
	case n != 1:
		e.logger.Warn("user write-back modified unexpected count", "username", c.Goose.Username, "modified", n)
	}
	return &c
}

// MigrateTracks upgrades every stale track and returns how many were processed.
func (e *Engine) MigrateTracks(ctx context.Context, l StaleTrackLister) (int, error) {
	docs, err := l.StaleTracks(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale tracks: %w", err)
	}
	for i := range docs {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		e.UpgradeTrack(ctx, &docs[i])
	}
	return len(docs), nil
}

// MigrateUsers upgrades every stale user and returns how many were processed.
func (e *Engine) MigrateUsers(ctx context.Context, l StaleUserLister) (int, error) {
	users, err := l.StaleUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale users: %w", err)
	}
	for i := range users {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		e.UpgradeUser(ctx, &users[i])
	}
	return len(users), nil
}
