package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/shared"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const unknownLocale = "UNK"

// UserRepository implements [models.UserStore] over the users collection.
type UserRepository struct {
	coll     *mongo.Collection
	tracks   models.TrackStore
	upgrader models.UserUpgrader
	logger   *log.Logger
}

// NewUserRepository creates a new UserRepository. tracks resolves stashed track ids.
func NewUserRepository(coll *mongo.Collection, tracks models.TrackStore, logger *log.Logger) *UserRepository {
	return &UserRepository{coll: coll, tracks: tracks, logger: shared.WithLogger(logger, "module", "db", "collection", "users")}
}

// SetUpgrader attaches the migration engine.
func (r *UserRepository) SetUpgrader(u models.UserUpgrader) {
	r.upgrader = u
}

func byDiscordID(id string) bson.D {
	return bson.D{{Key: "discord.id", Value: id}}
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.D) (*models.User, error) {
	var u models.User
	if err := r.coll.FindOne(ctx, filter, noID).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u.Version != models.UserVersion && r.upgrader != nil {
		return r.upgrader.UpgradeUser(ctx, &u), nil
	}
	return &u, nil
}

// StaleUsers returns the stored users below the current user version.
func (r *UserRepository) StaleUsers(ctx context.Context) ([]models.User, error) {
	filter := bson.D{{Key: "version", Value: bson.D{{Key: "$ne", Value: models.UserVersion}}}}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetProjection(bson.D{{Key: "_id", Value: 0}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find stale users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode stale users: %w", err)
	}
	return users, nil
}

// NewUser registers a Discord user. The guild nickname defaults to the username.
func (r *UserRepository) NewUser(ctx context.Context, p models.DiscordProfile) (*models.User, error) {
	err := r.coll.FindOne(ctx, byDiscordID(p.ID), noID).Err()
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", shared.ErrUserExists, p.Username)
	case !errors.Is(err, mongo.ErrNoDocuments):
		return nil, fmt.Errorf("failed to check user: %w", err)
	}

	locale := p.Locale
	if locale == "" {
		locale = unknownLocale
	}

	nicknames := map[string]models.History{}
	if p.GuildID != "" {
		nick := p.Nickname
		if nick == "" {
			nick = p.Username
		}
		nicknames[p.GuildID] = models.History{Current: nick, Old: []string{}}
	}

	u := &models.User{
		Goose: models.UserGoose{ID: shared.GenerateID(), Username: p.Username, Locale: locale},
		Discord: models.DiscordIdentity{
			ID:            p.ID,
			Locale:        locale,
			Username:      models.History{Current: p.Username, Old: []string{}},
			Discriminator: models.History{Current: p.Discriminator, Old: []string{}},
			Nickname:      nicknames,
		},
		Stash:   models.Stash{Tracks: []string{}},
		Version: models.UserVersion,
	}

	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %s", shared.ErrUserExists, p.Username)
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	r.logger.Info("added user", "username", p.Username, "discord", p.ID)
	return u, nil
}

// GetUser returns the user with discordID, upgraded when stale.
func (r *UserRepository) GetUser(ctx context.Context, discordID string) (*models.User, error) {
	u, err := r.findOne(ctx, byDiscordID(discordID))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, discordID)
	}
	return u, nil
}

// UpdateUser sets a profile field, pushing the previous value into its history.
//
// Nicknames are per guild and need guildID. Locale has no history.
func (r *UserRepository) UpdateUser(ctx context.Context, discordID string, field models.UserField, value, guildID string) error {
	if !field.Valid() {
		return fmt.Errorf("%w: user field %q", shared.ErrInvalidArgument, field)
	}
	if field == models.UserFieldNickname && guildID == "" {
		return fmt.Errorf("%w: guild id for nickname", shared.ErrMissingArgument)
	}

	u, err := r.GetUser(ctx, discordID)
	if err != nil {
		return err
	}

	var update bson.D
	switch field {
	case models.UserFieldLocale:
		update = bson.D{{Key: "$set", Value: bson.D{{Key: "discord.locale", Value: value}}}}
	default:
		path := "discord." + string(field)
		previous := ""
		switch field {
		case models.UserFieldUsername:
			previous = u.Discord.Username.Current
		case models.UserFieldDiscriminator:
			previous = u.Discord.Discriminator.Current
		case models.UserFieldNickname:
			path += "." + guildID
			previous = u.Discord.Nickname[guildID].Current
		}
		update = bson.D{{Key: "$set", Value: bson.D{{Key: path + ".current", Value: value}}}}
		if previous != "" && previous != value {
			update = append(update, bson.E{Key: "$addToSet", Value: bson.D{{Key: path + ".old", Value: previous}}})
		}
	}

	if _, err := r.coll.UpdateOne(ctx, byDiscordID(discordID), update); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	r.logger.Info("updated user", "discord", discordID, "field", field, "value", value)
	return nil
}

// ReplaceUser swaps the stored user and returns the modified count.
//
// Version 1 introduced goose ids, so documents at that version are matched by Discord id.
func (r *UserRepository) ReplaceUser(ctx context.Context, u *models.User) (int, error) {
	filter := bson.D{{Key: "goose.id", Value: u.Goose.ID}}
	if u.Version == 1 {
		filter = byDiscordID(u.Discord.ID)
	}

	if err := r.coll.FindOne(ctx, filter, noID).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, fmt.Errorf("%w: %s", shared.ErrUserNotFound, u.Goose.Username)
		}
		return 0, fmt.Errorf("failed to check user: %w", err)
	}

	result, err := r.coll.ReplaceOne(ctx, filter, u)
	if err != nil {
		return 0, fmt.Errorf("failed to replace user: %w", err)
	}
	return int(result.ModifiedCount), nil
}

// SaveStash stores the queue for every listed user. Pending tracks are skipped and an
// empty result writes nothing.
func (r *UserRepository) SaveStash(ctx context.Context, discordIDs []string, playhead int, queue []models.Track) error {
	stash, ok := models.NewStash(playhead, queue)
	if !ok {
		r.logger.Debug("nothing to stash", "users", len(discordIDs))
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, id := range discordIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.logger.Info("updating stash", "discord", id, "playhead", stash.Playhead, "tracks", len(stash.Tracks))
			update := bson.D{{Key: "$set", Value: bson.D{{Key: "stash", Value: stash}}}}
			if _, err := r.coll.UpdateOne(ctx, byDiscordID(id), update); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("stash for %s: %w", id, err))
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// GetStash returns the stashed playhead and the tracks still in the store.
func (r *UserRepository) GetStash(ctx context.Context, discordID string) (int, []models.Track, error) {
	u, err := r.GetUser(ctx, discordID)
	if err != nil {
		return 0, nil, err
	}

	tracks := make([]models.Track, 0, len(u.Stash.Tracks))
	for _, id := range u.Stash.Tracks {
		t, err := r.tracks.GetTrack(ctx, models.ByGooseID(id))
		if err != nil {
			r.logger.Warn("stashed track unavailable", "id", id, "error", err)
			continue
		}
		tracks = append(tracks, *t)
	}

	playhead := u.Stash.Playhead
	if playhead >= len(tracks) {
		playhead = 0
	}
	return playhead, tracks, nil
}

func validService(service string) bool {
	switch service {
	case models.ServiceSpotify, models.ServiceNapster, models.ServiceLastFM:
		return true
	}
	return false
}

// SaveToken stores a linked service credential.
func (r *UserRepository) SaveToken(ctx context.Context, discordID, service string, token models.OAuthToken) error {
	if !validService(service) {
		return fmt.Errorf("%w: service %q", shared.ErrInvalidArgument, service)
	}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "tokens." + service, Value: token}}}}
	result, err := r.coll.UpdateOne(ctx, byDiscordID(discordID), update)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, discordID)
	}
	return nil
}

// LinkAccount stores the public profile of a linked service account.
func (r *UserRepository) LinkAccount(ctx context.Context, discordID, service string, account models.LinkedAccount) error {
	if !validService(service) {
		return fmt.Errorf("%w: service %q", shared.ErrInvalidArgument, service)
	}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: service, Value: account}}}}
	result, err := r.coll.UpdateOne(ctx, byDiscordID(discordID), update)
	if err != nil {
		return fmt.Errorf("failed to link account: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, discordID)
	}
	r.logger.Info("linked account", "discord", discordID, "service", service, "username", account.Username)
	return nil
}

// GetUserByWebClientID returns the user a web client belongs to.
func (r *UserRepository) GetUserByWebClientID(ctx context.Context, webClientID string) (*models.User, error) {
	u, err := r.findOne(ctx, bson.D{{Key: "webClientId", Value: webClientID}})
	if err != nil {
		return nil, fmt.Errorf("%w: web client %s", err, webClientID)
	}
	return u, nil
}
