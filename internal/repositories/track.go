package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/shared"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TrackRepository implements [models.TrackStore] over the tracks collection.
//
// Stale documents are passed through the upgrader on every read. Play counts are
// mirrored into the ledger when a [PlayEventRepository] is attached.
type TrackRepository struct {
	coll     *mongo.Collection
	upgrader models.TrackUpgrader
	events   *PlayEventRepository
	logger   *log.Logger
}

// NewTrackRepository creates a new TrackRepository over coll.
func NewTrackRepository(coll *mongo.Collection, logger *log.Logger) *TrackRepository {
	return &TrackRepository{coll: coll, logger: shared.WithLogger(logger, "module", "db", "collection", "tracks")}
}

// SetUpgrader attaches the migration engine. It is set after construction because the
// engine writes back through this repository.
func (r *TrackRepository) SetUpgrader(u models.TrackUpgrader) {
	r.upgrader = u
}

// SetPlayEvents mirrors LogPlay into the ledger.
func (r *TrackRepository) SetPlayEvents(e *PlayEventRepository) {
	r.events = e
}

// identityFields hold ids that belong to exactly one track.
var identityFields = []string{
	models.FieldGooseID,
	models.FieldYouTubeID,
	models.FieldSubsonicID,
	models.FieldSpotifyID,
	models.FieldNapsterID,
}

// EnsureIndexes creates unique indexes on the goose id and every provider id, so a
// concurrent insert of an already stored provider id fails with [shared.ErrTrackExists].
func (r *TrackRepository) EnsureIndexes(ctx context.Context) error {
	indexes := make([]mongo.IndexModel, 0, len(identityFields))
	for _, field := range identityFields {
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		})
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create track indexes: %w", err)
	}
	return nil
}

func lookupFilter(l models.Lookup) bson.D {
	return bson.D{{Key: l.Field, Value: l.Value}}
}

var noID = options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 0}})

// upgrade returns the current form of a stored document.
func (r *TrackRepository) upgrade(ctx context.Context, doc *models.LegacyTrack) *models.Track {
	if doc.Version == models.TrackVersion {
		return &doc.Track
	}
	if r.upgrader == nil {
		r.logger.Warn("stale track without an upgrader", "id", doc.Goose.ID, "version", doc.Version)
		return &doc.Track
	}
	return r.upgrader.UpgradeTrack(ctx, doc)
}

// GetTrack returns the first track matching l.
func (r *TrackRepository) GetTrack(ctx context.Context, l models.Lookup) (*models.Track, error) {
	var doc models.LegacyTrack
	if err := r.coll.FindOne(ctx, lookupFilter(l), noID).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s=%s", shared.ErrTrackNotFound, l.Field, l.Value)
		}
		return nil, fmt.Errorf("failed to get track: %w", err)
	}
	return r.upgrade(ctx, &doc), nil
}

// InsertTrack stores a new track. Status is cleared and the version stamped before writing.
func (r *TrackRepository) InsertTrack(ctx context.Context, t *models.Track) error {
	if t.Goose.ID == "" {
		return fmt.Errorf("%w: track without goose id", shared.ErrInvalidArgument)
	}

	err := r.coll.FindOne(ctx, lookupFilter(models.ByGooseID(t.Goose.ID)), noID).Err()
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", shared.ErrTrackExists, t.Goose.ID)
	case !errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("failed to check track: %w", err)
	}

	doc := t.Clone()
	doc.Status = models.TrackStatus{}
	if doc.Version == 0 {
		doc.Version = models.TrackVersion
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s shares a stored id", shared.ErrTrackExists, t.Goose.ID)
		}
		return fmt.Errorf("failed to insert track: %w", err)
	}
	r.logger.Info("added track", "name", t.Goose.Track.Name, "artist", t.Goose.Artist.Name, "id", t.Goose.ID)
	return nil
}

// ReplaceTrack swaps the stored document with the same goose id and returns the modified count.
func (r *TrackRepository) ReplaceTrack(ctx context.Context, t *models.Track) (int, error) {
	filter := lookupFilter(models.ByGooseID(t.Goose.ID))
	if err := r.coll.FindOne(ctx, filter, noID).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, t.Goose.ID)
		}
		return 0, fmt.Errorf("failed to check track: %w", err)
	}

	doc := t.Clone()
	doc.Status = models.TrackStatus{}
	result, err := r.coll.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return 0, fmt.Errorf("failed to replace track: %w", err)
	}
	return int(result.ModifiedCount), nil
}

func (r *TrackRepository) updateOne(ctx context.Context, l models.Lookup, update bson.D, op string) error {
	if _, err := r.coll.UpdateOne(ctx, lookupFilter(l), update); err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	r.logger.Debug(op, "field", l.Field, "value", l.Value)
	return nil
}

// AddKey records a lower-cased search key on the track.
func (r *TrackRepository) AddKey(ctx context.Context, l models.Lookup, key string) error {
	update := bson.D{{Key: "$addToSet", Value: bson.D{{Key: models.FieldKeys, Value: strings.ToLower(key)}}}}
	return r.updateOne(ctx, l, update, "add key")
}

// AddSourceID adds a Spotify or Napster id to the track's metadata source.
func (r *TrackRepository) AddSourceID(ctx context.Context, l models.Lookup, kind models.SourceKind, id string) error {
	if kind != models.SourceSpotify && kind != models.SourceNapster {
		return fmt.Errorf("%w: %s is not a metadata source", shared.ErrInvalidArgument, kind)
	}
	update := bson.D{{Key: "$addToSet", Value: bson.D{{Key: kind.String() + ".id", Value: id}}}}
	return r.updateOne(ctx, l, update, "add source id")
}

// AddPlayableSourceID adds a Subsonic id to the track's playable source.
func (r *TrackRepository) AddPlayableSourceID(ctx context.Context, l models.Lookup, id string) error {
	update := bson.D{{Key: "$addToSet", Value: bson.D{{Key: models.FieldSubsonicID, Value: id}}}}
	return r.updateOne(ctx, l, update, "add playable source id")
}

// SetSource attaches a Spotify or Napster metadata source.
func (r *TrackRepository) SetSource(ctx context.Context, l models.Lookup, kind models.SourceKind, s models.TrackSource) error {
	if kind != models.SourceSpotify && kind != models.SourceNapster {
		return fmt.Errorf("%w: %s is not a metadata source", shared.ErrInvalidArgument, kind)
	}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: kind.String(), Value: s}}}}
	return r.updateOne(ctx, l, update, "set source")
}

// SetPlayableSource attaches a Subsonic source. Subsonic is the preferred playable source,
// so the display duration follows it.
func (r *TrackRepository) SetPlayableSource(ctx context.Context, l models.Lookup, s models.TrackSource) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "audioSource.subsonic", Value: s},
		{Key: "goose.track.duration", Value: s.Duration},
	}}}
	return r.updateOne(ctx, l, update, "set playable source")
}

// AppendAlternate adds a YouTube alternate unless the id is already present.
func (r *TrackRepository) AppendAlternate(ctx context.Context, l models.Lookup, y models.YouTubeSource) error {
	filter := bson.D{
		{Key: l.Field, Value: l.Value},
		{Key: models.FieldYouTubeID, Value: bson.D{{Key: "$ne", Value: y.ID}}},
	}
	update := bson.D{{Key: "$push", Value: bson.D{{Key: "audioSource.youtube", Value: y}}}}
	if _, err := r.coll.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to append alternate: %w", err)
	}
	return nil
}

// SwitchAlternate makes alternate the active YouTube source, swapping it with the current one.
func (r *TrackRepository) SwitchAlternate(ctx context.Context, gooseID string, alternate int) (int, error) {
	track, err := r.GetTrack(ctx, models.ByGooseID(gooseID))
	if err != nil {
		return 0, err
	}

	yt := track.AudioSource.YouTube
	if alternate <= 0 || alternate >= len(yt) {
		return 0, fmt.Errorf("%w: alternate %d of %d", shared.ErrIndexOutOfRange, alternate, len(yt))
	}
	original := yt[0].ID
	yt[0], yt[alternate] = yt[alternate], yt[0]
	track.SyncDuration()

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "audioSource.youtube", Value: yt},
		{Key: "goose.track.duration", Value: track.Goose.Track.Duration},
	}}}
	result, err := r.coll.UpdateOne(ctx, lookupFilter(models.ByGooseID(gooseID)), update)
	if err != nil {
		return 0, fmt.Errorf("failed to switch alternate: %w", err)
	}
	if result.ModifiedCount == 1 {
		r.logger.Info("remapped track", "from", original, "to", yt[0].ID)
	} else {
		r.logger.Warn("remap modified nothing", "id", gooseID)
	}
	return int(result.ModifiedCount), nil
}

func playlistField(name string) string {
	return "playlists." + name
}

// AddPlaylist writes playlists.<name> = index onto every stored track in order.
//
// Per-track updates run concurrently without rollback. Every failure is collected and the
// joined error returned; tracks that succeeded keep their entry.
func (r *TrackRepository) AddPlaylist(ctx context.Context, tracks []models.Track, name string) error {
	name = shared.SanitizePlaylist(name)
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrInvalidArgument)
	}

	field := playlistField(name)
	exists := bson.D{{Key: field, Value: bson.D{{Key: "$exists", Value: true}}}}
	n, err := r.coll.CountDocuments(ctx, exists, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("failed to check playlist: %w", err)
	}
	if n > 0 {
		r.logger.Warn("playlist already exists", "name", name)
		return fmt.Errorf("%w: %s", shared.ErrPlaylistExists, name)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	index := 0
	for _, t := range tracks {
		if t.Pending() {
			continue
		}
		wg.Add(1)
		go func(id string, i int) {
			defer wg.Done()
			update := bson.D{{Key: "$set", Value: bson.D{{Key: field, Value: i}}}}
			if _, err := r.coll.UpdateOne(ctx, lookupFilter(models.ByGooseID(id)), update); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("track %s: %w", id, err))
				mu.Unlock()
			}
		}(t.Goose.ID, index)
		index++
	}
	wg.Wait()

	r.logger.Info("added playlist", "name", name, "tracks", index, "failed", len(errs))
	return errors.Join(errs...)
}

// GetPlaylist returns the tracks of a playlist in playlist order.
func (r *TrackRepository) GetPlaylist(ctx context.Context, name string) ([]models.Track, error) {
	field := playlistField(shared.SanitizePlaylist(name))
	filter := bson.D{{Key: field, Value: bson.D{{Key: "$exists", Value: true}}}}
	opts := options.Find().
		SetSort(bson.D{{Key: field, Value: 1}}).
		SetProjection(bson.D{{Key: "_id", Value: 0}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.LegacyTrack
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode playlist: %w", err)
	}

	tracks := make([]models.Track, 0, len(docs))
	for i := range docs {
		tracks = append(tracks, *r.upgrade(ctx, &docs[i]))
	}
	return tracks, nil
}

// RemovePlaylist unsets the playlist from every track and returns how many changed.
func (r *TrackRepository) RemovePlaylist(ctx context.Context, name string) (int, error) {
	field := playlistField(shared.SanitizePlaylist(name))
	filter := bson.D{{Key: field, Value: bson.D{{Key: "$exists", Value: true}}}}
	update := bson.D{{Key: "$unset", Value: bson.D{{Key: field, Value: ""}}}}

	result, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to remove playlist: %w", err)
	}
	r.logger.Info("removed playlist", "name", name, "tracks", result.ModifiedCount)
	return int(result.ModifiedCount), nil
}

// ListPlaylists returns every playlist name, sorted.
func (r *TrackRepository) ListPlaylists(ctx context.Context) ([]string, error) {
	values, err := r.coll.Distinct(ctx, "playlists", bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	seen := map[string]bool{}
	for _, v := range values {
		switch doc := v.(type) {
		case primitive.D:
			for _, e := range doc {
				seen[e.Key] = true
			}
		case primitive.M:
			for k := range doc {
				seen[k] = true
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// StaleTracks returns the stored documents below the current track version, undecoded
// so the engine sees their original shape.
func (r *TrackRepository) StaleTracks(ctx context.Context) ([]models.LegacyTrack, error) {
	filter := bson.D{{Key: "version", Value: bson.D{{Key: "$ne", Value: models.TrackVersion}}}}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetProjection(bson.D{{Key: "_id", Value: 0}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find stale tracks: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.LegacyTrack
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode stale tracks: %w", err)
	}
	return docs, nil
}

// RemoveTrack deletes the track whose active alternate is youtubeID.
func (r *TrackRepository) RemoveTrack(ctx context.Context, youtubeID string) (int, error) {
	result, err := r.coll.DeleteOne(ctx, bson.D{{Key: "audioSource.youtube.0.id", Value: youtubeID}})
	if err != nil {
		return 0, fmt.Errorf("failed to remove track: %w", err)
	}
	if result.DeletedCount == 1 {
		r.logger.Info("removed track", "youtube", youtubeID)
	} else {
		r.logger.Warn("remove matched nothing", "youtube", youtubeID)
	}
	return int(result.DeletedCount), nil
}

// CountTracks returns the number of stored tracks.
func (r *TrackRepository) CountTracks(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return n, nil
}

// UpdateOfficial stores the artist homepage link.
func (r *TrackRepository) UpdateOfficial(ctx context.Context, gooseID, link string) error {
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "goose.artist.official", Value: link}}}}
	return r.updateOne(ctx, models.ByGooseID(gooseID), update, "update official link")
}

// LogPlay increments goose.plays, and goose.errors as well when the play failed.
func (r *TrackRepository) LogPlay(ctx context.Context, gooseID string, success bool) error {
	inc := bson.D{{Key: "goose.plays", Value: 1}}
	if !success {
		inc = append(inc, bson.E{Key: "goose.errors", Value: 1})
	}
	if err := r.updateOne(ctx, models.ByGooseID(gooseID), bson.D{{Key: "$inc", Value: inc}}, "log play"); err != nil {
		return err
	}
	if r.events != nil {
		if err := r.events.Record(ctx, gooseID, "", success); err != nil {
			r.logger.Warn("failed to record play event", "id", gooseID, "error", err)
		}
	}
	return nil
}
