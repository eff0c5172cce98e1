package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/services"
	"github.com/desertthunder/goose/internal/shared"
)

// SearchCache remembers which stored track a text query resolved to.
type SearchCache interface {
	Lookup(ctx context.Context, query string) (string, error)
	Store(ctx context.Context, query, trackID string) error
	Forget(ctx context.Context, trackID string) (int, error)
}

// OfficialLinks finds an artist's homepage.
type OfficialLinks interface {
	OfficialLink(ctx context.Context, artist string) (string, error)
}

// textOrder is the preference order for free-text searches.
var textOrder = []models.SourceKind{models.SourceSubsonic, models.SourceYouTube}

const collectionWorkers = 4

// Pipeline turns user input into stored, playable tracks.
type Pipeline struct {
	classifier *Classifier
	sources    map[models.SourceKind]services.Source
	tracks     models.TrackStore
	cache      SearchCache
	official   OfficialLinks
	locks      keyedLocks
	logger     *log.Logger
}

type PipelineOption func(*Pipeline)

// WithSource registers an adapter under its own kind.
func WithSource(s services.Source) PipelineOption {
	return func(p *Pipeline) { p.sources[s.Kind()] = s }
}

// WithSearchCache enables the text query cache.
func WithSearchCache(c SearchCache) PipelineOption {
	return func(p *Pipeline) { p.cache = c }
}

// WithOfficialLinks fills the artist homepage of newly stored tracks.
func WithOfficialLinks(o OfficialLinks) PipelineOption {
	return func(p *Pipeline) { p.official = o }
}

// WithClassifier replaces the default classifier, typically to add Subsonic hosts.
func WithClassifier(c *Classifier) PipelineOption {
	return func(p *Pipeline) { p.classifier = c }
}

func NewPipeline(tracks models.TrackStore, logger *log.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		classifier: defaultClassifier,
		sources:    map[models.SourceKind]services.Source{},
		tracks:     tracks,
		logger:     shared.WithLogger(logger, "module", "acquire"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fetch classifies input and resolves it to tracks in input order.
//
// Items that fail are returned as placeholders among the successes. When nothing resolves
// the error wraps [shared.ErrNoResult].
func (p *Pipeline) Fetch(ctx context.Context, input string) ([]models.Track, error) {
	input = shared.Sanitize(input)
	if input == "" {
		return nil, fmt.Errorf("%w: search text", shared.ErrMissingArgument)
	}

	ref := p.classifier.Classify(input)
	logger := p.logger.With("kind", ref.Kind, "id", ref.ID)
	logger.Debug("fetching")

	var tracks []models.Track
	switch ref.Kind.Shape() {
	case ShapeText:
		t, err := p.fromText(ctx, ref.ID)
		if err != nil {
			logger.Warn("text search failed", "error", err)
			if errors.Is(err, shared.ErrNoResult) {
				return nil, fmt.Errorf("%w for '%s'", shared.ErrNoResult, input)
			}
			return nil, err
		}
		tracks = []models.Track{*t}

	case ShapeTrack:
		src, err := p.source(ref.Kind.Source())
		if err != nil {
			return nil, err
		}
		s, err := src.FromTrack(ctx, ref.ID)
		if err != nil {
			logger.Warn("fetch failed", "error", err)
			return nil, fmt.Errorf("%w for '%s': %v", shared.ErrNoResult, input, err)
		}
		t, err := p.resolve(ctx, src.Kind(), *s)
		if err != nil {
			logger.Warn("resolve failed", "error", err)
			return nil, fmt.Errorf("%w for '%s': %v", shared.ErrNoResult, input, err)
		}
		tracks = []models.Track{t}

	default:
		src, err := p.source(ref.Kind.Source())
		if err != nil {
			return nil, err
		}
		var sources []models.TrackSource
		if ref.Kind.Shape() == ShapeAlbum {
			sources, err = src.FromAlbum(ctx, ref.ID)
		} else {
			sources, err = src.FromPlaylist(ctx, ref.ID)
		}
		if err != nil {
			logger.Warn("collection fetch failed", "error", err)
			return nil, fmt.Errorf("%w for '%s': %v", shared.ErrNoResult, input, err)
		}
		tracks = p.resolveAll(ctx, src.Kind(), sources)
	}

	resolved := 0
	for _, t := range tracks {
		if !t.Status.Failed {
			resolved++
		}
	}
	if resolved == 0 {
		return nil, fmt.Errorf("%w for '%s'", shared.ErrNoResult, input)
	}
	logger.Info("fetched", "tracks", resolved, "failed", len(tracks)-resolved)
	return tracks, nil
}

func (p *Pipeline) source(kind models.SourceKind) (services.Source, error) {
	src, ok := p.sources[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not configured", shared.ErrServiceUnavailable, kind)
	}
	return src, nil
}

// resolveAll resolves a collection in order with a few concurrent workers.
func (p *Pipeline) resolveAll(ctx context.Context, kind models.SourceKind, sources []models.TrackSource) []models.Track {
	out := make([]models.Track, len(sources))
	sem := make(chan struct{}, collectionWorkers)

	var wg sync.WaitGroup
	for i, s := range sources {
		wg.Add(1)
		go func(i int, s models.TrackSource) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			t, err := p.resolve(ctx, kind, s)
			if err != nil {
				p.logger.Warn("item failed", "name", s.Name, "error", err)
				out[i] = models.NewPlaceholder(fmt.Sprintf("%s - %s", s.Name, s.Artist.Name))
				return
			}
			out[i] = t
		}(i, s)
	}
	wg.Wait()
	return out
}

// resolve makes one source into a stored track.
func (p *Pipeline) resolve(ctx context.Context, kind models.SourceKind, s models.TrackSource) (models.Track, error) {
	if err := ctx.Err(); err != nil {
		return models.Track{}, err
	}
	if kind.Playable() {
		return p.reconcile(ctx, kind, s, "")
	}
	return p.resolveMetadata(ctx, kind, s)
}

// lookup returns nil, nil on a miss.
func (p *Pipeline) lookup(ctx context.Context, l models.Lookup) (*models.Track, error) {
	t, err := p.tracks.GetTrack(ctx, l)
	if err != nil {
		if errors.Is(err, shared.ErrTrackNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// searchText asks each configured playable adapter in preference order; the first hit wins.
func (p *Pipeline) searchText(ctx context.Context, query string) (models.SourceKind, *models.TrackSource) {
	for _, kind := range textOrder {
		src, ok := p.sources[kind]
		if !ok {
			continue
		}
		s, err := src.FromText(ctx, query)
		if err != nil {
			p.logger.Warn("search failed", "source", kind, "query", query, "error", err)
			continue
		}
		if s != nil {
			return kind, s
		}
	}
	return "", nil
}

// fromText resolves free text, consulting the cache and stored keys before searching.
func (p *Pipeline) fromText(ctx context.Context, query string) (*models.Track, error) {
	key := shared.NormalizeKey(query)

	if p.cache != nil {
		if id, err := p.cache.Lookup(ctx, key); err == nil {
			t, err := p.lookup(ctx, models.ByGooseID(id))
			switch {
			case err == nil && t != nil:
				p.logger.Debug("search cache hit", "query", key, "id", id)
				return t, nil
			case err == nil:
				// track was removed from the store
				if _, err := p.cache.Forget(ctx, id); err != nil {
					p.logger.Warn("failed to drop stale cache entries", "id", id, "error", err)
				}
			}
		}
	}

	t, err := p.lookup(ctx, models.ByKey(key))
	if err != nil {
		return nil, err
	}
	if t == nil {
		kind, s := p.searchText(ctx, query)
		if s == nil {
			return nil, fmt.Errorf("%w: %s", shared.ErrNoResult, query)
		}
		found, err := p.reconcile(ctx, kind, *s, key)
		if err != nil {
			return nil, err
		}
		t = &found
	}

	if p.cache != nil {
		if err := p.cache.Store(ctx, key, t.Goose.ID); err != nil {
			p.logger.Warn("failed to cache search", "query", key, "error", err)
		}
	}
	return t, nil
}

// reconcile matches a playable source against the store by provider id, then by key,
// merging into what it finds or inserting a new track.
//
// Calls for the same provider id run one at a time, so a batch that repeats an id stores
// one track.
func (p *Pipeline) reconcile(ctx context.Context, kind models.SourceKind, s models.TrackSource, key string) (models.Track, error) {
	defer p.locks.lockSource(kind, s.PrimaryID())()

	existing, err := p.lookup(ctx, models.BySource(kind, s.PrimaryID()))
	if err != nil {
		return models.Track{}, err
	}
	if existing == nil && key != "" {
		if existing, err = p.lookup(ctx, models.ByKey(key)); err != nil {
			return models.Track{}, err
		}
	}
	if existing != nil {
		return p.mergeKeyed(ctx, existing, kind, s, key)
	}

	t := newTrack(kind, s)
	if key != "" {
		t.Keys = []string{key}
	}
	if err := p.insert(ctx, &t); err != nil {
		if existing := p.raced(ctx, err, kind, s.PrimaryID()); existing != nil {
			return p.mergeKeyed(ctx, existing, kind, s, key)
		}
		return models.Track{}, err
	}
	return t, nil
}

// mergeKeyed merges s into existing and records key on it.
func (p *Pipeline) mergeKeyed(ctx context.Context, existing *models.Track, kind models.SourceKind, s models.TrackSource, key string) (models.Track, error) {
	if err := p.merge(ctx, existing, kind, s); err != nil {
		return models.Track{}, err
	}
	if key != "" && !existing.HasKey(key) {
		if err := p.tracks.AddKey(ctx, models.ByGooseID(existing.Goose.ID), key); err != nil {
			return models.Track{}, err
		}
		existing.Keys = append(existing.Keys, key)
	}
	return *existing, nil
}

// insert stores a new track and fills its official link.
func (p *Pipeline) insert(ctx context.Context, t *models.Track) error {
	if err := p.tracks.InsertTrack(ctx, t); err != nil {
		return err
	}
	p.fillOfficial(ctx, t)
	return nil
}

// raced returns the track another process stored for the provider id when insertErr is a
// uniqueness conflict, and nil otherwise.
func (p *Pipeline) raced(ctx context.Context, insertErr error, kind models.SourceKind, id string) *models.Track {
	if !errors.Is(insertErr, shared.ErrTrackExists) {
		return nil
	}
	existing, err := p.lookup(ctx, models.BySource(kind, id))
	if err != nil || existing == nil {
		return nil
	}
	p.logger.Debug("merging into concurrently stored track", "source", kind, "id", existing.Goose.ID)
	return existing
}

// resolveMetadata finds a playable source for a Spotify or Napster track and attaches
// the metadata to it.
func (p *Pipeline) resolveMetadata(ctx context.Context, kind models.SourceKind, meta models.TrackSource) (models.Track, error) {
	defer p.locks.lockSource(kind, meta.PrimaryID())()

	existing, err := p.lookup(ctx, models.BySource(kind, meta.PrimaryID()))
	if err != nil {
		return models.Track{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	query := shared.SearchQuery(meta.Name, meta.Artist.Name)
	pk, ps := p.searchText(ctx, query)
	if ps == nil {
		return models.Track{}, fmt.Errorf("%w: no playable source for %s", shared.ErrNoResult, query)
	}

	defer p.locks.lockSource(pk, ps.PrimaryID())()

	if existing, err = p.lookup(ctx, models.BySource(pk, ps.PrimaryID())); err != nil {
		return models.Track{}, err
	}
	if existing != nil {
		return p.mergeKeyed(ctx, existing, kind, meta, "")
	}

	t := newTrack(pk, *ps)
	t.Goose.Track.Name = meta.Name
	t.Goose.Artist = models.ArtistInfo{Name: meta.Artist.Name, ID: meta.Artist.ID}
	t.Goose.Album = models.AlbumInfo{Name: meta.Album.Name, ID: meta.Album.ID, TrackNumber: meta.Album.TrackNumber}
	if meta.Art != "" {
		t.Goose.Track.Art = meta.Art
	}
	setMetadata(&t, kind, meta)
	if err := p.insert(ctx, &t); err != nil {
		if existing := p.raced(ctx, err, pk, ps.PrimaryID()); existing != nil {
			return p.mergeKeyed(ctx, existing, kind, meta, "")
		}
		return models.Track{}, err
	}
	return t, nil
}

// merge folds s into a stored track, updating t to match.
func (p *Pipeline) merge(ctx context.Context, t *models.Track, kind models.SourceKind, s models.TrackSource) error {
	l := models.ByGooseID(t.Goose.ID)
	id := s.PrimaryID()

	switch kind {
	case models.SourceYouTube:
		for _, y := range t.AudioSource.YouTube {
			if y.ID == id {
				return nil
			}
		}
		y := services.TrackSourceToYouTubeSource(s)
		if err := p.tracks.AppendAlternate(ctx, l, y); err != nil {
			return err
		}
		t.AudioSource.YouTube = append(t.AudioSource.YouTube, y)

	case models.SourceSubsonic:
		switch {
		case t.AudioSource.Subsonic == nil:
			if err := p.tracks.SetPlayableSource(ctx, l, s); err != nil {
				return err
			}
			c := s
			t.AudioSource.Subsonic = &c
			t.Goose.Track.Duration = s.Duration
		case !t.AudioSource.Subsonic.HasID(id):
			if err := p.tracks.AddPlayableSourceID(ctx, l, id); err != nil {
				return err
			}
			t.AudioSource.Subsonic.ID = append(t.AudioSource.Subsonic.ID, id)
		}

	case models.SourceSpotify, models.SourceNapster:
		current := t.Spotify
		if kind == models.SourceNapster {
			current = t.Napster
		}
		switch {
		case current == nil:
			if err := p.tracks.SetSource(ctx, l, kind, s); err != nil {
				return err
			}
			setMetadata(t, kind, s)
		case !current.HasID(id):
			if err := p.tracks.AddSourceID(ctx, l, kind, id); err != nil {
				return err
			}
			current.ID = append(current.ID, id)
		}
	}
	return nil
}

// fillOfficial is best effort; a failed lookup leaves the link empty.
func (p *Pipeline) fillOfficial(ctx context.Context, t *models.Track) {
	if p.official == nil || t.Goose.Artist.Name == "" || t.Goose.Artist.Official != "" {
		return
	}
	link, err := p.official.OfficialLink(ctx, t.Goose.Artist.Name)
	if err != nil {
		p.logger.Debug("official link lookup failed", "artist", t.Goose.Artist.Name, "error", err)
		return
	}
	if link == "" {
		return
	}
	if err := p.tracks.UpdateOfficial(ctx, t.Goose.ID, link); err != nil {
		p.logger.Warn("failed to store official link", "id", t.Goose.ID, "error", err)
		return
	}
	t.Goose.Artist.Official = link
}

func setMetadata(t *models.Track, kind models.SourceKind, s models.TrackSource) {
	c := s
	if kind == models.SourceSpotify {
		t.Spotify = &c
	} else {
		t.Napster = &c
	}
}

// newTrack builds an unsaved track around a playable source.
func newTrack(kind models.SourceKind, s models.TrackSource) models.Track {
	t := models.Track{
		Goose: models.TrackGoose{
			ID:     shared.GenerateID(),
			Track:  models.TrackInfo{Name: s.Name, Duration: s.Duration, Art: s.Art},
			Artist: models.ArtistInfo{Name: s.Artist.Name, ID: s.Artist.ID},
			Album:  models.AlbumInfo{Name: s.Album.Name, ID: s.Album.ID, TrackNumber: s.Album.TrackNumber},
		},
		Version: models.TrackVersion,
	}

	switch kind {
	case models.SourceYouTube:
		t.AudioSource.YouTube = []models.YouTubeSource{services.TrackSourceToYouTubeSource(s)}
		if cid := s.ContentID; cid != nil && cid.Name != "" {
			t.Goose.Track.Name = cid.Name
			t.Goose.Artist.Name = cid.Artist
		}
	case models.SourceSubsonic:
		c := s
		t.AudioSource.Subsonic = &c
	}
	return t
}
