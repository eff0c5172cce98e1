// Package workspace provides per-user staging lists.
//
// A [Workspace] is edited freely and never plays; its contents are queued on request or
// saved as a named playlist. Workspaces live in memory until emptied and evicted, or until
// [Workspaces.EvictIdle] removes them.
package workspace

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/sessions"
	"github.com/desertthunder/goose/internal/shared"
	"github.com/disgoorg/snowflake/v2"
)

// Playlists is the part of the track store a workspace saves to and loads from.
type Playlists interface {
	AddPlaylist(ctx context.Context, tracks []models.Track, name string) error
	GetPlaylist(ctx context.Context, name string) ([]models.Track, error)
}

// QueueSource is anything with a playhead and an ordered track list, typically a
// player.Queue.
type QueueSource interface {
	Playhead() int
	Tracks() []models.Track
}

// Workspace is one user's staging list.
type Workspace struct {
	mu     sync.Mutex
	user   snowflake.ID
	tracks []models.Track
	store  Playlists
	logger *log.Logger
}

// New returns an empty workspace. store may be nil when saving and loading are not needed.
func New(user snowflake.ID, store Playlists, logger *log.Logger) *Workspace {
	return &Workspace{
		user:   user,
		store:  store,
		logger: shared.WithLogger(logger, "module", "workspace", "user", user),
	}
}

// User returns the owner's Discord id.
func (w *Workspace) User() snowflake.ID {
	return w.user
}

// Len returns the number of staged tracks.
func (w *Workspace) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.tracks)
}

// Tracks returns a copy of the list.
func (w *Workspace) Tracks() []models.Track {
	w.mu.Lock()
	defer w.mu.Unlock()
	return cloneAll(w.tracks)
}

func cloneAll(tracks []models.Track) []models.Track {
	out := make([]models.Track, len(tracks))
	for i, t := range tracks {
		out[i] = t.Clone()
	}
	return out
}

// AddTracks inserts tracks at index at, keeping their order, and returns the index they
// were inserted at. at is clamped to [0, Len()].
func (w *Workspace) AddTracks(tracks []models.Track, at int) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	at = min(max(at, 0), len(w.tracks))
	w.tracks = slices.Insert(w.tracks, at, cloneAll(tracks)...)
	return at
}

// RemoveTrack removes and returns the track at i.
func (w *Workspace) RemoveTrack(i int) (models.Track, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if i < 0 || i >= len(w.tracks) {
		return models.Track{}, fmt.Errorf("%w: %d of %d", shared.ErrIndexOutOfRange, i, len(w.tracks))
	}
	t := w.tracks[i]
	w.tracks = slices.Delete(w.tracks, i, i+1)
	return t, nil
}

// MoveTrack moves the track at from so that it ends up at index to, and returns it.
func (w *Workspace) MoveTrack(from, to int) (models.Track, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := len(w.tracks)
	if from < 0 || from >= n || to < 0 || to >= n {
		return models.Track{}, fmt.Errorf("%w: move %d to %d of %d", shared.ErrIndexOutOfRange, from, to, n)
	}
	t := w.tracks[from]
	w.tracks = slices.Delete(w.tracks, from, from+1)
	w.tracks = slices.Insert(w.tracks, to, t)
	return t, nil
}

// EmptyList removes every track.
func (w *Workspace) EmptyList() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tracks = nil
}

// ImportQueue appends what is left of q, from its playhead to the end, and returns the
// number of tracks added.
func (w *Workspace) ImportQueue(q QueueSource) int {
	tracks := q.Tracks()
	playhead := min(max(q.Playhead(), 0), len(tracks))
	rest := tracks[playhead:]

	w.mu.Lock()
	defer w.mu.Unlock()
	w.tracks = append(w.tracks, rest...)
	return len(rest)
}

// Page is one page of a workspace listing.
type Page struct {
	Tracks []models.Track
	Offset int // Index of the first track on the page
	Page   int // 1-based, clamped
	Pages  int
	Total  int
}

// Page returns page n with size tracks per page. size <= 0 uses [shared.PageSize].
func (w *Workspace) Page(n, size int) Page {
	w.mu.Lock()
	defer w.mu.Unlock()

	if size <= 0 {
		size = shared.PageSize
	}
	start, end, page, pages := shared.Paginate(len(w.tracks), n, size)
	return Page{
		Tracks: cloneAll(w.tracks[start:end]),
		Offset: start,
		Page:   page,
		Pages:  pages,
		Total:  len(w.tracks),
	}
}

// Save stores the workspace as playlist name. Placeholders are not saved.
func (w *Workspace) Save(ctx context.Context, name string) (int, error) {
	if w.store == nil {
		return 0, fmt.Errorf("%w: no playlist store", shared.ErrStoreUnavailable)
	}
	name = shared.SanitizePlaylist(name)
	if name == "" {
		return 0, fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	var tracks []models.Track
	for _, t := range w.Tracks() {
		if !t.Pending() {
			tracks = append(tracks, t)
		}
	}
	if len(tracks) == 0 {
		return 0, fmt.Errorf("%w: workspace has no saved tracks", shared.ErrInvalidArgument)
	}

	if err := w.store.AddPlaylist(ctx, tracks, name); err != nil {
		w.logger.Error("failed to save playlist", "name", name, "error", err)
		return 0, err
	}
	w.logger.Info("saved playlist", "name", name, "tracks", len(tracks))
	return len(tracks), nil
}

// Load appends playlist name and returns the number of tracks added.
func (w *Workspace) Load(ctx context.Context, name string) (int, error) {
	if w.store == nil {
		return 0, fmt.Errorf("%w: no playlist store", shared.ErrStoreUnavailable)
	}
	name = shared.SanitizePlaylist(name)
	if name == "" {
		return 0, fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	tracks, err := w.store.GetPlaylist(ctx, name)
	if err != nil {
		return 0, err
	}
	if len(tracks) == 0 {
		return 0, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, name)
	}

	w.mu.Lock()
	w.tracks = append(w.tracks, tracks...)
	w.mu.Unlock()
	return len(tracks), nil
}

// Workspaces maps users to their workspaces.
type Workspaces struct {
	registry *sessions.Registry[*Workspace]
}

func NewWorkspaces(store Playlists, logger *log.Logger) *Workspaces {
	return &Workspaces{registry: sessions.NewRegistry(func(user snowflake.ID) *Workspace {
		return New(user, store, logger)
	})}
}

// Get returns the user's workspace, creating it on first access.
func (ws *Workspaces) Get(user snowflake.ID) *Workspace {
	w, _ := ws.registry.GetOrCreate(user)
	return w
}

// Peek returns the user's workspace only if it exists.
func (ws *Workspaces) Peek(user snowflake.ID) (*Workspace, bool) {
	return ws.registry.Get(user)
}

// Discard empties the user's workspace and forgets it.
func (ws *Workspaces) Discard(user snowflake.ID) bool {
	if w, ok := ws.registry.Get(user); ok {
		w.EmptyList()
	}
	return ws.registry.Evict(user)
}

// EvictIdle forgets workspaces untouched for ttl.
func (ws *Workspaces) EvictIdle(ttl time.Duration) int {
	return ws.registry.EvictIdle(ttl)
}

// Len returns the number of live workspaces.
func (ws *Workspaces) Len() int {
	return ws.registry.Len()
}

// Janitor evicts idle workspaces every interval until ctx is done.
func (ws *Workspaces) Janitor(ctx context.Context, interval, ttl time.Duration, logger *log.Logger) {
	logger = shared.WithLogger(logger, "module", "workspace")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := ws.EvictIdle(ttl); n > 0 {
				logger.Debug("evicted idle workspaces", "count", n)
			}
		}
	}
}
