package testing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/shared"
)

// MemoryTracks is an in-memory [models.TrackStore].
type MemoryTracks struct {
	mu     sync.Mutex
	tracks map[string]*models.Track
	plays  map[string][2]int
	// Err, when set, is returned by every call.
	Err error
}

func NewMemoryTracks(tracks ...models.Track) *MemoryTracks {
	m := &MemoryTracks{tracks: map[string]*models.Track{}, plays: map[string][2]int{}}
	for _, t := range tracks {
		c := t.Clone()
		m.tracks[t.Goose.ID] = &c
	}
	return m
}

func (m *MemoryTracks) find(l models.Lookup) *models.Track {
	for _, t := range m.tracks {
		if matches(t, l) {
			return t
		}
	}
	return nil
}

func matches(t *models.Track, l models.Lookup) bool {
	switch l.Field {
	case models.FieldGooseID:
		return t.Goose.ID == l.Value
	case models.FieldKeys:
		return t.HasKey(l.Value)
	case models.FieldYouTubeID:
		for _, y := range t.AudioSource.YouTube {
			if y.ID == l.Value {
				return true
			}
		}
	case models.FieldSubsonicID:
		return t.AudioSource.Subsonic != nil && t.AudioSource.Subsonic.HasID(l.Value)
	case models.FieldSpotifyID:
		return t.Spotify != nil && t.Spotify.HasID(l.Value)
	case models.FieldNapsterID:
		return t.Napster != nil && t.Napster.HasID(l.Value)
	}
	return false
}

func (m *MemoryTracks) update(l models.Lookup, fn func(t *models.Track)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if t := m.find(l); t != nil {
		fn(t)
	}
	return nil
}

func (m *MemoryTracks) GetTrack(ctx context.Context, l models.Lookup) (*models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	t := m.find(l)
	if t == nil {
		return nil, fmt.Errorf("%w: %s=%s", shared.ErrTrackNotFound, l.Field, l.Value)
	}
	c := t.Clone()
	return &c, nil
}

func (m *MemoryTracks) InsertTrack(ctx context.Context, t *models.Track) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.tracks[t.Goose.ID]; ok {
		return fmt.Errorf("%w: %s", shared.ErrTrackExists, t.Goose.ID)
	}
	c := t.Clone()
	c.Status = models.TrackStatus{}
	m.tracks[t.Goose.ID] = &c
	return nil
}

func (m *MemoryTracks) ReplaceTrack(ctx context.Context, t *models.Track) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	if _, ok := m.tracks[t.Goose.ID]; !ok {
		return 0, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, t.Goose.ID)
	}
	c := t.Clone()
	m.tracks[t.Goose.ID] = &c
	return 1, nil
}

func (m *MemoryTracks) AddKey(ctx context.Context, l models.Lookup, key string) error {
	return m.update(l, func(t *models.Track) {
		key = strings.ToLower(key)
		if !t.HasKey(key) {
			t.Keys = append(t.Keys, key)
		}
	})
}

func (m *MemoryTracks) AddSourceID(ctx context.Context, l models.Lookup, kind models.SourceKind, id string) error {
	return m.update(l, func(t *models.Track) {
		s := t.Spotify
		if kind == models.SourceNapster {
			s = t.Napster
		}
		if s != nil && !s.HasID(id) {
			s.ID = append(s.ID, id)
		}
	})
}

func (m *MemoryTracks) AddPlayableSourceID(ctx context.Context, l models.Lookup, id string) error {
	return m.update(l, func(t *models.Track) {
		if s := t.AudioSource.Subsonic; s != nil && !s.HasID(id) {
			s.ID = append(s.ID, id)
		}
	})
}

func (m *MemoryTracks) SetSource(ctx context.Context, l models.Lookup, kind models.SourceKind, s models.TrackSource) error {
	return m.update(l, func(t *models.Track) {
		if kind == models.SourceNapster {
			t.Napster = &s
		} else {
			t.Spotify = &s
		}
	})
}

func (m *MemoryTracks) SetPlayableSource(ctx context.Context, l models.Lookup, s models.TrackSource) error {
	return m.update(l, func(t *models.Track) {
		t.AudioSource.Subsonic = &s
		t.Goose.Track.Duration = s.Duration
	})
}

func (m *MemoryTracks) AppendAlternate(ctx context.Context, l models.Lookup, y models.YouTubeSource) error {
	return m.update(l, func(t *models.Track) {
		for _, v := range t.AudioSource.YouTube {
			if v.ID == y.ID {
				return
			}
		}
		t.AudioSource.YouTube = append(t.AudioSource.YouTube, y)
	})
}

func (m *MemoryTracks) SwitchAlternate(ctx context.Context, gooseID string, alternate int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tracks[gooseID]
	if !ok {
		return 0, nil
	}
	yt := t.AudioSource.YouTube
	if alternate <= 0 || alternate >= len(yt) {
		return 0, fmt.Errorf("%w: alternate %d", shared.ErrIndexOutOfRange, alternate)
	}
	yt[0], yt[alternate] = yt[alternate], yt[0]
	t.SyncDuration()
	return 1, nil
}

func (m *MemoryTracks) AddPlaylist(ctx context.Context, tracks []models.Track, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	name = shared.SanitizePlaylist(name)
	for _, t := range m.tracks {
		if _, ok := t.Playlists[name]; ok {
			return fmt.Errorf("%w: %s", shared.ErrPlaylistExists, name)
		}
	}
	i := 0
	for _, in := range tracks {
		t, ok := m.tracks[in.Goose.ID]
		if !ok {
			continue
		}
		if t.Playlists == nil {
			t.Playlists = map[string]int{}
		}
		t.Playlists[name] = i
		i++
	}
	return nil
}

func (m *MemoryTracks) GetPlaylist(ctx context.Context, name string) ([]models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = shared.SanitizePlaylist(name)
	var out []models.Track
	for _, t := range m.tracks {
		if _, ok := t.Playlists[name]; ok {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Playlists[name] < out[j].Playlists[name] })
	return out, nil
}

func (m *MemoryTracks) RemovePlaylist(ctx context.Context, name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = shared.SanitizePlaylist(name)
	n := 0
	for _, t := range m.tracks {
		if _, ok := t.Playlists[name]; ok {
			delete(t.Playlists, name)
			n++
		}
	}
	return n, nil
}

func (m *MemoryTracks) ListPlaylists(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	for _, t := range m.tracks {
		for name := range t.Playlists {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryTracks) RemoveTrack(ctx context.Context, youtubeID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tracks {
		if len(t.AudioSource.YouTube) > 0 && t.AudioSource.YouTube[0].ID == youtubeID {
			delete(m.tracks, id)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *MemoryTracks) CountTracks(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.tracks)), nil
}

func (m *MemoryTracks) UpdateOfficial(ctx context.Context, gooseID, link string) error {
	return m.update(models.ByGooseID(gooseID), func(t *models.Track) { t.Goose.Artist.Official = link })
}

func (m *MemoryTracks) LogPlay(ctx context.Context, gooseID string, success bool) error {
	return m.update(models.ByGooseID(gooseID), func(t *models.Track) {
		t.Goose.Plays++
		if !success {
			t.Goose.Errors++
		}
	})
}

// Len returns the number of stored tracks.
func (m *MemoryTracks) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tracks)
}

// PlayRecorder is a [models.PlayLogger] that remembers every call.
type PlayRecorder struct {
	mu    sync.Mutex
	Plays []Play
	done  chan struct{}
	Err   error
}

// Play is one recorded LogPlay call.
type Play struct {
	GooseID string
	Success bool
}

// NewPlayRecorder returns a recorder whose Wait unblocks after n calls.
func NewPlayRecorder(n int) *PlayRecorder {
	r := &PlayRecorder{done: make(chan struct{}, n)}
	return r
}

func (r *PlayRecorder) LogPlay(ctx context.Context, gooseID string, success bool) error {
	r.mu.Lock()
	r.Plays = append(r.Plays, Play{GooseID: gooseID, Success: success})
	r.mu.Unlock()
	if r.done != nil {
		select {
		case r.done <- struct{}{}:
		default:
		}
	}
	return r.Err
}

// Wait blocks until n plays were recorded since construction.
func (r *PlayRecorder) Wait(t *testing.T, n int) []Play {
	t.Helper()
	for i := 0; i < n; i++ {
		<-r.done
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Play(nil), r.Plays...)
}

// FakeSource satisfies the provider adapter contract from fixed data.
type FakeSource struct {
	SourceKind models.SourceKind
	Tracks     map[string]models.TrackSource
	Albums     map[string][]models.TrackSource
	Playlists  map[string][]models.TrackSource
	Text       map[string]models.TrackSource

	mu      sync.Mutex
	Queries []string
}

func (f *FakeSource) Kind() models.SourceKind { return f.SourceKind }

func (f *FakeSource) FromTrack(ctx context.Context, id string) (*models.TrackSource, error) {
	s, ok := f.Tracks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", shared.ErrTrackNotFound, f.SourceKind, id)
	}
	return &s, nil
}

func (f *FakeSource) FromAlbum(ctx context.Context, id string) ([]models.TrackSource, error) {
	s, ok := f.Albums[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s album %s", shared.ErrTrackNotFound, f.SourceKind, id)
	}
	return s, nil
}

func (f *FakeSource) FromPlaylist(ctx context.Context, id string) ([]models.TrackSource, error) {
	s, ok := f.Playlists[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return s, nil
}

func (f *FakeSource) FromText(ctx context.Context, query string) (*models.TrackSource, error) {
	f.mu.Lock()
	f.Queries = append(f.Queries, query)
	f.mu.Unlock()
	s, ok := f.Text[query]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// SearchCount reports how many text searches ran.
func (f *FakeSource) SearchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Queries)
}

// ErrFake is a generic failure for fakes.
var ErrFake = errors.New("fake failure")

// MemoryUsers is an in-memory [models.UserStore] keyed by Discord id.
type MemoryUsers struct {
	mu     sync.Mutex
	users  map[string]*models.User
	tracks models.TrackStore
	// Err, when set, is returned by every call.
	Err error
}

// NewMemoryUsers returns an empty user store. tracks resolves stashes and may be nil.
func NewMemoryUsers(tracks models.TrackStore) *MemoryUsers {
	return &MemoryUsers{users: map[string]*models.User{}, tracks: tracks}
}

func (m *MemoryUsers) NewUser(ctx context.Context, p models.DiscordProfile) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if _, ok := m.users[p.ID]; ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserExists, p.Username)
	}
	u := &models.User{
		Goose:   models.UserGoose{ID: shared.GenerateID(), Username: p.Username, Locale: p.Locale},
		Discord: models.DiscordIdentity{ID: p.ID, Locale: p.Locale, Username: models.History{Current: p.Username}},
		Version: models.UserVersion,
	}
	m.users[p.ID] = u
	c := *u
	return &c, nil
}

func (m *MemoryUsers) lookup(discordID string) (*models.User, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	u, ok := m.users[discordID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, discordID)
	}
	return u, nil
}

func (m *MemoryUsers) GetUser(ctx context.Context, discordID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.lookup(discordID)
	if err != nil {
		return nil, err
	}
	c := *u
	return &c, nil
}

func (m *MemoryUsers) UpdateUser(ctx context.Context, discordID string, field models.UserField, value, guildID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.lookup(discordID)
	if err != nil {
		return err
	}
	switch field {
	case models.UserFieldLocale:
		u.Discord.Locale = value
	case models.UserFieldUsername:
		u.Discord.Username.Current = value
	default:
		return fmt.Errorf("%w: user field %q", shared.ErrInvalidArgument, field)
	}
	return nil
}

func (m *MemoryUsers) ReplaceUser(ctx context.Context, u *models.User) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.lookup(u.Discord.ID); err != nil {
		return 0, err
	}
	c := *u
	m.users[u.Discord.ID] = &c
	return 1, nil
}

func (m *MemoryUsers) SaveStash(ctx context.Context, discordIDs []string, playhead int, queue []models.Track) error {
	stash, ok := models.NewStash(playhead, queue)
	if !ok {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, id := range discordIDs {
		u, err := m.lookup(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		u.Stash = stash
	}
	return errors.Join(errs...)
}

func (m *MemoryUsers) GetStash(ctx context.Context, discordID string) (int, []models.Track, error) {
	m.mu.Lock()
	u, err := m.lookup(discordID)
	var stash models.Stash
	if err == nil {
		stash = u.Stash
	}
	m.mu.Unlock()
	if err != nil {
		return 0, nil, err
	}

	var tracks []models.Track
	for _, id := range stash.Tracks {
		if m.tracks == nil {
			break
		}
		if t, err := m.tracks.GetTrack(ctx, models.ByGooseID(id)); err == nil {
			tracks = append(tracks, *t)
		}
	}
	playhead := stash.Playhead
	if playhead >= len(tracks) {
		playhead = 0
	}
	return playhead, tracks, nil
}

func (m *MemoryUsers) SaveToken(ctx context.Context, discordID, service string, token models.OAuthToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.lookup(discordID)
	if err != nil {
		return err
	}
	switch service {
	case models.ServiceSpotify:
		u.Tokens.Spotify = &token
	case models.ServiceNapster:
		u.Tokens.Napster = &token
	case models.ServiceLastFM:
		u.Tokens.LastFM = &token
	default:
		return fmt.Errorf("%w: service %q", shared.ErrInvalidArgument, service)
	}
	return nil
}

func (m *MemoryUsers) LinkAccount(ctx context.Context, discordID, service string, account models.LinkedAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.lookup(discordID)
	if err != nil {
		return err
	}
	switch service {
	case models.ServiceSpotify:
		u.Spotify = &account
	case models.ServiceNapster:
		u.Napster = &account
	case models.ServiceLastFM:
		u.LastFM = &account
	default:
		return fmt.Errorf("%w: service %q", shared.ErrInvalidArgument, service)
	}
	return nil
}

func (m *MemoryUsers) GetUserByWebClientID(ctx context.Context, webClientID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, u := range m.users {
		if u.WebClientID != "" && u.WebClientID == webClientID {
			c := *u
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: web client %s", shared.ErrUserNotFound, webClientID)
}

// SetWebClientID assigns a web client id to a stored user.
func (m *MemoryUsers) SetWebClientID(discordID, webClientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[discordID]; ok {
		u.WebClientID = webClientID
	}
}
