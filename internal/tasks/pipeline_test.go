package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/repositories"
	"github.com/desertthunder/goose/internal/shared"
	tu "github.com/desertthunder/goose/internal/testing"
)

func source(id, name, artist string, duration int) models.TrackSource {
	return models.TrackSource{
		ID:       []string{id},
		Name:     name,
		Duration: duration,
		URL:      "https://example.com/" + id,
		Artist:   models.SourceArtist{Name: artist},
	}
}

func stored(id string) models.Track {
	return models.Track{
		Goose: models.TrackGoose{
			ID:     id,
			Track:  models.TrackInfo{Name: "One More Time", Duration: 320},
			Artist: models.ArtistInfo{Name: "Daft Punk"},
		},
		Version: models.TrackVersion,
	}
}

func TestPipeline_Fetch_Text(t *testing.T) {
	ctx := context.Background()

	t.Run("prefers Subsonic over YouTube", func(t *testing.T) {
		store := tu.NewMemoryTracks()
		sub := &tu.FakeSource{SourceKind: models.SourceSubsonic, Text: map[string]models.TrackSource{
			"Daft Punk One More Time": source("s1", "One More Time", "Daft Punk", 320),
		}}
		yt := &tu.FakeSource{SourceKind: models.SourceYouTube, Text: map[string]models.TrackSource{
			"Daft Punk One More Time": source("y1", "One More Time (Official)", "DaftPunkVEVO", 322),
		}}
		p := NewPipeline(store, nil, WithSource(yt), WithSource(sub))

		tracks, err := p.Fetch(ctx, "Daft Punk One More Time")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 1 {
			t.Fatalf("expected 1 track, got %d", len(tracks))
		}

		got := tracks[0]
		if got.AudioSource.Subsonic == nil || got.AudioSource.Subsonic.PrimaryID() != "s1" {
			t.Errorf("expected Subsonic source s1, got %+v", got.AudioSource.Subsonic)
		}
		if len(got.AudioSource.YouTube) != 0 {
			t.Errorf("expected no YouTube alternates, got %d", len(got.AudioSource.YouTube))
		}
		if !got.HasKey("daft punk one more time") {
			t.Errorf("expected normalized key, got %v", got.Keys)
		}
		if yt.SearchCount() != 0 {
			t.Errorf("expected YouTube not to be searched, got %d searches", yt.SearchCount())
		}
		if store.Len() != 1 {
			t.Errorf("expected 1 stored track, got %d", store.Len())
		}
	})

	t.Run("falls back to YouTube", func(t *testing.T) {
		store := tu.NewMemoryTracks()
		sub := &tu.FakeSource{SourceKind: models.SourceSubsonic}
		y := source("y1", "Daft Punk - One More Time (Official Video)", "DaftPunkVEVO", 322)
		y.ContentID = &models.ContentID{Name: "One More Time", Artist: "Daft Punk"}
		yt := &tu.FakeSource{SourceKind: models.SourceYouTube, Text: map[string]models.TrackSource{"one more time": y}}
		p := NewPipeline(store, nil, WithSource(sub), WithSource(yt))

		tracks, err := p.Fetch(ctx, "one more time")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := tracks[0]
		if sub.SearchCount() != 1 {
			t.Errorf("expected Subsonic to be asked first, got %d searches", sub.SearchCount())
		}
		if len(got.AudioSource.YouTube) != 1 || got.AudioSource.YouTube[0].ID != "y1" {
			t.Fatalf("expected YouTube source y1, got %+v", got.AudioSource.YouTube)
		}
		if got.Goose.Track.Name != "One More Time" || got.Goose.Artist.Name != "Daft Punk" {
			t.Errorf("expected content id to name the track, got %q by %q", got.Goose.Track.Name, got.Goose.Artist.Name)
		}
		if got.Goose.Track.Duration != 322 {
			t.Errorf("expected duration 322, got %d", got.Goose.Track.Duration)
		}
	})

	t.Run("stored key skips the search", func(t *testing.T) {
		existing := stored("g1")
		existing.Keys = []string{"one more time"}
		store := tu.NewMemoryTracks(existing)
		yt := &tu.FakeSource{SourceKind: models.SourceYouTube}
		p := NewPipeline(store, nil, WithSource(yt))

		tracks, err := p.Fetch(ctx, "  One   MORE time ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tracks[0].Goose.ID != "g1" {
			t.Errorf("expected stored track g1, got %q", tracks[0].Goose.ID)
		}
		if yt.SearchCount() != 0 {
			t.Errorf("expected no searches, got %d", yt.SearchCount())
		}
	})

	t.Run("search hit on a stored source adds the key", func(t *testing.T) {
		existing := stored("g1")
		existing.AudioSource.Subsonic = &models.TrackSource{ID: []string{"s1"}, Name: "One More Time"}
		store := tu.NewMemoryTracks(existing)
		sub := &tu.FakeSource{SourceKind: models.SourceSubsonic, Text: map[string]models.TrackSource{
			"omt daft": source("s1", "One More Time", "Daft Punk", 320),
		}}
		p := NewPipeline(store, nil, WithSource(sub))

		tracks, err := p.Fetch(ctx, "omt daft")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tracks[0].Goose.ID != "g1" {
			t.Errorf("expected merge into g1, got %q", tracks[0].Goose.ID)
		}
		if store.Len() != 1 {
			t.Errorf("expected no new track, got %d stored", store.Len())
		}

		got, err := store.GetTrack(ctx, models.ByKey("omt daft"))
		if err != nil {
			t.Fatalf("expected key to be stored: %v", err)
		}
		if got.Goose.ID != "g1" {
			t.Errorf("expected key on g1, got %q", got.Goose.ID)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		p := NewPipeline(tu.NewMemoryTracks(), nil, WithSource(&tu.FakeSource{SourceKind: models.SourceYouTube}))

		_, err := p.Fetch(ctx, "zzqx no such song")
		if !errors.Is(err, shared.ErrNoResult) {
			t.Fatalf("expected ErrNoResult, got %v", err)
		}
		if !strings.Contains(err.Error(), "zzqx no such song") {
			t.Errorf("expected error to name the input, got %q", err.Error())
		}
	})

	t.Run("empty input", func(t *testing.T) {
		p := NewPipeline(tu.NewMemoryTracks(), nil)

		for _, input := range []string{"", "   ", "<>"} {
			if _, err := p.Fetch(ctx, input); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("Fetch(%q): expected ErrMissingArgument, got %v", input, err)
			}
		}
	})

	t.Run("store failure is not a miss", func(t *testing.T) {
		store := tu.NewMemoryTracks()
		store.Err = tu.ErrFake
		p := NewPipeline(store, nil, WithSource(&tu.FakeSource{SourceKind: models.SourceYouTube}))

		_, err := p.Fetch(ctx, "anything")
		if !errors.Is(err, tu.ErrFake) {
			t.Fatalf("expected store error, got %v", err)
		}
		if errors.Is(err, shared.ErrNoResult) {
			t.Error("store failure should not read as no result")
		}
	})
}

func TestPipeline_Fetch_SearchCache(t *testing.T) {
	ctx := context.Background()

	db, err := shared.OpenLedger(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	cache := repositories.NewSearchCacheRepository(db)

	store := tu.NewMemoryTracks()
	yt := &tu.FakeSource{SourceKind: models.SourceYouTube, Text: map[string]models.TrackSource{
		"Around the World": source("y1", "Around the World", "Daft Punk", 428),
	}}
	p := NewPipeline(store, nil, WithSource(yt), WithSearchCache(cache))

	first, err := p.Fetch(ctx, "Around the World")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id, err := cache.Lookup(ctx, "around the world")
	if err != nil {
		t.Fatalf("expected query to be cached: %v", err)
	}
	if id != first[0].Goose.ID {
		t.Errorf("expected cached id %q, got %q", first[0].Goose.ID, id)
	}

	second, err := p.Fetch(ctx, "AROUND THE WORLD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second[0].Goose.ID != first[0].Goose.ID {
		t.Errorf("expected the same track, got %q and %q", first[0].Goose.ID, second[0].Goose.ID)
	}
	if yt.SearchCount() != 1 {
		t.Errorf("expected one search, got %d", yt.SearchCount())
	}

	t.Run("stale entries are dropped", func(t *testing.T) {
		if err := cache.Store(ctx, "one more time", "gone"); err != nil {
			t.Fatalf("failed to seed cache: %v", err)
		}
		if err := cache.Store(ctx, "one more time daft punk", "gone"); err != nil {
			t.Fatalf("failed to seed cache: %v", err)
		}
		yt.Text["One More Time"] = source("y2", "One More Time", "Daft Punk", 320)

		tracks, err := p.Fetch(ctx, "One More Time")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tracks[0].Goose.ID == "gone" {
			t.Fatal("expected a fresh track")
		}
		if _, err := cache.Lookup(ctx, "one more time daft punk"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected stale entry to be forgotten, got %v", err)
		}
		id, err := cache.Lookup(ctx, "one more time")
		if err != nil || id != tracks[0].Goose.ID {
			t.Errorf("expected query to point at %q, got %q (%v)", tracks[0].Goose.ID, id, err)
		}
	})
}

func TestPipeline_Fetch_Links(t *testing.T) {
	ctx := context.Background()

	t.Run("youtube video", func(t *testing.T) {
		store := tu.NewMemoryTracks()
		yt := &tu.FakeSource{SourceKind: models.SourceYouTube, Tracks: map[string]models.TrackSource{
			"dQw4w9WgXcQ": source("dQw4w9WgXcQ", "Never Gonna Give You Up", "Rick Astley", 213),
		}}
		p := NewPipeline(store, nil, WithSource(yt))

		for range 2 {
			tracks, err := p.Fetch(ctx, "https://youtu.be/dQw4w9WgXcQ")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tracks[0].Goose.Track.Name != "Never Gonna Give You Up" {
				t.Errorf("unexpected name %q", tracks[0].Goose.Track.Name)
			}
		}
		if store.Len() != 1 {
			t.Errorf("expected the second fetch to reuse the track, got %d stored", store.Len())
		}
	})

	t.Run("missing video", func(t *testing.T) {
		p := NewPipeline(tu.NewMemoryTracks(), nil, WithSource(&tu.FakeSource{SourceKind: models.SourceYouTube}))

		_, err := p.Fetch(ctx, "https://www.youtube.com/watch?v=gone")
		if !errors.Is(err, shared.ErrNoResult) {
			t.Fatalf("expected ErrNoResult, got %v", err)
		}
	})

	t.Run("unconfigured provider", func(t *testing.T) {
		p := NewPipeline(tu.NewMemoryTracks(), nil)

		_, err := p.Fetch(ctx, "https://open.spotify.com/track/abc")
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Fatalf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("subsonic host from classifier", func(t *testing.T) {
		sub := &tu.FakeSource{SourceKind: models.SourceSubsonic, Albums: map[string][]models.TrackSource{
			"al-1": {source("s1", "One More Time", "Daft Punk", 320), source("s2", "Aerodynamic", "Daft Punk", 212)},
		}}
		p := NewPipeline(tu.NewMemoryTracks(), nil,
			WithSource(sub),
			WithClassifier(NewClassifier([]string{"music.example.net"})),
		)

		tracks, err := p.Fetch(ctx, "https://music.example.net/app/#/album/al-1/show")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 2 || tracks[0].Goose.Track.Name != "One More Time" || tracks[1].Goose.Track.Name != "Aerodynamic" {
			t.Errorf("expected album order, got %+v", tracks)
		}
	})
}

func TestPipeline_Fetch_Metadata(t *testing.T) {
	ctx := context.Background()

	meta := models.TrackSource{
		ID:       []string{"sp1"},
		Name:     "One More Time",
		Duration: 320,
		Art:      "https://i.scdn.co/image/omt",
		Artist:   models.SourceArtist{ID: "ar1", Name: "Daft Punk"},
		Album:    models.SourceAlbum{ID: "al1", Name: "Discovery", TrackNumber: 1},
	}

	t.Run("new track from a playable match", func(t *testing.T) {
		store := tu.NewMemoryTracks()
		spotify := &tu.FakeSource{SourceKind: models.SourceSpotify, Tracks: map[string]models.TrackSource{"sp1": meta}}
		yt := &tu.FakeSource{SourceKind: models.SourceYouTube, Text: map[string]models.TrackSource{
			"One More Time Daft Punk": source("y1", "Daft Punk - One More Time", "DaftPunkVEVO", 322),
		}}
		p := NewPipeline(store, nil, WithSource(spotify), WithSource(yt))

		tracks, err := p.Fetch(ctx, "spotify:track:sp1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := tracks[0]
		if got.Spotify == nil || got.Spotify.PrimaryID() != "sp1" {
			t.Errorf("expected Spotify metadata, got %+v", got.Spotify)
		}
		if len(got.AudioSource.YouTube) != 1 || got.AudioSource.YouTube[0].ID != "y1" {
			t.Errorf("expected YouTube y1, got %+v", got.AudioSource.YouTube)
		}
		if got.Goose.Track.Name != "One More Time" || got.Goose.Album.Name != "Discovery" || got.Goose.Album.TrackNumber != 1 {
			t.Errorf("expected names from metadata, got %+v", got.Goose)
		}
		if got.Goose.Track.Art != meta.Art {
			t.Errorf("expected metadata art, got %q", got.Goose.Track.Art)
		}
	})

	t.Run("known metadata id skips the search", func(t *testing.T) {
		existing := stored("g1")
		existing.Spotify = &models.TrackSource{ID: []string{"sp1"}}
		spotify := &tu.FakeSource{SourceKind: models.SourceSpotify, Tracks: map[string]models.TrackSource{"sp1": meta}}
		yt := &tu.FakeSource{SourceKind: models.SourceYouTube}
		p := NewPipeline(tu.NewMemoryTracks(existing), nil, WithSource(spotify), WithSource(yt))

		tracks, err := p.Fetch(ctx, "https://open.spotify.com/track/sp1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tracks[0].Goose.ID != "g1" {
			t.Errorf("expected g1, got %q", tracks[0].Goose.ID)
		}
		if yt.SearchCount() != 0 {
			t.Errorf("expected no searches, got %d", yt.SearchCount())
		}
	})

	t.Run("attaches to a stored playable track", func(t *testing.T) {
		existing := stored("g1")
		existing.AudioSource.YouTube = []models.YouTubeSource{{ID: "y1", Name: "One More Time", Duration: 320}}
		store := tu.NewMemoryTracks(existing)

		napster := &tu.FakeSource{SourceKind: models.SourceNapster, Tracks: map[string]models.TrackSource{"tra.1": meta}}
		yt := &tu.FakeSource{SourceKind: models.SourceYouTube, Text: map[string]models.TrackSource{
			"One More Time Daft Punk": source("y1", "One More Time", "Daft Punk", 320),
		}}
		p := NewPipeline(store, nil, WithSource(napster), WithSource(yt))

		tracks, err := p.Fetch(ctx, "https://web.napster.com/track/tra.1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tracks[0].Goose.ID != "g1" {
			t.Errorf("expected g1, got %q", tracks[0].Goose.ID)
		}
		if store.Len() != 1 {
			t.Errorf("expected no new track, got %d stored", store.Len())
		}

		got, err := store.GetTrack(ctx, models.BySource(models.SourceNapster, "sp1"))
		if err != nil {
			t.Fatalf("expected Napster metadata on g1: %v", err)
		}
		if got.Goose.ID != "g1" {
			t.Errorf("expected g1, got %q", got.Goose.ID)
		}
	})

	t.Run("no playable match", func(t *testing.T) {
		spotify := &tu.FakeSource{SourceKind: models.SourceSpotify, Tracks: map[string]models.TrackSource{"sp1": meta}}
		p := NewPipeline(tu.NewMemoryTracks(), nil, WithSource(spotify), WithSource(&tu.FakeSource{SourceKind: models.SourceYouTube}))

		_, err := p.Fetch(ctx, "spotify:track:sp1")
		if !errors.Is(err, shared.ErrNoResult) {
			t.Fatalf("expected ErrNoResult, got %v", err)
		}
	})
}

func TestPipeline_Fetch_Collections(t *testing.T) {
	ctx := context.Background()

	items := []models.TrackSource{
		source("sp1", "One More Time", "Daft Punk", 320),
		source("sp2", "Missing Song", "Nobody", 100),
		source("sp3", "Digital Love", "Daft Punk", 301),
	}

	t.Run("partial batch keeps placeholders in order", func(t *testing.T) {
		spotify := &tu.FakeSource{SourceKind: models.SourceSpotify, Playlists: map[string][]models.TrackSource{"pl1": items}}
		yt := &tu.FakeSource{SourceKind: models.SourceYouTube, Text: map[string]models.TrackSource{
			"One More Time Daft Punk": source("y1", "One More Time", "Daft Punk", 320),
			"Digital Love Daft Punk":  source("y3", "Digital Love", "Daft Punk", 301),
		}}
		store := tu.NewMemoryTracks()
		p := NewPipeline(store, nil, WithSource(spotify), WithSource(yt))

		tracks, err := p.Fetch(ctx, "https://open.spotify.com/playlist/pl1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 3 {
			t.Fatalf("expected 3 tracks, got %d", len(tracks))
		}

		if tracks[0].Goose.Track.Name != "One More Time" || tracks[2].Goose.Track.Name != "Digital Love" {
			t.Errorf("expected input order, got %q and %q", tracks[0].Goose.Track.Name, tracks[2].Goose.Track.Name)
		}

		ph := tracks[1]
		if !ph.Status.Failed || !ph.Status.Ephemeral {
			t.Errorf("expected a failed placeholder, got %+v", ph.Status)
		}
		if ph.Goose.Track.Name != "Missing Song - Nobody" {
			t.Errorf("expected placeholder to name the item, got %q", ph.Goose.Track.Name)
		}
		if store.Len() != 2 {
			t.Errorf("expected 2 stored tracks, got %d", store.Len())
		}
	})

	t.Run("nothing resolves", func(t *testing.T) {
		spotify := &tu.FakeSource{SourceKind: models.SourceSpotify, Albums: map[string][]models.TrackSource{"al1": items}}
		p := NewPipeline(tu.NewMemoryTracks(), nil, WithSource(spotify), WithSource(&tu.FakeSource{SourceKind: models.SourceYouTube}))

		_, err := p.Fetch(ctx, "https://open.spotify.com/album/al1")
		if !errors.Is(err, shared.ErrNoResult) {
			t.Fatalf("expected ErrNoResult, got %v", err)
		}
	})

	t.Run("missing playlist", func(t *testing.T) {
		yt := &tu.FakeSource{SourceKind: models.SourceYouTube}
		p := NewPipeline(tu.NewMemoryTracks(), nil, WithSource(yt))

		_, err := p.Fetch(ctx, "https://www.youtube.com/playlist?list=PLnone")
		if !errors.Is(err, shared.ErrNoResult) {
			t.Fatalf("expected ErrNoResult, got %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		yt := &tu.FakeSource{SourceKind: models.SourceYouTube, Playlists: map[string][]models.TrackSource{
			"PL1": {source("y1", "a", "b", 1), source("y2", "c", "d", 2)},
		}}
		store := tu.NewMemoryTracks()
		p := NewPipeline(store, nil, WithSource(yt))

		_, err := p.Fetch(cctx, "https://www.youtube.com/playlist?list=PL1")
		if !errors.Is(err, shared.ErrNoResult) {
			t.Fatalf("expected ErrNoResult, got %v", err)
		}
		if store.Len() != 0 {
			t.Errorf("expected nothing stored, got %d", store.Len())
		}
	})
}

// slowTracks widens the gap between a lookup and the insert that follows it.
type slowTracks struct {
	*tu.MemoryTracks
	delay time.Duration
}

func (s *slowTracks) GetTrack(ctx context.Context, l models.Lookup) (*models.Track, error) {
	t, err := s.MemoryTracks.GetTrack(ctx, l)
	time.Sleep(s.delay)
	return t, err
}

// racingTracks stores rival under the same provider id just before the pipeline's insert.
type racingTracks struct {
	*tu.MemoryTracks
	rival models.Track
}

func (r *racingTracks) InsertTrack(ctx context.Context, t *models.Track) error {
	if err := r.MemoryTracks.InsertTrack(ctx, &r.rival); err != nil {
		return err
	}
	return fmt.Errorf("%w: duplicate provider id", shared.ErrTrackExists)
}

func TestPipeline_Fetch_Reconciliation(t *testing.T) {
	ctx := context.Background()

	t.Run("repeated ids in one batch store one track", func(t *testing.T) {
		dup := source("dup", "Veridis Quo", "Daft Punk", 345)
		yt := &tu.FakeSource{SourceKind: models.SourceYouTube, Playlists: map[string][]models.TrackSource{
			"PLdup": {dup, dup, dup},
		}}
		store := &slowTracks{MemoryTracks: tu.NewMemoryTracks(), delay: 20 * time.Millisecond}
		p := NewPipeline(store, nil, WithSource(yt))

		tracks, err := p.Fetch(ctx, "https://www.youtube.com/playlist?list=PLdup")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 3 {
			t.Fatalf("expected 3 tracks, got %d", len(tracks))
		}
		for _, tr := range tracks[1:] {
			if tr.Goose.ID != tracks[0].Goose.ID {
				t.Errorf("expected one goose id, got %q and %q", tracks[0].Goose.ID, tr.Goose.ID)
			}
		}
		if store.Len() != 1 {
			t.Errorf("expected 1 stored track, got %d", store.Len())
		}
	})

	t.Run("metadata items sharing a video store one track", func(t *testing.T) {
		spotify := &tu.FakeSource{SourceKind: models.SourceSpotify, Playlists: map[string][]models.TrackSource{
			"pl2": {source("sp1", "Harder Better", "Daft Punk", 224), source("sp2", "Harder Better", "Daft Punk", 224)},
		}}
		yt := &tu.FakeSource{SourceKind: models.SourceYouTube, Text: map[string]models.TrackSource{
			"Harder Better Daft Punk": source("y9", "Harder Better", "Daft Punk", 224),
		}}
		store := &slowTracks{MemoryTracks: tu.NewMemoryTracks(), delay: 20 * time.Millisecond}
		p := NewPipeline(store, nil, WithSource(spotify), WithSource(yt))

		tracks, err := p.Fetch(ctx, "https://open.spotify.com/playlist/pl2")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 2 || tracks[0].Goose.ID != tracks[1].Goose.ID {
			t.Fatalf("expected both items on one track, got %+v", tracks)
		}
		if store.Len() != 1 {
			t.Errorf("expected 1 stored track, got %d", store.Len())
		}
	})

	t.Run("insert conflict merges into the stored track", func(t *testing.T) {
		rival := models.Track{
			Goose:       models.TrackGoose{ID: "rival", Track: models.TrackInfo{Name: "Aerodynamic"}},
			AudioSource: models.AudioSource{YouTube: []models.YouTubeSource{{ID: "y5", Name: "Aerodynamic"}}},
		}
		store := &racingTracks{MemoryTracks: tu.NewMemoryTracks(), rival: rival}
		yt := &tu.FakeSource{SourceKind: models.SourceYouTube, Tracks: map[string]models.TrackSource{
			"y5": source("y5", "Aerodynamic", "Daft Punk", 212),
		}}
		p := NewPipeline(store, nil, WithSource(yt))

		tracks, err := p.Fetch(ctx, "https://youtu.be/y5")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tracks[0].Goose.ID != "rival" {
			t.Errorf("expected the stored track, got %q", tracks[0].Goose.ID)
		}
		if store.Len() != 1 {
			t.Errorf("expected 1 stored track, got %d", store.Len())
		}
	})
}

type fakeOfficial map[string]string

func (f fakeOfficial) OfficialLink(ctx context.Context, artist string) (string, error) {
	link, ok := f[artist]
	if !ok {
		return "", errors.New("lookup failed")
	}
	return link, nil
}

func TestPipeline_Fetch_OfficialLinks(t *testing.T) {
	ctx := context.Background()

	t.Run("fills new tracks", func(t *testing.T) {
		store := tu.NewMemoryTracks()
		sub := &tu.FakeSource{SourceKind: models.SourceSubsonic, Text: map[string]models.TrackSource{
			"one more time": source("s1", "One More Time", "Daft Punk", 320),
		}}
		p := NewPipeline(store, nil, WithSource(sub), WithOfficialLinks(fakeOfficial{"Daft Punk": "https://daftpunk.com"}))

		tracks, err := p.Fetch(ctx, "one more time")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := tracks[0].Goose.Artist.Official; got != "https://daftpunk.com" {
			t.Errorf("expected official link on the result, got %q", got)
		}
		saved, err := store.GetTrack(ctx, models.ByGooseID(tracks[0].Goose.ID))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if saved.Goose.Artist.Official != "https://daftpunk.com" {
			t.Errorf("expected official link stored, got %q", saved.Goose.Artist.Official)
		}
	})

	t.Run("failed lookup still resolves", func(t *testing.T) {
		store := tu.NewMemoryTracks()
		sub := &tu.FakeSource{SourceKind: models.SourceSubsonic, Text: map[string]models.TrackSource{
			"unknown": source("s2", "Unknown", "Nobody", 100),
		}}
		p := NewPipeline(store, nil, WithSource(sub), WithOfficialLinks(fakeOfficial{}))

		tracks, err := p.Fetch(ctx, "unknown")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tracks[0].Goose.Artist.Official != "" {
			t.Errorf("expected no official link, got %q", tracks[0].Goose.Artist.Official)
		}
	})
}
