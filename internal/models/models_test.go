package models

import (
	"testing"
	"time"
)

func track(id string) Track {
	return Track{Goose: TrackGoose{ID: id, Track: TrackInfo{Name: "track " + id}}}
}

func TestNewStash(t *testing.T) {
	t.Run("playhead equal to length after skipping ephemeral wraps to zero", func(t *testing.T) {
		queue := []Track{track("a"), NewPlaceholder("failed"), track("b")}
		stash, ok := NewStash(3, queue)
		if !ok {
			t.Fatal("expected a stash")
		}
		if stash.Playhead != 0 {
			t.Errorf("expected playhead 0, got %d", stash.Playhead)
		}
		if len(stash.Tracks) != 2 || stash.Tracks[0] != "a" || stash.Tracks[1] != "b" {
			t.Errorf("unexpected tracks %v", stash.Tracks)
		}
	})

	t.Run("ephemeral tracks before the playhead shift it", func(t *testing.T) {
		eph := track("x")
		eph.Status.Ephemeral = true
		queue := []Track{track("a"), eph, track("b"), track("c")}
		stash, _ := NewStash(2, queue)
		if stash.Playhead != 1 {
			t.Errorf("expected playhead 1, got %d", stash.Playhead)
		}
		if got := stash.Tracks[stash.Playhead]; got != "b" {
			t.Errorf("expected playhead to stay on b, got %s", got)
		}
	})

	t.Run("consecutive ephemeral tracks each shift it", func(t *testing.T) {
		queue := []Track{track("a"), NewPlaceholder("one"), NewPlaceholder("two"), track("b")}
		stash, ok := NewStash(3, queue)
		if !ok {
			t.Fatal("expected a stash")
		}
		if stash.Playhead != 1 {
			t.Errorf("expected playhead 1, got %d", stash.Playhead)
		}
		if got := stash.Tracks[stash.Playhead]; got != "b" {
			t.Errorf("expected playhead to stay on b, got %s", got)
		}
	})

	t.Run("ephemeral tracks after the playhead do not shift it", func(t *testing.T) {
		queue := []Track{track("a"), track("b"), NewPlaceholder("nope")}
		stash, _ := NewStash(1, queue)
		if stash.Playhead != 1 {
			t.Errorf("expected playhead 1, got %d", stash.Playhead)
		}
	})

	t.Run("tracks without goose ids are skipped", func(t *testing.T) {
		queue := []Track{track(""), track("a")}
		stash, ok := NewStash(0, queue)
		if !ok || len(stash.Tracks) != 1 {
			t.Fatalf("expected one stashed track, got %v", stash.Tracks)
		}
	})

	t.Run("nothing to stash", func(t *testing.T) {
		if _, ok := NewStash(0, []Track{NewPlaceholder("a")}); ok {
			t.Error("expected no stash for an all-ephemeral queue")
		}
		if _, ok := NewStash(0, nil); ok {
			t.Error("expected no stash for an empty queue")
		}
	})
}

func TestChooseAudioSource(t *testing.T) {
	yt := YouTubeSource{ID: "yt1", URL: "https://youtu.be/yt1", Duration: 200}
	sub := &TrackSource{ID: []string{"s1"}, URL: "http://localhost", Duration: 198}

	tc := []struct {
		name     string
		track    Track
		wantKind SourceKind
		wantOK   bool
	}{
		{name: "none", track: Track{}, wantOK: false},
		{name: "youtube only", track: Track{AudioSource: AudioSource{YouTube: []YouTubeSource{yt}}}, wantKind: SourceYouTube, wantOK: true},
		{name: "subsonic preferred", track: Track{AudioSource: AudioSource{YouTube: []YouTubeSource{yt}, Subsonic: sub}}, wantKind: SourceSubsonic, wantOK: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.track.ChooseAudioSource()
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", got.Kind, tt.wantKind)
			}
		})
	}

	t.Run("SyncDuration follows the preferred source", func(t *testing.T) {
		tr := Track{AudioSource: AudioSource{YouTube: []YouTubeSource{yt}}}
		tr.SyncDuration()
		if tr.Goose.Track.Duration != 200 {
			t.Errorf("expected 200, got %d", tr.Goose.Track.Duration)
		}
		tr.AudioSource.Subsonic = sub
		tr.SyncDuration()
		if tr.Goose.Track.Duration != 198 {
			t.Errorf("expected 198, got %d", tr.Goose.Track.Duration)
		}
	})
}

func TestClone(t *testing.T) {
	orig := Track{
		Goose:       TrackGoose{ID: "a"},
		AudioSource: AudioSource{YouTube: []YouTubeSource{{ID: "y", ContentID: &ContentID{Name: "n"}}}},
		Spotify:     &TrackSource{ID: []string{"s"}},
		Playlists:   map[string]int{"mix": 0},
		Keys:        []string{"k"},
	}

	c := orig.Clone()
	c.AudioSource.YouTube[0].ID = "changed"
	c.AudioSource.YouTube[0].ContentID.Name = "changed"
	c.Spotify.ID[0] = "changed"
	c.Playlists["mix"] = 5
	c.Keys[0] = "changed"

	if orig.AudioSource.YouTube[0].ID != "y" || orig.AudioSource.YouTube[0].ContentID.Name != "n" {
		t.Error("youtube sources alias the original")
	}
	if orig.Spotify.ID[0] != "s" {
		t.Error("spotify ids alias the original")
	}
	if orig.Playlists["mix"] != 0 {
		t.Error("playlists alias the original")
	}
	if orig.Keys[0] != "k" {
		t.Error("keys alias the original")
	}
}

func TestHistory(t *testing.T) {
	h := History{Current: "goose"}
	h.Push("duck")
	h.Push("goose")
	h.Push("duck")

	if h.Current != "duck" {
		t.Errorf("expected current duck, got %s", h.Current)
	}
	if len(h.Old) != 2 || h.Old[0] != "goose" || h.Old[1] != "duck" {
		t.Errorf("expected old [goose duck], got %v", h.Old)
	}

	h.Push("duck")
	if len(h.Old) != 2 {
		t.Errorf("pushing the current value should not grow history, got %v", h.Old)
	}
}

func TestLookups(t *testing.T) {
	tc := []struct {
		kind SourceKind
		want string
	}{
		{SourceYouTube, FieldYouTubeID},
		{SourceSubsonic, FieldSubsonicID},
		{SourceSpotify, FieldSpotifyID},
		{SourceNapster, FieldNapsterID},
	}
	for _, tt := range tc {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := BySource(tt.kind, "id").Field; got != tt.want {
				t.Errorf("BySource(%s) field = %s, want %s", tt.kind, got, tt.want)
			}
		})
	}

	if SourceSpotify.Playable() || !SourceSubsonic.Playable() {
		t.Error("only youtube and subsonic are playable")
	}
}

func TestOAuthTokenExpired(t *testing.T) {
	now := time.Now()
	if (OAuthToken{}).Expired(now) {
		t.Error("a token without expiry never expires")
	}
	if !(OAuthToken{Expiry: now.Add(-time.Minute)}).Expired(now) {
		t.Error("expected past expiry to be expired")
	}
	if (OAuthToken{Expiry: now.Add(time.Minute)}).Expired(now) {
		t.Error("expected future expiry to be valid")
	}
}
