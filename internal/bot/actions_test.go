package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/player"
	"github.com/desertthunder/goose/internal/repositories"
	"github.com/desertthunder/goose/internal/shared"
	tu "github.com/desertthunder/goose/internal/testing"
	"github.com/desertthunder/goose/internal/workspace"
	"github.com/disgoorg/snowflake/v2"
)

const (
	guild = snowflake.ID(42)
	user  = snowflake.ID(7)
)

func track(id string) models.Track {
	return models.Track{
		Goose: models.TrackGoose{ID: id, Track: models.TrackInfo{Name: "track " + id, Duration: 61}},
		AudioSource: models.AudioSource{YouTube: []models.YouTubeSource{
			{ID: "yt" + id, URL: "https://youtu.be/yt" + id, Duration: 61},
		}},
	}
}

func placeholder(reason string) models.Track {
	return models.Track{Goose: models.TrackGoose{Track: models.TrackInfo{Name: reason}}, Status: models.TrackStatus{Failed: true}}
}

type fakeAcquirer struct {
	results map[string][]models.Track
	err     error
}

func (f *fakeAcquirer) Submit(ctx context.Context, input string) ([]models.Track, error) {
	if f.err != nil {
		return nil, f.err
	}
	tracks, ok := f.results[input]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrNoResult, input)
	}
	return tracks, nil
}

type fakeLinks struct {
	created []string
	err     error
}

func (f *fakeLinks) Create(ctx context.Context, discordID, service string, ttl time.Duration) (*repositories.LinkState, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, discordID+"/"+service)
	return &repositories.LinkState{State: "s3cr3t", DiscordID: discordID, Service: service}, nil
}

type fixture struct {
	actions *Actions
	tracks  *tu.MemoryTracks
	users   *tu.MemoryUsers
	players *player.Players
	links   *fakeLinks
	inv     Invocation
}

func newFixture(t *testing.T, roles shared.RolesConfig) *fixture {
	t.Helper()
	stored := []models.Track{track("a"), track("b"), track("c")}
	tracks := tu.NewMemoryTracks(stored...)
	users := tu.NewMemoryUsers(tracks)
	players := player.NewPlayers(nil, nil)
	links := &fakeLinks{}

	acq := &fakeAcquirer{results: map[string][]models.Track{
		"abc":     stored,
		"one":     {track("a")},
		"missing": {placeholder("No match for missing")},
		"mixed":   {track("b"), placeholder("No match for x")},
	}}

	a := NewActions(Deps{
		Acquire:    acq,
		Players:    players,
		Workspaces: workspace.NewWorkspaces(tracks, nil),
		Users:      users,
		Tracks:     tracks,
		Links:      links,
		AuthURLs: map[string]AuthURL{
			models.ServiceSpotify: func(state string) string { return "https://accounts.example/authorize?state=" + state },
		},
		Roles: roles,
	}, nil)

	return &fixture{
		actions: a,
		tracks:  tracks,
		users:   users,
		players: players,
		links:   links,
		inv: Invocation{
			Guild:   guild,
			User:    user,
			Profile: models.DiscordProfile{ID: user.String(), Username: "goose"},
			Roles:   []string{"DJ"},
		},
	}
}

func queueIDs(t *testing.T, p *player.Players) []string {
	t.Helper()
	q, ok := p.Get(guild)
	if !ok {
		t.Fatal("expected a queue")
	}
	var out []string
	for _, tr := range q.Tracks() {
		out = append(out, tr.Goose.ID)
	}
	return out
}

func TestActions_Play(t *testing.T) {
	ctx := context.Background()

	t.Run("queues results", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{})
		r := f.actions.Play(ctx, f.inv, "abc", false)
		if r.Ephemeral {
			t.Errorf("expected a public reply, got %q", r.Content)
		}
		if !strings.Contains(r.Content, "Queued 3 tracks") {
			t.Errorf("unexpected reply %q", r.Content)
		}
		if got := strings.Join(queueIDs(t, f.players), ","); got != "a,b,c" {
			t.Errorf("queue = %s", got)
		}
		q, _ := f.players.Get(guild)
		if q.State() != player.Playing {
			t.Errorf("expected playback to start, state %v", q.State())
		}
	})

	t.Run("next inserts after current", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{})
		f.actions.Play(ctx, f.inv, "abc", false)
		f.actions.Play(ctx, f.inv, "one", true)
		if got := strings.Join(queueIDs(t, f.players), ","); got != "a,a,b,c" {
			t.Errorf("queue = %s", got)
		}
	})

	t.Run("placeholders are reported not queued", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{})
		r := f.actions.Play(ctx, f.inv, "mixed", false)
		if !strings.Contains(r.Content, "1 track could not be found") {
			t.Errorf("unexpected reply %q", r.Content)
		}
		if got := strings.Join(queueIDs(t, f.players), ","); got != "b" {
			t.Errorf("queue = %s", got)
		}
	})

	t.Run("nothing playable", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{})
		r := f.actions.Play(ctx, f.inv, "missing", false)
		if !r.Ephemeral {
			t.Error("expected an ephemeral reply")
		}
		if _, ok := f.players.Get(guild); ok {
			t.Error("expected no queue to be created")
		}
	})

	tests := []struct {
		name  string
		err   error
		query string
		want  string
	}{
		{"no result", nil, "nope", "Nothing found"},
		{"timeout", context.DeadlineExceeded, "abc", "too long"},
		{"pool closed", shared.ErrPoolClosed, "abc", "Shutting down"},
		{"other", errors.New("boom"), "abc", "Something went wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, shared.RolesConfig{})
			f.actions.deps.Acquire.(*fakeAcquirer).err = tt.err
			r := f.actions.Play(ctx, f.inv, tt.query, false)
			if !r.Ephemeral || !strings.Contains(r.Content, tt.want) {
				t.Errorf("got %+v, want ephemeral containing %q", r, tt.want)
			}
		})
	}

	t.Run("requires DJ role", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{DJ: "Goose DJ"})
		r := f.actions.Play(ctx, f.inv, "abc", false)
		if !strings.Contains(r.Content, "Goose DJ") {
			t.Errorf("expected a role denial, got %q", r.Content)
		}
		f.inv.Roles = append(f.inv.Roles, "Goose DJ")
		r = f.actions.Play(ctx, f.inv, "abc", false)
		if !strings.Contains(r.Content, "Queued") {
			t.Errorf("expected playback with role, got %q", r.Content)
		}
	})
}

func TestActions_Playlist(t *testing.T) {
	ctx := context.Background()

	t.Run("edit then save and load", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{})
		a := f.actions

		if r := a.Playlist(ctx, f.inv, "add", PlaylistOpts{Query: "abc"}); !strings.Contains(r.Content, "Added 3 tracks at position 1") {
			t.Fatalf("add: %q", r.Content)
		}
		if r := a.Playlist(ctx, f.inv, "add", PlaylistOpts{Query: "one", Index: 2}); !strings.Contains(r.Content, "position 2") {
			t.Fatalf("add at: %q", r.Content)
		}
		if r := a.Playlist(ctx, f.inv, "move", PlaylistOpts{Index: 4, To: 1}); !strings.Contains(r.Content, "track c") {
			t.Fatalf("move: %q", r.Content)
		}
		if r := a.Playlist(ctx, f.inv, "remove", PlaylistOpts{Index: 3}); !strings.Contains(r.Content, "Removed track a") {
			t.Fatalf("remove: %q", r.Content)
		}

		w := a.deps.Workspaces.Get(user)
		var got []string
		for _, tr := range w.Tracks() {
			got = append(got, tr.Goose.ID)
		}
		if strings.Join(got, ",") != "c,a,b" {
			t.Fatalf("workspace = %v", got)
		}

		if r := a.Playlist(ctx, f.inv, "save", PlaylistOpts{Name: "road trip!"}); !strings.Contains(r.Content, "Saved 3 tracks as **road trip**") {
			t.Fatalf("save: %q", r.Content)
		}
		if r := a.Playlist(ctx, f.inv, "save", PlaylistOpts{Name: "road trip"}); !strings.Contains(r.Content, "already exists") {
			t.Errorf("duplicate save: %q", r.Content)
		}

		a.Playlist(ctx, f.inv, "empty", PlaylistOpts{})
		if w.Len() != 0 {
			t.Fatalf("expected empty workspace, got %d", w.Len())
		}
		if r := a.Playlist(ctx, f.inv, "load", PlaylistOpts{Name: "road trip"}); !strings.Contains(r.Content, "Loaded 3 tracks") {
			t.Errorf("load: %q", r.Content)
		}
		if r := a.Playlist(ctx, f.inv, "list", PlaylistOpts{}); !strings.Contains(r.Content, "road trip") {
			t.Errorf("list: %q", r.Content)
		}
	})

	t.Run("play and copy", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{})
		a := f.actions

		if r := a.Playlist(ctx, f.inv, "play", PlaylistOpts{}); !strings.Contains(r.Content, "empty") {
			t.Errorf("play empty: %q", r.Content)
		}
		a.Playlist(ctx, f.inv, "add", PlaylistOpts{Query: "mixed"})
		a.Playlist(ctx, f.inv, "play", PlaylistOpts{})
		if got := strings.Join(queueIDs(t, f.players), ","); got != "b" {
			t.Errorf("queue = %s", got)
		}

		a.Playlist(ctx, f.inv, "empty", PlaylistOpts{})
		f.actions.Play(ctx, f.inv, "abc", false)
		if r := a.Playlist(ctx, f.inv, "copy", PlaylistOpts{}); !strings.Contains(r.Content, "Copied") {
			t.Errorf("copy: %q", r.Content)
		}
		if n := a.deps.Workspaces.Get(user).Len(); n == 0 {
			t.Error("expected copied tracks")
		}
	})

	tests := []struct {
		name string
		sub  string
		opts PlaylistOpts
		want string
	}{
		{"remove out of range", "remove", PlaylistOpts{Index: 5}, "out of range"},
		{"move out of range", "move", PlaylistOpts{Index: 1, To: 9}, "out of range"},
		{"load unknown", "load", PlaylistOpts{Name: "nope"}, "No playlist"},
		{"save empty", "save", PlaylistOpts{Name: "x"}, "Invalid request"},
		{"save unnamed", "save", PlaylistOpts{}, "Invalid request"},
		{"copy without queue", "copy", PlaylistOpts{}, "Nothing is queued"},
		{"list nothing", "list", PlaylistOpts{}, "no saved playlists"},
		{"unknown", "rename", PlaylistOpts{}, "Unknown subcommand"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, shared.RolesConfig{})
			r := f.actions.Playlist(ctx, f.inv, tt.sub, tt.opts)
			if !r.Ephemeral || !strings.Contains(r.Content, tt.want) {
				t.Errorf("got %+v, want ephemeral containing %q", r, tt.want)
			}
		})
	}
}

func TestActions_Buttons(t *testing.T) {
	ctx := context.Background()

	t.Run("queue view", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{})
		r := f.actions.Queue(f.inv, 0)
		if !strings.Contains(r.Content, "Queue is empty") {
			t.Errorf("unexpected view %q", r.Content)
		}
		if len(r.Rows) != 2 || len(r.Rows[0]) > 5 || len(r.Rows[1]) > 5 {
			t.Fatalf("unexpected rows %+v", r.Rows)
		}
		if !r.Rows[0][1].Disabled || !r.Rows[0][3].Disabled {
			t.Error("expected page buttons disabled on a single page")
		}
	})

	t.Run("loop and shuffle", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{})
		f.actions.Play(ctx, f.inv, "abc", false)

		r := f.actions.Button(f.inv, "queue:loop:1")
		if !strings.Contains(r.Content, "looping") {
			t.Errorf("expected looping, got %q", r.Content)
		}
		if r.Rows[1][0].Style != Success {
			t.Error("expected loop button highlighted")
		}
		r = f.actions.Button(f.inv, "queue:shuffle:1")
		if r.Ephemeral {
			t.Errorf("unexpected reply %q", r.Content)
		}
		if len(queueIDs(t, f.players)) != 3 {
			t.Error("shuffle changed queue length")
		}
	})

	t.Run("media controls", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{})
		f.actions.Play(ctx, f.inv, "abc", false)

		r := f.actions.Button(f.inv, "media:next")
		if !strings.Contains(r.Content, "track b") {
			t.Errorf("expected track b, got %q", r.Content)
		}
		r = f.actions.Button(f.inv, "media:pause")
		if !strings.Contains(r.Content, "Now paused") || r.Rows[0][2].Label != "Play" {
			t.Errorf("expected paused, got %q", r.Content)
		}
		r = f.actions.Button(f.inv, "media:prev")
		if !strings.Contains(r.Content, "track a") {
			t.Errorf("expected track a, got %q", r.Content)
		}

		f.actions.Button(f.inv, "media:next")
		r = f.actions.Button(f.inv, "media:next")
		if !strings.Contains(r.Content, "track c") {
			t.Errorf("expected track c, got %q", r.Content)
		}
		if r = f.actions.Button(f.inv, "media:next"); !strings.Contains(r.Content, "track c") {
			t.Errorf("expected next to stop at the last track, got %q", r.Content)
		}

		q, _ := f.players.Get(guild)
		q.Advance()
		r = f.actions.Button(f.inv, "media:refresh")
		if !strings.Contains(r.Content, "Nothing playing") {
			t.Errorf("expected exhausted queue, got %q", r.Content)
		}
		r = f.actions.Button(f.inv, "media:next")
		if !strings.Contains(r.Content, "track a") {
			t.Errorf("expected restart from the top, got %q", r.Content)
		}

		r = f.actions.Button(f.inv, "media:showqueue")
		if !strings.Contains(r.Content, "Page 1 of 1") {
			t.Errorf("expected queue view, got %q", r.Content)
		}
	})

	t.Run("pressing on an empty queue decommissions it", func(t *testing.T) {
		for _, id := range []string{"media:refresh", "media:next", "queue:refresh:1", "queue:shuffle:1"} {
			f := newFixture(t, shared.RolesConfig{})
			f.players.GetOrCreate(guild)
			f.actions.Button(f.inv, id)
			if _, ok := f.players.Get(guild); ok {
				t.Errorf("%s: expected the queue to be decommissioned", id)
			}
		}
	})

	t.Run("controls need DJ but views do not", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{DJ: "Goose DJ"})
		if r := f.actions.Button(f.inv, "media:next"); !r.Ephemeral {
			t.Errorf("expected a denial, got %q", r.Content)
		}
		if r := f.actions.Button(f.inv, "queue:refresh:1"); r.Ephemeral {
			t.Errorf("expected a view, got %q", r.Content)
		}
	})

	for _, id := range []string{"queue", "media:eject", "volume:up", "queue:dance:1"} {
		t.Run("unknown "+id, func(t *testing.T) {
			f := newFixture(t, shared.RolesConfig{})
			if r := f.actions.Button(f.inv, id); !r.Ephemeral {
				t.Errorf("expected an error reply, got %q", r.Content)
			}
		})
	}
}

func TestActions_EditQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("jump", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{})
		f.actions.Play(ctx, f.inv, "abc", false)
		if r := f.actions.EditQueue(f.inv, "jump", 3); !strings.Contains(r.Content, "track c") {
			t.Errorf("expected track c, got %q", r.Content)
		}
		if r := f.actions.EditQueue(f.inv, "jump", 4); !strings.Contains(r.Content, "out of range") {
			t.Errorf("expected a range error, got %q", r.Content)
		}
	})

	t.Run("remove", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{})
		f.actions.Play(ctx, f.inv, "abc", false)
		r := f.actions.EditQueue(f.inv, "remove", 2)
		if !strings.Contains(r.Content, "Removed track b") {
			t.Errorf("unexpected reply %q", r.Content)
		}
		if got := queueIDs(t, f.players); len(got) != 2 || got[1] != "c" {
			t.Errorf("expected [a c], got %v", got)
		}
	})

	t.Run("skip past the last track exhausts", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{})
		f.actions.Play(ctx, f.inv, "one", false)
		if r := f.actions.EditQueue(f.inv, "skip", 0); !strings.Contains(r.Content, "Nothing playing") {
			t.Errorf("expected an exhausted queue, got %q", r.Content)
		}
		if _, ok := f.players.Get(guild); !ok {
			t.Error("expected the exhausted queue to be kept")
		}
	})

	t.Run("empty decommissions", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{})
		f.actions.Play(ctx, f.inv, "abc", false)
		if r := f.actions.EditQueue(f.inv, "empty", 0); !strings.Contains(r.Content, "Queue is empty") {
			t.Errorf("unexpected reply %q", r.Content)
		}
		if _, ok := f.players.Get(guild); ok || f.players.Len() != 0 {
			t.Error("expected the queue to be decommissioned")
		}
	})

	t.Run("removing the last track decommissions", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{})
		f.actions.Play(ctx, f.inv, "one", false)
		f.actions.EditQueue(f.inv, "remove", 1)
		if _, ok := f.players.Get(guild); ok {
			t.Error("expected the queue to be decommissioned")
		}
	})

	t.Run("needs DJ", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{DJ: "Goose DJ"})
		f.actions.Play(ctx, f.inv, "abc", false)
		if r := f.actions.EditQueue(f.inv, "empty", 0); !r.Ephemeral || !strings.Contains(r.Content, "Goose DJ") {
			t.Errorf("expected a denial, got %q", r.Content)
		}
		if len(queueIDs(t, f.players)) != 3 {
			t.Error("queue changed without permission")
		}
	})

	t.Run("nothing queued", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{})
		if r := f.actions.EditQueue(f.inv, "skip", 0); !strings.Contains(r.Content, "Nothing is queued") {
			t.Errorf("unexpected reply %q", r.Content)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{})
		if r := f.actions.EditQueue(f.inv, "dance", 0); !r.Ephemeral {
			t.Errorf("expected an error reply, got %q", r.Content)
		}
	})
}

func TestActions_Stash(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, shared.RolesConfig{})
	f.actions.Register(ctx, f.inv)

	if r := f.actions.Stash(ctx, f.inv, "save"); !strings.Contains(r.Content, "Nothing is queued") {
		t.Errorf("save without queue: %q", r.Content)
	}
	if r := f.actions.Stash(ctx, f.inv, "load"); !strings.Contains(r.Content, "stash is empty") {
		t.Errorf("load empty: %q", r.Content)
	}

	f.actions.Play(ctx, f.inv, "abc", false)
	f.actions.Button(f.inv, "media:next")
	if r := f.actions.Stash(ctx, f.inv, "save"); !strings.Contains(r.Content, "Stashed 3 tracks") {
		t.Fatalf("save: %q", r.Content)
	}

	f.players.DecommissionAll()
	if r := f.actions.Stash(ctx, f.inv, "load"); !strings.Contains(r.Content, "Loaded 3 stashed tracks") {
		t.Fatalf("load: %q", r.Content)
	}
	q, _ := f.players.Get(guild)
	if c := q.Current(); c == nil || c.Goose.ID != "b" {
		t.Errorf("expected playhead restored to b, got %+v", c)
	}
}

func TestActions_Register(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, shared.RolesConfig{})

	f.actions.Register(ctx, f.inv)
	f.actions.Register(ctx, f.inv)
	u, err := f.users.GetUser(ctx, user.String())
	if err != nil {
		t.Fatalf("expected registered user: %v", err)
	}
	if u.Discord.Username.Current != "goose" {
		t.Errorf("unexpected profile %+v", u.Discord)
	}
}

func TestActions_Link(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a state", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{})
		r := f.actions.Link(ctx, f.inv, models.ServiceSpotify)
		if !r.Ephemeral || !strings.Contains(r.Content, "state=s3cr3t") {
			t.Errorf("unexpected reply %+v", r)
		}
		if len(f.links.created) != 1 || f.links.created[0] != "7/spotify" {
			t.Errorf("unexpected states %v", f.links.created)
		}
	})

	t.Run("unconfigured service", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{})
		if r := f.actions.Link(ctx, f.inv, models.ServiceNapster); !strings.Contains(r.Content, "not available") {
			t.Errorf("unexpected reply %q", r.Content)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{})
		f.links.err = shared.ErrStoreUnavailable
		if r := f.actions.Link(ctx, f.inv, models.ServiceSpotify); !strings.Contains(r.Content, "unavailable") {
			t.Errorf("unexpected reply %q", r.Content)
		}
	})
}

func TestActions_Admin(t *testing.T) {
	ctx := context.Background()

	t.Run("requires admin role", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{Admin: "Goose Admin"})
		if r := f.actions.Admin(ctx, f.inv, "removetrack", "yta"); !strings.Contains(r.Content, "Goose Admin") {
			t.Errorf("expected denial, got %q", r.Content)
		}
		if f.tracks.Len() != 3 {
			t.Error("track removed without permission")
		}
	})

	t.Run("removes", func(t *testing.T) {
		f := newFixture(t, shared.RolesConfig{})
		f.actions.Playlist(ctx, f.inv, "add", PlaylistOpts{Query: "abc"})
		f.actions.Playlist(ctx, f.inv, "save", PlaylistOpts{Name: "mix"})

		if r := f.actions.Admin(ctx, f.inv, "removeplaylist", "mix"); !strings.Contains(r.Content, "from 3 tracks") {
			t.Errorf("removeplaylist: %q", r.Content)
		}
		if r := f.actions.Admin(ctx, f.inv, "removeplaylist", "mix"); !strings.Contains(r.Content, "No playlist") {
			t.Errorf("second removeplaylist: %q", r.Content)
		}
		if r := f.actions.Admin(ctx, f.inv, "removetrack", "yta"); !strings.Contains(r.Content, "Removed 1 track.") {
			t.Errorf("removetrack: %q", r.Content)
		}
		if f.tracks.Len() != 2 {
			t.Errorf("expected 2 tracks left, got %d", f.tracks.Len())
		}
	})
}
