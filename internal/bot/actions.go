package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/goose/internal/formatter"
	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/player"
	"github.com/desertthunder/goose/internal/repositories"
	"github.com/desertthunder/goose/internal/shared"
	"github.com/desertthunder/goose/internal/workspace"
	"github.com/disgoorg/snowflake/v2"
)

const (
	linkTTL       = 10 * time.Minute
	playListLimit = 10
)

// Acquirer turns a request into tracks, typically a tasks.Pool.
type Acquirer interface {
	Submit(ctx context.Context, input string) ([]models.Track, error)
}

// LinkIssuer issues single-use account link states.
type LinkIssuer interface {
	Create(ctx context.Context, discordID, service string, ttl time.Duration) (*repositories.LinkState, error)
}

// AuthURL builds a provider consent URL carrying state.
type AuthURL func(state string) string

// Deps are the collaborators behind the commands. Nil stores disable the commands that
// need them.
type Deps struct {
	Acquire    Acquirer
	Players    *player.Players
	Workspaces *workspace.Workspaces
	Users      models.UserStore
	Tracks     models.TrackStore
	Links      LinkIssuer
	AuthURLs   map[string]AuthURL
	Roles      shared.RolesConfig
}

// Invocation identifies who ran a command and where.
type Invocation struct {
	Guild   snowflake.ID
	User    snowflake.ID
	Profile models.DiscordProfile
	Roles   []string // Role names the member holds
}

// Style is a button color.
type Style int

const (
	Secondary Style = iota
	Primary
	Success
	Danger
)

// Button is one interactive button. ID carries the media: or queue: action.
type Button struct {
	Label    string
	ID       string
	Style    Style
	Disabled bool
}

// Reply is what a command answers with, independent of Discord's wire types.
type Reply struct {
	Content   string
	Ephemeral bool
	Rows      [][]Button
}

func ephemeral(format string, args ...any) Reply {
	return Reply{Content: fmt.Sprintf(format, args...), Ephemeral: true}
}

// Actions implements every command and button.
type Actions struct {
	deps   Deps
	logger *log.Logger
}

func NewActions(d Deps, logger *log.Logger) *Actions {
	return &Actions{deps: d, logger: shared.WithLogger(logger, "module", "bot")}
}

func (a *Actions) allowed(inv Invocation, role string) bool {
	return role == "" || slices.Contains(inv.Roles, role)
}

func (a *Actions) denied(role string) Reply {
	return ephemeral("You need the **%s** role for that.", role)
}

// Register creates the invoking user on first contact so that account links and stashes
// have a document to attach to.
func (a *Actions) Register(ctx context.Context, inv Invocation) {
	if a.deps.Users == nil || inv.Profile.ID == "" {
		return
	}
	_, err := a.deps.Users.GetUser(ctx, inv.Profile.ID)
	if err == nil || !errors.Is(err, shared.ErrUserNotFound) {
		return
	}
	if _, err := a.deps.Users.NewUser(ctx, inv.Profile); err != nil && !errors.Is(err, shared.ErrUserExists) {
		a.logger.Warn("failed to register user", "discord", inv.Profile.ID, "error", err)
	}
}

// failure turns an error into something a user can act on.
func (a *Actions) failure(op string, err error) Reply {
	switch {
	case errors.Is(err, shared.ErrNoResult):
		return ephemeral("Nothing found for that request.")
	case errors.Is(err, shared.ErrIndexOutOfRange):
		return ephemeral("That position is out of range.")
	case errors.Is(err, shared.ErrPlaylistNotFound):
		return ephemeral("No playlist by that name.")
	case errors.Is(err, shared.ErrPlaylistExists):
		return ephemeral("A playlist by that name already exists.")
	case errors.Is(err, shared.ErrServiceUnavailable):
		return ephemeral("That provider is not configured.")
	case errors.Is(err, shared.ErrMissingArgument), errors.Is(err, shared.ErrInvalidArgument):
		return ephemeral("Invalid request: %v", err)
	case errors.Is(err, context.DeadlineExceeded):
		return ephemeral("That took too long, try again.")
	case errors.Is(err, shared.ErrPoolClosed):
		return ephemeral("Shutting down, try again shortly.")
	case errors.Is(err, shared.ErrStoreUnavailable):
		return ephemeral("The database is unavailable right now.")
	default:
		a.logger.Error("command failed", "op", op, "error", err)
		return ephemeral("Something went wrong.")
	}
}

// playable drops tracks that have nothing to stream, placeholders included.
func playable(tracks []models.Track) (keep []models.Track, dropped int) {
	for _, t := range tracks {
		if _, ok := t.ChooseAudioSource(); ok {
			keep = append(keep, t)
		} else {
			dropped++
		}
	}
	return keep, dropped
}

func (a *Actions) enqueue(guild snowflake.ID, tracks []models.Track, next bool) Reply {
	keep, dropped := playable(tracks)
	if len(keep) == 0 {
		return ephemeral("None of those tracks can be played.")
	}

	q := a.deps.Players.GetOrCreate(guild)
	if next {
		q.QueueNext(keep)
	} else {
		q.QueueLast(keep)
	}

	var b strings.Builder
	where := "the end of the queue"
	if next {
		where = "play next"
	}
	fmt.Fprintf(&b, "Queued %d %s to %s:\n", len(keep), plural(len(keep), "track"), where)
	b.WriteString(formatter.Tracks(keep, playListLimit))
	if dropped > 0 {
		fmt.Fprintf(&b, "\n%d %s could not be found.", dropped, plural(dropped, "track"))
	}
	return Reply{Content: b.String()}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// Play acquires query and queues the result.
func (a *Actions) Play(ctx context.Context, inv Invocation, query string, next bool) Reply {
	if !a.allowed(inv, a.deps.Roles.DJ) {
		return a.denied(a.deps.Roles.DJ)
	}
	tracks, err := a.deps.Acquire.Submit(ctx, query)
	if err != nil {
		return a.failure("play", err)
	}
	return a.enqueue(inv.Guild, tracks, next)
}

// PlaylistOpts are the options of the /playlist subcommands. Indexes are 1-based.
type PlaylistOpts struct {
	Query string
	Name  string
	Index int
	To    int
	Page  int
	Next  bool
}

// Playlist runs a /playlist subcommand against the user's workspace.
func (a *Actions) Playlist(ctx context.Context, inv Invocation, sub string, o PlaylistOpts) Reply {
	if !a.allowed(inv, a.deps.Roles.DJ) {
		return a.denied(a.deps.Roles.DJ)
	}
	w := a.deps.Workspaces.Get(inv.User)

	switch sub {
	case "show":
		return Reply{Content: formatter.Workspace(w.Page(o.Page, 0)), Ephemeral: true}
	case "add":
		tracks, err := a.deps.Acquire.Submit(ctx, o.Query)
		if err != nil {
			return a.failure("playlist add", err)
		}
		at := w.Len()
		if o.Index > 0 {
			at = o.Index - 1
		}
		at = w.AddTracks(tracks, at)
		return ephemeral("Added %d %s at position %d.\n%s", len(tracks), plural(len(tracks), "track"), at+1,
			formatter.Tracks(tracks, playListLimit))
	case "remove":
		t, err := w.RemoveTrack(o.Index - 1)
		if err != nil {
			return a.failure("playlist remove", err)
		}
		return ephemeral("Removed %s.", formatter.TrackLine(t))
	case "move":
		t, err := w.MoveTrack(o.Index-1, o.To-1)
		if err != nil {
			return a.failure("playlist move", err)
		}
		return ephemeral("Moved %s to position %d.", formatter.TrackLine(t), o.To)
	case "empty":
		n := w.Len()
		w.EmptyList()
		return ephemeral("Removed %d %s from your workspace.", n, plural(n, "track"))
	case "save":
		n, err := w.Save(ctx, o.Name)
		if err != nil {
			return a.failure("playlist save", err)
		}
		return ephemeral("Saved %d %s as **%s**.", n, plural(n, "track"), shared.SanitizePlaylist(o.Name))
	case "load":
		n, err := w.Load(ctx, o.Name)
		if err != nil {
			return a.failure("playlist load", err)
		}
		return ephemeral("Loaded %d %s from **%s**.", n, plural(n, "track"), shared.SanitizePlaylist(o.Name))
	case "copy":
		q, ok := a.deps.Players.Get(inv.Guild)
		if !ok {
			return ephemeral("Nothing is queued.")
		}
		n := w.ImportQueue(q)
		return ephemeral("Copied %d %s from the queue.", n, plural(n, "track"))
	case "play":
		if w.Len() == 0 {
			return ephemeral("Your workspace is empty.")
		}
		return a.enqueue(inv.Guild, w.Tracks(), o.Next)
	case "list":
		if a.deps.Tracks == nil {
			return a.failure("playlist list", shared.ErrStoreUnavailable)
		}
		names, err := a.deps.Tracks.ListPlaylists(ctx)
		if err != nil {
			return a.failure("playlist list", err)
		}
		if len(names) == 0 {
			return ephemeral("There are no saved playlists.")
		}
		return ephemeral("**Playlists**\n%s", strings.Join(names, "\n"))
	default:
		return ephemeral("Unknown subcommand %q.", sub)
	}
}

// snapshot views the guild's queue. A queue left with no tracks is decommissioned.
func (a *Actions) snapshot(guild snowflake.ID, page int) player.Snapshot {
	q, ok := a.deps.Players.Get(guild)
	switch {
	case !ok:
		return player.NewQueue(guild, nil, nil).Snapshot(1)
	case q.Len() == 0:
		return q.Decommission()
	default:
		return q.Snapshot(page)
	}
}

// Queue shows the guild's queue at page, or the page holding the current track when
// page is 0.
func (a *Actions) Queue(inv Invocation, page int) Reply {
	return queueView(a.snapshot(inv.Guild, page))
}

// EditQueue runs a queue subcommand. index is 1-based.
func (a *Actions) EditQueue(inv Invocation, sub string, index int) Reply {
	switch sub {
	case "jump", "remove", "skip", "empty":
	default:
		return ephemeral("Unknown subcommand %q.", sub)
	}
	if !a.allowed(inv, a.deps.Roles.DJ) {
		return a.denied(a.deps.Roles.DJ)
	}
	q, ok := a.deps.Players.Get(inv.Guild)
	if !ok {
		return ephemeral("Nothing is queued.")
	}

	switch sub {
	case "jump":
		if err := q.Jump(index - 1); err != nil {
			return a.failure("queue jump", err)
		}
		return mediaView(a.snapshot(inv.Guild, 0))
	case "remove":
		t, err := q.RemoveTrack(index - 1)
		if err != nil {
			return a.failure("queue remove", err)
		}
		r := queueView(a.snapshot(inv.Guild, 0))
		r.Content = fmt.Sprintf("Removed %s.\n%s", formatter.TrackLine(t), r.Content)
		return r
	case "skip":
		q.Advance()
		return mediaView(a.snapshot(inv.Guild, 0))
	default:
		q.Empty()
		return queueView(a.snapshot(inv.Guild, 0))
	}
}

// Media shows playback controls for the guild's queue.
func (a *Actions) Media(inv Invocation) Reply {
	return mediaView(a.snapshot(inv.Guild, 0))
}

func queueView(s player.Snapshot) Reply {
	page := strconv.Itoa(s.Page)
	loop := Button{Label: "Loop", ID: "queue:loop:" + page}
	if s.Looping {
		loop.Style = Success
	}
	return Reply{
		Content: formatter.Queue(s),
		Rows: [][]Button{
			{
				{Label: "Refresh", ID: "queue:refresh:" + page},
				{Label: "Prev", ID: "queue:prev:" + page, Disabled: s.Page <= 1},
				{Label: "Home", ID: "queue:home:0"},
				{Label: "Next", ID: "queue:next:" + page, Disabled: s.Page >= s.Pages},
			},
			{
				loop,
				{Label: "Shuffle", ID: "queue:shuffle:" + page},
				{Label: "Media", ID: "queue:showmedia:0", Style: Primary},
			},
		},
	}
}

func mediaView(s player.Snapshot) Reply {
	var b strings.Builder
	if s.Current == nil {
		b.WriteString("**Nothing playing**")
	} else {
		fmt.Fprintf(&b, "**Now %s:** %s", s.State, formatter.TrackLine(*s.Current))
		if u := formatter.TrackURL(*s.Current); u != "" {
			fmt.Fprintf(&b, "\n<%s>", u)
		}
		fmt.Fprintf(&b, "\nTrack %d of %d", s.Playhead+1, len(s.Tracks))
	}

	pause := Button{Label: "Pause", ID: "media:pause"}
	if s.State != player.Playing {
		pause = Button{Label: "Play", ID: "media:pause", Style: Success}
	}
	return Reply{
		Content: b.String(),
		Rows: [][]Button{{
			{Label: "Refresh", ID: "media:refresh"},
			{Label: "Prev", ID: "media:prev"},
			pause,
			{Label: "Next", ID: "media:next"},
			{Label: "Queue", ID: "media:showqueue", Style: Primary},
		}},
	}
}

// Button handles a media: or queue: button press and returns the updated view.
func (a *Actions) Button(inv Invocation, customID string) Reply {
	parts := strings.Split(customID, ":")
	if len(parts) < 2 {
		return ephemeral("Unknown button.")
	}
	view, action := parts[0], parts[1]
	page := 0
	if len(parts) > 2 {
		page, _ = strconv.Atoi(parts[2])
	}

	switch view {
	case "queue":
		return a.queueButton(inv, action, page)
	case "media":
		return a.mediaButton(inv, action)
	default:
		return ephemeral("Unknown button.")
	}
}

func (a *Actions) queueButton(inv Invocation, action string, page int) Reply {
	switch action {
	case "refresh":
	case "prev":
		page--
	case "next":
		page++
	case "home":
		page = 0
	case "showmedia":
		return mediaView(a.snapshot(inv.Guild, 0))
	case "loop", "shuffle":
		if !a.allowed(inv, a.deps.Roles.DJ) {
			return a.denied(a.deps.Roles.DJ)
		}
		if q, ok := a.deps.Players.Get(inv.Guild); ok {
			if action == "loop" {
				q.ToggleLoop()
			} else {
				q.Shuffle()
			}
		}
	default:
		return ephemeral("Unknown button.")
	}
	return queueView(a.snapshot(inv.Guild, max(page, 0)))
}

func (a *Actions) mediaButton(inv Invocation, action string) Reply {
	switch action {
	case "refresh":
	case "showqueue":
		return queueView(a.snapshot(inv.Guild, 0))
	case "prev", "pause", "next":
		if !a.allowed(inv, a.deps.Roles.DJ) {
			return a.denied(a.deps.Roles.DJ)
		}
		q, ok := a.deps.Players.Get(inv.Guild)
		if !ok {
			break
		}
		// An exhausted queue starts over.
		if q.Current() == nil && action != "prev" {
			_ = q.Jump(0)
			break
		}
		switch action {
		case "prev":
			q.Prev()
		case "pause":
			q.TogglePause()
		case "next":
			q.Next()
		}
	default:
		return ephemeral("Unknown button.")
	}
	return mediaView(a.snapshot(inv.Guild, 0))
}

// Stash saves the guild's queue for the user, or loads the user's stash into it.
func (a *Actions) Stash(ctx context.Context, inv Invocation, sub string) Reply {
	if a.deps.Users == nil {
		return a.failure("stash", shared.ErrStoreUnavailable)
	}
	id := inv.User.String()

	switch sub {
	case "save":
		q, ok := a.deps.Players.Get(inv.Guild)
		if !ok {
			return ephemeral("Nothing is queued.")
		}
		stash, ok := q.Stash()
		if !ok {
			return ephemeral("Nothing in the queue can be stashed.")
		}
		if err := a.deps.Users.SaveStash(ctx, []string{id}, q.Playhead(), q.Tracks()); err != nil {
			return a.failure("stash save", err)
		}
		return ephemeral("Stashed %d %s.", len(stash.Tracks), plural(len(stash.Tracks), "track"))
	case "load":
		if !a.allowed(inv, a.deps.Roles.DJ) {
			return a.denied(a.deps.Roles.DJ)
		}
		playhead, tracks, err := a.deps.Users.GetStash(ctx, id)
		if err != nil {
			return a.failure("stash load", err)
		}
		if len(tracks) == 0 {
			return ephemeral("Your stash is empty.")
		}
		a.deps.Players.GetOrCreate(inv.Guild).Resume(tracks, playhead)
		return Reply{Content: fmt.Sprintf("Loaded %d stashed %s.", len(tracks), plural(len(tracks), "track"))}
	default:
		return ephemeral("Unknown subcommand %q.", sub)
	}
}

// Link issues an account link URL for service.
func (a *Actions) Link(ctx context.Context, inv Invocation, service string) Reply {
	authURL, ok := a.deps.AuthURLs[service]
	if !ok || a.deps.Links == nil {
		return ephemeral("Linking %s is not available.", service)
	}
	state, err := a.deps.Links.Create(ctx, inv.User.String(), service, linkTTL)
	if err != nil {
		return a.failure("link", err)
	}
	return ephemeral("[Link your %s account](%s)\nThe link works once and expires in %d minutes.",
		service, authURL(state.State), int(linkTTL.Minutes()))
}

// Admin runs the destructive maintenance subcommands.
func (a *Actions) Admin(ctx context.Context, inv Invocation, sub, target string) Reply {
	if !a.allowed(inv, a.deps.Roles.Admin) {
		return a.denied(a.deps.Roles.Admin)
	}
	if a.deps.Tracks == nil {
		return a.failure("admin", shared.ErrStoreUnavailable)
	}

	switch sub {
	case "removeplaylist":
		name := shared.SanitizePlaylist(target)
		n, err := a.deps.Tracks.RemovePlaylist(ctx, name)
		if err != nil {
			return a.failure("admin removeplaylist", err)
		}
		if n == 0 {
			return a.failure("admin removeplaylist", shared.ErrPlaylistNotFound)
		}
		a.logger.Info("removed playlist", "name", name, "tracks", n, "by", inv.User)
		return ephemeral("Removed playlist **%s** from %d %s.", name, n, plural(n, "track"))
	case "removetrack":
		n, err := a.deps.Tracks.RemoveTrack(ctx, target)
		if err != nil {
			return a.failure("admin removetrack", err)
		}
		a.logger.Info("removed track", "youtube", target, "count", n, "by", inv.User)
		return ephemeral("Removed %d %s.", n, plural(n, "track"))
	default:
		return ephemeral("Unknown subcommand %q.", sub)
	}
}
