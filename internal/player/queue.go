package player

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/shared"
	"github.com/disgoorg/snowflake/v2"
)

// State is the playback state of a [Queue].
type State int

const (
	Empty State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return ""
	}
}

const playLogTimeout = 10 * time.Second

// Queue is the live playback queue of one guild.
//
// The playhead indexes the current track. It equals the queue length once the last track
// has finished without looping; the queue then has no current track and is [Empty] until
// something is queued or jumped to.
type Queue struct {
	mu       sync.Mutex
	guild    snowflake.ID
	tracks   []models.Track
	playhead int
	paused   bool
	looping  bool

	plays  models.PlayLogger
	logger *log.Logger
	evict  func()
}

// NewQueue returns an empty queue. plays may be nil to disable telemetry.
func NewQueue(guild snowflake.ID, plays models.PlayLogger, logger *log.Logger) *Queue {
	return &Queue{
		guild:  guild,
		plays:  plays,
		logger: shared.WithLogger(logger, "module", "player", "guild", guild),
	}
}

func (q *Queue) hasCurrent() bool {
	return q.playhead >= 0 && q.playhead < len(q.tracks)
}

func (q *Queue) state() State {
	switch {
	case !q.hasCurrent():
		return Empty
	case q.paused:
		return Paused
	default:
		return Playing
	}
}

// landed records a transition onto the current track. Callers hold q.mu.
func (q *Queue) landed() {
	q.paused = false
	if !q.hasCurrent() {
		return
	}
	q.logPlay(q.tracks[q.playhead])
}

// logPlay reports a play without waiting for the store.
func (q *Queue) logPlay(t models.Track) {
	if q.plays == nil {
		return
	}
	if t.Goose.ID == "" {
		q.logger.Debug("not logging play for placeholder", "name", t.Goose.Track.Name)
		return
	}
	success := !t.Status.Failed
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), playLogTimeout)
		defer cancel()
		if err := q.plays.LogPlay(ctx, t.Goose.ID, success); err != nil {
			q.logger.Error("failed to log play", "id", t.Goose.ID, "error", err)
		}
	}()
}

// Guild returns the guild the queue belongs to.
func (q *Queue) Guild() snowflake.ID {
	return q.guild
}

// State returns the playback state.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state()
}

// Len returns the number of queued tracks, played ones included.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tracks)
}

// Playhead returns the index of the current track.
func (q *Queue) Playhead() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playhead
}

// Current returns a copy of the current track, or nil when there is none.
func (q *Queue) Current() *models.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.hasCurrent() {
		return nil
	}
	t := q.tracks[q.playhead].Clone()
	return &t
}

// Tracks returns a copy of the queue.
func (q *Queue) Tracks() []models.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	return cloneAll(q.tracks)
}

func cloneAll(tracks []models.Track) []models.Track {
	out := make([]models.Track, len(tracks))
	for i, t := range tracks {
		out[i] = t.Clone()
	}
	return out
}

// QueueLast appends tracks and returns the new length. If nothing was playing, the first
// appended track starts.
func (q *Queue) QueueLast(tracks []models.Track) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	starting := !q.hasCurrent() && len(tracks) > 0
	q.tracks = append(q.tracks, cloneAll(tracks)...)
	if starting {
		q.landed()
	}
	q.logger.Debug("queued", "tracks", len(tracks), "length", len(q.tracks))
	return len(q.tracks)
}

// Resume appends a stashed queue and returns the new length. If nothing was playing,
// playback starts at tracks[playhead] directly.
func (q *Queue) Resume(tracks []models.Track, playhead int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	starting := !q.hasCurrent() && len(tracks) > 0
	start := len(q.tracks)
	q.tracks = append(q.tracks, cloneAll(tracks)...)
	if starting {
		if playhead < 0 || playhead >= len(tracks) {
			playhead = 0
		}
		q.playhead = start + playhead
		q.landed()
	}
	q.logger.Debug("resumed", "tracks", len(tracks), "length", len(q.tracks))
	return len(q.tracks)
}

// QueueNext inserts tracks right after the current one and returns the new length. With
// nothing playing they are inserted at the playhead and start immediately.
func (q *Queue) QueueNext(tracks []models.Track) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(tracks) == 0 {
		return len(q.tracks)
	}
	at := q.playhead + 1
	starting := !q.hasCurrent()
	if starting {
		at = q.playhead
	}
	q.tracks = slices.Insert(q.tracks, at, cloneAll(tracks)...)
	if starting {
		q.landed()
	}
	return len(q.tracks)
}

// Next moves to the following track, wrapping to the start when looping. At the last track
// without looping it does nothing. It reports whether the playhead moved.
func (q *Queue) Next() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case len(q.tracks) == 0:
		return false
	case q.playhead < len(q.tracks)-1:
		q.playhead++
	case q.looping:
		q.playhead = 0
	default:
		return false
	}
	q.landed()
	return true
}

// Advance is called when the current track finishes. It behaves like [Queue.Next] except
// that finishing the last track without looping exhausts the queue.
func (q *Queue) Advance() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.hasCurrent() {
		return false
	}
	switch {
	case q.playhead < len(q.tracks)-1:
		q.playhead++
	case q.looping:
		q.playhead = 0
	default:
		q.playhead = len(q.tracks)
		q.paused = false
		q.logger.Debug("queue exhausted")
		return false
	}
	q.landed()
	return true
}

// Prev moves to the previous track, wrapping to the end when looping. At the first track
// without looping it does nothing. From an exhausted queue it returns to the last track.
func (q *Queue) Prev() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case len(q.tracks) == 0:
		return false
	case q.playhead > 0:
		q.playhead = min(q.playhead-1, len(q.tracks)-1)
	case q.looping:
		q.playhead = len(q.tracks) - 1
	default:
		return false
	}
	q.landed()
	return true
}

// Jump seeks to index i.
func (q *Queue) Jump(i int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i < 0 || i >= len(q.tracks) {
		return fmt.Errorf("%w: %d of %d", shared.ErrIndexOutOfRange, i, len(q.tracks))
	}
	q.playhead = i
	q.landed()
	return nil
}

// TogglePause flips between playing and paused and returns whether the queue is now
// paused. Without a current track it does nothing.
func (q *Queue) TogglePause() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.hasCurrent() {
		return false
	}
	q.paused = !q.paused
	return q.paused
}

// ToggleLoop flips looping and returns the new value.
func (q *Queue) ToggleLoop() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.looping = !q.looping
	return q.looping
}

// Looping reports whether the queue wraps at its ends.
func (q *Queue) Looping() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.looping
}

// Shuffle reorders the tracks after the current one. Played tracks and the current track
// keep their positions. Without a current track the whole queue is shuffled.
func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	start := q.playhead + 1
	if !q.hasCurrent() {
		start = 0
	}
	if start >= len(q.tracks) {
		return
	}
	tail := q.tracks[start:]
	rand.Shuffle(len(tail), func(i, j int) { tail[i], tail[j] = tail[j], tail[i] })
}

// RemoveTrack removes index i and returns it. Removing the current track makes the
// following one current.
func (q *Queue) RemoveTrack(i int) (models.Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i < 0 || i >= len(q.tracks) {
		return models.Track{}, fmt.Errorf("%w: %d of %d", shared.ErrIndexOutOfRange, i, len(q.tracks))
	}
	removed := q.tracks[i]
	wasCurrent := i == q.playhead
	q.tracks = slices.Delete(q.tracks, i, i+1)

	switch {
	case i < q.playhead:
		q.playhead--
	case wasCurrent:
		if !q.hasCurrent() && q.looping && len(q.tracks) > 0 {
			q.playhead = 0
		}
		q.landed()
	}
	return removed, nil
}

// Empty clears the queue and its playback state. Looping is kept.
func (q *Queue) Empty() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.empty()
}

func (q *Queue) empty() {
	q.tracks = nil
	q.playhead = 0
	q.paused = false
}

// Decommission empties the queue, removes it from its registry and returns the final
// snapshot for the presentation layer.
func (q *Queue) Decommission() Snapshot {
	q.mu.Lock()
	q.empty()
	snap := q.snapshot(1)
	evict := q.evict
	q.mu.Unlock()

	if evict != nil {
		evict()
	}
	q.logger.Info("decommissioned")
	return snap
}

// Stash captures the queue for [models.UserStore.SaveStash]. ok is false when nothing
// could be stashed.
func (q *Queue) Stash() (models.Stash, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return models.NewStash(q.playhead, q.tracks)
}

// Snapshot is a point-in-time view of a queue for rendering.
type Snapshot struct {
	Guild    snowflake.ID
	State    State
	Tracks   []models.Track // Whole queue
	Playhead int
	Paused   bool
	Looping  bool
	Current  *models.Track
	Page     int // 1-based page shown
	Pages    int
}

// Snapshot returns a view of the queue at page. page <= 0 selects the page holding the
// current track.
func (q *Queue) Snapshot(page int) Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshot(page)
}

func (q *Queue) snapshot(page int) Snapshot {
	if page <= 0 {
		page = min(q.playhead, max(len(q.tracks)-1, 0))/shared.PageSize + 1
	}
	_, _, page, pages := shared.Paginate(len(q.tracks), page, shared.PageSize)

	s := Snapshot{
		Guild:    q.guild,
		State:    q.state(),
		Tracks:   cloneAll(q.tracks),
		Playhead: q.playhead,
		Paused:   q.paused,
		Looping:  q.looping,
		Page:     page,
		Pages:    pages,
	}
	if q.hasCurrent() {
		c := q.tracks[q.playhead].Clone()
		s.Current = &c
	}
	return s
}

// PageTracks returns the tracks on the snapshot's page and the queue index of the first.
func (s Snapshot) PageTracks() (offset int, tracks []models.Track) {
	start, end, _, _ := shared.Paginate(len(s.Tracks), s.Page, shared.PageSize)
	return start, s.Tracks[start:end]
}
