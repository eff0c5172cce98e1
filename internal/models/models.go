// package models defines the track and user documents shared by every goose component
package models

import (
	"time"
)

// Current schema versions. Documents below these are upgraded on read.
const (
	TrackVersion = 1
	UserVersion  = 1
)

// SourceKind names a provider.
type SourceKind string

const (
	SourceYouTube  SourceKind = "youtube"
	SourceSpotify  SourceKind = "spotify"
	SourceNapster  SourceKind = "napster"
	SourceSubsonic SourceKind = "subsonic"
)

// Playable reports whether sources of this kind can be streamed directly.
func (k SourceKind) Playable() bool {
	return k == SourceYouTube || k == SourceSubsonic
}

func (k SourceKind) String() string {
	return string(k)
}

// SourceAlbum is the album a provider files a track under.
type SourceAlbum struct {
	ID          string `bson:"id,omitempty" json:"id,omitempty"`
	Name        string `bson:"name" json:"name"`
	TrackNumber int    `bson:"trackNumber" json:"trackNumber"`
}

// SourceArtist is the credited artist as a provider reports it.
type SourceArtist struct {
	ID   string `bson:"id,omitempty" json:"id,omitempty"`
	Name string `bson:"name" json:"name"`
}

// TrackSource is a provider-neutral description of one media item.
//
// ContentID is only set by YouTube. ID is a set: providers occasionally re-issue ids for the same recording, and every id seen is kept.
type TrackSource struct {
	ID       []string     `bson:"id" json:"id"`
	Name     string       `bson:"name" json:"name"`
	Art      string       `bson:"art,omitempty" json:"art,omitempty"`
	Duration int          `bson:"duration" json:"duration"`
	URL      string       `bson:"url" json:"url"`
	Album    SourceAlbum  `bson:"album" json:"album"`
	Artist   SourceArtist `bson:"artist" json:"artist"`

	ContentID *ContentID `bson:"contentID,omitempty" json:"contentID,omitempty"`
}

// PrimaryID returns the first id, or "" when the source has none.
func (s TrackSource) PrimaryID() string {
	if len(s.ID) == 0 {
		return ""
	}
	return s.ID[0]
}

// HasID reports whether id is one of the source's ids.
func (s TrackSource) HasID(id string) bool {
	for _, v := range s.ID {
		if v == id {
			return true
		}
	}
	return false
}

// ContentID is the song/artist hint YouTube attaches to licensed uploads.
type ContentID struct {
	Name   string `bson:"name" json:"name"`
	Artist string `bson:"artist" json:"artist"`
}

// YouTubeSource is one playable YouTube alternate.
type YouTubeSource struct {
	ID        string     `bson:"id" json:"id"`
	Name      string     `bson:"name" json:"name"`
	Art       string     `bson:"art,omitempty" json:"art,omitempty"`
	Duration  int        `bson:"duration" json:"duration"`
	URL       string     `bson:"url" json:"url"`
	ContentID *ContentID `bson:"contentID,omitempty" json:"contentID,omitempty"`
}

// TrackInfo holds the denormalized display fields of a track.
type TrackInfo struct {
	Name     string `bson:"name" json:"name"`
	Duration int    `bson:"duration" json:"duration"`
	Art      string `bson:"art,omitempty" json:"art,omitempty"`
}

// ArtistInfo is the artist as goose displays it. Official is a homepage link, filled lazily.
type ArtistInfo struct {
	Name     string `bson:"name" json:"name"`
	ID       string `bson:"id,omitempty" json:"id,omitempty"`
	Official string `bson:"official,omitempty" json:"official,omitempty"`
}

// AlbumInfo is the album as goose displays it.
type AlbumInfo struct {
	Name        string `bson:"name" json:"name"`
	ID          string `bson:"id,omitempty" json:"id,omitempty"`
	TrackNumber int    `bson:"trackNumber" json:"trackNumber"`
}

// TrackGoose is the provider-independent part of a track.
type TrackGoose struct {
	ID     string     `bson:"id" json:"id"`
	Track  TrackInfo  `bson:"track" json:"track"`
	Artist ArtistInfo `bson:"artist" json:"artist"`
	Album  AlbumInfo  `bson:"album" json:"album"`
	Plays  int        `bson:"plays,omitempty" json:"plays,omitempty"`
	Errors int        `bson:"errors,omitempty" json:"errors,omitempty"`
}

// AudioSource holds the playable sources. YouTube[0] is the active alternate.
type AudioSource struct {
	YouTube  []YouTubeSource `bson:"youtube,omitempty" json:"youtube,omitempty"`
	Subsonic *TrackSource    `bson:"subsonic,omitempty" json:"subsonic,omitempty"`
}

// TrackStatus flags in-memory tracks. It is cleared before every write.
type TrackStatus struct {
	Ephemeral bool   `bson:"ephemeral,omitempty" json:"ephemeral,omitempty"`
	Failed    bool   `bson:"failed,omitempty" json:"failed,omitempty"`
	Start     int    `bson:"start,omitempty" json:"start,omitempty"`
	Reason    string `bson:"reason,omitempty" json:"reason,omitempty"`
}

// Track is the canonical document for one song.
type Track struct {
	Goose       TrackGoose     `bson:"goose" json:"goose"`
	AudioSource AudioSource    `bson:"audioSource" json:"audioSource"`
	Spotify     *TrackSource   `bson:"spotify,omitempty" json:"spotify,omitempty"`
	Napster     *TrackSource   `bson:"napster,omitempty" json:"napster,omitempty"`
	Playlists   map[string]int `bson:"playlists,omitempty" json:"playlists,omitempty"`
	Status      TrackStatus    `bson:"status" json:"status"`
	Keys        []string       `bson:"keys,omitempty" json:"keys,omitempty"`
	Version     int            `bson:"version" json:"version"`
}

// LegacyTrack decodes any stored track version. Version 0 kept YouTube at the top level.
type LegacyTrack struct {
	Track   `bson:",inline"`
	YouTube []YouTubeSource `bson:"youtube,omitempty" json:"youtube,omitempty"`
}

// Playable is the source a track would stream from.
type Playable struct {
	Kind     SourceKind
	ID       string
	URL      string
	Duration int
}

// ChooseAudioSource picks Subsonic when present, else the active YouTube alternate.
func (t Track) ChooseAudioSource() (Playable, bool) {
	if s := t.AudioSource.Subsonic; s != nil {
		return Playable{Kind: SourceSubsonic, ID: s.PrimaryID(), URL: s.URL, Duration: s.Duration}, true
	}
	if len(t.AudioSource.YouTube) > 0 {
		y := t.AudioSource.YouTube[0]
		return Playable{Kind: SourceYouTube, ID: y.ID, URL: y.URL, Duration: y.Duration}, true
	}
	return Playable{}, false
}

// SyncDuration points goose.track.duration at the preferred playable source.
func (t *Track) SyncDuration() {
	if p, ok := t.ChooseAudioSource(); ok {
		t.Goose.Track.Duration = p.Duration
	}
}

// Pending reports whether the track only exists in memory.
func (t Track) Pending() bool {
	return t.Status.Ephemeral || t.Goose.ID == ""
}

// HasKey reports whether key is already recorded.
func (t Track) HasKey(key string) bool {
	for _, k := range t.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so queue and workspace edits never alias a stored document.
func (t Track) Clone() Track {
	c := t
	if t.AudioSource.YouTube != nil {
		c.AudioSource.YouTube = make([]YouTubeSource, len(t.AudioSource.YouTube))
		for i, y := range t.AudioSource.YouTube {
			if y.ContentID != nil {
				cid := *y.ContentID
				y.ContentID = &cid
			}
			c.AudioSource.YouTube[i] = y
		}
	}
	c.AudioSource.Subsonic = cloneSource(t.AudioSource.Subsonic)
	c.Spotify = cloneSource(t.Spotify)
	c.Napster = cloneSource(t.Napster)
	if t.Playlists != nil {
		c.Playlists = make(map[string]int, len(t.Playlists))
		for k, v := range t.Playlists {
			c.Playlists[k] = v
		}
	}
	if t.Keys != nil {
		c.Keys = append([]string(nil), t.Keys...)
	}
	return c
}

func cloneSource(s *TrackSource) *TrackSource {
	if s == nil {
		return nil
	}
	c := *s
	c.ID = append([]string(nil), s.ID...)
	if s.ContentID != nil {
		cid := *s.ContentID
		c.ContentID = &cid
	}
	return &c
}

// CloneTracks deep-copies a slice of tracks.
func CloneTracks(tracks []Track) []Track {
	if tracks == nil {
		return nil
	}
	out := make([]Track, len(tracks))
	for i, t := range tracks {
		out[i] = t.Clone()
	}
	return out
}

// NewPlaceholder builds a failure marker that sits among resolved tracks in a batch.
func NewPlaceholder(reason string) Track {
	return Track{
		Goose:  TrackGoose{Track: TrackInfo{Name: reason}},
		Status: TrackStatus{Ephemeral: true, Failed: true, Reason: reason},
	}
}

// History is a value with an append-only log of what it used to be.
type History struct {
	Current string   `bson:"current" json:"current"`
	Old     []string `bson:"old" json:"old"`
}

// Push records v as current, moving the previous value into Old once.
func (h *History) Push(v string) {
	if h.Current == v {
		return
	}
	if h.Current != "" {
		seen := false
		for _, o := range h.Old {
			if o == h.Current {
				seen = true
				break
			}
		}
		if !seen {
			h.Old = append(h.Old, h.Current)
		}
	}
	h.Current = v
}

// UserGoose is the goose-owned identity of a user.
type UserGoose struct {
	ID       string `bson:"id" json:"id"`
	Username string `bson:"username" json:"username"`
	Locale   string `bson:"locale" json:"locale"`
}

// DiscordIdentity mirrors a user's Discord profile with value histories.
type DiscordIdentity struct {
	ID            string             `bson:"id" json:"id"`
	Locale        string             `bson:"locale" json:"locale"`
	Username      History            `bson:"username" json:"username"`
	Discriminator History            `bson:"discriminator" json:"discriminator"`
	Nickname      map[string]History `bson:"nickname" json:"nickname"`
}

// OAuthToken is a stored external-account credential.
type OAuthToken struct {
	AccessToken  string    `bson:"access" json:"access"`
	RefreshToken string    `bson:"renew,omitempty" json:"renew,omitempty"`
	Expiry       time.Time `bson:"expiry,omitempty" json:"expiry,omitempty"`
	Scope        string    `bson:"scope,omitempty" json:"scope,omitempty"`
}

// Expired reports whether the token has a known expiry that has passed.
func (t OAuthToken) Expired(now time.Time) bool {
	return !t.Expiry.IsZero() && !now.Before(t.Expiry)
}

// Tokens groups a user's linked service credentials.
type Tokens struct {
	Spotify *OAuthToken `bson:"spotify,omitempty" json:"spotify,omitempty"`
	Napster *OAuthToken `bson:"napster,omitempty" json:"napster,omitempty"`
	LastFM  *OAuthToken `bson:"lastfm,omitempty" json:"lastfm,omitempty"`
}

// LinkedAccount is the public profile of a linked external account.
type LinkedAccount struct {
	ID       string `bson:"id" json:"id"`
	Username string `bson:"username" json:"username"`
	Locale   string `bson:"locale,omitempty" json:"locale,omitempty"`
}

// Stash is a user's saved queue position.
type Stash struct {
	Playhead int      `bson:"playhead" json:"playhead"`
	Tracks   []string `bson:"tracks" json:"tracks"`
}

// NewStash builds a stash from a queue, skipping pending tracks.
//
// The playhead shifts left once for every skipped track before it, and a playhead that
// lands on the end of the list wraps to 0. ok is false when nothing is left to stash.
func NewStash(playhead int, queue []Track) (stash Stash, ok bool) {
	ids := make([]string, 0, len(queue))
	current := playhead
	for i, t := range queue {
		if t.Pending() {
			if i < current {
				playhead--
			}
			continue
		}
		ids = append(ids, t.Goose.ID)
	}
	if len(ids) == 0 {
		return Stash{}, false
	}
	if playhead >= len(ids) || playhead < 0 {
		playhead = 0
	}
	return Stash{Playhead: playhead, Tracks: ids}, true
}

// User is the stored document for one Discord user.
type User struct {
	Goose       UserGoose       `bson:"goose" json:"goose"`
	Discord     DiscordIdentity `bson:"discord" json:"discord"`
	Tokens      Tokens          `bson:"tokens" json:"tokens"`
	Spotify     *LinkedAccount  `bson:"spotify,omitempty" json:"spotify,omitempty"`
	Napster     *LinkedAccount  `bson:"napster,omitempty" json:"napster,omitempty"`
	LastFM      *LinkedAccount  `bson:"lastfm,omitempty" json:"lastfm,omitempty"`
	WebClientID string          `bson:"webClientId,omitempty" json:"webClientId,omitempty"`
	Stash       Stash           `bson:"stash" json:"stash"`
	Version     int             `bson:"version" json:"version"`
}

// DiscordProfile is what the presentation layer knows about a user when registering them.
type DiscordProfile struct {
	ID            string
	Username      string
	Nickname      string
	Discriminator string
	GuildID       string
	Locale        string
}

// WebUser is the reduced view of a user handed to web clients.
type WebUser struct {
	DiscordID     string         `json:"discordId"`
	Username      string         `json:"username"`
	Discriminator string         `json:"discriminator"`
	Spotify       *LinkedAccount `json:"spotify,omitempty"`
	Napster       *LinkedAccount `json:"napster,omitempty"`
	LastFM        *LinkedAccount `json:"lastfm,omitempty"`
	Status        string         `json:"status"`
}

// Web returns the reduced view of u.
func (u User) Web() WebUser {
	return WebUser{
		DiscordID:     u.Discord.ID,
		Username:      u.Discord.Username.Current,
		Discriminator: u.Discord.Discriminator.Current,
		Spotify:       u.Spotify,
		Napster:       u.Napster,
		LastFM:        u.LastFM,
		Status:        "known",
	}
}
