package models

import "context"

// Document field paths shared by every store implementation.
const (
	FieldGooseID    = "goose.id"
	FieldYouTubeID  = "audioSource.youtube.id"
	FieldSubsonicID = "audioSource.subsonic.id"
	FieldSpotifyID  = "spotify.id"
	FieldNapsterID  = "napster.id"
	FieldKeys       = "keys"
)

// Lookup selects one track by a single field equality.
type Lookup struct {
	Field string
	Value string
}

func ByGooseID(id string) Lookup { return Lookup{Field: FieldGooseID, Value: id} }
func ByKey(key string) Lookup    { return Lookup{Field: FieldKeys, Value: key} }

// BySource selects the track holding a provider id.
func BySource(kind SourceKind, id string) Lookup {
	switch kind {
	case SourceYouTube:
		return Lookup{Field: FieldYouTubeID, Value: id}
	case SourceSubsonic:
		return Lookup{Field: FieldSubsonicID, Value: id}
	case SourceSpotify:
		return Lookup{Field: FieldSpotifyID, Value: id}
	default:
		return Lookup{Field: FieldNapsterID, Value: id}
	}
}

// Linkable services.
const (
	ServiceSpotify = "spotify"
	ServiceNapster = "napster"
	ServiceLastFM  = "lastfm"
)

// UserField names the Discord profile fields that carry history.
type UserField string

const (
	UserFieldUsername      UserField = "username"
	UserFieldDiscriminator UserField = "discriminator"
	UserFieldNickname      UserField = "nickname"
	UserFieldLocale        UserField = "locale"
)

// Valid reports whether f is a known field.
func (f UserField) Valid() bool {
	switch f {
	case UserFieldUsername, UserFieldDiscriminator, UserFieldNickname, UserFieldLocale:
		return true
	}
	return false
}

// TrackStore is the persistence contract for tracks.
//
// Lookups that miss return an error wrapping shared.ErrTrackNotFound.
type TrackStore interface {
	GetTrack(ctx context.Context, l Lookup) (*Track, error)
	InsertTrack(ctx context.Context, t *Track) error
	ReplaceTrack(ctx context.Context, t *Track) (int, error)

	AddKey(ctx context.Context, l Lookup, key string) error
	AddSourceID(ctx context.Context, l Lookup, kind SourceKind, id string) error
	AddPlayableSourceID(ctx context.Context, l Lookup, id string) error
	SetSource(ctx context.Context, l Lookup, kind SourceKind, s TrackSource) error
	SetPlayableSource(ctx context.Context, l Lookup, s TrackSource) error
	AppendAlternate(ctx context.Context, l Lookup, y YouTubeSource) error
	SwitchAlternate(ctx context.Context, gooseID string, alternate int) (int, error)

	AddPlaylist(ctx context.Context, tracks []Track, name string) error
	GetPlaylist(ctx context.Context, name string) ([]Track, error)
	RemovePlaylist(ctx context.Context, name string) (int, error)
	ListPlaylists(ctx context.Context) ([]string, error)

	RemoveTrack(ctx context.Context, youtubeID string) (int, error)
	CountTracks(ctx context.Context) (int64, error)
	UpdateOfficial(ctx context.Context, gooseID, link string) error

	PlayLogger
}

// UserStore is the persistence contract for users.
type UserStore interface {
	NewUser(ctx context.Context, p DiscordProfile) (*User, error)
	GetUser(ctx context.Context, discordID string) (*User, error)
	UpdateUser(ctx context.Context, discordID string, field UserField, value, guildID string) error
	ReplaceUser(ctx context.Context, u *User) (int, error)

	SaveStash(ctx context.Context, discordIDs []string, playhead int, queue []Track) error
	GetStash(ctx context.Context, discordID string) (int, []Track, error)

	SaveToken(ctx context.Context, discordID, service string, token OAuthToken) error
	LinkAccount(ctx context.Context, discordID, service string, account LinkedAccount) error
	GetUserByWebClientID(ctx context.Context, webClientID string) (*User, error)
}

// PlayLogger records play telemetry. Failures count as a play and an error.
type PlayLogger interface {
	LogPlay(ctx context.Context, gooseID string, success bool) error
}

// TrackUpgrader migrates a stored track of any version to [TrackVersion].
type TrackUpgrader interface {
	UpgradeTrack(ctx context.Context, doc *LegacyTrack) *Track
}

// UserUpgrader migrates a stored user of any version to [UserVersion].
type UserUpgrader interface {
	UpgradeUser(ctx context.Context, u *User) *User
}
