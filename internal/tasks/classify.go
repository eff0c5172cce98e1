package tasks

import (
	"net/url"
	"strings"

	"github.com/desertthunder/goose/internal/models"
)

// Kind tags what an acquisition input refers to.
type Kind int

const (
	KindText Kind = iota
	KindYouTubeVideo
	KindYouTubePlaylist
	KindSpotifyTrack
	KindSpotifyAlbum
	KindSpotifyPlaylist
	KindNapsterTrack
	KindNapsterAlbum
	KindNapsterPlaylist
	KindSubsonicTrack
	KindSubsonicAlbum
	KindSubsonicPlaylist
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindYouTubeVideo:
		return "youtube_video"
	case KindYouTubePlaylist:
		return "youtube_playlist"
	case KindSpotifyTrack:
		return "spotify_track"
	case KindSpotifyAlbum:
		return "spotify_album"
	case KindSpotifyPlaylist:
		return "spotify_playlist"
	case KindNapsterTrack:
		return "napster_track"
	case KindNapsterAlbum:
		return "napster_album"
	case KindNapsterPlaylist:
		return "napster_playlist"
	case KindSubsonicTrack:
		return "subsonic_track"
	case KindSubsonicAlbum:
		return "subsonic_album"
	case KindSubsonicPlaylist:
		return "subsonic_playlist"
	default:
		return ""
	}
}

// Source returns the provider that serves k. Text has none.
func (k Kind) Source() models.SourceKind {
	switch k {
	case KindYouTubeVideo, KindYouTubePlaylist:
		return models.SourceYouTube
	case KindSpotifyTrack, KindSpotifyAlbum, KindSpotifyPlaylist:
		return models.SourceSpotify
	case KindNapsterTrack, KindNapsterAlbum, KindNapsterPlaylist:
		return models.SourceNapster
	case KindSubsonicTrack, KindSubsonicAlbum, KindSubsonicPlaylist:
		return models.SourceSubsonic
	default:
		return ""
	}
}

// Shape is the collection shape of a reference.
type Shape int

const (
	ShapeText Shape = iota
	ShapeTrack
	ShapeAlbum
	ShapePlaylist
)

func (k Kind) Shape() Shape {
	switch k {
	case KindYouTubeVideo, KindSpotifyTrack, KindNapsterTrack, KindSubsonicTrack:
		return ShapeTrack
	case KindSpotifyAlbum, KindNapsterAlbum, KindSubsonicAlbum:
		return ShapeAlbum
	case KindYouTubePlaylist, KindSpotifyPlaylist, KindNapsterPlaylist, KindSubsonicPlaylist:
		return ShapePlaylist
	default:
		return ShapeText
	}
}

// Ref is a classified input. For [KindText] the ID is the search text.
type Ref struct {
	Kind Kind
	ID   string
}

func text(input string) Ref {
	return Ref{Kind: KindText, ID: input}
}

// matcher recognizes one provider's inputs. ok is false when the input is not its own.
type matcher func(u *url.URL) (Ref, bool)

// Classifier maps inputs to references, trying each provider in a fixed order.
type Classifier struct {
	matchers []matcher
}

// NewClassifier builds a classifier. subsonicHosts lists the hosts whose links are
// Subsonic deep links; with none configured Subsonic links classify as text.
func NewClassifier(subsonicHosts []string) *Classifier {
	hosts := make(map[string]bool, len(subsonicHosts))
	for _, h := range subsonicHosts {
		if h = normalizeHost(h); h != "" {
			hosts[h] = true
		}
	}
	return &Classifier{matchers: []matcher{
		matchYouTube,
		matchSpotify,
		matchNapster,
		subsonicMatcher(hosts),
	}}
}

var defaultClassifier = NewClassifier(nil)

// Classify uses a classifier without Subsonic hosts.
func Classify(input string) Ref {
	return defaultClassifier.Classify(input)
}

// Classify returns the reference input names. Anything unrecognized is text.
func (c *Classifier) Classify(input string) Ref {
	input = strings.TrimSpace(input)
	if input == "" {
		return text(input)
	}

	if ref, ok := matchSpotifyURI(input); ok {
		return ref
	}

	u, ok := parseLink(input)
	if !ok {
		return text(input)
	}
	for _, m := range c.matchers {
		if ref, ok := m(u); ok {
			return ref
		}
	}
	return text(input)
}

// parseLink accepts absolute http(s) URLs and scheme-less host/path links.
func parseLink(input string) (*url.URL, bool) {
	if strings.ContainsAny(input, " \t\n") {
		return nil, false
	}
	if !strings.Contains(input, "://") {
		if !strings.Contains(input, "/") || !strings.Contains(strings.SplitN(input, "/", 2)[0], ".") {
			return nil, false
		}
		input = "https://" + input
	}

	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	return u, true
}

func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if i := strings.Index(h, "://"); i >= 0 {
		h = h[i+3:]
	}
	h = strings.TrimSuffix(strings.SplitN(h, "/", 2)[0], ".")
	if host, _, ok := strings.Cut(h, ":"); ok {
		h = host
	}
	for _, prefix := range []string{"www.", "m."} {
		h = strings.TrimPrefix(h, prefix)
	}
	return h
}

func segments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func matchYouTube(u *url.URL) (Ref, bool) {
	host := normalizeHost(u.Host)
	path := segments(u.Path)

	if host == "youtu.be" {
		if len(path) == 0 {
			return Ref{}, false
		}
		return Ref{Kind: KindYouTubeVideo, ID: path[0]}, true
	}
	if host != "youtube.com" && host != "music.youtube.com" {
		return Ref{}, false
	}

	q := u.Query()
	if v := q.Get("v"); v != "" {
		return Ref{Kind: KindYouTubeVideo, ID: v}, true
	}
	if list := q.Get("list"); list != "" {
		return Ref{Kind: KindYouTubePlaylist, ID: list}, true
	}
	if len(path) >= 2 {
		switch path[0] {
		case "shorts", "embed", "live", "v":
			return Ref{Kind: KindYouTubeVideo, ID: path[1]}, true
		}
	}
	return Ref{}, false
}

var spotifyKinds = map[string]Kind{
	"track":    KindSpotifyTrack,
	"album":    KindSpotifyAlbum,
	"playlist": KindSpotifyPlaylist,
}

// matchSpotifyURI accepts the spotify:<type>:<id> form clients put on the clipboard and drag payloads.
func matchSpotifyURI(input string) (Ref, bool) {
	parts := strings.Split(input, ":")
	if len(parts) != 3 || parts[0] != "spotify" || parts[2] == "" {
		return Ref{}, false
	}
	kind, ok := spotifyKinds[parts[1]]
	if !ok {
		return Ref{}, false
	}
	return Ref{Kind: kind, ID: parts[2]}, true
}

func matchSpotify(u *url.URL) (Ref, bool) {
	if host := normalizeHost(u.Host); host != "open.spotify.com" && host != "play.spotify.com" {
		return Ref{}, false
	}
	path := segments(u.Path)
	if len(path) > 0 && strings.HasPrefix(path[0], "intl-") {
		path = path[1:]
	}
	if len(path) < 2 {
		return Ref{}, false
	}
	kind, ok := spotifyKinds[path[0]]
	if !ok {
		return Ref{}, false
	}
	return Ref{Kind: kind, ID: path[1]}, true
}

// napsterPrefixes are Napster's typed id prefixes.
var napsterPrefixes = []struct {
	prefix string
	kind   Kind
}{
	{"tra.", KindNapsterTrack},
	{"alb.", KindNapsterAlbum},
	{"pp.", KindNapsterPlaylist},
	{"mp.", KindNapsterPlaylist},
}

func matchNapster(u *url.URL) (Ref, bool) {
	host := normalizeHost(u.Host)
	if host != "napster.com" && !strings.HasSuffix(host, ".napster.com") {
		return Ref{}, false
	}

	path := segments(u.Path)
	for i := len(path) - 1; i >= 0; i-- {
		id := strings.ToLower(path[i])
		for _, p := range napsterPrefixes {
			if strings.HasPrefix(id, p.prefix) {
				return Ref{Kind: p.kind, ID: path[i]}, true
			}
		}
	}
	for i := 0; i+1 < len(path); i++ {
		switch path[i] {
		case "track":
			return Ref{Kind: KindNapsterTrack, ID: path[i+1]}, true
		case "album":
			return Ref{Kind: KindNapsterAlbum, ID: path[i+1]}, true
		case "playlist":
			return Ref{Kind: KindNapsterPlaylist, ID: path[i+1]}, true
		}
	}
	return Ref{}, false
}

var subsonicKinds = map[string]Kind{
	"song":     KindSubsonicTrack,
	"track":    KindSubsonicTrack,
	"album":    KindSubsonicAlbum,
	"playlist": KindSubsonicPlaylist,
}

// subsonicMatcher reads web client deep links (…/#/album/<id>/show) and REST links
// (rest/getSong?id=<id>) on the configured hosts.
func subsonicMatcher(hosts map[string]bool) matcher {
	return func(u *url.URL) (Ref, bool) {
		if !hosts[normalizeHost(u.Host)] {
			return Ref{}, false
		}

		path := append(segments(u.Path), segments(u.Fragment)...)
		for i := 0; i+1 < len(path); i++ {
			if kind, ok := subsonicKinds[strings.ToLower(path[i])]; ok {
				return Ref{Kind: kind, ID: path[i+1]}, true
			}
		}

		id := u.Query().Get("id")
		if id == "" || len(path) == 0 {
			return Ref{}, false
		}
		switch strings.ToLower(strings.TrimSuffix(path[len(path)-1], ".view")) {
		case "getsong", "stream", "download":
			return Ref{Kind: KindSubsonicTrack, ID: id}, true
		case "getalbum":
			return Ref{Kind: KindSubsonicAlbum, ID: id}, true
		case "getplaylist":
			return Ref{Kind: KindSubsonicPlaylist, ID: id}, true
		}
		return Ref{}, false
	}
}
