// Subsonic protocol implementation of [Source]
package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/shared"
)

const (
	subsonicAPIVersion = "1.16.1"
	subsonicSongCount  = 5
	subsonicArtSize    = 300
)

// SubsonicPlaceholderURL is the url of every Subsonic source.
//
// A Subsonic stream needs credentials in its query string, so stored sources never carry one.
// Playback builds a fresh signed URL with [SubsonicService.StreamURL].
const SubsonicPlaceholderURL = "http://localhost"

// SubsonicSong is a song entry as the Subsonic API returns it.
type SubsonicSong struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Album    string `json:"album"`
	AlbumID  string `json:"albumId"`
	Artist   string `json:"artist"`
	ArtistID string `json:"artistId"`
	Track    int    `json:"track"`
	Duration int    `json:"duration"`
}

type subsonicError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type subsonicEnvelope struct {
	Response struct {
		Status string         `json:"status"`
		Error  *subsonicError `json:"error"`
		Song   *SubsonicSong  `json:"song"`
		Album  *struct {
			Song []SubsonicSong `json:"song"`
		} `json:"album"`
		Playlist *struct {
			Entry []SubsonicSong `json:"entry"`
		} `json:"playlist"`
		SearchResult2 *struct {
			Song []SubsonicSong `json:"song"`
		} `json:"searchResult2"`
	} `json:"subsonic-response"`
}

// SubsonicService implements [Source] against a Subsonic-protocol server.
type SubsonicService struct {
	api      *APIClient
	username string
	password string
	clientID string
	rootURL  string
	logger   *log.Logger
}

// NewSubsonicService creates the Subsonic adapter. rootURL prefixes the art proxy links.
func NewSubsonicService(c shared.SubsonicConfig, rootURL string, logger *log.Logger) (*SubsonicService, error) {
	if c.EndpointURI == "" || c.Username == "" {
		return nil, fmt.Errorf("%w: subsonic endpoint_uri and username", shared.ErrMissingCredentials)
	}
	clientID := c.ClientID
	if clientID == "" {
		clientID = "goose"
	}
	return &SubsonicService{
		api:      NewAPIClient(strings.TrimRight(c.EndpointURI, "/")+"/rest", nil),
		username: c.Username,
		password: c.Password,
		clientID: clientID,
		rootURL:  strings.TrimRight(rootURL, "/"),
		logger:   shared.WithLogger(logger, "service", "subsonic"),
	}, nil
}

func (s *SubsonicService) Kind() models.SourceKind { return models.SourceSubsonic }

// Sign returns a fresh salt and md5(password+salt). Salts are never reused.
func (s *SubsonicService) Sign() (salt, token string) {
	salt = shared.RandomHex(10)
	sum := md5.Sum([]byte(s.password + salt))
	return salt, hex.EncodeToString(sum[:])
}

// auth builds the signed query every Subsonic call needs.
func (s *SubsonicService) auth(extra url.Values) url.Values {
	salt, token := s.Sign()
	q := url.Values{
		"u": []string{s.username},
		"s": []string{salt},
		"t": []string{token},
		"c": []string{s.clientID},
		"v": []string{subsonicAPIVersion},
	}
	for k, v := range extra {
		q[k] = v
	}
	return q
}

func (s *SubsonicService) call(ctx context.Context, method string, extra url.Values) (*subsonicEnvelope, error) {
	q := s.auth(extra)
	q.Set("f", "json")

	var env subsonicEnvelope
	if err := s.api.GetJSON(ctx, method, q, &env); err != nil {
		return nil, err
	}
	if r := env.Response; r.Status != "ok" {
		if r.Error != nil && r.Error.Code == 70 {
			return nil, fmt.Errorf("%w: subsonic %s: %s", shared.ErrTrackNotFound, method, r.Error.Message)
		}
		msg := r.Status
		if r.Error != nil {
			msg = r.Error.Message
		}
		return nil, fmt.Errorf("%w: subsonic %s: %s", shared.ErrAPIRequest, method, msg)
	}
	return &env, nil
}

// ArtLink is the public art proxy URL for a song.
func (s *SubsonicService) ArtLink(id string) string {
	return s.rootURL + "/subsonic-art/" + url.PathEscape(id)
}

func (s *SubsonicService) toSource(song SubsonicSong) models.TrackSource {
	return models.TrackSource{
		ID:       []string{song.ID},
		Name:     song.Title,
		Art:      s.ArtLink(song.ID),
		Duration: song.Duration,
		URL:      SubsonicPlaceholderURL,
		Album:    models.SourceAlbum{ID: song.AlbumID, Name: song.Album, TrackNumber: song.Track},
		Artist:   models.SourceArtist{ID: song.ArtistID, Name: song.Artist},
	}
}

func (s *SubsonicService) toSources(songs []SubsonicSong) []models.TrackSource {
	sources := make([]models.TrackSource, 0, len(songs))
	for _, song := range songs {
		sources = append(sources, s.toSource(song))
	}
	return sources
}

// FromTrack fetches a single song.
func (s *SubsonicService) FromTrack(ctx context.Context, id string) (*models.TrackSource, error) {
	s.logger.Info("subsonic track", "id", id)
	env, err := s.call(ctx, "getSong", url.Values{"id": []string{id}})
	if err != nil {
		return nil, err
	}
	if env.Response.Song == nil {
		return nil, fmt.Errorf("%w: subsonic song %s", shared.ErrTrackNotFound, id)
	}
	src := s.toSource(*env.Response.Song)
	return &src, nil
}

// FromAlbum fetches every song of an album.
func (s *SubsonicService) FromAlbum(ctx context.Context, id string) ([]models.TrackSource, error) {
	s.logger.Info("subsonic album", "id", id)
	env, err := s.call(ctx, "getAlbum", url.Values{"id": []string{id}})
	if err != nil {
		return nil, err
	}
	if env.Response.Album == nil {
		return nil, fmt.Errorf("%w: subsonic album %s", shared.ErrTrackNotFound, id)
	}
	return s.toSources(env.Response.Album.Song), nil
}

// FromPlaylist fetches every entry of a playlist.
func (s *SubsonicService) FromPlaylist(ctx context.Context, id string) ([]models.TrackSource, error) {
	s.logger.Info("subsonic playlist", "id", id)
	env, err := s.call(ctx, "getPlaylist", url.Values{"id": []string{id}})
	if err != nil {
		return nil, err
	}
	if env.Response.Playlist == nil {
		return nil, fmt.Errorf("%w: subsonic playlist %s", shared.ErrPlaylistNotFound, id)
	}
	return s.toSources(env.Response.Playlist.Entry), nil
}

// FromText returns the first of up to five song hits, or nil.
func (s *SubsonicService) FromText(ctx context.Context, query string) (*models.TrackSource, error) {
	s.logger.Info("subsonic search", "query", query)
	env, err := s.call(ctx, "search2", url.Values{
		"query":       []string{query},
		"artistCount": []string{"0"},
		"albumCount":  []string{"0"},
		"songCount":   []string{strconv.Itoa(subsonicSongCount)},
	})
	if err != nil {
		s.logger.Warn("subsonic search failed", "query", query, "error", err)
		return nil, nil
	}
	r := env.Response.SearchResult2
	if r == nil || len(r.Song) == 0 {
		return nil, nil
	}
	src := s.toSource(r.Song[0])
	return &src, nil
}

// StreamURL builds a freshly signed opus stream URL starting at offset seconds.
func (s *SubsonicService) StreamURL(id string, offset int) string {
	return s.api.URL("stream", s.auth(url.Values{
		"id":         []string{id},
		"timeOffset": []string{strconv.Itoa(offset)},
		"format":     []string{"opus"},
	}))
}

// ArtURL builds a freshly signed cover art URL. It must never reach a client.
func (s *SubsonicService) ArtURL(id string) string {
	return s.api.URL("getCoverArt", s.auth(url.Values{
		"id":   []string{id},
		"size": []string{strconv.Itoa(subsonicArtSize)},
	}))
}

// FetchArt downloads cover art for id, returning the body and content type.
func (s *SubsonicService) FetchArt(ctx context.Context, id string) ([]byte, string, error) {
	resp, err := s.api.Get(ctx, "getCoverArt", s.auth(url.Values{
		"id":   []string{id},
		"size": []string{strconv.Itoa(subsonicArtSize)},
	}))
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("%w: subsonic art %s returned status %d", shared.ErrAPIRequest, id, resp.StatusCode)
	}
	contentType := resp.Headers.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") || strings.HasPrefix(contentType, "text/xml") {
		return nil, "", fmt.Errorf("%w: subsonic art %s", shared.ErrTrackNotFound, id)
	}
	return resp.Body, contentType, nil
}
