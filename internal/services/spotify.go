// Spotify API implementation of [Source]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
	spotifyOpenURL  = "https://open.spotify.com/track/"
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Country     string `json:"country"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	Images  []SpotifyImage  `json:"images"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       *SpotifyAlbum   `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	TrackNumber int             `json:"track_number"`
	IsLocal     bool            `json:"is_local"`
}

type spotifyPage[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

type spotifyPlaylistItem struct {
	Track *SpotifyTrack `json:"track"`
}

// Owner is the owner of a Spotify playlist.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Owner       Owner  `json:"owner"`
}

// SpotifyService implements [Source] for Spotify.
//
// Catalog calls use an app token from the client credentials flow. Account linking uses the
// authorization code flow through [SpotifyService.AuthCodeURL] and [SpotifyService.Exchange].
type SpotifyService struct {
	app    *clientcredentials.Config
	user   *oauth2.Config
	api    *APIClient
	base   string
	logger *log.Logger
}

// SpotifyEndpoints overrides the Spotify hosts, mostly for tests.
type SpotifyEndpoints struct {
	API   string
	Auth  string
	Token string
}

// NewSpotifyService creates the Spotify adapter. Client id and secret are required.
func NewSpotifyService(c shared.SpotifyConfig, logger *log.Logger, endpoints ...SpotifyEndpoints) (*SpotifyService, error) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret", shared.ErrMissingCredentials)
	}

	e := SpotifyEndpoints{API: spotifyBaseURL, Auth: spotifyAuthURL, Token: spotifyTokenURL}
	if len(endpoints) > 0 {
		e = endpoints[0]
	}

	app := &clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     e.Token,
	}

	user := &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Scopes: []string{
			"user-read-private",
			"playlist-read-private",
			"playlist-read-collaborative",
		},
		Endpoint: oauth2.Endpoint{AuthURL: e.Auth, TokenURL: e.Token},
	}

	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, NewHTTPClient())
	hc := app.Client(tokenCtx)
	hc.Timeout = RequestTimeout

	return &SpotifyService{
		app:    app,
		user:   user,
		api:    NewAPIClient(e.API, hc),
		base:   e.API,
		logger: shared.WithLogger(logger, "service", "spotify"),
	}, nil
}

func (s *SpotifyService) Kind() models.SourceKind { return models.SourceSpotify }

// AuthCodeURL returns the consent URL for account linking.
func (s *SpotifyService) AuthCodeURL(state string) string {
	return s.user.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a user token.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, NewHTTPClient())
	token, err := s.user.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: spotify code exchange: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// userAPI returns a client that authenticates with a user's bearer token.
func (s *SpotifyService) userAPI(token string) *APIClient {
	return NewAPIClient(s.base, nil).WithHeader("Authorization", "Bearer "+token)
}

// Profile retrieves the profile owning token.
func (s *SpotifyService) Profile(ctx context.Context, token string) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.userAPI(token).GetJSON(ctx, "me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UserPlaylists pages through the playlists visible to token.
func (s *SpotifyService) UserPlaylists(ctx context.Context, token string) ([]SpotifySimplePlaylist, error) {
	api := s.userAPI(token)
	limit := 50
	offset := 0

	var all []SpotifySimplePlaylist
	for {
		q := url.Values{"limit": []string{strconv.Itoa(limit)}, "offset": []string{strconv.Itoa(offset)}}
		var page spotifyPage[SpotifySimplePlaylist]
		if err := api.GetJSON(ctx, "me/playlists", q, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Items...)

		offset += limit
		if offset >= page.Total || len(page.Items) == 0 {
			break
		}
	}
	return all, nil
}

func (s *SpotifyService) toSource(t SpotifyTrack, album *SpotifyAlbum) models.TrackSource {
	if album == nil {
		album = t.Album
	}
	src := models.TrackSource{
		ID:       []string{t.ID},
		Name:     t.Name,
		Duration: t.DurationMS / 1000,
		URL:      spotifyOpenURL + t.ID,
		Album:    models.SourceAlbum{TrackNumber: t.TrackNumber},
	}
	if album != nil {
		src.Album.ID = album.ID
		src.Album.Name = album.Name
		if len(album.Images) > 0 {
			src.Art = album.Images[0].URL
		}
	}
	if len(t.Artists) > 0 {
		src.Artist = models.SourceArtist{ID: t.Artists[0].ID, Name: t.Artists[0].Name}
	}
	return src
}

// FromTrack fetches a single track.
func (s *SpotifyService) FromTrack(ctx context.Context, id string) (*models.TrackSource, error) {
	s.logger.Info("spotify track", "id", id)
	var track SpotifyTrack
	if err := s.api.GetJSON(ctx, "tracks/"+url.PathEscape(id), nil, &track); err != nil {
		return nil, err
	}
	src := s.toSource(track, nil)
	return &src, nil
}

// FromAlbum fetches album metadata, then pages through its tracks.
func (s *SpotifyService) FromAlbum(ctx context.Context, id string) ([]models.TrackSource, error) {
	s.logger.Info("spotify album", "id", id)
	var album SpotifyAlbum
	if err := s.api.GetJSON(ctx, "albums/"+url.PathEscape(id), nil, &album); err != nil {
		return nil, err
	}

	var sources []models.TrackSource
	limit := 50
	offset := 0
	for {
		q := url.Values{"limit": []string{strconv.Itoa(limit)}, "offset": []string{strconv.Itoa(offset)}}
		var page spotifyPage[SpotifyTrack]
		if err := s.api.GetJSON(ctx, "albums/"+url.PathEscape(id)+"/tracks", q, &page); err != nil {
			return nil, err
		}
		for _, t := range page.Items {
			sources = append(sources, s.toSource(t, &album))
		}

		if page.Next == nil {
			break
		}
		offset += limit
	}
	return sources, nil
}

// FromPlaylist pages through a playlist, skipping local files and removed tracks.
func (s *SpotifyService) FromPlaylist(ctx context.Context, id string) ([]models.TrackSource, error) {
	s.logger.Info("spotify playlist", "id", id)
	var sources []models.TrackSource
	limit := 100
	offset := 0
	for {
		q := url.Values{"limit": []string{strconv.Itoa(limit)}, "offset": []string{strconv.Itoa(offset)}}
		var page spotifyPage[spotifyPlaylistItem]
		if err := s.api.GetJSON(ctx, "playlists/"+url.PathEscape(id)+"/tracks", q, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if item.Track == nil || item.Track.ID == "" || item.Track.IsLocal {
				continue
			}
			sources = append(sources, s.toSource(*item.Track, nil))
		}

		if page.Next == nil {
			break
		}
		offset += limit
	}
	return sources, nil
}

// FromText returns the top track match, or nil.
func (s *SpotifyService) FromText(ctx context.Context, query string) (*models.TrackSource, error) {
	s.logger.Info("spotify search", "query", query)
	q := url.Values{"q": []string{query}, "type": []string{"track"}, "limit": []string{"1"}}

	var result struct {
		Tracks spotifyPage[SpotifyTrack] `json:"tracks"`
	}
	if err := s.api.GetJSON(ctx, "search", q, &result); err != nil {
		s.logger.Warn("spotify search failed", "query", query, "error", err)
		return nil, nil
	}
	if len(result.Tracks.Items) == 0 {
		return nil, nil
	}
	src := s.toSource(result.Tracks.Items[0], nil)
	return &src, nil
}
