// Napster API implementation of [Source]
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
)

const (
	napsterBaseURL   = "https://api.napster.com/v2.2"
	napsterAuthURL   = "https://api.napster.com/oauth/authorize"
	napsterTokenURL  = "https://api.napster.com/oauth/access_token"
	napsterImageURL  = "https://api.napster.com/imageserver/v2/albums/%s/images/200x200.jpg"
	napsterPageLimit = 50
)

// NapsterTrack is a track as the Napster API returns it.
type NapsterTrack struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PlaybackSeconds int    `json:"playbackSeconds"`
	Href            string `json:"href"`
	Index           int    `json:"index"`
	AlbumID         string `json:"albumId"`
	AlbumName       string `json:"albumName"`
	ArtistID        string `json:"artistId"`
	ArtistName      string `json:"artistName"`
}

type napsterTracks struct {
	Tracks []NapsterTrack `json:"tracks"`
	Meta   struct {
		TotalCount    int `json:"totalCount"`
		ReturnedCount int `json:"returnedCount"`
	} `json:"meta"`
}

type napsterSearch struct {
	Search struct {
		Data struct {
			Tracks []NapsterTrack `json:"tracks"`
		} `json:"data"`
	} `json:"search"`
}

// NapsterService implements [Source] for Napster. Every request carries the static api key.
type NapsterService struct {
	api    *APIClient
	apiKey string
	user   *oauth2.Config
	logger *log.Logger
}

// NapsterAccount is the linked account profile.
type NapsterAccount struct {
	ID         string `json:"id"`
	ScreenName string `json:"screenName"`
	Country    string `json:"country"`
}

// NewNapsterService creates the Napster adapter. baseURL may be empty.
func NewNapsterService(c shared.NapsterConfig, baseURL string, logger *log.Logger) (*NapsterService, error) {
	if c.ClientID == "" {
		return nil, fmt.Errorf("%w: napster client_id", shared.ErrMissingCredentials)
	}
	if baseURL == "" {
		baseURL = napsterBaseURL
	}
	return &NapsterService{
		api:    NewAPIClient(baseURL, nil),
		apiKey: c.ClientID,
		user: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURI,
			Endpoint:     oauth2.Endpoint{AuthURL: napsterAuthURL, TokenURL: napsterTokenURL},
		},
		logger: shared.WithLogger(logger, "service", "napster"),
	}, nil
}

// AuthCodeURL returns the consent URL for account linking.
func (n *NapsterService) AuthCodeURL(state string) string {
	return n.user.AuthCodeURL(state)
}

// Exchange trades an authorization code for a user token.
func (n *NapsterService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, NewHTTPClient())
	token, err := n.user.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: napster code exchange: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// Profile retrieves the account owning token.
func (n *NapsterService) Profile(ctx context.Context, token string) (*NapsterAccount, error) {
	var result struct {
		Account NapsterAccount `json:"account"`
	}
	api := n.api.WithHeader("Authorization", "Bearer "+token)
	if err := api.GetJSON(ctx, "me/account", nil, &result); err != nil {
		return nil, err
	}
	return &result.Account, nil
}

func (n *NapsterService) Kind() models.SourceKind { return models.SourceNapster }

func (n *NapsterService) query(extra url.Values) url.Values {
	q := url.Values{"apikey": []string{n.apiKey}}
	for k, v := range extra {
		q[k] = v
	}
	return q
}

func napsterSource(t NapsterTrack) models.TrackSource {
	return models.TrackSource{
		ID:       []string{t.ID},
		Name:     t.Name,
		Art:      fmt.Sprintf(napsterImageURL, t.AlbumID),
		Duration: t.PlaybackSeconds,
		URL:      t.Href,
		Album:    models.SourceAlbum{ID: t.AlbumID, Name: t.AlbumName, TrackNumber: t.Index},
		Artist:   models.SourceArtist{ID: t.ArtistID, Name: t.ArtistName},
	}
}

// FromTrack fetches a single track.
func (n *NapsterService) FromTrack(ctx context.Context, id string) (*models.TrackSource, error) {
	n.logger.Info("napster track", "id", id)
	var result napsterTracks
	if err := n.api.GetJSON(ctx, "tracks/"+url.PathEscape(id), n.query(nil), &result); err != nil {
		return nil, err
	}
	if len(result.Tracks) == 0 {
		return nil, fmt.Errorf("%w: napster track %s", shared.ErrTrackNotFound, id)
	}
	src := napsterSource(result.Tracks[0])
	return &src, nil
}

// FromAlbum fetches every track of an album.
func (n *NapsterService) FromAlbum(ctx context.Context, id string) ([]models.TrackSource, error) {
	n.logger.Info("napster album", "id", id)
	return n.paged(ctx, "albums/"+url.PathEscape(id)+"/tracks")
}

// FromPlaylist pages through a playlist until the offset reaches meta.totalCount.
func (n *NapsterService) FromPlaylist(ctx context.Context, id string) ([]models.TrackSource, error) {
	n.logger.Info("napster playlist", "id", id)
	return n.paged(ctx, "playlists/"+url.PathEscape(id)+"/tracks")
}

func (n *NapsterService) paged(ctx context.Context, path string) ([]models.TrackSource, error) {
	var sources []models.TrackSource
	offset := 0
	for {
		q := n.query(url.Values{
			"limit":  []string{strconv.Itoa(napsterPageLimit)},
			"offset": []string{strconv.Itoa(offset)},
		})
		var page napsterTracks
		if err := n.api.GetJSON(ctx, path, q, &page); err != nil {
			return nil, err
		}
		for _, t := range page.Tracks {
			sources = append(sources, napsterSource(t))
		}

		offset += napsterPageLimit
		if offset >= page.Meta.TotalCount || len(page.Tracks) == 0 {
			break
		}
	}
	return sources, nil
}

// FromText returns the top track match, or nil.
func (n *NapsterService) FromText(ctx context.Context, query string) (*models.TrackSource, error) {
	n.logger.Info("napster search", "query", query)
	q := n.query(url.Values{
		"query":          []string{query},
		"type":           []string{"track"},
		"per_type_limit": []string{"1"},
	})

	var result napsterSearch
	if err := n.api.GetJSON(ctx, "search", q, &result); err != nil {
		n.logger.Warn("napster search failed", "query", query, "error", err)
		return nil, nil
	}
	if len(result.Search.Data.Tracks) == 0 {
		return nil, nil
	}
	src := napsterSource(result.Search.Data.Tracks[0])
	return &src, nil
}
