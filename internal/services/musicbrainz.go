package services

import (
	"context"
	"fmt"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/goose/internal/shared"
)

const (
	musicbrainzBaseURL   = "https://musicbrainz.org/ws/2"
	musicbrainzUserAgent = "goose/1.0.0"
)

// MusicBrainzService looks up artist homepages.
type MusicBrainzService struct {
	api    *APIClient
	logger *log.Logger
}

// NewMusicBrainzService creates the client. baseURL may be empty.
func NewMusicBrainzService(baseURL string, logger *log.Logger) *MusicBrainzService {
	if baseURL == "" {
		baseURL = musicbrainzBaseURL
	}
	return &MusicBrainzService{
		api:    NewAPIClient(baseURL, nil).WithHeader("User-Agent", musicbrainzUserAgent),
		logger: shared.WithLogger(logger, "service", "musicbrainz"),
	}
}

type musicbrainzRelation struct {
	Type string `json:"type"`
	URL  struct {
		Resource string `json:"resource"`
	} `json:"url"`
}

// OfficialLink returns the artist's official homepage, falling back to bandcamp, then last.fm.
// An empty string means nothing suitable was found.
func (m *MusicBrainzService) OfficialLink(ctx context.Context, artist string) (string, error) {
	var search struct {
		Artists []struct {
			ID string `json:"id"`
		} `json:"artists"`
	}
	q := url.Values{"query": []string{artist}, "limit": []string{"1"}, "offset": []string{"0"}, "fmt": []string{"json"}}
	if err := m.api.GetJSON(ctx, "artist", q, &search); err != nil {
		return "", err
	}
	if len(search.Artists) == 0 {
		return "", nil
	}

	var detail struct {
		Relations []musicbrainzRelation `json:"relations"`
	}
	q = url.Values{"inc": []string{"url-rels"}, "fmt": []string{"json"}}
	if err := m.api.GetJSON(ctx, "artist/"+url.PathEscape(search.Artists[0].ID), q, &detail); err != nil {
		return "", fmt.Errorf("artist relations: %w", err)
	}

	for _, kind := range []string{"official homepage", "bandcamp", "last.fm"} {
		for _, rel := range detail.Relations {
			if rel.Type == kind && rel.URL.Resource != "" {
				return rel.URL.Resource, nil
			}
		}
	}
	return "", nil
}
