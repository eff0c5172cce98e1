package services

import (
	"context"

	"github.com/desertthunder/goose/internal/models"
)

// Source normalizes one provider's tracks, albums and playlists into [models.TrackSource].
//
// Fetch-by-id methods surface provider errors so callers can report per-input failures.
// FromText returns nil, nil when nothing matched.
type Source interface {
	Kind() models.SourceKind
	FromTrack(ctx context.Context, id string) (*models.TrackSource, error)
	FromAlbum(ctx context.Context, id string) ([]models.TrackSource, error)
	FromPlaylist(ctx context.Context, id string) ([]models.TrackSource, error)
	FromText(ctx context.Context, query string) (*models.TrackSource, error)
}

// YouTubeSourceToTrackSource widens a YouTube alternate into the neutral shape.
func YouTubeSourceToTrackSource(y models.YouTubeSource) models.TrackSource {
	s := models.TrackSource{
		ID:        []string{y.ID},
		Name:      y.Name,
		Art:       y.Art,
		Duration:  y.Duration,
		URL:       y.URL,
		ContentID: y.ContentID,
	}
	if y.ContentID != nil {
		s.Artist.Name = y.ContentID.Artist
	}
	return s
}

// TrackSourceToYouTubeSource narrows a source produced by [YouTubeService] back to an alternate.
func TrackSourceToYouTubeSource(s models.TrackSource) models.YouTubeSource {
	return models.YouTubeSource{
		ID:        s.PrimaryID(),
		Name:      s.Name,
		Art:       s.Art,
		Duration:  s.Duration,
		URL:       s.URL,
		ContentID: s.ContentID,
	}
}
