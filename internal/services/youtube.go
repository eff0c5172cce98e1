// YouTube implementation of [Source]
//
// Video details come from the Data API when a key is configured and from yt-dlp otherwise.
// Search falls through YouTube Music, the Data API and a scraper until one yields ids.
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/goose/internal/models"
	"github.com/desertthunder/goose/internal/shared"
	"github.com/lrstanley/go-ytdlp"
	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"
)

const (
	youtubeBaseURL      = "https://youtube.googleapis.com/youtube/v3"
	youtubeSearchLimit  = 5
	youtubePageSize     = 50
	youtubeResolveLimit = 8
)

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// YouTubeShortURL is the canonical playable URL for a video id.
func YouTubeShortURL(id string) string {
	return "https://youtu.be/" + id
}

// VideoLookup resolves a video id into a playable alternate.
type VideoLookup interface {
	Video(ctx context.Context, id string) (*models.YouTubeSource, error)
}

// ContentIDResolver finds the licensed song/artist behind a video. A nil result means none.
type ContentIDResolver interface {
	ContentID(ctx context.Context, id string) (*models.ContentID, error)
}

// SearchHit is one video id a [Searcher] matched, with an optional song hint.
type SearchHit struct {
	ID   string
	Hint *models.ContentID
}

// Searcher maps a free-text query to video ids, best first.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
}

// YouTubeService implements [Source] for YouTube.
type YouTubeService struct {
	api       *APIClient
	apiKey    string
	lookup    VideoLookup
	resolver  ContentIDResolver
	searchers []Searcher
	logger    *log.Logger
}

// YouTubeOption configures a [YouTubeService].
type YouTubeOption func(*YouTubeService)

// WithYouTubeAPI points Data API calls at api, mostly for tests.
func WithYouTubeAPI(api *APIClient) YouTubeOption {
	return func(y *YouTubeService) { y.api = api }
}

// WithVideoLookup overrides how video details are fetched.
func WithVideoLookup(l VideoLookup) YouTubeOption {
	return func(y *YouTubeService) { y.lookup = l }
}

// WithContentIDResolver overrides the content id resolver used alongside the Data API.
func WithContentIDResolver(r ContentIDResolver) YouTubeOption {
	return func(y *YouTubeService) { y.resolver = r }
}

// WithSearchers replaces the search fallback chain.
func WithSearchers(s ...Searcher) YouTubeOption {
	return func(y *YouTubeService) { y.searchers = s }
}

// NewYouTubeService creates the YouTube adapter from config.
func NewYouTubeService(c shared.YouTubeConfig, logger *log.Logger, opts ...YouTubeOption) *YouTubeService {
	y := &YouTubeService{
		api:    NewAPIClient(youtubeBaseURL, nil),
		apiKey: c.APIKey,
		logger: shared.WithLogger(logger, "service", "youtube"),
	}
	dlp := &YTDLP{Path: c.YTDLPPath}
	y.resolver = dlp
	boundYouTubeMusic()

	for _, opt := range opts {
		opt(y)
	}

	if y.lookup == nil {
		if y.apiKey != "" {
			y.lookup = &dataAPILookup{y: y}
		} else {
			y.lookup = dlp
		}
	}
	if y.searchers == nil {
		y.searchers = []Searcher{&YouTubeMusicSearcher{}}
		if y.apiKey != "" {
			y.searchers = append(y.searchers, &dataAPISearcher{y: y})
		}
		y.searchers = append(y.searchers, &ScrapeSearcher{})
	}
	return y
}

func (y *YouTubeService) Kind() models.SourceKind { return models.SourceYouTube }

func (y *YouTubeService) query(extra url.Values) url.Values {
	q := url.Values{"key": []string{y.apiKey}}
	for k, v := range extra {
		q[k] = v
	}
	return q
}

// Video returns one playable alternate.
func (y *YouTubeService) Video(ctx context.Context, id string) (*models.YouTubeSource, error) {
	y.logger.Info("youtube video", "id", id)
	return y.lookup.Video(ctx, id)
}

// FromTrack fetches a single video.
func (y *YouTubeService) FromTrack(ctx context.Context, id string) (*models.TrackSource, error) {
	v, err := y.Video(ctx, id)
	if err != nil {
		return nil, err
	}
	s := YouTubeSourceToTrackSource(*v)
	return &s, nil
}

// FromAlbum is not offered by YouTube.
func (y *YouTubeService) FromAlbum(ctx context.Context, id string) ([]models.TrackSource, error) {
	return nil, fmt.Errorf("%w: youtube albums", shared.ErrUnsupported)
}

type youtubePlaylistPage struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// PlaylistIDs pages through playlistItems and returns video ids in playlist order.
func (y *YouTubeService) PlaylistIDs(ctx context.Context, id string) ([]string, error) {
	if y.apiKey == "" {
		return y.playlistIDsFromYTDLP(ctx, id)
	}

	var ids []string
	pageToken := ""
	for {
		q := y.query(url.Values{
			"playlistId": []string{id},
			"part":       []string{"snippet,contentDetails"},
			"maxResults": []string{strconv.Itoa(youtubePageSize)},
		})
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var page youtubePlaylistPage
		if err := y.api.GetJSON(ctx, "playlistItems", q, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if item.ContentDetails.VideoID != "" {
				ids = append(ids, item.ContentDetails.VideoID)
			}
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	return ids, nil
}

func (y *YouTubeService) playlistIDsFromYTDLP(ctx context.Context, id string) ([]string, error) {
	dlp, ok := y.resolver.(*YTDLP)
	if !ok {
		return nil, fmt.Errorf("%w: youtube playlists need an api key or yt-dlp", shared.ErrMissingCredentials)
	}
	return dlp.PlaylistIDs(ctx, id)
}

// FromPlaylist resolves every video of a playlist, keeping playlist order and dropping videos that fail.
func (y *YouTubeService) FromPlaylist(ctx context.Context, id string) ([]models.TrackSource, error) {
	y.logger.Info("youtube playlist", "id", id)
	ids, err := y.PlaylistIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	videos := y.resolveAll(ctx, ids, nil)
	sources := make([]models.TrackSource, 0, len(videos))
	for _, v := range videos {
		sources = append(sources, YouTubeSourceToTrackSource(v))
	}
	return sources, nil
}

// resolveAll looks up ids concurrently and returns the successes in input order.
func (y *YouTubeService) resolveAll(ctx context.Context, ids []string, hints []*models.ContentID) []models.YouTubeSource {
	results := make([]*models.YouTubeSource, len(ids))
	sem := make(chan struct{}, youtubeResolveLimit)
	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			v, err := y.lookup.Video(ctx, id)
			if err != nil {
				y.logger.Error("video lookup failed", "id", id, "error", err)
				return
			}
			if v.ContentID == nil && i < len(hints) && hints[i] != nil {
				v.ContentID = hints[i]
			}
			results[i] = v
		}(i, id)
	}
	wg.Wait()

	out := make([]models.YouTubeSource, 0, len(ids))
	for _, v := range results {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// Search returns up to five alternates from the first searcher that yields ids.
func (y *YouTubeService) Search(ctx context.Context, query string) ([]models.YouTubeSource, error) {
	y.logger.Info("youtube search", "query", query)
	for _, s := range y.searchers {
		hits, err := s.Search(ctx, query, youtubeSearchLimit)
		if err != nil {
			y.logger.Warn("searcher failed", "searcher", s.Name(), "error", err)
			continue
		}
		if len(hits) == 0 {
			continue
		}
		if len(hits) > youtubeSearchLimit {
			hits = hits[:youtubeSearchLimit]
		}

		ids := make([]string, len(hits))
		hints := make([]*models.ContentID, len(hits))
		for i, h := range hits {
			ids[i] = h.ID
			hints[i] = h.Hint
		}
		if videos := y.resolveAll(ctx, ids, hints); len(videos) > 0 {
			return videos, nil
		}
	}
	return nil, nil
}

// FromText returns the best search result, or nil when nothing matched.
func (y *YouTubeService) FromText(ctx context.Context, query string) (*models.TrackSource, error) {
	videos, err := y.Search(ctx, query)
	if err != nil || len(videos) == 0 {
		return nil, err
	}
	s := YouTubeSourceToTrackSource(videos[0])
	return &s, nil
}

// ParseISODuration converts a Data API duration such as PT4M13S to seconds.
func ParseISODuration(s string) (int, error) {
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("%w: duration %q", shared.ErrInvalidInput, s)
	}
	total := 0
	for i, unit := range []int{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("%w: duration %q", shared.ErrInvalidInput, s)
		}
		total += n * unit
	}
	return total, nil
}

type youtubeThumbnail struct {
	URL string `json:"url"`
}

type youtubeVideoList struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title      string                      `json:"title"`
			Thumbnails map[string]youtubeThumbnail `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// dataAPILookup reads video details from the Data API and asks the resolver for the content id.
type dataAPILookup struct {
	y *YouTubeService
}

func (d *dataAPILookup) Video(ctx context.Context, id string) (*models.YouTubeSource, error) {
	q := d.y.query(url.Values{"part": []string{"snippet,contentDetails"}, "id": []string{id}})

	var list youtubeVideoList
	if err := d.y.api.GetJSON(ctx, "videos", q, &list); err != nil {
		return nil, err
	}
	if len(list.Items) == 0 {
		return nil, fmt.Errorf("%w: youtube video %s", shared.ErrTrackNotFound, id)
	}

	item := list.Items[0]
	duration, err := ParseISODuration(item.ContentDetails.Duration)
	if err != nil {
		d.y.logger.Warn("unparseable duration", "id", id, "duration", item.ContentDetails.Duration)
	}

	v := &models.YouTubeSource{
		ID:       id,
		Name:     item.Snippet.Title,
		Art:      pickThumbnail(item.Snippet.Thumbnails),
		Duration: duration,
		URL:      YouTubeShortURL(id),
	}

	if d.y.resolver != nil {
		cid, err := d.y.resolver.ContentID(ctx, id)
		if err != nil {
			d.y.logger.Debug("content id unavailable", "id", id, "error", err)
		}
		v.ContentID = cid
	}
	return v, nil
}

func pickThumbnail(thumbs map[string]youtubeThumbnail) string {
	for _, size := range []string{"default", "medium", "high", "standard", "maxres"} {
		if t, ok := thumbs[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}

type youtubeSearchList struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type dataAPISearcher struct {
	y *YouTubeService
}

func (d *dataAPISearcher) Name() string { return "youtube-data-api" }

func (d *dataAPISearcher) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	q := d.y.query(url.Values{
		"q":          []string{query},
		"type":       []string{"video"},
		"part":       []string{"id"},
		"maxResults": []string{strconv.Itoa(limit)},
		"safeSearch": []string{"none"},
	})

	var list youtubeSearchList
	if err := d.y.api.GetJSON(ctx, "search", q, &list); err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(list.Items))
	for _, item := range list.Items {
		if item.ID.VideoID != "" {
			hits = append(hits, SearchHit{ID: item.ID.VideoID})
		}
	}
	return hits, nil
}

var boundYTMusic sync.Once

// boundYouTubeMusic points the ytmusic package client at a [RequestTimeout] bounded one.
// ytmusic has no per-call client.
func boundYouTubeMusic() {
	boundYTMusic.Do(func() { ytmusic.HTTPClient = NewHTTPClient() })
}

// YouTubeMusicSearcher searches YouTube Music songs, which carry a song/artist hint.
type YouTubeMusicSearcher struct{}

func (s *YouTubeMusicSearcher) Name() string { return "ytmusic" }

type ytmusicResult struct {
	r   *ytmusic.SearchResult
	err error
}

func (s *YouTubeMusicSearcher) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	boundYouTubeMusic()

	done := make(chan ytmusicResult, 1)
	go func() {
		r, err := ytmusic.TrackSearch(query).Next()
		done <- ytmusicResult{r: r, err: err}
	}()

	var res ytmusicResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, fmt.Errorf("%w: ytmusic: %v", shared.ErrAPIRequest, res.err)
	}
	r := res.r

	var hits []SearchHit
	for _, t := range r.Tracks {
		if t.VideoID == "" {
			continue
		}
		hit := SearchHit{ID: t.VideoID}
		if len(t.Artists) > 0 {
			hit.Hint = &models.ContentID{Name: t.Title, Artist: t.Artists[0].Name}
		}
		hits = append(hits, hit)
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

// ScrapeSearcher scrapes the public YouTube results page.
type ScrapeSearcher struct {
	// Client defaults to [NewHTTPClient].
	Client *http.Client
}

func (s *ScrapeSearcher) Name() string { return "ytsearch" }

func (s *ScrapeSearcher) httpClient() *http.Client {
	if s.Client == nil {
		return NewHTTPClient()
	}
	return s.Client
}

func (s *ScrapeSearcher) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	c := ytsearch.NewClient(s.httpClient())
	r, err := c.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: ytsearch: %v", shared.ErrAPIRequest, err)
	}

	var hits []SearchHit
	for _, v := range r.Results {
		if v.VideoID == "" {
			continue
		}
		hits = append(hits, SearchHit{ID: v.VideoID})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

// YTDLP shells out to yt-dlp for details the Data API lacks.
type YTDLP struct {
	Path string
}

func (d *YTDLP) command() *ytdlp.Command {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig()
	if d.Path != "" {
		cmd.SetExecutable(d.Path)
	}
	return cmd
}

// Video reads id, title, duration, thumbnail and the music metadata of one video.
func (d *YTDLP) Video(ctx context.Context, id string) (*models.YouTubeSource, error) {
	res, err := d.command().
		Print("%(id)s\t%(title)s\t%(duration)s\t%(thumbnail)s\t%(track)s\t%(artist)s").
		Run(ctx, "--skip-download", "--no-playlist", YouTubeShortURL(id))
	if err != nil {
		return nil, fmt.Errorf("%w: yt-dlp %s: %v", shared.ErrAPIRequest, id, err)
	}
	return parseYTDLPVideo(id, res.Stdout)
}

func parseYTDLPVideo(id, stdout string) (*models.YouTubeSource, error) {
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) < 6 {
			continue
		}
		duration, _ := strconv.ParseFloat(parts[2], 64)
		v := &models.YouTubeSource{
			ID:       id,
			Name:     parts[1],
			Art:      ytdlpField(parts[3]),
			Duration: int(duration),
			URL:      YouTubeShortURL(id),
		}
		if track := ytdlpField(parts[4]); track != "" {
			v.ContentID = &models.ContentID{Name: track, Artist: ytdlpField(parts[5])}
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w: yt-dlp returned no metadata for %s", shared.ErrTrackNotFound, id)
}

// ContentID returns the music metadata yt-dlp extracts, or nil for non-music uploads.
func (d *YTDLP) ContentID(ctx context.Context, id string) (*models.ContentID, error) {
	v, err := d.Video(ctx, id)
	if err != nil {
		return nil, err
	}
	return v.ContentID, nil
}

// PlaylistIDs lists the video ids of a playlist without resolving them.
func (d *YTDLP) PlaylistIDs(ctx context.Context, id string) ([]string, error) {
	res, err := d.command().
		FlatPlaylist().
		Print("%(id)s").
		Run(ctx, "https://www.youtube.com/playlist?list="+id)
	if err != nil {
		return nil, fmt.Errorf("%w: yt-dlp playlist %s: %v", shared.ErrAPIRequest, id, err)
	}

	var ids []string
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			ids = append(ids, line)
		}
	}
	return ids, nil
}

func ytdlpField(s string) string {
	if s == "NA" {
		return ""
	}
	return s
}
