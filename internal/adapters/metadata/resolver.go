// Package metadata turns shared Spotify and YouTube links into song
// descriptors and searches YouTube. Results are cached and concurrent
// lookups of the same key share one upstream request.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/dkeye/syncroom/internal/core"
	"github.com/dkeye/syncroom/internal/domain"
	"github.com/dkeye/syncroom/internal/metrics"
)

var (
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrInvalidURL          = errors.New("invalid url")
	ErrFetch               = errors.New("metadata fetch failed")
	ErrSearchDisabled      = errors.New("search disabled: no YouTube API key")
)

const (
	DefaultSpotifyOEmbedURL = "https://open.spotify.com/oembed"
	DefaultYouTubeOEmbedURL = "https://www.youtube.com/oembed"
	DefaultYouTubeAPIURL    = "https://www.googleapis.com/youtube/v3"

	maxSearchResults = 10
)

type Config struct {
	SpotifyOEmbedURL string
	YouTubeOEmbedURL string
	YouTubeAPIURL    string
	YouTubeAPIKey    string
	Timeout          time.Duration
}

type Resolver struct {
	cfg    Config
	client *http.Client
	cache  Cache
	group  singleflight.Group
}

var _ core.Resolver = (*Resolver)(nil)

// New builds a resolver. cache may be nil.
func New(cfg Config, cache Cache) *Resolver {
	if cfg.SpotifyOEmbedURL == "" {
		cfg.SpotifyOEmbedURL = DefaultSpotifyOEmbedURL
	}
	if cfg.YouTubeOEmbedURL == "" {
		cfg.YouTubeOEmbedURL = DefaultYouTubeOEmbedURL
	}
	if cfg.YouTubeAPIURL == "" {
		cfg.YouTubeAPIURL = DefaultYouTubeAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Resolver{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  cache,
	}
}

// DetectPlatform picks the provider from the link's host.
func DetectPlatform(link string) (domain.Platform, error) {
	switch {
	case strings.Contains(link, "spotify.com"):
		return domain.PlatformSpotify, nil
	case strings.Contains(link, "youtube.com"), strings.Contains(link, "youtu.be"):
		return domain.PlatformYouTube, nil
	}
	return "", ErrUnsupportedPlatform
}

func (r *Resolver) Resolve(ctx context.Context, link string) (domain.Song, error) {
	platform, err := DetectPlatform(link)
	if err != nil {
		metrics.MetadataLookups.WithLabelValues("unknown", "unsupported").Inc()
		return domain.Song{}, err
	}

	var song domain.Song
	err = r.cached(ctx, "resolve:"+link, &song, func(ctx context.Context) (any, error) {
		switch platform {
		case domain.PlatformSpotify:
			return r.spotify(ctx, link)
		default:
			return r.youtube(ctx, link)
		}
	})
	if err != nil {
		metrics.MetadataLookups.WithLabelValues(string(platform), "error").Inc()
		log.Warn().Err(err).Str("module", "metadata").Str("url", link).Msg("resolve failed")
		return domain.Song{}, err
	}
	metrics.MetadataLookups.WithLabelValues(string(platform), "ok").Inc()
	return song, nil
}

// SearchEnabled reports whether a YouTube Data API key is configured.
// Without one Search always fails with ErrSearchDisabled.
func (r *Resolver) SearchEnabled() bool {
	return r.cfg.YouTubeAPIKey != ""
}

// Search returns the top YouTube videos for query.
func (r *Resolver) Search(ctx context.Context, query string) ([]domain.Song, error) {
	metrics.SearchQueries.Inc()
	if !r.SearchEnabled() {
		return nil, ErrSearchDisabled
	}
	var songs []domain.Song
	err := r.cached(ctx, "search:"+strings.ToLower(strings.TrimSpace(query)), &songs, func(ctx context.Context) (any, error) {
		return r.searchYouTube(ctx, query)
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "metadata").Str("query", query).Msg("search failed")
		return nil, err
	}
	return songs, nil
}

// cached reads key from the cache into dest, otherwise runs fetch once for
// all concurrent callers and stores the result.
func (r *Resolver) cached(ctx context.Context, key string, dest any, fetch func(context.Context) (any, error)) error {
	if r.cache != nil {
		hit, err := r.cache.Get(ctx, key, dest)
		if err != nil {
			log.Warn().Err(err).Str("module", "metadata").Str("key", key).Msg("cache read failed")
		}
		if hit {
			return nil
		}
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		res, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if r.cache != nil {
			if err := r.cache.Set(ctx, key, res); err != nil {
				log.Warn().Err(err).Str("module", "metadata").Str("key", key).Msg("cache write failed")
			}
		}
		return res, nil
	})
	if err != nil {
		return err
	}

	switch d := dest.(type) {
	case *domain.Song:
		*d = v.(domain.Song)
	case *[]domain.Song:
		*d = v.([]domain.Song)
	default:
		return fmt.Errorf("unsupported cache destination %T", dest)
	}
	return nil
}

type oembed struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

func (r *Resolver) spotify(ctx context.Context, link string) (domain.Song, error) {
	id := spotifyID(link)
	if id == "" {
		return domain.Song{}, ErrInvalidURL
	}
	var o oembed
	if err := r.getJSON(ctx, r.cfg.SpotifyOEmbedURL, url.Values{"url": {link}}, &o); err != nil {
		return domain.Song{}, err
	}
	artist := o.AuthorName
	if artist == "" {
		artist = "Spotify"
	}
	return domain.Song{
		ID:          id,
		Platform:    domain.PlatformSpotify,
		Title:       o.Title,
		Artist:      artist,
		Thumbnail:   o.ThumbnailURL,
		OriginalURL: link,
	}, nil
}

// spotifyID is the last path segment without its query string.
func spotifyID(link string) string {
	link, _, _ = strings.Cut(link, "?")
	link, _, _ = strings.Cut(link, "#")
	link = strings.TrimRight(link, "/")
	return link[strings.LastIndex(link, "/")+1:]
}

func (r *Resolver) youtube(ctx context.Context, link string) (domain.Song, error) {
	id := ExtractYouTubeID(link)
	if id == "" {
		return domain.Song{}, ErrInvalidURL
	}
	var o oembed
	params := url.Values{"url": {youtubeWatchURL(id)}, "format": {"json"}}
	if err := r.getJSON(ctx, r.cfg.YouTubeOEmbedURL, params, &o); err != nil {
		return domain.Song{}, err
	}
	song := domain.Song{
		ID:          id,
		Platform:    domain.PlatformYouTube,
		Title:       o.Title,
		Artist:      o.AuthorName,
		Thumbnail:   o.ThumbnailURL,
		OriginalURL: link,
	}
	if r.cfg.YouTubeAPIKey != "" {
		durations, err := r.durations(ctx, []string{id})
		if err != nil {
			log.Debug().Err(err).Str("module", "metadata").Str("video", id).Msg("duration lookup failed")
		}
		song.Duration = durations[id]
	}
	return song, nil
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string               `json:"title"`
			ChannelTitle string               `json:"channelTitle"`
			Thumbnails   map[string]thumbnail `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ID             string `json:"id"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

func (r *Resolver) searchYouTube(ctx context.Context, query string) ([]domain.Song, error) {
	var res searchResponse
	params := url.Values{
		"part":       {"snippet"},
		"type":       {"video"},
		"maxResults": {fmt.Sprint(maxSearchResults)},
		"q":          {query},
		"key":        {r.cfg.YouTubeAPIKey},
	}
	if err := r.getJSON(ctx, r.cfg.YouTubeAPIURL+"/search", params, &res); err != nil {
		return nil, err
	}

	songs := make([]domain.Song, 0, maxSearchResults)
	ids := make([]string, 0, maxSearchResults)
	for _, item := range res.Items {
		if item.ID.VideoID == "" {
			continue
		}
		artist := item.Snippet.ChannelTitle
		if artist == "" {
			artist = "Unknown"
		}
		songs = append(songs, domain.Song{
			ID:          item.ID.VideoID,
			Platform:    domain.PlatformYouTube,
			Title:       item.Snippet.Title,
			Artist:      artist,
			Thumbnail:   bestThumbnail(item.Snippet.Thumbnails),
			OriginalURL: youtubeWatchURL(item.ID.VideoID),
		})
		ids = append(ids, item.ID.VideoID)
		if len(songs) == maxSearchResults {
			break
		}
	}
	if len(ids) == 0 {
		return songs, nil
	}

	durations, err := r.durations(ctx, ids)
	if err != nil {
		log.Debug().Err(err).Str("module", "metadata").Msg("duration lookup failed")
	}
	for i := range songs {
		songs[i].Duration = durations[songs[i].ID]
	}
	return songs, nil
}

type thumbnail struct {
	URL string `json:"url"`
}

func bestThumbnail(thumbs map[string]thumbnail) string {
	for _, size := range []string{"high", "medium", "default"} {
		if t, ok := thumbs[size]; ok {
			return t.URL
		}
	}
	return ""
}

// durations looks up video lengths in seconds. The map is never nil.
func (r *Resolver) durations(ctx context.Context, ids []string) (map[string]float64, error) {
	out := make(map[string]float64, len(ids))
	var res videosResponse
	params := url.Values{
		"part": {"contentDetails"},
		"id":   {strings.Join(ids, ",")},
		"key":  {r.cfg.YouTubeAPIKey},
	}
	if err := r.getJSON(ctx, r.cfg.YouTubeAPIURL+"/videos", params, &res); err != nil {
		return out, err
	}
	for _, item := range res.Items {
		d, err := ParseISODuration(item.ContentDetails.Duration)
		if err != nil {
			continue
		}
		out[item.ID] = d
	}
	return out, nil
}

func (r *Resolver) getJSON(ctx context.Context, base string, params url.Values, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", ErrFetch, base, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return nil
}
