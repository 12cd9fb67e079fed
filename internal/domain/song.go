package domain

import "errors"

type Platform string

const (
	PlatformSpotify Platform = "spotify"
	PlatformYouTube Platform = "youtube"
)

var (
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrSongIDEmpty     = errors.New("song id empty")
)

func (p Platform) Valid() bool {
	return p == PlatformSpotify || p == PlatformYouTube
}

// Song is the normalized descriptor produced by the metadata resolver and
// carried by queue entries, playback states, song cards and history.
type Song struct {
	ID          string   `json:"id"`
	Platform    Platform `json:"platform"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	Thumbnail   string   `json:"thumbnail"`
	Duration    float64  `json:"duration,omitempty"` // seconds, 0 when unknown
	OriginalURL string   `json:"originalUrl,omitempty"`
}

func (s Song) Validate() error {
	if s.ID == "" {
		return ErrSongIDEmpty
	}
	if !s.Platform.Valid() {
		return ErrUnknownPlatform
	}
	return nil
}
