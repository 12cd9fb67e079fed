package domain

import "time"

// HistoryEntry is one persisted "song started playing" record.
type HistoryEntry struct {
	ID        string    `json:"id"`
	RoomID    RoomID    `json:"roomId"`
	SongID    string    `json:"songId"`
	Platform  Platform  `json:"platform"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Thumbnail string    `json:"thumbnail"`
	PlayedBy  string    `json:"playedBy"`
	PlayedAt  time.Time `json:"playedAt"`
}

func (h HistoryEntry) Song() Song {
	return Song{
		ID:        h.SongID,
		Platform:  h.Platform,
		Title:     h.Title,
		Artist:    h.Artist,
		Thumbnail: h.Thumbnail,
	}
}
