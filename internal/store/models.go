package store

import (
	"time"

	"github.com/dkeye/syncroom/internal/domain"
)

// Seq orders rows inserted within the same clock tick.
type messageRow struct {
	Seq       uint64           `gorm:"primaryKey;autoIncrement"`
	ID        string           `gorm:"uniqueIndex;size:36;not null"`
	RoomID    string           `gorm:"index:idx_messages_room_created;size:64;not null"`
	Author    string           `gorm:"size:36;not null"`
	Text      string           `gorm:"size:4000"`
	Edited    bool             `gorm:"not null;default:false"`
	Reactions domain.Reactions `gorm:"serializer:json"`
	ReplyToID *string          `gorm:"size:36"`
	SongCard  *domain.Song     `gorm:"serializer:json"`
	CreatedAt time.Time        `gorm:"index:idx_messages_room_created"`
}

func (messageRow) TableName() string { return "messages" }

func newMessageRow(m domain.Message) messageRow {
	row := messageRow{
		ID:        m.ID,
		RoomID:    string(m.RoomID),
		Author:    m.Author,
		Text:      m.Text,
		Edited:    m.Edited,
		Reactions: m.Reactions.Clone(),
		SongCard:  m.SongCard,
		CreatedAt: m.Timestamp,
	}
	if m.ReplyTo != nil {
		id := m.ReplyTo.ID
		row.ReplyToID = &id
	}
	return row
}

func (r messageRow) toDomain() domain.Message {
	m := domain.Message{
		ID:        r.ID,
		RoomID:    domain.RoomID(r.RoomID),
		Author:    r.Author,
		Text:      r.Text,
		Timestamp: r.CreatedAt,
		Edited:    r.Edited,
		Reactions: r.Reactions.Clone(),
		SongCard:  r.SongCard,
	}
	if r.ReplyToID != nil {
		m.ReplyTo = &domain.ReplyRef{ID: *r.ReplyToID}
	}
	return m
}

type historyRow struct {
	Seq       uint64          `gorm:"primaryKey;autoIncrement"`
	ID        string          `gorm:"uniqueIndex;size:36;not null"`
	RoomID    string          `gorm:"index:idx_history_room_played;size:64;not null"`
	SongID    string          `gorm:"size:128;not null"`
	Platform  domain.Platform `gorm:"size:16;not null"`
	Title     string
	Artist    string
	Thumbnail string
	PlayedBy  string    `gorm:"size:36"`
	PlayedAt  time.Time `gorm:"index:idx_history_room_played"`
}

func (historyRow) TableName() string { return "history" }

func (r historyRow) toDomain() domain.HistoryEntry {
	return domain.HistoryEntry{
		ID:        r.ID,
		RoomID:    domain.RoomID(r.RoomID),
		SongID:    r.SongID,
		Platform:  r.Platform,
		Title:     r.Title,
		Artist:    r.Artist,
		Thumbnail: r.Thumbnail,
		PlayedBy:  r.PlayedBy,
		PlayedAt:  r.PlayedAt,
	}
}
