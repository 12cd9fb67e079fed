package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dkeye/syncroom/internal/core"
	"github.com/dkeye/syncroom/internal/domain"
)

var _ core.HistoryStore = (*Store)(nil)

func (s *Store) Append(ctx context.Context, room domain.RoomID, song domain.Song, playedBy string) (*domain.HistoryEntry, error) {
	row := historyRow{
		ID:        uuid.NewString(),
		RoomID:    string(room),
		SongID:    song.ID,
		Platform:  song.Platform,
		Title:     song.Title,
		Artist:    song.Artist,
		Thumbnail: song.Thumbnail,
		PlayedBy:  playedBy,
		PlayedAt:  s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to append history: %w", err)
	}
	entry := row.toDomain()
	return &entry, nil
}

// List returns up to limit of the room's plays, newest first.
func (s *Store) List(ctx context.Context, room domain.RoomID, limit int) ([]domain.HistoryEntry, error) {
	var rows []historyRow
	err := s.db.WithContext(ctx).
		Where("room_id = ?", string(room)).
		Order("played_at DESC").Order("seq DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	out := make([]domain.HistoryEntry, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}
