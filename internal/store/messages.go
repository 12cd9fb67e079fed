package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dkeye/syncroom/internal/core"
	"github.com/dkeye/syncroom/internal/domain"
)

var _ core.MessageStore = (*Store)(nil)

// Create stores msg under a fresh id and the server's clock. Client-sent
// ids, timestamps, reactions and edit flags are not trusted.
func (s *Store) Create(ctx context.Context, msg domain.Message) (domain.Message, error) {
	msg.ID = uuid.NewString()
	msg.Timestamp = s.now().UTC()
	msg.Edited = false
	msg.Reactions = domain.Reactions{}

	row := newMessageRow(msg)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Message{}, fmt.Errorf("failed to create message: %w", err)
	}
	return row.toDomain(), nil
}

// ListRecent returns up to limit of the room's newest messages, oldest first.
func (s *Store) ListRecent(ctx context.Context, room domain.RoomID, limit int) ([]domain.Message, error) {
	var rows []messageRow
	err := s.db.WithContext(ctx).
		Where("room_id = ?", string(room)).
		Order("created_at DESC").Order("seq DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	slices.Reverse(rows)
	out := make([]domain.Message, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.Message, error) {
	var row messageRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Message{}, ErrNotFound
		}
		return domain.Message{}, fmt.Errorf("failed to find message: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) UpdateReactions(ctx context.Context, id string, reactions domain.Reactions) error {
	if reactions == nil {
		reactions = domain.Reactions{}
	}
	return s.updateMessage(ctx, id, &messageRow{Reactions: reactions}, "reactions")
}

// UpdateText replaces the text and marks the message edited.
func (s *Store) UpdateText(ctx context.Context, id, text string) error {
	return s.updateMessage(ctx, id, &messageRow{Text: text, Edited: true}, "text", "edited")
}

func (s *Store) updateMessage(ctx context.Context, id string, values *messageRow, columns ...string) error {
	result := s.db.WithContext(ctx).
		Model(&messageRow{}).
		Where("id = ?", id).
		Select(columns).
		Updates(values)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
