package core

//go:generate mockgen -source=stores.go -destination=mocks/mock_stores.go -package=mocks

import (
	"context"

	"github.com/dkeye/syncroom/internal/domain"
)

// MessageStore is the durable per-room chat log. Create assigns the
// authoritative id and timestamp.
type MessageStore interface {
	Create(ctx context.Context, msg domain.Message) (domain.Message, error)
	ListRecent(ctx context.Context, room domain.RoomID, limit int) ([]domain.Message, error)
	Get(ctx context.Context, id string) (domain.Message, error)
	UpdateReactions(ctx context.Context, id string, reactions domain.Reactions) error
	UpdateText(ctx context.Context, id, text string) error
}

// HistoryStore is the append-only play log. List returns newest first.
type HistoryStore interface {
	Append(ctx context.Context, room domain.RoomID, song domain.Song, playedBy string) (*domain.HistoryEntry, error)
	List(ctx context.Context, room domain.RoomID, limit int) ([]domain.HistoryEntry, error)
}
