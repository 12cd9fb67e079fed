package core

import (
	"context"

	"github.com/dkeye/syncroom/internal/domain"
)

// Resolver turns a shared link into a song descriptor and searches YouTube.
type Resolver interface {
	Resolve(ctx context.Context, url string) (domain.Song, error)
	Search(ctx context.Context, query string) ([]domain.Song, error)
}
