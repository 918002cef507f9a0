package cache

import (
	"context"
	"errors"

	"joker-briscola/internal/game"
)

var ErrNotFound = errors.New("snapshot not found")

// SnapshotCache mirrors the latest authoritative snapshot of every live room.
type SnapshotCache interface {
	Put(ctx context.Context, code string, s *game.MatchState) error
	Get(ctx context.Context, code string) (*game.MatchState, error)
	Delete(ctx context.Context, code string) error
}
