package cache

import (
	"context"
	"sync"

	"joker-briscola/internal/game"
)

// Memory keeps snapshots in process memory.
type Memory struct {
	rooms sync.Map // code -> *game.MatchState
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Put(_ context.Context, code string, s *game.MatchState) error {
	m.rooms.Store(code, s.Clone())
	return nil
}

func (m *Memory) Get(_ context.Context, code string) (*game.MatchState, error) {
	v, ok := m.rooms.Load(code)
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*game.MatchState).Clone(), nil
}

func (m *Memory) Delete(_ context.Context, code string) error {
	m.rooms.Delete(code)
	return nil
}
