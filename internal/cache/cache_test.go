package cache

import (
	"context"
	"math/rand/v2"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"joker-briscola/internal/config"
	"joker-briscola/internal/game"
)

func dealt(t *testing.T) *game.MatchState {
	t.Helper()
	s, err := game.DealMatch(game.DealOptions{Rand: rand.New(rand.NewPCG(1, 2))})
	require.NoError(t, err)
	return s
}

func exercise(t *testing.T, c SnapshotCache) {
	ctx := context.Background()
	code := "T" + time.Now().Format("150405.000")

	_, err := c.Get(ctx, code)
	assert.ErrorIs(t, err, ErrNotFound)

	s := dealt(t)
	require.NoError(t, c.Put(ctx, code, s))

	got, err := c.Get(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	require.NoError(t, c.Delete(ctx, code))
	_, err = c.Get(ctx, code)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestMemoryIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	s := dealt(t)
	require.NoError(t, m.Put(ctx, "ABCD", s))

	s.Players[0].Name = "changed"
	got, err := m.Get(ctx, "ABCD")
	require.NoError(t, err)
	assert.Equal(t, "You", got.Players[0].Name)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("BRISCOLA_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	r, err := NewRedis(ctx, config.RedisConfig{Addr: addr, TTL: time.Minute}, zaptest.NewLogger(t))
	if err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	defer r.Close()

	exercise(t, r)
}
