package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"joker-briscola/internal/config"
	"joker-briscola/internal/game"
)

const keyPrefix = "briscola:room:"

func roomKey(code string) string {
	return keyPrefix + code
}

// Redis stores snapshots as JSON under briscola:room:{code} with a TTL, so a
// room abandoned without a clean delete eventually expires.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis connects to Redis and checks the connection with a PING.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &Redis{
		client: client,
		ttl:    cfg.TTL,
		logger: logger.With(zap.String("component", "snapshot-cache")),
	}, nil
}

func (r *Redis) Put(ctx context.Context, code string, s *game.MatchState) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := r.client.Set(ctx, roomKey(code), data, r.ttl).Err(); err != nil {
		return err
	}
	r.logger.Debug("snapshot stored", zap.String("room", code), zap.Int("round", s.RoundCount))
	return nil
}

func (r *Redis) Get(ctx context.Context, code string) (*game.MatchState, error) {
	data, err := r.client.Get(ctx, roomKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var s game.MatchState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &s, nil
}

func (r *Redis) Delete(ctx context.Context, code string) error {
	return r.client.Del(ctx, roomKey(code)).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
