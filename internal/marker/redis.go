package marker

import (
	"context"
	"errors"
	"strings"

	"github.com/go-redis/redis/v8"

	"steamwatch/internal/apperr"
	"steamwatch/pkg/logx"
)

type redisStore struct {
	client *redis.Client
	log    logx.Logger
	key    string
}

func openRedis(cfg Config, log logx.Logger) (Store, error) {
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil, errors.New("marker.redis.addr is required for redis driver")
	}
	c := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return &redisStore{client: c, log: log, key: cfg.Key}, nil
}

func (s *redisStore) LoadMarker(ctx context.Context) (string, error) {
	v, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", &apperr.TransportError{Op: "redis get", URL: s.key, Err: err}
	}
	return strings.TrimSpace(v), nil
}

func (s *redisStore) SaveMarker(ctx context.Context, value string) error {
	if err := s.client.Set(ctx, s.key, value, 0).Err(); err != nil {
		return &apperr.TransportError{Op: "redis set", URL: s.key, Err: err}
	}
	return nil
}

func (s *redisStore) Close() error { return s.client.Close() }
