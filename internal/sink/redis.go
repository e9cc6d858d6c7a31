package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/minhvu/warden/internal/core/domain"
)

// RedisSink mirrors the set of currently-active warnings in Redis so other
// cluster members can read node health without talking to the agent. Each
// entity kind gets one hash; a raise sets the source field, an Ok clear
// deletes it. The hash therefore always holds exactly the active set.
type RedisSink struct {
	rdb *redis.Client
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL      string
	Password string
}

func NewRedisSink(cfg RedisConfig) (*RedisSink, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisSink{rdb: rdb}, nil
}

func (s *RedisSink) Name() string { return "redis" }

func healthKey(kind domain.EntityKind) string {
	return fmt.Sprintf("warden:health:%s", kind)
}

func (s *RedisSink) Publish(ctx context.Context, ev domain.HealthEvent) error {
	key := healthKey(ev.Kind)
	field := ev.Source.String()

	if ev.Severity == domain.SeverityOk {
		if err := s.rdb.HDel(ctx, key, field).Err(); err != nil {
			return fmt.Errorf("hdel failed: %w", err)
		}
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"id":        ev.ID.String(),
		"severity":  ev.Severity.String(),
		"value":     ev.Value,
		"message":   ev.Message,
		"timestamp": ev.Timestamp.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.rdb.HSet(ctx, key, field, payload).Err(); err != nil {
		return fmt.Errorf("hset failed: %w", err)
	}
	return nil
}

func (s *RedisSink) Close() error {
	return s.rdb.Close()
}
