package localcart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/domain"
)

const DefaultRedisTTL = 30 * 24 * time.Hour

// Redis stores anonymous carts as JSON under anoncart:<id> with a sliding TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Load(ctx context.Context, anonymousID string) ([]domain.CartLine, error) {
	data, err := r.client.Get(ctx, redisKey(anonymousID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []domain.CartLine{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return decode(data)
}

func (r *Redis) Save(ctx context.Context, anonymousID string, lines []domain.CartLine) error {
	if len(lines) == 0 {
		return r.Clear(ctx, anonymousID)
	}
	data, err := encode(lines)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, redisKey(anonymousID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context, anonymousID string) error {
	if err := r.client.Del(ctx, redisKey(anonymousID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func redisKey(anonymousID string) string {
	return fmt.Sprintf("anoncart:%s", anonymousID)
}
