package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"storefront/internal/domain"
)

const DefaultTTL = 5 * time.Minute

// initialGeneration is used until the first write for a user.
const initialGeneration = "0"

func NewRedisCache(client *redis.Client, baseTTL time.Duration) *RedisCache {
	if baseTTL <= 0 {
		baseTTL = DefaultTTL
	}
	return &RedisCache{client: client, baseTTL: baseTTL}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisCache) Get(ctx context.Context, userID string) ([]domain.CartLine, string, error) {
	gen, err := r.client.Get(ctx, genKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		gen = initialGeneration
	} else if err != nil {
		return nil, "", fmt.Errorf("redis get generation failed: %w", err)
	}

	data, err := r.client.Get(ctx, entryKey(userID, gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, ErrCacheMiss
	}
	if err != nil {
		return nil, gen, fmt.Errorf("redis get failed: %w", err)
	}

	var lines []domain.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, gen, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return lines, gen, nil
}

// Set stores lines under generation for baseTTL plus up to a fifth of it in
// jitter.
func (r *RedisCache) Set(ctx context.Context, userID, generation string, lines []domain.CartLine) error {
	if lines == nil {
		lines = []domain.CartLine{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	if err := r.client.Set(ctx, entryKey(userID, generation), data, r.entryTTL()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate starts a fresh generation for the user. Generations are random
// so a number is never reused after the generation key expires.
func (r *RedisCache) Invalidate(ctx context.Context, userID string) error {
	if err := r.client.Set(ctx, genKey(userID), uuid.NewString(), r.generationTTL()).Err(); err != nil {
		return fmt.Errorf("redis invalidate failed: %w", err)
	}
	return nil
}

func (r *RedisCache) entryTTL() time.Duration {
	ttl := r.baseTTL
	if spread := int64(r.baseTTL / 5); spread > 0 {
		ttl += time.Duration(rand.Int63n(spread))
	}
	return ttl
}

// generationTTL outlives every entry filled under the generation, including
// fills that finish after a slow load.
func (r *RedisCache) generationTTL() time.Duration {
	return 3*r.baseTTL + loadTimeout
}

func genKey(userID string) string {
	return fmt.Sprintf("cart:%s:gen", userID)
}

func entryKey(userID, generation string) string {
	return fmt.Sprintf("cart:%s:%s", userID, generation)
}
