package cache

import (
	"context"
	"errors"

	"storefront/internal/domain"
)

// LineCache holds the listed cart lines of a user, keyed by a per-user
// generation. Invalidate moves the user to a new generation, so entries
// filled from reads that raced a write are never served again.
type LineCache interface {
	// Get returns the current generation with the cached lines. On a miss it
	// returns ErrCacheMiss and the generation a fill should be written under.
	// An empty generation means it could not be read and nothing may be filled.
	Get(ctx context.Context, userID string) ([]domain.CartLine, string, error)
	Set(ctx context.Context, userID, generation string, lines []domain.CartLine) error
	Invalidate(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
