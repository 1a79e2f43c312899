package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
)

// loadTimeout bounds a shared repository load once it no longer belongs to
// the caller that started it.
const loadTimeout = 5 * time.Second

// CachedStore serves ListLines from a LineCache and moves the user to a new
// cache generation after every successful write. Cache failures are logged
// and never surface to the caller.
type CachedStore struct {
	cartrepo.Repository
	cache  LineCache
	logger *zap.Logger
	sfg    singleflight.Group
}

func NewCachedStore(repo cartrepo.Repository, cache LineCache, logger *zap.Logger) *CachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{Repository: repo, cache: cache, logger: logger}
}

func (s *CachedStore) ListLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	lines, gen, err := s.cache.Get(ctx, userID)
	if err == nil {
		return lines, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("cart cache: get", zap.String("user_id", userID), zap.Error(err))
	}
	if gen == "" {
		return s.Repository.ListLines(ctx, userID)
	}

	// a flight is shared only by readers of the same generation
	ch := s.sfg.DoChan(userID+"@"+gen, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return s.fill(loadCtx, userID, gen)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// callers sharing a flight must not share the slice
		shared := res.Val.([]domain.CartLine)
		return append([]domain.CartLine(nil), shared...), nil
	}
}

func (s *CachedStore) fill(ctx context.Context, userID, gen string) ([]domain.CartLine, error) {
	lines, err := s.Repository.ListLines(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, userID, gen, lines); err != nil {
		s.logger.Warn("cart cache: set", zap.String("user_id", userID), zap.Error(err))
	}
	return lines, nil
}

func (s *CachedStore) InsertLine(ctx context.Context, userID, productID string, variantID *string, quantity int) (*domain.CartLine, error) {
	line, err := s.Repository.InsertLine(ctx, userID, productID, variantID, quantity)
	if err != nil {
		return nil, err
	}
	s.invalidate(userID)
	return line, nil
}

func (s *CachedStore) AddQuantity(ctx context.Context, userID, productID string, variantID *string, quantity int) error {
	if err := s.Repository.AddQuantity(ctx, userID, productID, variantID, quantity); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

func (s *CachedStore) UpdateLineQuantity(ctx context.Context, lineID, userID string, quantity int) error {
	if err := s.Repository.UpdateLineQuantity(ctx, lineID, userID, quantity); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

func (s *CachedStore) DeleteLine(ctx context.Context, lineID, userID string) error {
	if err := s.Repository.DeleteLine(ctx, lineID, userID); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

func (s *CachedStore) DeleteAllLines(ctx context.Context, userID string) error {
	if err := s.Repository.DeleteAllLines(ctx, userID); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

func (s *CachedStore) invalidate(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("cart cache: invalidate", zap.String("user_id", userID), zap.Error(err))
	}
}
