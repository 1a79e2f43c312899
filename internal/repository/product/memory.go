package product

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

type memoryRepo struct {
	mu    sync.RWMutex
	byID  map[string]domain.Product
	byKey map[string]string
	skus  map[string]string
}

func NewMemory() Repository {
	return &memoryRepo{
		byID:  make(map[string]domain.Product),
		byKey: make(map[string]string),
		skus:  make(map[string]string),
	}
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(p), nil
}

func (r *memoryRepo) GetByKey(ctx context.Context, key string) (*domain.Product, error) {
	r.mu.RLock()
	id, ok := r.byKey[key]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *memoryRepo) Upsert(_ context.Context, product domain.Product) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byKey[product.Key]; ok {
		product.ID = id
		product.CreatedAt = r.byID[id].CreatedAt
	} else {
		product.ID = uuid.NewString()
		product.CreatedAt = time.Now().UTC()
	}
	var variants []domain.Variant
	if prev, ok := r.byID[product.ID]; ok {
		variants = append(variants, prev.Variants...)
	}
	for _, v := range product.Variants {
		if id, ok := r.skus[v.SKU]; ok {
			v.ID = id
		} else {
			v.ID = uuid.NewString()
			r.skus[v.SKU] = v.ID
		}
		v.ProductID = product.ID
		variants = upsertVariant(variants, v)
	}
	product.Variants = variants
	r.byID[product.ID] = product
	r.byKey[product.Key] = product.ID
	return clone(product), nil
}

func clone(p domain.Product) *domain.Product {
	p.Variants = append([]domain.Variant(nil), p.Variants...)
	return &p
}

func upsertVariant(variants []domain.Variant, v domain.Variant) []domain.Variant {
	for i := range variants {
		if variants[i].SKU == v.SKU {
			variants[i] = v
			return variants
		}
	}
	return append(variants, v)
}
