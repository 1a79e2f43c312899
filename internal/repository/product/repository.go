package product

import (
	"context"

	"storefront/internal/domain"
)

type Repository interface {
	// GetByID returns the product with its variants or domain.ErrNotFound.
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetByKey(ctx context.Context, key string) (*domain.Product, error)
	// Upsert writes the product by key and each variant by SKU, returning the
	// stored product with ids filled in.
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}
