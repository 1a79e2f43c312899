package product

import (
	"context"
	"fmt"

	"storefront/internal/domain"
	productrepo "storefront/internal/repository/product"
)

type Service struct {
	repo productrepo.Repository
}

func New(repo productrepo.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Snapshot resolves the display data stored on a cart line. An unknown
// variant of a known product is domain.ErrNotFound.
func (s *Service) Snapshot(ctx context.Context, productID string, variantID *string) (*domain.ProductSnapshot, *domain.VariantSnapshot, error) {
	p, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if variantID == nil {
		return p.Snapshot(), nil, nil
	}
	v, ok := p.FindVariant(*variantID)
	if !ok {
		return nil, nil, fmt.Errorf("variant %s of product %s: %w", *variantID, productID, domain.ErrNotFound)
	}
	return p.Snapshot(), v.Snapshot(), nil
}
