package cart

import (
	"context"

	"storefront/internal/domain"
)

// Repository is the user-scoped cart line store. Writes that match no row
// owned by the user return domain.ErrNotFound.
type Repository interface {
	FindLine(ctx context.Context, userID, productID string, variantID *string) (*domain.CartLine, error)
	InsertLine(ctx context.Context, userID, productID string, variantID *string, quantity int) (*domain.CartLine, error)
	AddQuantity(ctx context.Context, userID, productID string, variantID *string, quantity int) error
	UpdateLineQuantity(ctx context.Context, lineID, userID string, quantity int) error
	DeleteLine(ctx context.Context, lineID, userID string) error
	DeleteAllLines(ctx context.Context, userID string) error
	ListLines(ctx context.Context, userID string) ([]domain.CartLine, error)
}

func variantKey(variantID *string) string {
	if variantID == nil {
		return ""
	}
	return *variantID
}
