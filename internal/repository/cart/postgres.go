package cart

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) FindLine(ctx context.Context, userID, productID string, variantID *string) (*domain.CartLine, error) {
	const q = `
SELECT id::text, product_id::text, variant_id::text, quantity, created_at
FROM cart_items
WHERE user_id = $1 AND product_id = $2 AND variant_key = $3
`
	var line domain.CartLine
	err := r.pool.QueryRow(ctx, q, userID, productID, variantKey(variantID)).Scan(
		&line.ID,
		&line.ProductID,
		&line.VariantID,
		&line.Quantity,
		&line.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &line, nil
}

func (r *postgresRepo) InsertLine(ctx context.Context, userID, productID string, variantID *string, quantity int) (*domain.CartLine, error) {
	const q = `
INSERT INTO cart_items (user_id, product_id, variant_id, variant_key, quantity)
VALUES ($1, $2, $3, $4, $5)
RETURNING id::text, product_id::text, variant_id::text, quantity, created_at
`
	var line domain.CartLine
	if err := r.pool.QueryRow(ctx, q, userID, productID, variantID, variantKey(variantID), quantity).Scan(
		&line.ID,
		&line.ProductID,
		&line.VariantID,
		&line.Quantity,
		&line.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *postgresRepo) AddQuantity(ctx context.Context, userID, productID string, variantID *string, quantity int) error {
	const q = `
INSERT INTO cart_items (user_id, product_id, variant_id, variant_key, quantity)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, product_id, variant_key)
DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity,
              updated_at = now()
`
	_, err := r.pool.Exec(ctx, q, userID, productID, variantID, variantKey(variantID), quantity)
	return err
}

func (r *postgresRepo) UpdateLineQuantity(ctx context.Context, lineID, userID string, quantity int) error {
	cmd, err := r.pool.Exec(ctx, `
UPDATE cart_items
SET quantity = $1, updated_at = now()
WHERE id::text = $2 AND user_id = $3
`, quantity, lineID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) DeleteLine(ctx context.Context, lineID, userID string) error {
	cmd, err := r.pool.Exec(ctx, `
DELETE FROM cart_items
WHERE id::text = $1 AND user_id = $2
`, lineID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) DeleteAllLines(ctx context.Context, userID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	r.logger.Debug("cart repo: delete all lines", zap.String("user_id", userID), zap.Int64("rows", cmd.RowsAffected()))
	return nil
}

func (r *postgresRepo) ListLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	const q = `
SELECT ci.id::text, ci.product_id::text, ci.variant_id::text, ci.quantity, ci.created_at,
       p.name, p.slug, p.image_url, p.price::text,
       v.sku, v.size, v.color, v.image_url, v.price::text
FROM cart_items ci
JOIN products p ON p.id = ci.product_id
LEFT JOIN product_variants v ON v.id = ci.variant_id
WHERE ci.user_id = $1
ORDER BY ci.created_at DESC, ci.id DESC
`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []domain.CartLine{}
	for rows.Next() {
		var (
			line         domain.CartLine
			product      domain.ProductSnapshot
			productPrice string
			sku          *string
			size         *string
			color        *string
			variantImage *string
			variantPrice *string
		)
		if err := rows.Scan(
			&line.ID,
			&line.ProductID,
			&line.VariantID,
			&line.Quantity,
			&line.CreatedAt,
			&product.Name,
			&product.Slug,
			&product.ImageURL,
			&productPrice,
			&sku,
			&size,
			&color,
			&variantImage,
			&variantPrice,
		); err != nil {
			return nil, err
		}
		price, err := decimal.NewFromString(productPrice)
		if err != nil {
			r.logger.Warn("cart repo: bad product price", zap.String("product_id", line.ProductID), zap.Error(err))
		} else {
			product.Price = &price
		}
		line.Product = &product
		if line.VariantID != nil && sku != nil {
			line.Variant = &domain.VariantSnapshot{
				SKU:      *sku,
				Size:     deref(size),
				Color:    deref(color),
				ImageURL: deref(variantImage),
				Price:    parsePrice(variantPrice),
			}
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func parsePrice(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil
	}
	return &d
}
