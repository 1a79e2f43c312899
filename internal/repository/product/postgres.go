package product

import (
	"context"
	"errors"
	"fmt"

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

const productColumns = `id::text, key, name, slug, description, price::text, currency, image_url, created_at`

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return r.get(ctx, `SELECT `+productColumns+` FROM products WHERE id::text = $1`, id)
}

func (r *postgresRepo) GetByKey(ctx context.Context, key string) (*domain.Product, error) {
	return r.get(ctx, `SELECT `+productColumns+` FROM products WHERE key = $1`, key)
}

func (r *postgresRepo) get(ctx context.Context, q, arg string) (*domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	err := r.pool.QueryRow(ctx, q, arg).Scan(&p.ID, &p.Key, &p.Name, &p.Slug, &p.Description, &price, &p.Currency, &p.ImageURL, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("product repo: not found", zap.String("lookup", arg))
			return nil, domain.ErrNotFound
		}
		r.logger.Error("product repo: get", zap.String("lookup", arg), zap.Error(err))
		return nil, err
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("product %s price %q: %w", p.ID, price, err)
	}

	variants, err := r.variants(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Variants = variants
	return &p, nil
}

func (r *postgresRepo) variants(ctx context.Context, productID string) ([]domain.Variant, error) {
	const q = `
SELECT id::text, product_id::text, sku, size, color, price::text, image_url
FROM product_variants
WHERE product_id::text = $1
ORDER BY created_at ASC, sku ASC
`
	rows, err := r.pool.Query(ctx, q, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Variant
	for rows.Next() {
		var (
			v     domain.Variant
			price *string
		)
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Size, &v.Color, &price, &v.ImageURL); err != nil {
			return nil, err
		}
		if price != nil {
			d, err := decimal.NewFromString(*price)
			if err != nil {
				return nil, fmt.Errorf("variant %s price %q: %w", v.SKU, *price, err)
			}
			v.Price = &d
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const q = `
INSERT INTO products (key, name, slug, description, price, currency, image_url)
VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7)
ON CONFLICT (key) DO UPDATE SET
    name = EXCLUDED.name,
    slug = EXCLUDED.slug,
    description = EXCLUDED.description,
    price = EXCLUDED.price,
    currency = EXCLUDED.currency,
    image_url = EXCLUDED.image_url
RETURNING id::text, created_at
`
	res := product
	err = tx.QueryRow(ctx, q,
		product.Key,
		product.Name,
		product.Slug,
		product.Description,
		product.Price.StringFixed(2),
		product.Currency,
		product.ImageURL,
	).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		r.logger.Error("product repo: upsert", zap.String("key", product.Key), zap.Error(err))
		return nil, err
	}

	const vq = `
INSERT INTO product_variants (product_id, sku, size, color, price, image_url)
VALUES ($1, $2, $3, $4, $5::text::numeric, $6)
ON CONFLICT (sku) DO UPDATE SET
    product_id = EXCLUDED.product_id,
    size = EXCLUDED.size,
    color = EXCLUDED.color,
    price = EXCLUDED.price,
    image_url = EXCLUDED.image_url
RETURNING id::text
`
	res.Variants = make([]domain.Variant, len(product.Variants))
	for i, v := range product.Variants {
		var price *string
		if v.Price != nil {
			s := v.Price.StringFixed(2)
			price = &s
		}
		if err := tx.QueryRow(ctx, vq, res.ID, v.SKU, v.Size, v.Color, price, v.ImageURL).Scan(&v.ID); err != nil {
			r.logger.Error("product repo: upsert variant", zap.String("sku", v.SKU), zap.Error(err))
			return nil, fmt.Errorf("variant %s: %w", v.SKU, err)
		}
		v.ProductID = res.ID
		res.Variants[i] = v
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Debug("product repo: upserted", zap.String("key", res.Key), zap.String("id", res.ID), zap.Int("variants", len(res.Variants)))
	return &res, nil
}
