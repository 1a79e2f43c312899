package cart

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/db"
	"storefront/internal/domain"
)

type gormRepo struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGorm returns a Repository over a gorm connection (MySQL, Postgres or
// SQLite). The schema comes from db.AutoMigrate.
func NewGorm(gdb *gorm.DB, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &gormRepo{db: gdb, logger: logger}
}

func (r *gormRepo) FindLine(ctx context.Context, userID, productID string, variantID *string) (*domain.CartLine, error) {
	var m db.CartItemModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND variant_key = ?", userID, productID, variantKey(variantID)).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	line := toLine(m)
	return &line, nil
}

func (r *gormRepo) InsertLine(ctx context.Context, userID, productID string, variantID *string, quantity int) (*domain.CartLine, error) {
	m := newItem(userID, productID, variantID, quantity)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, err
	}
	line := toLine(m)
	return &line, nil
}

func (r *gormRepo) AddQuantity(ctx context.Context, userID, productID string, variantID *string, quantity int) error {
	m := newItem(userID, productID, variantID, quantity)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}, {Name: "variant_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("cart_items.quantity + ?", quantity),
			"updated_at": m.UpdatedAt,
		}),
	}).Create(&m).Error
}

func (r *gormRepo) UpdateLineQuantity(ctx context.Context, lineID, userID string, quantity int) error {
	res := r.db.WithContext(ctx).Model(&db.CartItemModel{}).
		Where("id = ? AND user_id = ?", lineID, userID).
		Updates(map[string]interface{}{"quantity": quantity, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *gormRepo) DeleteLine(ctx context.Context, lineID, userID string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", lineID, userID).
		Delete(&db.CartItemModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *gormRepo) DeleteAllLines(ctx context.Context, userID string) error {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&db.CartItemModel{})
	if res.Error != nil {
		return res.Error
	}
	r.logger.Debug("cart repo: delete all lines", zap.String("user_id", userID), zap.Int64("rows", res.RowsAffected))
	return nil
}

type lineRow struct {
	ID           string
	ProductID    string
	VariantID    *string
	Quantity     int
	CreatedAt    time.Time
	ProductName  *string
	ProductSlug  *string
	ProductImage *string
	ProductPrice decimal.NullDecimal
	VariantSKU   *string
	VariantSize  *string
	VariantColor *string
	VariantImage *string
	VariantPrice decimal.NullDecimal
}

func (r *gormRepo) ListLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	var rows []lineRow
	err := r.db.WithContext(ctx).
		Table("cart_items AS ci").
		Select(`ci.id, ci.product_id, ci.variant_id, ci.quantity, ci.created_at,
p.name AS product_name, p.slug AS product_slug, p.image_url AS product_image, p.price AS product_price,
v.sku AS variant_sku, v.size AS variant_size, v.color AS variant_color, v.image_url AS variant_image, v.price AS variant_price`).
		Joins("LEFT JOIN products p ON p.id = ci.product_id").
		Joins("LEFT JOIN product_variants v ON v.id = ci.variant_id").
		Where("ci.user_id = ?", userID).
		Order("ci.created_at DESC").
		Order("ci.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	lines := make([]domain.CartLine, 0, len(rows))
	for _, row := range rows {
		line := domain.CartLine{
			ID:        row.ID,
			ProductID: row.ProductID,
			VariantID: row.VariantID,
			Quantity:  row.Quantity,
			CreatedAt: row.CreatedAt,
		}
		if row.ProductName != nil {
			line.Product = &domain.ProductSnapshot{
				Name:     *row.ProductName,
				Slug:     deref(row.ProductSlug),
				ImageURL: deref(row.ProductImage),
				Price:    nullPrice(row.ProductPrice),
			}
		}
		if row.VariantID != nil && row.VariantSKU != nil {
			line.Variant = &domain.VariantSnapshot{
				SKU:      *row.VariantSKU,
				Size:     deref(row.VariantSize),
				Color:    deref(row.VariantColor),
				ImageURL: deref(row.VariantImage),
				Price:    nullPrice(row.VariantPrice),
			}
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func newItem(userID, productID string, variantID *string, quantity int) db.CartItemModel {
	now := time.Now().UTC()
	return db.CartItemModel{
		UserID:     userID,
		ProductID:  productID,
		VariantID:  variantID,
		VariantKey: variantKey(variantID),
		Quantity:   quantity,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func toLine(m db.CartItemModel) domain.CartLine {
	return domain.CartLine{
		ID:        m.ID,
		ProductID: m.ProductID,
		VariantID: m.VariantID,
		Quantity:  m.Quantity,
		CreatedAt: m.CreatedAt,
	}
}

func nullPrice(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	p := d.Decimal
	return &p
}
