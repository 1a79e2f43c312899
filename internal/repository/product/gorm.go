package product

import (
	"context"
	"errors"

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

func NewGorm(gdb *gorm.DB, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &gormRepo{db: gdb, logger: logger}
}

func (r *gormRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return r.get(ctx, map[string]interface{}{"id": id})
}

func (r *gormRepo) GetByKey(ctx context.Context, key string) (*domain.Product, error) {
	return r.get(ctx, map[string]interface{}{"key": key})
}

// get takes map conditions so gorm quotes the column; key is reserved in MySQL.
func (r *gormRepo) get(ctx context.Context, cond map[string]interface{}) (*domain.Product, error) {
	var m db.ProductModel
	if err := r.db.WithContext(ctx).Where(cond).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var vms []db.VariantModel
	if err := r.db.WithContext(ctx).Where("product_id = ?", m.ID).Order("created_at ASC").Order("sku ASC").Find(&vms).Error; err != nil {
		return nil, err
	}
	p := fromModel(m, vms)
	return &p, nil
}

func (r *gormRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	var out domain.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m := db.ProductModel{
			Key:         product.Key,
			Name:        product.Name,
			Slug:        product.Slug,
			Description: product.Description,
			Price:       product.Price,
			Currency:    product.Currency,
			ImageURL:    product.ImageURL,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "slug", "description", "price", "currency", "image_url"}),
		}).Create(&m).Error; err != nil {
			return err
		}
		// the generated id is discarded on conflict
		var stored db.ProductModel
		if err := tx.Where(map[string]interface{}{"key": product.Key}).First(&stored).Error; err != nil {
			return err
		}

		vms := make([]db.VariantModel, 0, len(product.Variants))
		for _, v := range product.Variants {
			vm := db.VariantModel{
				ProductID: stored.ID,
				SKU:       v.SKU,
				Size:      v.Size,
				Color:     v.Color,
				ImageURL:  v.ImageURL,
			}
			if v.Price != nil {
				vm.Price = decimal.NewNullDecimal(*v.Price)
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "sku"}},
				DoUpdates: clause.AssignmentColumns([]string{"product_id", "size", "color", "price", "image_url"}),
			}).Create(&vm).Error; err != nil {
				return err
			}
			var storedVariant db.VariantModel
			if err := tx.Where(map[string]interface{}{"sku": v.SKU}).First(&storedVariant).Error; err != nil {
				return err
			}
			vms = append(vms, storedVariant)
		}
		out = fromModel(stored, vms)
		return nil
	})
	if err != nil {
		r.logger.Error("product repo: upsert", zap.String("key", product.Key), zap.Error(err))
		return nil, err
	}
	return &out, nil
}

func fromModel(m db.ProductModel, vms []db.VariantModel) domain.Product {
	p := domain.Product{
		ID:          m.ID,
		Key:         m.Key,
		Name:        m.Name,
		Slug:        m.Slug,
		Description: m.Description,
		Price:       m.Price,
		Currency:    m.Currency,
		ImageURL:    m.ImageURL,
		CreatedAt:   m.CreatedAt,
	}
	for _, vm := range vms {
		v := domain.Variant{
			ID:        vm.ID,
			ProductID: vm.ProductID,
			SKU:       vm.SKU,
			Size:      vm.Size,
			Color:     vm.Color,
			ImageURL:  vm.ImageURL,
		}
		if vm.Price.Valid {
			price := vm.Price.Decimal
			v.Price = &price
		}
		p.Variants = append(p.Variants, v)
	}
	return p
}
