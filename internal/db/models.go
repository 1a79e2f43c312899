package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductModel struct {
	ID          string          `gorm:"size:36;primaryKey"`
	Key         string          `gorm:"size:191;not null;uniqueIndex"`
	Name        string          `gorm:"size:255;not null"`
	Slug        string          `gorm:"size:191;not null;uniqueIndex"`
	Description string          `gorm:"type:text"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency    string          `gorm:"size:3;not null;default:'USD'"`
	ImageURL    string          `gorm:"size:512"`
	CreatedAt   time.Time
}

func (ProductModel) TableName() string { return "products" }

func (m *ProductModel) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

type VariantModel struct {
	ID        string              `gorm:"size:36;primaryKey"`
	ProductID string              `gorm:"size:36;not null;index"`
	SKU       string              `gorm:"column:sku;size:100;not null;uniqueIndex"`
	Size      string              `gorm:"size:32"`
	Color     string              `gorm:"size:64"`
	Price     decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	ImageURL  string              `gorm:"size:512"`
	CreatedAt time.Time
}

func (VariantModel) TableName() string { return "product_variants" }

func (m *VariantModel) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// CartItemModel mirrors the cart_items table. VariantKey is the variant id or
// the empty string, so variant-less lines share one unique key.
type CartItemModel struct {
	ID         string  `gorm:"size:36;primaryKey"`
	UserID     string  `gorm:"size:191;not null;uniqueIndex:cart_items_user_product_variant_key,priority:1"`
	ProductID  string  `gorm:"size:36;not null;uniqueIndex:cart_items_user_product_variant_key,priority:2"`
	VariantID  *string `gorm:"size:36"`
	VariantKey string  `gorm:"size:36;not null;default:'';uniqueIndex:cart_items_user_product_variant_key,priority:3"`
	Quantity   int     `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (CartItemModel) TableName() string { return "cart_items" }

func (m *CartItemModel) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
