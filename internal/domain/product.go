package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Key         string          `json:"key"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Variants    []Variant       `json:"variants,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Variant is a purchasable size/color form of a product. A nil Price means
// the variant sells at the product's base price.
type Variant struct {
	ID        string           `json:"id"`
	ProductID string           `json:"productId"`
	SKU       string           `json:"sku"`
	Size      string           `json:"size,omitempty"`
	Color     string           `json:"color,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	ImageURL  string           `json:"imageUrl,omitempty"`
}

// FindVariant returns the variant with the given id.
func (p Product) FindVariant(id string) (*Variant, bool) {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

func (p Product) Snapshot() *ProductSnapshot {
	price := p.Price
	return &ProductSnapshot{
		Name:     p.Name,
		Slug:     p.Slug,
		ImageURL: p.ImageURL,
		Price:    &price,
	}
}

func (v Variant) Snapshot() *VariantSnapshot {
	snap := &VariantSnapshot{
		SKU:      v.SKU,
		Size:     v.Size,
		Color:    v.Color,
		ImageURL: v.ImageURL,
	}
	if v.Price != nil {
		price := *v.Price
		snap.Price = &price
	}
	return snap
}
