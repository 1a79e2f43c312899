package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductSnapshot is denormalized product display data attached to a line.
type ProductSnapshot struct {
	Name     string           `json:"name"`
	Slug     string           `json:"slug,omitempty"`
	ImageURL string           `json:"imageUrl,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// VariantSnapshot is denormalized variant display data attached to a line.
type VariantSnapshot struct {
	SKU      string           `json:"sku,omitempty"`
	Size     string           `json:"size,omitempty"`
	Color    string           `json:"color,omitempty"`
	ImageURL string           `json:"imageUrl,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

type CartLine struct {
	ID        string           `json:"id"`
	ProductID string           `json:"productId"`
	VariantID *string          `json:"variantId,omitempty"`
	Quantity  int              `json:"quantity"`
	Product   *ProductSnapshot `json:"product,omitempty"`
	Variant   *VariantSnapshot `json:"variant,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// LineKey is the deduplication identity of a line. A nil variant id is the
// empty VariantID, which is a distinct key and not a wildcard.
type LineKey struct {
	ProductID string
	VariantID string
}

func KeyOf(productID string, variantID *string) LineKey {
	k := LineKey{ProductID: productID}
	if variantID != nil {
		k.VariantID = *variantID
	}
	return k
}

func (l CartLine) Key() LineKey {
	return KeyOf(l.ProductID, l.VariantID)
}

// UnitPrice resolves the variant price, then the product base price, then zero.
func (l CartLine) UnitPrice() decimal.Decimal {
	switch {
	case l.Variant != nil && l.Variant.Price != nil:
		return l.Variant.Price.Round(2)
	case l.Product != nil && l.Product.Price != nil:
		return l.Product.Price.Round(2)
	default:
		return decimal.Zero
	}
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Totals are derived from a line list and never stored.
type Totals struct {
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// ComputeTotals sums quantities and line totals from scratch.
func ComputeTotals(lines []CartLine) Totals {
	t := Totals{TotalPrice: decimal.Zero}
	for _, l := range lines {
		t.TotalItems += l.Quantity
		t.TotalPrice = t.TotalPrice.Add(l.LineTotal())
	}
	return t
}

// StringPtr returns a pointer to a copy of v, or nil for an empty string.
func StringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
