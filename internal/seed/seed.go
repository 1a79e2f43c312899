package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	productrepo "storefront/internal/repository/product"
)

type variantSeed struct {
	SKU   string
	Size  string
	Color string
	Price string
}

type productSeed struct {
	Key         string
	Name        string
	Description string
	Price       string
	ImageURL    string
	Variants    []variantSeed
}

var catalog = []productSeed{
	{
		Key:         "linen-tee",
		Name:        "Linen Tee",
		Description: "Relaxed fit tee in washed linen",
		Price:       "29.00",
		ImageURL:    "/images/linen-tee.jpg",
		Variants: []variantSeed{
			{SKU: "LINEN-TEE-S-SAND", Size: "S", Color: "sand"},
			{SKU: "LINEN-TEE-M-SAND", Size: "M", Color: "sand"},
			{SKU: "LINEN-TEE-L-SAND", Size: "L", Color: "sand"},
			{SKU: "LINEN-TEE-M-BLACK", Size: "M", Color: "black", Price: "32.00"},
		},
	},
	{
		Key:         "slim-jeans",
		Name:        "Slim Jeans",
		Description: "Stretch denim with a tapered leg",
		Price:       "79.00",
		ImageURL:    "/images/slim-jeans.jpg",
		Variants: []variantSeed{
			{SKU: "SLIM-JEANS-30-INDIGO", Size: "30", Color: "indigo"},
			{SKU: "SLIM-JEANS-32-INDIGO", Size: "32", Color: "indigo"},
			{SKU: "SLIM-JEANS-34-INDIGO", Size: "34", Color: "indigo"},
			{SKU: "SLIM-JEANS-32-WHITE", Size: "32", Color: "white", Price: "85.00"},
		},
	},
	{
		Key:         "wool-scarf",
		Name:        "Wool Scarf",
		Description: "One size merino scarf",
		Price:       "45.50",
		ImageURL:    "/images/wool-scarf.jpg",
	},
}

// Apply upserts the demo fashion catalog. Running it twice is a no-op.
func Apply(ctx context.Context, repo productrepo.Repository) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(catalog))
	for _, s := range catalog {
		p, err := s.product()
		if err != nil {
			return nil, fmt.Errorf("seed product %s: %w", s.Key, err)
		}
		stored, err := repo.Upsert(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("upsert product %s: %w", s.Key, err)
		}
		out = append(out, *stored)
	}
	return out, nil
}

func (s productSeed) product() (domain.Product, error) {
	price, err := decimal.NewFromString(s.Price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("price %q: %w", s.Price, err)
	}
	p := domain.Product{
		Key:         s.Key,
		Name:        s.Name,
		Slug:        s.Key,
		Description: s.Description,
		Price:       price,
		Currency:    "USD",
		ImageURL:    s.ImageURL,
	}
	for _, v := range s.Variants {
		variant := domain.Variant{SKU: v.SKU, Size: v.Size, Color: v.Color}
		if v.Price != "" {
			vp, err := decimal.NewFromString(v.Price)
			if err != nil {
				return domain.Product{}, fmt.Errorf("variant %s price %q: %w", v.SKU, v.Price, err)
			}
			variant.Price = &vp
		}
		p.Variants = append(p.Variants, variant)
	}
	return p, nil
}
