package importer

import (
	"context"
	"strings"
	"testing"

	"storefront/internal/domain"
	productrepo "storefront/internal/repository/product"
)

type stubProductRepo struct {
	items []domain.Product
}

func (s *stubProductRepo) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	s.items = append(s.items, p)
	p.ID = "id-" + p.Key
	return &p, nil
}

const header = `key,name.en,description.en,slug.en,variants.sku,variants.attributes.size,variants.attributes.color,variants.prices.value.centAmount,variants.prices.value.currencyCode,variants.images.url`

func TestCSVImporter_Run(t *testing.T) {
	csvData := header + `
slim-jeans,Slim Jeans,Stretch denim,,JEANS-30,30,indigo,7900,USD,https://example.com/jeans.jpg
,,,,JEANS-32,32,indigo,,,
,,,,JEANS-32-W,32,white,8500,,
,,,,,,,,,https://example.com/jeans-back.jpg
wool-scarf,Wool Scarf,Merino,wool-scarf-one,,,,4550,EUR,`

	repo := &stubProductRepo{}
	imp := NewCSVImporter(strings.NewReader(csvData), repo, nil)

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 2 || len(repo.items) != 2 {
		t.Fatalf("expected 2 products imported, got %d (%d saved)", count, len(repo.items))
	}

	jeans := repo.items[0]
	if jeans.Key != "slim-jeans" || jeans.Slug != "slim-jeans" || jeans.Price.StringFixed(2) != "79.00" || jeans.Currency != "USD" {
		t.Fatalf("unexpected product data: %+v", jeans)
	}
	if jeans.ImageURL != "https://example.com/jeans.jpg" {
		t.Fatalf("expected first image to win, got %s", jeans.ImageURL)
	}
	if len(jeans.Variants) != 3 {
		t.Fatalf("expected 3 variants, got %d", len(jeans.Variants))
	}
	if jeans.Variants[0].SKU != "JEANS-30" || jeans.Variants[0].Price != nil {
		t.Fatalf("master variant should sell at base price: %+v", jeans.Variants[0])
	}
	if jeans.Variants[1].Size != "32" || jeans.Variants[1].Price != nil {
		t.Fatalf("variant without price should inherit: %+v", jeans.Variants[1])
	}
	if jeans.Variants[2].Price == nil || jeans.Variants[2].Price.StringFixed(2) != "85.00" || jeans.Variants[2].Color != "white" {
		t.Fatalf("unexpected priced variant: %+v", jeans.Variants[2])
	}

	scarf := repo.items[1]
	if scarf.Slug != "wool-scarf-one" || len(scarf.Variants) != 0 || scarf.Price.StringFixed(2) != "45.50" {
		t.Fatalf("unexpected scarf: %+v", scarf)
	}
}

func TestCSVImporter_Errors(t *testing.T) {
	cases := map[string]string{
		"missing price":    header + "\ntee,Tee,,,,,,,USD,",
		"bad cents":        header + "\ntee,Tee,,,,,,abc,USD,",
		"missing currency": header + "\ntee,Tee,,,,,,1000,,",
		"duplicate sku":    header + "\ntee,Tee,,,TEE-S,S,,1000,USD,\n,,,,TEE-S,S,,,,",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewCSVImporter(strings.NewReader(data), &stubProductRepo{}, nil).Run(context.Background())
			if err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestCSVImporter_ReimportUpdates(t *testing.T) {
	repo := productrepo.NewMemory()
	ctx := context.Background()

	first := header + "\ntee,Tee,,,TEE-S,S,sand,2900,USD,"
	if _, err := NewCSVImporter(strings.NewReader(first), repo, nil).Run(ctx); err != nil {
		t.Fatalf("first import: %v", err)
	}
	second := header + "\ntee,Linen Tee,,,TEE-S,S,sand,3100,USD,\n,,,,TEE-M,M,sand,,,"
	if _, err := NewCSVImporter(strings.NewReader(second), repo, nil).Run(ctx); err != nil {
		t.Fatalf("second import: %v", err)
	}

	tee, err := repo.GetByKey(ctx, "tee")
	if err != nil {
		t.Fatalf("get tee: %v", err)
	}
	if tee.Name != "Linen Tee" || tee.Price.StringFixed(2) != "31.00" {
		t.Fatalf("expected updated product, got %+v", tee)
	}
	if len(tee.Variants) != 2 {
		t.Fatalf("expected 2 variants after reimport, got %d", len(tee.Variants))
	}
}
