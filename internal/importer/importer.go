package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter reads commercetools-like product exports and upserts products
// with their size/color variants.
//
// A row with a key starts a product; its sku, if any, is the master variant
// sold at the base price. Rows without a key add variants (sku set) or images
// (only an image url set) to the current product.
type CSVImporter struct {
	reader      *csv.Reader
	productRepo ProductWriter
	logger      *zap.Logger
}

func NewCSVImporter(r io.Reader, repo ProductWriter, logger *zap.Logger) *CSVImporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:      csvr,
		productRepo: repo,
		logger:      logger,
	}
}

type csvRow struct {
	Key      string
	Name     string
	Desc     string
	Slug     string
	SKU      string
	Size     string
	Color    string
	Cents    *int64
	Currency string
	ImageURL string
}

// Run parses CSV rows and upserts products grouped by product key.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)

	var (
		current  *domain.Product
		imported int
	)

	for line := 2; ; line++ {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}

		row, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("row %d: %w", line, err)
		}
		if row == nil {
			continue
		}

		if row.Key != "" {
			if current != nil {
				if err := i.save(ctx, current); err != nil {
					return imported, err
				}
				imported++
			}
			current, err = row.product()
			if err != nil {
				return imported, fmt.Errorf("row %d: %w", line, err)
			}
			continue
		}

		if current == nil {
			i.logger.Warn("importer: skip row without product", zap.Int("row", line))
			continue
		}
		if row.SKU != "" {
			current.Variants = append(current.Variants, row.variant())
			continue
		}
		if current.ImageURL == "" {
			current.ImageURL = row.ImageURL
		}
	}

	if current != nil {
		if err := i.save(ctx, current); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, p *domain.Product) error {
	if p.Name == "" || p.Currency == "" {
		return fmt.Errorf("invalid product row (missing required fields) for key %q", p.Key)
	}
	seen := make(map[string]struct{}, len(p.Variants))
	for _, v := range p.Variants {
		if _, dup := seen[v.SKU]; dup {
			return fmt.Errorf("product %q lists sku %q twice", p.Key, v.SKU)
		}
		seen[v.SKU] = struct{}{}
	}

	stored, err := i.productRepo.Upsert(ctx, *p)
	if err != nil {
		return fmt.Errorf("upsert product %q: %w", p.Key, err)
	}
	i.logger.Debug("importer: product upserted",
		zap.String("key", p.Key),
		zap.String("id", stored.ID),
		zap.Int("variants", len(p.Variants)),
	)
	return nil
}

func (r csvRow) product() (*domain.Product, error) {
	if r.Cents == nil {
		return nil, fmt.Errorf("product %q has no price", r.Key)
	}
	slug := r.Slug
	if slug == "" {
		slug = r.Key
	}
	p := &domain.Product{
		Key:         r.Key,
		Name:        r.Name,
		Slug:        slug,
		Description: r.Desc,
		Price:       decimal.New(*r.Cents, -2),
		Currency:    r.Currency,
		ImageURL:    r.ImageURL,
	}
	if r.SKU != "" {
		master := r.variant()
		master.Price = nil
		p.Variants = append(p.Variants, master)
	}
	return p, nil
}

func (r csvRow) variant() domain.Variant {
	v := domain.Variant{SKU: r.SKU, Size: r.Size, Color: r.Color, ImageURL: r.ImageURL}
	if r.Cents != nil {
		price := decimal.New(*r.Cents, -2)
		v.Price = &price
	}
	return v
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) (*csvRow, error) {
	row := &csvRow{
		Key:      pick(record, index, "key"),
		Name:     pick(record, index, "name.en"),
		Desc:     pick(record, index, "description.en"),
		Slug:     pick(record, index, "slug.en"),
		SKU:      pick(record, index, "variants.sku"),
		Size:     pick(record, index, "variants.attributes.size"),
		Color:    pick(record, index, "variants.attributes.color"),
		Currency: pick(record, index, "variants.prices.value.currencyCode"),
		ImageURL: pick(record, index, "variants.images.url"),
	}
	if row.Key == "" && row.SKU == "" && row.ImageURL == "" {
		return nil, nil
	}

	if centStr := pick(record, index, "variants.prices.value.centAmount"); centStr != "" {
		cents, err := strconv.ParseInt(centStr, 10, 64)
		if err != nil || cents < 0 {
			return nil, fmt.Errorf("invalid centAmount %q", centStr)
		}
		row.Cents = &cents
	}
	return row, nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
