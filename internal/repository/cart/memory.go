package cart

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

// CatalogLookup resolves display snapshots for lines held in memory.
type CatalogLookup interface {
	Snapshot(ctx context.Context, productID string, variantID *string) (*domain.ProductSnapshot, *domain.VariantSnapshot, error)
}

type memoryRow struct {
	line   domain.CartLine
	userID string
	seq    int64
}

type memoryRepo struct {
	mu      sync.RWMutex
	rows    map[string]*memoryRow
	seq     int64
	catalog CatalogLookup
}

// NewMemory returns a process-local Repository. catalog may be nil, in which
// case listed lines carry no snapshots.
func NewMemory(catalog CatalogLookup) Repository {
	return &memoryRepo{
		rows:    make(map[string]*memoryRow),
		catalog: catalog,
	}
}

func (r *memoryRepo) FindLine(_ context.Context, userID, productID string, variantID *string) (*domain.CartLine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if row := r.find(userID, productID, variantID); row != nil {
		line := row.line
		return &line, nil
	}
	return nil, nil
}

func (r *memoryRepo) InsertLine(_ context.Context, userID, productID string, variantID *string, quantity int) (*domain.CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.find(userID, productID, variantID) != nil {
		return nil, errors.New("cart line already exists")
	}
	line := r.insert(userID, productID, variantID, quantity)
	return &line, nil
}

func (r *memoryRepo) AddQuantity(_ context.Context, userID, productID string, variantID *string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row := r.find(userID, productID, variantID); row != nil {
		row.line.Quantity += quantity
		return nil
	}
	r.insert(userID, productID, variantID, quantity)
	return nil
}

func (r *memoryRepo) UpdateLineQuantity(_ context.Context, lineID, userID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[lineID]
	if !ok || row.userID != userID {
		return domain.ErrNotFound
	}
	row.line.Quantity = quantity
	return nil
}

func (r *memoryRepo) DeleteLine(_ context.Context, lineID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[lineID]
	if !ok || row.userID != userID {
		return domain.ErrNotFound
	}
	delete(r.rows, lineID)
	return nil
}

func (r *memoryRepo) DeleteAllLines(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, row := range r.rows {
		if row.userID == userID {
			delete(r.rows, id)
		}
	}
	return nil
}

func (r *memoryRepo) ListLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	r.mu.RLock()
	rows := make([]memoryRow, 0, len(r.rows))
	for _, row := range r.rows {
		if row.userID == userID {
			rows = append(rows, *row)
		}
	}
	r.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })

	lines := make([]domain.CartLine, 0, len(rows))
	for _, row := range rows {
		line := row.line
		if r.catalog != nil {
			p, v, err := r.catalog.Snapshot(ctx, line.ProductID, line.VariantID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			line.Product, line.Variant = p, v
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (r *memoryRepo) find(userID, productID string, variantID *string) *memoryRow {
	key := domain.KeyOf(productID, variantID)
	for _, row := range r.rows {
		if row.userID == userID && row.line.Key() == key {
			return row
		}
	}
	return nil
}

func (r *memoryRepo) insert(userID, productID string, variantID *string, quantity int) domain.CartLine {
	r.seq++
	var vid *string
	if variantID != nil {
		v := *variantID
		vid = &v
	}
	line := domain.CartLine{
		ID:        uuid.NewString(),
		ProductID: productID,
		VariantID: vid,
		Quantity:  quantity,
		CreatedAt: time.Now().UTC(),
	}
	r.rows[line.ID] = &memoryRow{line: line, userID: userID, seq: r.seq}
	return line
}
