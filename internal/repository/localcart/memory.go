package localcart

import (
	"context"
	"sync"

	"storefront/internal/domain"
)

type Memory struct {
	mu    sync.Mutex
	carts map[string][]domain.CartLine
}

func NewMemory() *Memory {
	return &Memory{carts: make(map[string][]domain.CartLine)}
}

func (m *Memory) Load(_ context.Context, anonymousID string) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CartLine{}, m.carts[anonymousID]...), nil
}

func (m *Memory) Save(_ context.Context, anonymousID string, lines []domain.CartLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(lines) == 0 {
		delete(m.carts, anonymousID)
		return nil
	}
	m.carts[anonymousID] = append([]domain.CartLine(nil), lines...)
	return nil
}

func (m *Memory) Clear(_ context.Context, anonymousID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, anonymousID)
	return nil
}
