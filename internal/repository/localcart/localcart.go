// Package localcart keeps the carts of anonymous sessions outside the cart
// tables: in a signed cookie, in Redis or in process memory.
package localcart

import (
	"encoding/json"
	"fmt"

	"storefront/internal/domain"
)

func encode(lines []domain.CartLine) ([]byte, error) {
	if lines == nil {
		lines = []domain.CartLine{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("marshal anonymous cart: %w", err)
	}
	return data, nil
}

func decode(data []byte) ([]domain.CartLine, error) {
	var lines []domain.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("unmarshal anonymous cart: %w", err)
	}
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return lines, nil
}
