package localcart

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

// Cookie payloads carry only line identity and quantity; display snapshots
// are resolved again on load. Ids in canonical uuid form are packed into
// 16 bytes, anything else is stored as a length-prefixed string.
const compactVersion byte = 1

const (
	idAbsent byte = iota
	idUUID
	idString
)

var errCorruptCart = errors.New("corrupt anonymous cart payload")

func encodeCompact(lines []domain.CartLine) []byte {
	buf := make([]byte, 0, 2+len(lines)*60)
	buf = append(buf, compactVersion)
	buf = binary.AppendUvarint(buf, uint64(len(lines)))
	for _, l := range lines {
		buf = appendID(buf, &l.ID)
		buf = appendID(buf, &l.ProductID)
		buf = appendID(buf, l.VariantID)
		buf = binary.AppendUvarint(buf, uint64(l.Quantity))
		buf = binary.AppendVarint(buf, l.CreatedAt.Unix())
	}
	return buf
}

func decodeCompact(data []byte) ([]domain.CartLine, error) {
	if len(data) == 0 || data[0] != compactVersion {
		return nil, fmt.Errorf("unmarshal anonymous cart: %w", errCorruptCart)
	}
	r := &reader{data: data[1:]}
	n := r.uvarint()
	if r.err == nil && n > uint64(len(r.data)) {
		r.err = errCorruptCart
	}
	lines := make([]domain.CartLine, 0, n)
	for i := uint64(0); i < n && r.err == nil; i++ {
		var l domain.CartLine
		if id := r.id(); id != nil {
			l.ID = *id
		}
		if id := r.id(); id != nil {
			l.ProductID = *id
		}
		l.VariantID = r.id()
		l.Quantity = int(r.uvarint())
		l.CreatedAt = time.Unix(r.varint(), 0).UTC()
		lines = append(lines, l)
	}
	if r.err != nil {
		return nil, fmt.Errorf("unmarshal anonymous cart: %w", r.err)
	}
	return lines, nil
}

func appendID(buf []byte, id *string) []byte {
	if id == nil {
		return append(buf, idAbsent)
	}
	if u, err := uuid.Parse(*id); err == nil && u.String() == *id {
		buf = append(buf, idUUID)
		return append(buf, u[:]...)
	}
	buf = append(buf, idString)
	buf = binary.AppendUvarint(buf, uint64(len(*id)))
	return append(buf, *id...)
}

type reader struct {
	data []byte
	err  error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.data) {
		r.err = errCorruptCart
		return nil
	}
	out := r.data[:n]
	r.data = r.data[n:]
	return out
}

func (r *reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.data)
	if n <= 0 {
		r.err = errCorruptCart
		return 0
	}
	r.data = r.data[n:]
	return v
}

func (r *reader) varint() int64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Varint(r.data)
	if n <= 0 {
		r.err = errCorruptCart
		return 0
	}
	r.data = r.data[n:]
	return v
}

func (r *reader) id() *string {
	tag := r.take(1)
	if r.err != nil {
		return nil
	}
	switch tag[0] {
	case idAbsent:
		return nil
	case idUUID:
		raw := r.take(16)
		if r.err != nil {
			return nil
		}
		s := uuid.UUID(raw).String()
		return &s
	case idString:
		n := r.uvarint()
		if r.err == nil && n > uint64(len(r.data)) {
			r.err = errCorruptCart
			return nil
		}
		raw := r.take(int(n))
		if r.err != nil {
			return nil
		}
		s := string(raw)
		return &s
	default:
		r.err = errCorruptCart
		return nil
	}
}
