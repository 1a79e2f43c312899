package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuantity is returned when a quantity below one is supplied to an add.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInvalidProduct is returned when a line has no product id.
	ErrInvalidProduct = errors.New("product id required")
	// ErrUnauthenticated is returned by operations that need a signed-in session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrCartFull is returned when an anonymous cart store cannot hold another line.
	ErrCartFull = errors.New("cart is full")
	// ErrForbidden indicates a write against a row owned by another user.
	ErrForbidden = errors.New("forbidden")
)
