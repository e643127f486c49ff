package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation              = errors.New("validation")        // 400
	ErrNotFound                = errors.New("not found")         // 404
	ErrForbidden               = errors.New("forbidden")         // 403
	ErrConflict                = errors.New("conflict")          // 409
	ErrInvalidSignature        = errors.New("invalid signature") // 400
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// ProductNotFoundError identifies the missing product of an order request.
type ProductNotFoundError struct {
	ProductID uint
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %d", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return ErrValidation }

// InsufficientStockError reports the offending product and what is left.
type InsufficientStockError struct {
	ProductID uint
	Name      string
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q: %d available", e.Name, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrValidation }

// TotalMismatchError reports both figures when the declared total drifts
// past the tolerance.
type TotalMismatchError struct {
	Calculated float64
	Provided   float64
}

func (e *TotalMismatchError) Error() string {
	return fmt.Sprintf("order total does not match calculated total: calculated=%.2f provided=%.2f", e.Calculated, e.Provided)
}

func (e *TotalMismatchError) Unwrap() error { return ErrValidation }
