package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrDuplicate               = errors.New("already exists")
	ErrParentNotFound          = errors.New("parent not found")
	ErrParentInactive          = errors.New("parent inactive")
	ErrHierarchyMismatch       = errors.New("subcategory does not belong to category")
	ErrProductNotPurchasable   = errors.New("product not purchasable")
	ErrProductReferenced       = errors.New("product referenced by orders")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrItemNotFound            = errors.New("cart item not found")
	ErrEmptyCart               = errors.New("cart is empty")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrValidation              = errors.New("validation failed")
	// ErrConcurrencyConflict marks a transaction the store aborted (serialization
	// failure, deadlock, lock timeout or deadline). Nothing was written; retry is safe.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidStatusTransition }
