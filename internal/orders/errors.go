package orders

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
	// ErrDuplicate is returned by stores when a unique key (order number,
	// external id, sku) already exists.
	ErrDuplicate = errors.New("duplicate key")
	// ErrNegativeStock is returned by stores when an adjustment would take
	// stock below zero.
	ErrNegativeStock = errors.New("stock cannot go negative")
)

// ValidationError rejects a malformed candidate before any transaction opens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ProductNotFoundError names the line item that referenced a missing product.
// Line is the zero-based index of the item, -1 outside order creation.
type ProductNotFoundError struct {
	ProductID string
	Line      int
}

func (e *ProductNotFoundError) Error() string {
	if e.Line < 0 {
		return fmt.Sprintf("product not found: %s", e.ProductID)
	}
	return fmt.Sprintf("line %d: product not found: %s", e.Line, e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool { return target == ErrProductNotFound }

type InsufficientStockError struct {
	ProductID string
	Name      string
	Line      int
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s, requested: %d, available: %d", e.Name, e.Requested, e.Available)
}

type InvalidTransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s cannot move from %s to %s", e.OrderID, e.From, e.To)
}

// PersistenceError wraps a storage failure. Retryable is set for transaction
// conflicts where re-running the whole operation may succeed.
type PersistenceError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a storage conflict worth retrying.
func IsRetryable(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe) && pe.Retryable
}

// asPersistence leaves domain errors untouched and wraps everything else.
func asPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		pe  *PersistenceError
		ve  *ValidationError
		pnf *ProductNotFoundError
		ise *InsufficientStockError
		ite *InvalidTransitionError
	)
	switch {
	case errors.As(err, &pe), errors.As(err, &ve), errors.As(err, &pnf),
		errors.As(err, &ise), errors.As(err, &ite),
		errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrProductNotFound):
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
