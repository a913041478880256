package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every missing product or recipe error.
	ErrNotFound = errors.New("not found")
	// ErrConflict means the product changed between read and write.
	ErrConflict = errors.New("product was modified concurrently")
	// ErrDuplicateBarcode is returned when creating a product whose barcode
	// is already taken.
	ErrDuplicateBarcode = errors.New("barcode already in use")
)

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func productNotFound(id uint) error {
	return &NotFoundError{Entity: "Product", ID: id}
}

// ValidationError rejects input that violates a store precondition.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// TransactionError wraps a failure that aborted a transaction. Nothing the
// transaction wrote was committed.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: transaction aborted: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// wrapTx leaves domain errors alone and wraps everything else.
func wrapTx(op string, err error) error {
	if err == nil {
		return nil
	}
	var v *ValidationError
	if errors.As(err, &v) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateBarcode) {
		return err
	}
	return &TransactionError{Op: op, Err: err}
}

func failureKind(err error) string {
	var v *ValidationError
	switch {
	case errors.As(err, &v):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "transaction"
	}
}
