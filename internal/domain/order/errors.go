package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for lifecycle operations.
var (
	// ErrNotFound is returned when an order identifier does not resolve.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyItems is returned when an order is created or updated with no
	// line items.
	ErrEmptyItems = errors.New("order items required")
	// ErrDuplicateOrderNumber is surfaced when the store reports a
	// uniqueness violation on the generated order number. The service does
	// not retry; retry policy belongs to the caller.
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
	// ErrConcurrencyConflict is surfaced when an optimistic write lost the
	// race against a concurrent mutation. The operation is retryable.
	ErrConcurrencyConflict = errors.New("order was modified concurrently")
	// ErrNotEditable is returned when order fields are updated after the
	// order moved past the confirmed state.
	ErrNotEditable = errors.New("order can only be modified while pending or confirmed")
)

// ValidationError reports malformed non-monetary input, carrying the exact
// field that failed. Monetary and quantity violations carry their own typed
// errors from the money package.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// TransitionError reports a status change the state machine does not allow.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}
