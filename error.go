package match

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParam = errors.New("the param is invalid")
	ErrNotFound     = errors.New("not found")
	ErrInvariant    = errors.New("order book invariant violated")
	ErrHalted       = errors.New("order book is halted")
	ErrSuspended    = errors.New("order book is suspended")
	ErrBookFull     = errors.New("order book is full")
	ErrTimeout      = errors.New("timeout")
	ErrShutdown     = errors.New("order book is shutting down")
)

// ValidationError rejects malformed input before the book is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidParam
}

// NotFoundError is returned when a cancel references an order that is not resting.
type NotFoundError struct {
	OrderID uint64
	Reason  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("order %d not found: %s", e.OrderID, e.Reason)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// InvariantViolation reports an impossible book state. The engine halts after returning one.
type InvariantViolation struct {
	Op     string
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation during %s: %s", e.Op, e.Detail)
}

func (e *InvariantViolation) Unwrap() error {
	return ErrInvariant
}

func violation(op string, format string, args ...any) *InvariantViolation {
	return &InvariantViolation{Op: op, Detail: fmt.Sprintf(format, args...)}
}
