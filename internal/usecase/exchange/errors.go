package exchange

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOrder     = errors.New("invalid order")
	ErrUnknownPair      = errors.New("unknown pair")
	ErrUnknownTimeframe = errors.New("unknown timeframe")
	ErrClosed           = errors.New("exchange is closed")
)

// InvalidOrderError is returned for every rejected PlaceOrder call. It
// matches ErrInvalidOrder and unwraps to Err when there is a more specific
// cause.
type InvalidOrderError struct {
	Field  string
	Reason string
	Err    error
}

func (e *InvalidOrderError) Error() string {
	return fmt.Sprintf("invalid order: %s %s", e.Field, e.Reason)
}

func (e *InvalidOrderError) Is(target error) bool {
	return target == ErrInvalidOrder
}

func (e *InvalidOrderError) Unwrap() error {
	return e.Err
}

func invalid(field, reason string) error {
	return &InvalidOrderError{Field: field, Reason: reason}
}
