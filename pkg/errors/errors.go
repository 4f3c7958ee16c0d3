package errors

import (
	"errors"
	"fmt"
)

// Configuration and input errors

var (
	// ErrInvalidReserveConfig indicates reserve risk parameters are inconsistent
	// (threshold below LTV, negative bonus, non-positive price)
	ErrInvalidReserveConfig = errors.New("invalid reserve configuration")

	// ErrInvalidScenarioConfig indicates scenario parameters are unusable
	ErrInvalidScenarioConfig = errors.New("invalid scenario configuration")

	// ErrMalformedPosition indicates a position carries negative balances
	ErrMalformedPosition = errors.New("malformed position")

	// ErrReserveNotFound indicates a position references an unknown reserve
	ErrReserveNotFound = errors.New("reserve not found")
)

// Cascade errors and reported conditions

var (
	// ErrMarketIlliquid indicates a reserve's market depth is exhausted and
	// further sales cannot execute
	ErrMarketIlliquid = errors.New("market depth exhausted")

	// ErrCascadeDiverged indicates the cascade hit the pass cap without
	// reaching a stable state
	ErrCascadeDiverged = errors.New("cascade did not converge")

	// ErrPositionHealthy indicates a liquidation was requested for a position
	// that is not liquidatable at current prices
	ErrPositionHealthy = errors.New("position is not liquidatable")
)

// Infrastructure errors

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrUnavailable indicates a backing service is unavailable
	ErrUnavailable = errors.New("service unavailable")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")
)

// ValidationError carries field-level detail for setup validation failures
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
