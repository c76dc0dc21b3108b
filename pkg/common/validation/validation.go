package validation

import (
	"fmt"
	"time"

	rserrors "github.com/vnykmshr/rateshield/pkg/common/errors"
)

// ValidatePositive validates that an integer value is positive (> 0).
// Returns a ValidationError if the value is not positive.
func ValidatePositive(module, field string, value int) error {
	if value <= 0 {
		return rserrors.NewValidationError(module, field, value, "must be positive").
			WithHint("value must be greater than 0")
	}
	return nil
}

// ValidateNonNegative validates that a numeric value is non-negative (>= 0).
// Returns a ValidationError if the value is negative.
func ValidateNonNegative(module, field string, value float64) error {
	if value < 0 {
		return rserrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 or a positive value")
	}
	return nil
}

// ValidatePositiveDuration validates that a duration is positive (> 0).
// Returns a ValidationError if the duration is not positive.
func ValidatePositiveDuration(module, field string, value time.Duration) error {
	if value <= 0 {
		return rserrors.NewValidationError(module, field, value, "must be positive").
			WithHint("use a duration greater than 0")
	}
	return nil
}

// ValidateNotNil validates that an interface value is not nil.
// Returns a ValidationError if the value is nil.
func ValidateNotNil(module, field string, value interface{}) error {
	if value == nil {
		return rserrors.NewValidationError(module, field, nil, "cannot be nil").
			WithHint("provide a valid " + field)
	}
	return nil
}

// ValidateNotEmpty validates that a string value is not empty.
// Returns a ValidationError if the string is empty.
func ValidateNotEmpty(module, field string, value string) error {
	if value == "" {
		return rserrors.NewValidationError(module, field, value, "cannot be empty").
			WithHint("provide a non-empty " + field)
	}
	return nil
}

// Range is a sanity bound for fetched values: valid when min < v <= max.
// The lower bound is exclusive so a zero rate or price is always rejected.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v falls within the range.
func (r Range) Contains(v float64) bool {
	return v > r.Min && v <= r.Max
}

// Validate checks v against the range and returns an error wrapping
// ErrInvalidValue when it falls outside.
func (r Range) Validate(module, field string, v float64) error {
	if r.Contains(v) {
		return nil
	}
	return fmt.Errorf("%s: %s=%v outside (%v, %v]: %w",
		module, field, v, r.Min, r.Max, rserrors.ErrInvalidValue)
}
