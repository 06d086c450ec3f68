package fees

import (
	"errors"
	"fmt"

	"rentspace/internal/domain/shared/money"
)

var (
	// ErrValidation marks caller mistakes: fatal to the call, never retryable.
	ErrValidation = errors.New("fees: validation failed")
	// ErrConfiguration marks an incomplete fee table for a supported jurisdiction.
	ErrConfiguration = errors.New("fees: configuration error")

	ErrProvinceRequired = &ValidationError{Field: "province", Reason: "province code is required for Canadian CAD bookings"}
)

// ValidationError describes a rejected input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("fees: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	other, ok := target.(*ValidationError)
	return ok && other.Field == e.Field && other.Reason == e.Reason
}

// ConfigurationError reports a missing schedule or tax rate.
type ConfigurationError struct {
	Currency money.Currency
	Region   Region
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("fees: no usable schedule for %s/%s: %s", e.Currency, e.Region, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
