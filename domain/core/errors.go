package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input-insufficiency errors
	ErrInsufficientData = errors.New("insufficient data for analysis")

	// Unidentifiable-model errors
	ErrUnidentified         = errors.New("model is not identified")
	ErrDegenerateCovariance = errors.New("degenerate covariance estimate")

	// Data-shape errors
	ErrMissingColumn          = errors.New("missing required column")
	ErrInterventionOutOfRange = errors.New("intervention time outside observed range")
	ErrUnknownUnit            = errors.New("unknown unit")
	ErrInvalidInput           = errors.New("invalid input")
)

// Error constructors with context
func NewInsufficientDataError(what string, have, need int) error {
	return fmt.Errorf("%w: %s (have %d, need %d)", ErrInsufficientData, what, have, need)
}

func NewUnidentifiedError(reason string) error {
	return fmt.Errorf("%w: %s", ErrUnidentified, reason)
}

func NewMissingColumnError(column string) error {
	return fmt.Errorf("%w: %s", ErrMissingColumn, column)
}

func NewInterventionError(intervention, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInterventionOutOfRange, intervention, reason)
}

func NewUnknownUnitError(unit string) error {
	return fmt.Errorf("%w: %s", ErrUnknownUnit, unit)
}

func NewInvalidInputError(field, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInput, field, reason)
}

// Error checking helpers
func IsInputInsufficiency(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsUnidentifiable(err error) bool {
	return errors.Is(err, ErrUnidentified) ||
		errors.Is(err, ErrDegenerateCovariance)
}

func IsDataShape(err error) bool {
	return errors.Is(err, ErrMissingColumn) ||
		errors.Is(err, ErrInterventionOutOfRange) ||
		errors.Is(err, ErrUnknownUnit) ||
		errors.Is(err, ErrInvalidInput)
}
