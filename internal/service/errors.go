package service

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigMissing means the company has no active BOM configuration.
	ErrConfigMissing = errors.New("ZNS Configuration not found")
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrRemote        = errors.New("BOM API call failed")
)

// inputError carries an operator-facing message and matches ErrValidation.
type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func (e *inputError) Is(target error) bool { return target == ErrValidation }

func validationError(format string, args ...any) error {
	return &inputError{msg: fmt.Sprintf(format, args...)}
}

func notFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}
