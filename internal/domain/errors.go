package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownQuery signals a query name with no registered descriptor.
	ErrUnknownQuery = errors.New("unknown query")
	// ErrUnknownFacetSet signals a facet set name with no configuration.
	ErrUnknownFacetSet = errors.New("unknown facet set")
	// ErrUnknownShape signals a descriptor with an unsupported query shape.
	ErrUnknownShape = errors.New("unknown query shape")
	// ErrUnknownResult signals a descriptor with an unsupported result kind.
	ErrUnknownResult = errors.New("unknown result kind")
	// ErrInvalidShape signals a malformed output shape.
	ErrInvalidShape = errors.New("invalid output shape")
	// ErrInvalidArgument signals an argument the engine cannot translate.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrMissingField signals a hit without a field the result requires.
	ErrMissingField = errors.New("missing field")
	// ErrInvalidDescriptor signals a descriptor that failed validation.
	ErrInvalidDescriptor = errors.New("invalid descriptor")
)

// FieldError attaches the offending field name to a domain error.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Field)
}

func (e *FieldError) Unwrap() error { return e.Err }

// NewFieldError wraps err with the field name.
func NewFieldError(field string, err error) error {
	return &FieldError{Field: field, Err: err}
}
