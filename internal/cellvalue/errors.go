package cellvalue

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFieldType is returned for field types without a translator
	ErrUnsupportedFieldType = errors.New("unsupported field type")

	// ErrNotWritable is returned when writing a computed field
	ErrNotWritable = errors.New("field is not writable")

	// ErrNoUploader is returned when attachments must be uploaded without an uploader
	ErrNoUploader = errors.New("no attachment uploader configured")
)

// ParseValueError wraps a translator failure with the field and value that caused it
type ParseValueError struct {
	Field *Field
	Value any
	Err   error
}

func (e *ParseValueError) Error() string {
	return fmt.Sprintf("failed to translate %v for %s: %v", e.Value, e.Field, e.Err)
}

func (e *ParseValueError) Unwrap() error {
	return e.Err
}
