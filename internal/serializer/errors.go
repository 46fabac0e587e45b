package serializer

import "fmt"

// UnknownFieldError is returned when input names a field the serializer does not know.
type UnknownFieldError struct {
	Model string
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field '%s' for %s", e.Field, e.Model)
}

// ValueCoercionError is returned when a raw value cannot be converted for a field.
type ValueCoercionError struct {
	Field string
	Value any
	Err   error
}

func (e *ValueCoercionError) Error() string {
	return fmt.Sprintf("field '%s': invalid value %#v: %v", e.Field, e.Value, e.Err)
}

func (e *ValueCoercionError) Unwrap() error { return e.Err }

// PrimaryKeyMismatchError is returned when a nested payload carries a primary key
// different from the nested entity being updated.
type PrimaryKeyMismatchError struct {
	Model string
	Field string
	Want  any
	Got   any
}

func (e *PrimaryKeyMismatchError) Error() string {
	return fmt.Sprintf("%s.%s: primary key %v does not match the related entity %v", e.Model, e.Field, e.Got, e.Want)
}
