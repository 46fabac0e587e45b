package query

import "fmt"

// UnknownOperatorError is returned for an operator outside the supported set.
type UnknownOperatorError struct {
	Field    string
	Operator string
}

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown operator '%s' for field '%s'", e.Operator, e.Field)
}

// InvalidFilterError is returned for a structurally malformed filter.
type InvalidFilterError struct {
	Field  string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	if e.Field == "" {
		return "invalid filter: " + e.Reason
	}
	return fmt.Sprintf("invalid filter on '%s': %s", e.Field, e.Reason)
}

// InvalidParamError is returned for a query parameter that cannot be parsed.
type InvalidParamError struct {
	Param  string
	Value  string
	Reason string
}

func (e *InvalidParamError) Error() string {
	return fmt.Sprintf("invalid %s '%s': %s", e.Param, e.Value, e.Reason)
}
