package errors

import (
	"fmt"
	"strings"
)

// FieldValidationError describes a single schema violation on a named field.
type FieldValidationError struct {
	FieldName string
	FieldVal  interface{}
	Rule      string
	Message   string
}

// Error implements the error interface.
func (e *FieldValidationError) Error() string {
	return fmt.Sprintf("field %q: %s", e.FieldName, e.Message)
}

// NewFieldValidationError creates a field-level validation error.
func NewFieldValidationError(field string, value interface{}, rule, message string) *FieldValidationError {
	return &FieldValidationError{
		FieldName: field,
		FieldVal:  value,
		Rule:      rule,
		Message:   message,
	}
}

// ValidationErrorCollection accumulates field errors so callers can render
// per-field feedback instead of failing on the first violation.
type ValidationErrorCollection struct {
	Errors []*FieldValidationError
}

// Error implements the error interface.
func (c *ValidationErrorCollection) Error() string {
	if len(c.Errors) == 0 {
		return "no validation errors"
	}

	msgs := make([]string, 0, len(c.Errors))
	for _, e := range c.Errors {
		msgs = append(msgs, e.Error())
	}

	return strings.Join(msgs, "; ")
}

// Add appends a field error to the collection.
func (c *ValidationErrorCollection) Add(err *FieldValidationError) {
	c.Errors = append(c.Errors, err)
}

// AddField creates and appends a field error in one call.
func (c *ValidationErrorCollection) AddField(field string, value interface{}, rule, message string) {
	c.Add(NewFieldValidationError(field, value, rule, message))
}

// HasErrors reports whether any violation was recorded.
func (c *ValidationErrorCollection) HasErrors() bool {
	return len(c.Errors) > 0
}

// Messages returns the violation messages in insertion order.
func (c *ValidationErrorCollection) Messages() []string {
	msgs := make([]string, 0, len(c.Errors))
	for _, e := range c.Errors {
		msgs = append(msgs, e.Error())
	}

	return msgs
}

// ToGuardError converts the collection into a single validation GuardError.
func (c *ValidationErrorCollection) ToGuardError() *GuardError {
	return NewValidationError("FIELD_VALIDATION", c.Error()).
		WithContext("violations", len(c.Errors))
}
