// Package util provides the shared logger and the error taxonomy used across
// the reconciliation engine.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every typed error below unwraps to one of these so callers
// can classify failures with errors.Is.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrPreconditionFailed = errors.New("precondition not met")
	ErrValidationFailed   = errors.New("validation failed")
	ErrInUse              = errors.New("resource in use")
	ErrMalformedRange     = errors.New("malformed range")
	ErrParse              = errors.New("parse error")
	ErrTransport          = errors.New("transport failure")
	ErrUnknownProfile     = errors.New("unknown vendor profile")
	ErrDrift              = errors.New("device state differs from desired state")
)

// PreconditionError represents a failed precondition check with context.
// It is always raised before any command reaches the device.
type PreconditionError struct {
	Operation    string
	Resource     string
	Precondition string
	Details      string
}

func (e *PreconditionError) Error() string {
	msg := fmt.Sprintf("precondition failed for %s on %s: %s", e.Operation, e.Resource, e.Precondition)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (e *PreconditionError) Unwrap() error {
	return ErrPreconditionFailed
}

// NewPreconditionError creates a new precondition error
func NewPreconditionError(operation, resource, precondition, details string) *PreconditionError {
	return &PreconditionError{
		Operation:    operation,
		Resource:     resource,
		Precondition: precondition,
		Details:      details,
	}
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder accumulates validation messages.
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddErrorf adds a formatted error message unconditionally
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// InUseError represents a resource that cannot be removed because other
// configuration still references it.
type InUseError struct {
	Resource string
	UsedBy   []string
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("%s is in use by: %s", e.Resource, strings.Join(e.UsedBy, ", "))
}

func (e *InUseError) Unwrap() error {
	return ErrInUse
}

// NewInUseError creates an in-use error
func NewInUseError(resource string, usedBy ...string) *InUseError {
	return &InUseError{
		Resource: resource,
		UsedBy:   usedBy,
	}
}

// RangeError reports range text that violates the range grammar.
type RangeError struct {
	Text   string
	Token  string
	Reason string
}

func (e *RangeError) Error() string {
	if e.Token != "" && e.Token != e.Text {
		return fmt.Sprintf("malformed range %q: token %q: %s", e.Text, e.Token, e.Reason)
	}
	return fmt.Sprintf("malformed range %q: %s", e.Text, e.Reason)
}

func (e *RangeError) Unwrap() error {
	return ErrMalformedRange
}

// NewRangeError creates a malformed range error
func NewRangeError(text, token, reason string) *RangeError {
	return &RangeError{Text: text, Token: token, Reason: reason}
}

// ParseError reports a pattern that matched but whose captured text could not
// be converted to the declared attribute type. A pattern that does not match
// at all is never a ParseError.
type ParseError struct {
	Attribute string
	Input     string
	Type      string
	Err       error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parsing %q as %s", e.Input, e.Type)
	if e.Attribute != "" {
		msg = e.Attribute + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is lets errors.Is match both ErrParse and the underlying cause.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a parse error
func NewParseError(attribute, input, typ string, err error) *ParseError {
	return &ParseError{Attribute: attribute, Input: input, Type: typ, Err: err}
}

// DriftError reports the attributes a read-after-write found different
// from what was applied.
type DriftError struct {
	Entity string
	Attrs  []string
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("%s: after write, attributes differ from desired state: %s", e.Entity, strings.Join(e.Attrs, ", "))
}

func (e *DriftError) Unwrap() error {
	return ErrDrift
}

// NewDriftError creates a drift error
func NewDriftError(entity string, attrs ...string) *DriftError {
	return &DriftError{Entity: entity, Attrs: attrs}
}
