package util

import (
	"fmt"
	"net/http"
)

// Issue is a single client-visible problem. Field is nil when the problem is not tied
// to an input attribute.
type Issue struct {
	Field   *string `json:"field"`
	Message string  `json:"message"`
}

// NewIssue builds an issue bound to a field. An empty field yields a nil Field.
func NewIssue(field, message string) Issue {
	if field == "" {
		return Issue{Message: message}
	}
	f := field
	return Issue{Field: &f, Message: message}
}

// FieldName returns the issue field or "" when unset.
func (i Issue) FieldName() string {
	if i.Field == nil {
		return ""
	}
	return *i.Field
}

// DomainError is an application-raised condition carrying its own status.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Field      string
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status}
}

// WithField binds the error to an input attribute.
func (e *DomainError) WithField(field string) *DomainError {
	e.Field = field
	return e
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized)
}

func NewTooManyRequests(message string) error {
	return NewDomainError("RATE_LIMITED", message, http.StatusTooManyRequests)
}

// NewInternalError hides err behind the generic message while keeping it for logs.
func NewInternalError(message string, err error) error {
	if message == "" {
		message = MsgInternal
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MalformedPayloadError reports a request body that could not be decoded.
type MalformedPayloadError struct {
	Err error
}

func (e *MalformedPayloadError) Error() string {
	if e.Err != nil {
		return "malformed payload: " + e.Err.Error()
	}
	return "malformed payload"
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

func NewMalformedPayload(err error) error {
	return &MalformedPayloadError{Err: err}
}

// ValidationError carries every schema violation found in a request.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d issue(s)", len(e.Issues))
}

// ConflictError reports a uniqueness violation on Field.
type ConflictError struct {
	Field string
	Err   error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

func (e *ConflictError) Unwrap() error { return e.Err }

func NewConflict(field string, err error) error {
	return &ConflictError{Field: field, Err: err}
}

// RecordValidationError is raised by a store refusing a record.
type RecordValidationError struct {
	Issues []Issue
	Err    error
}

func (e *RecordValidationError) Error() string {
	return fmt.Sprintf("record validation failed: %d issue(s)", len(e.Issues))
}

func (e *RecordValidationError) Unwrap() error { return e.Err }

// InvalidIDError reports an identifier with the wrong shape for a lookup.
type InvalidIDError struct {
	Field string
	Value string
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid %s format: %q", e.fieldName(), e.Value)
}

func (e *InvalidIDError) fieldName() string {
	if e.Field == "" {
		return "id"
	}
	return e.Field
}

func NewInvalidID(field, value string) error {
	return &InvalidIDError{Field: field, Value: value}
}

// StoreUnavailableError wraps a failure to reach a backing store.
type StoreUnavailableError struct {
	Store string
	Err   error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Store, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

func NewStoreUnavailable(store string, err error) error {
	return &StoreUnavailableError{Store: store, Err: err}
}
