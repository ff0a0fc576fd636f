package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Common domain errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrConflict         = errors.New("conflict")
	ErrContractTerminal = errors.New("contract is closed")
	ErrActionInProgress = errors.New("another action is in progress")
	ErrWorkflowClosed   = errors.New("workflow closed")
	ErrStaleResponse    = errors.New("response superseded by a newer request")
)

// ValidationError is raised before any network call when a draft cannot
// become a WorkflowAction.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err == nil {
		return ErrInvalidInput
	}
	return e.Err
}

// NewValidationError builds a ValidationError for one field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// RemoteError is a ledger response that was received but reported failure
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("ledger responded %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps well-known statuses onto the common sentinels
func (e *RemoteError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusConflict:
		return ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrInvalidInput
	}
	return nil
}

// TransportError is a network-level failure: no usable response arrived
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline
func (e *TransportError) Timeout() bool {
	var t interface{ Timeout() bool }
	if errors.As(e.Err, &t) {
		return t.Timeout()
	}
	return false
}

// RecoverableFetchError wraps a failed read. The caller keeps whatever it
// displayed before and may retry manually.
type RecoverableFetchError struct {
	Op  string
	Err error
}

func (e *RecoverableFetchError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *RecoverableFetchError) Unwrap() error { return e.Err }

// MutationRejectedError wraps a failed mutating call, whether the ledger
// refused it or the transport failed. Nothing was applied locally.
type MutationRejectedError struct {
	Action ActionKind
	Err    error
}

func (e *MutationRejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %v", e.Action, e.Err)
}

func (e *MutationRejectedError) Unwrap() error { return e.Err }

// UserMessage renders err as the short text shown to the user
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		if ve.Field == "" {
			return ve.Message
		}
		return ve.Field + ": " + ve.Message
	}

	var re *RemoteError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}

	var te *TransportError
	if errors.As(err, &te) {
		if te.Timeout() {
			return "The ledger did not answer in time. Please try again."
		}
		return "Cannot reach the ledger. Check the connection and try again."
	}

	switch {
	case errors.Is(err, ErrActionInProgress):
		return "Another action is still being processed."
	case errors.Is(err, ErrContractTerminal):
		return "This contract is closed and cannot be changed."
	case errors.Is(err, ErrUnauthorized):
		return "Your session has expired. Please sign in again."
	}
	return "Something went wrong. Please try again."
}
