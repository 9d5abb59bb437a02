package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrBadRequest        = errors.New("bad request")
	ErrDuplicate         = errors.New("duplicate notification")
	ErrUnsupportedMethod = errors.New("unsupported payment method")
)

// AuthenticationError reports a notification whose security hash did not match.
// It is fatal for the request: nothing may be read or written after it.
type AuthenticationError struct {
	SourceAddress string
	TransactionID string
	Reason        string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("invalid response hash from %s for transaction %q: %s", e.SourceAddress, e.TransactionID, e.Reason)
}

// Unwrap lets callers match with errors.Is(err, ErrUnauthorized).
func (e *AuthenticationError) Unwrap() error { return ErrUnauthorized }

// ClassificationError reports a notification whose outcome flags are absent or contradictory.
type ClassificationError struct {
	TransactionID string
	Reason        string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("cannot classify notification for transaction %q: %s", e.TransactionID, e.Reason)
}

func (e *ClassificationError) Unwrap() error { return ErrBadRequest }

// FollowUpDispatchError reports a failed registration follow-up debit. Code holds the
// processor's return code when the processor answered, and is empty on transport failures.
type FollowUpDispatchError struct {
	OrderID string
	Code    string
	Message string
	Err     error
}

func (e *FollowUpDispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("follow-up debit for order %s failed: %v", e.OrderID, e.Err)
	}
	return fmt.Sprintf("follow-up debit for order %s rejected: %s %s", e.OrderID, e.Code, e.Message)
}

func (e *FollowUpDispatchError) Unwrap() error { return e.Err }
