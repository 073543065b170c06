package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrMissingReference = errors.New("missing_reference")
	ErrUserNotFound     = errors.New("user_not_found")
	ErrUnknownKind      = errors.New("unknown_event_kind")
)

// StoreError wraps a persistence failure with the store operation that
// raised it.
type StoreError struct {
	Op  string
	Err error
}

func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NotificationError is raised by confirmation delivery. It never fails the
// reconciliation that triggered it.
type NotificationError struct {
	Template string
	Err      error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification %s: %v", e.Template, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// ErrorCode returns a stable snake_case code for logs and metric labels.
func ErrorCode(err error) string {
	var storeErr *StoreError
	var notifyErr *NotificationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidSignature):
		return ErrInvalidSignature.Error()
	case errors.Is(err, ErrInvalidPayload):
		return ErrInvalidPayload.Error()
	case errors.Is(err, ErrMissingReference):
		return ErrMissingReference.Error()
	case errors.Is(err, ErrUserNotFound):
		return ErrUserNotFound.Error()
	case errors.Is(err, ErrUnknownKind):
		return ErrUnknownKind.Error()
	case errors.As(err, &storeErr):
		return "store_error"
	case errors.As(err, &notifyErr):
		return "notification_error"
	default:
		return "internal_error"
	}
}
