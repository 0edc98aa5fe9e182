package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeHandshake   = "handshake_failed"
	ErrCodeInvalid     = "invalid_message"
	ErrCodePersistence = "persistence_failed"
	ErrCodeDelivery    = "delivery_failed"
)

var (
	// ErrHandshake marks a rejected join request. The connection is closed.
	ErrHandshake = errors.New("handshake failed")
	// ErrValidation marks a dropped steady-state payload. The session stays active.
	ErrValidation = errors.New("invalid message")
	// ErrPersistence marks a store failure during join, save or history fetch.
	ErrPersistence = errors.New("persistence failed")
	// ErrDelivery marks a failed write to one recipient.
	ErrDelivery = errors.New("delivery failed")

	// ErrSessionClosed is returned when delivering to a session that has ended.
	ErrSessionClosed = errors.New("session closed")
	// ErrOutboxFull is returned when a recipient is too slow to keep up.
	ErrOutboxFull = errors.New("outbox full")
)

// CoreError wraps a code, a human-readable message and the cause.
type CoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes both the taxonomy sentinel and the cause to errors.Is.
func (e *CoreError) Unwrap() []error {
	errs := []error{sentinelFor(e.Code)}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func sentinelFor(code string) error {
	switch code {
	case ErrCodeHandshake:
		return ErrHandshake
	case ErrCodeInvalid:
		return ErrValidation
	case ErrCodePersistence:
		return ErrPersistence
	default:
		return ErrDelivery
	}
}

func coreError(code, msg string, err error) *CoreError {
	return &CoreError{Code: code, Message: msg, Err: err}
}
