// Package bterr defines the error taxonomy shared across the transaction
// engine. Failures in the categories below are returned as an *Error
// carrying one of the Kind values, so callers can branch on failure class
// without string matching. Lower-level helpers (codec.ReadVarInt,
// chain.ParamsFor) and the config and storage packages return plain errors.
package bterr

import "fmt"

// Kind classifies the reason an engine operation failed.
type Kind string

const (
	InvalidAddress         Kind = "invalid_address"
	InvalidScript          Kind = "invalid_script"
	InvalidWalletDescriptor Kind = "invalid_wallet_descriptor"
	InsufficientFunds      Kind = "insufficient_funds"
	NotEnoughKeys          Kind = "not_enough_keys"
	OracleError            Kind = "oracle_error"
	NetworkError           Kind = "network_error"
	InvalidKeyMaterial     Kind = "invalid_key_material"
)

// Error is the concrete error type raised by this module. It wraps an
// optional underlying cause while keeping the Kind available for callers
// that need to react to specific failure classes.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an *Error that wraps cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
