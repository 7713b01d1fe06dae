// Package txerr defines the error taxonomy shared by every chain builder.
//
// Input problems (bad addresses, malformed wire data, insufficient balance) are
// returned as sentinel errors or *DecodeError and are always recoverable by the
// caller. Arithmetic invariant violations are internal logic bugs and are
// surfaced as *InvariantError so they can be told apart from user errors.
package txerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrFeeOutOfBounds           = errors.New("fee out of bounds")
	ErrNoSpendableOutput        = errors.New("no spendable output")
	ErrInvalidAddress           = errors.New("invalid address")
	ErrRecoveryIDNotFound       = errors.New("recovery id not found")
	ErrUnsupportedSigningMethod = errors.New("unsupported signing method")
	ErrFeeNotConverged          = errors.New("fee estimate did not converge")
	ErrTxTooLarge               = errors.New("transaction too large")
	ErrAmountBelowMinimum       = errors.New("amount below minimum")
	ErrSignatureMismatch        = errors.New("signature does not match public key")
	ErrInvalidSignatureLength   = errors.New("invalid signature length")
	ErrChecksumMismatch         = errors.New("checksum mismatch")
	ErrInvalidState             = errors.New("invalid operation state")
	ErrInvalidPublicKey         = errors.New("invalid public key")
)

// DecodeError reports malformed untrusted input in a given wire format.
type DecodeError struct {
	Format string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decode %s: %s", e.Format, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewDecodeError builds a *DecodeError. err may be nil.
func NewDecodeError(format, reason string, err error) error {
	return &DecodeError{Format: format, Reason: reason, Err: err}
}

// IsDecodeError reports whether err wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// InvariantError is returned when a computed value breaks a monetary invariant
// (negative change, inputs not covering outputs, ...). It always indicates a bug.
type InvariantError struct {
	What   string
	Values map[string]int64
}

func (e *InvariantError) Error() string {
	keys := make([]string, 0, len(e.Values))
	for k := range e.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, e.Values[k]))
	}
	return fmt.Sprintf("invariant violated: %s (%s)", e.What, strings.Join(parts, ", "))
}

// Invariant builds an *InvariantError.
func Invariant(what string, values map[string]int64) error {
	return &InvariantError{What: what, Values: values}
}

// IsInvariant reports whether err wraps an *InvariantError.
func IsInvariant(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
