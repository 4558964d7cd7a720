package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies allocation and proof failures.
type ErrorKind string

const (
	KindInvalidAddress     ErrorKind = "InvalidAddress"
	KindInvalidAmount      ErrorKind = "InvalidAmount"
	KindAmountOverflow     ErrorKind = "AmountOverflow"
	KindZeroAmount         ErrorKind = "ZeroAmount"
	KindDuplicateAddress   ErrorKind = "DuplicateAddress"
	KindEmptyAllocationSet ErrorKind = "EmptyAllocationSet"
	KindMalformedProof     ErrorKind = "MalformedProof"
	KindSupplyExceeded     ErrorKind = "SupplyExceeded"
)

func (k ErrorKind) String() string {
	return string(k)
}

// Error is the error type returned for invalid allocations and malformed proofs.
// A bare Error{Kind: k} acts as a sentinel: errors.Is matches any Error of the same kind.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

var (
	ErrInvalidAddress     = &Error{Kind: KindInvalidAddress}
	ErrInvalidAmount      = &Error{Kind: KindInvalidAmount}
	ErrAmountOverflow     = &Error{Kind: KindAmountOverflow}
	ErrZeroAmount         = &Error{Kind: KindZeroAmount}
	ErrDuplicateAddress   = &Error{Kind: KindDuplicateAddress}
	ErrEmptyAllocationSet = &Error{Kind: KindEmptyAllocationSet}
	ErrMalformedProof     = &Error{Kind: KindMalformedProof}
	ErrSupplyExceeded     = &Error{Kind: KindSupplyExceeded}
)

// NewError returns an Error of the given kind with a formatted message.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError returns an Error of the given kind wrapping cause.
func WrapError(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Msg == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the ErrorKind carried by err, or "" if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
