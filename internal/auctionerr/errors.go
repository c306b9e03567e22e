// Package auctionerr defines the stable error taxonomy surfaced by the
// auction engine. Every error carries a Code so callers can branch on cause
// without depending on message text.
package auctionerr

import (
	"errors"
	"fmt"
	"time"
)

// Code discriminates the kind of failure. Values are stable and must not
// change once released, since clients match on them.
type Code string

const (
	// InvalidOrder covers zero energy, zero price, or an escrow value
	// mismatch on a bid.
	InvalidOrder Code = "INVALID_ORDER"
	// Unauthorized covers a non-owner invoking roll, or a non-seller
	// invoking mark_delivered.
	Unauthorized Code = "UNAUTHORIZED"
	// TooEarly covers a roll invoked before the bucket has lived its
	// full duration.
	TooEarly Code = "TOO_EARLY"
	// InvalidTrade covers mark_delivered with an out-of-range trade_id.
	InvalidTrade Code = "INVALID_TRADE"
	// AlreadySupplied covers mark_delivered on a trade that has already
	// been settled, whether by delivery or by expiry reconciliation.
	AlreadySupplied Code = "ALREADY_SUPPLIED"
	// LedgerFailure covers a failed transfer to a participant. Fatal to
	// the containing operation: its order book and bucket state changes
	// are not applied. Transfers that completed before the failing one are
	// not reversed; a retried roll resumes after them.
	LedgerFailure Code = "LEDGER_FAILURE"
	// NotFound covers a read for a bucket_id or index outside the
	// engine's defined domain, e.g. a purged offer list. Not part of
	// the mutating-operation taxonomy in spec §7, but required by §6's
	// "must fail with a lookup error" rule for getters.
	NotFound Code = "NOT_FOUND"
	// RollInProgress covers a bid or ask submitted against a bucket that
	// a prior roll attempt partially paid out before a ledger failure;
	// new orders are rejected until the roll is retried to completion so
	// the retried plan's ops still line up with what was already paid.
	RollInProgress Code = "ROLL_IN_PROGRESS"
)

// Error is the structured error returned by every engine operation.
type Error struct {
	Code      Code
	Message   string
	Cause     error
	Timestamp time.Time
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error with no cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Timestamp: time.Now()}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a cause to a new Error. Returns nil if err is nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err, Timestamp: time.Now()}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *Error {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the Code from err, or "" if err is not (or does not wrap)
// an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
