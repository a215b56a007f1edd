package core

import "errors"

// Error kinds for the ledger surface. Services wrap these with fmt.Errorf
// and %w so callers can classify failures with errors.Is while the message
// stays human-readable.
var (
	// ErrNotFound: a referenced rule, company, reconciliation, payment or
	// order does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput: malformed request data, e.g. a non-positive payment
	// amount or an unparseable date.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidOperation: the request is well-formed but would violate a
	// monetary invariant: overpayment against a reconciliation, a refund
	// exceeding the captured amount, a payment against a REJECTED statement.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrInvalidState: the target is in a lifecycle state that does not
	// admit the operation, e.g. refunding a payment that never completed.
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict: concurrent or duplicate modification detected, e.g. a
	// second ledger entry for the same order or a reused transaction
	// reference.
	ErrConflict = errors.New("conflict")
)
