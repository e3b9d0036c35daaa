package core

import "errors"

// Business-rule failures. These are recovered inside the facade and the
// transaction service and surface to callers as false/empty results,
// never as hard errors. Store-level failures, pool exhaustion, and
// rollback failures propagate as wrapped errors instead.
var (
	// ErrAccountNotFound marks an operation against an unknown account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrCustomerNotFound marks an operation against an unknown customer.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrInsufficientFunds marks a withdrawal or transfer that would
	// drive a non-negative account below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateID marks an insert that collided with an existing
	// identifier.
	ErrDuplicateID = errors.New("duplicate identifier")
)

// isBusinessErr reports whether err is an expected business outcome
// rather than an infrastructure fault.
func isBusinessErr(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrDuplicateID)
}
