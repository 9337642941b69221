package models

import "errors"

var (
	// ErrUserNotFound is returned when no ledger user exists for an address.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicatePayment is returned when a transaction hash was already credited.
	ErrDuplicatePayment = errors.New("payment already recorded")
)
