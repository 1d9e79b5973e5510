// Package repository implements the booking ledger over MySQL and
// defines the domain error taxonomy shared with the service layer.
// Sentinel values let handlers map failures onto stable HTTP responses
// without inspecting storage internals: constraint violations detected
// at write time surface as the same sentinels as pre-check failures.
package repository

import "errors"

// ErrValidation reports a malformed request shape or seat format.
// Handlers translate it into HTTP 400.
var ErrValidation = errors.New("validation failed")

// ErrSeatBlocked is returned when the requested seat lies in the
// permanently excluded range, regardless of ledger state.
var ErrSeatBlocked = errors.New("seat is blocked")

// ErrSeatTaken is returned when the requested seat is already held by
// another student record, whether caught by the pre-check or by the
// unique constraint at write time.
var ErrSeatTaken = errors.New("seat already booked")

// ErrDuplicateBooking is returned when the email address already has a
// confirmed booking.
var ErrDuplicateBooking = errors.New("email already has a booking")

// ErrInvalidState is returned when an action is not valid for the
// booking's current status, such as resending a ticket for a booking
// that was never confirmed.
var ErrInvalidState = errors.New("booking is not in a valid state for this action")

// ErrVerification is returned when the submitted verification code
// does not match, or no pending booking exists for the address.
var ErrVerification = errors.New("invalid verification code or email")

// ErrNotFound is returned when no booking exists for the given
// reference.  Handlers translate it into HTTP 404.
var ErrNotFound = errors.New("booking not found")

// ErrReferenceTaken signals a collision on the reference column.  It
// never leaves the service layer: the orchestrator retries with a
// fresh sequence read and falls back to a random reference.
var ErrReferenceTaken = errors.New("reference already in use")
