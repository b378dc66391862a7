package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a unique constraint was violated on insert.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation indicates a user-correctable bad request.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState indicates a purchase state transition that the state
	// machine does not allow.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrForbidden indicates the purchase grants no entitlement (not
	// completed, or refunded).
	ErrForbidden = errors.New("forbidden")
	// ErrExpired indicates the download window has closed.
	ErrExpired = errors.New("download link expired")
	// ErrLimitExceeded indicates the download cap has been reached.
	ErrLimitExceeded = errors.New("download limit exceeded")
	// ErrGateway indicates a payment provider failure.
	ErrGateway = errors.New("payment gateway error")
	// ErrNotification indicates an email provider failure. It never rolls
	// back a completed purchase.
	ErrNotification = errors.New("notification error")
)
