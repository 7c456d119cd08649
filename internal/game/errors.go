package game

import "errors"

// Error kinds for the domain layer. Services wrap these with %w and context;
// the transport boundary maps them to protocol error codes.
var (
	ErrValidation   = errors.New("invalid argument")
	ErrNotFound     = errors.New("not found")
	ErrState        = errors.New("operation invalid for current state")
	ErrInsufficient = errors.New("insufficient resources")
	ErrCapacity     = errors.New("capacity exceeded")
	ErrInvariant    = errors.New("invariant violation")
)
