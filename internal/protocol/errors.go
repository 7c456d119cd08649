package protocol

import (
	"errors"

	"guildcorp.gg/internal/game"
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Request layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNotFound      = "E_NOT_FOUND"
	ErrStateConflict = "E_STATE_CONFLICT"
	ErrNoFunds       = "E_NO_FUNDS"
	ErrCapacity      = "E_CAPACITY"
	ErrInvariant     = "E_INVARIANT"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrNotFound:        {},
	ErrStateConflict:   {},
	ErrNoFunds:         {},
	ErrCapacity:        {},
	ErrInvariant:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeForError maps a domain error onto its wire code. Anything unrecognized
// is E_INTERNAL so internals never leak through the boundary.
func CodeForError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, game.ErrValidation):
		return ErrBadRequest
	case errors.Is(err, game.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, game.ErrState):
		return ErrStateConflict
	case errors.Is(err, game.ErrInsufficient):
		return ErrNoFunds
	case errors.Is(err, game.ErrCapacity):
		return ErrCapacity
	case errors.Is(err, game.ErrInvariant):
		return ErrInvariant
	default:
		return ErrInternal
	}
}
