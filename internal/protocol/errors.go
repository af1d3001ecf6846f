package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// World routing/state.
	ErrWorldBusy     = "E_WORLD_BUSY"
	ErrWorldNotFound = "E_WORLD_NOT_FOUND"

	// Command layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrUnknownCmd    = "E_UNKNOWN_COMMAND"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrNotLoaded     = "E_NOT_LOADED"
	ErrConflict      = "E_CONFLICT"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrWorldBusy:       {},
	ErrWorldNotFound:   {},
	ErrBadRequest:      {},
	ErrUnknownCmd:      {},
	ErrInvalidTarget:   {},
	ErrNotLoaded:       {},
	ErrConflict:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// Retryable reports whether a command that failed with code may succeed
// unchanged on a later attempt.
func Retryable(code string) bool {
	return code == ErrWorldBusy || code == ErrNotLoaded
}
