package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Slot routing and admission.
	ErrSlotNotFound = "E_SLOT_NOT_FOUND"
	ErrNotInLobby   = "E_NOT_IN_LOBBY"
	ErrLobbyFull    = "E_LOBBY_FULL"
	ErrSeatTaken    = "E_SEAT_TAKEN"

	// In-match action layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrUnknownPlayer = "E_UNKNOWN_PLAYER"
	ErrPlayerDead    = "E_PLAYER_DEAD"
	ErrMatchInactive = "E_MATCH_INACTIVE"
	ErrMatchBusy     = "E_MATCH_BUSY"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrSlotNotFound:    {},
	ErrNotInLobby:      {},
	ErrLobbyFull:       {},
	ErrSeatTaken:       {},
	ErrBadRequest:      {},
	ErrUnknownPlayer:   {},
	ErrPlayerDead:      {},
	ErrMatchInactive:   {},
	ErrMatchBusy:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
