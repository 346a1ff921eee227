package protocol

const (
	// Transport validation.
	ErrBadRequest = "E_BAD_REQUEST"
	ErrBusy       = "E_BUSY"

	// Command rejections. State is unchanged when any of these is reported.
	ErrUnknown  = "E_UNKNOWN"
	ErrLocked   = "E_LOCKED"
	ErrFunds    = "E_FUNDS"
	ErrSequence = "E_SEQUENCE"
	ErrMaxLevel = "E_MAX_LEVEL"
	ErrState    = "E_STATE"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest: {},
	ErrBusy:       {},
	ErrUnknown:    {},
	ErrLocked:     {},
	ErrFunds:      {},
	ErrSequence:   {},
	ErrMaxLevel:   {},
	ErrState:      {},
	ErrInternal:   {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
