package protocol

import "encoding/json"

const Version = "1.0"

// Handshake.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
)

// Commands (presentation -> engine).
const (
	TypeStart           = "START"
	TypeStop            = "STOP"
	TypeSetJob          = "SET_JOB"
	TypePurchaseTalent  = "PURCHASE_TALENT"
	TypePurchaseHousing = "PURCHASE_HOUSING"
	TypePerformRebirth  = "PERFORM_REBIRTH"
	TypeSave            = "SAVE"
	TypeSnapshotRequest = "SNAPSHOT_REQUEST"
)

// Notifications (engine -> presentation).
const (
	TypeUpdate           = "UPDATE"
	TypeEventTriggered   = "EVENT_TRIGGERED"
	TypeClearEvent       = "CLEAR_EVENT"
	TypeNeedsJobRender   = "NEEDS_JOB_RENDER"
	TypeShowRebirthModal = "SHOW_REBIRTH_MODAL"
	TypeRebirthComplete  = "REBIRTH_COMPLETE"
	TypeCommandRejected  = "COMMAND_REJECTED"
)

var commandTypes = map[string]struct{}{
	TypeStart:           {},
	TypeStop:            {},
	TypeSetJob:          {},
	TypePurchaseTalent:  {},
	TypePurchaseHousing: {},
	TypePerformRebirth:  {},
	TypeSave:            {},
	TypeSnapshotRequest: {},
}

func IsCommand(typ string) bool {
	_, ok := commandTypes[typ]
	return ok
}

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
