package wire

// MessageType identifies the payload layout of a packet.
type MessageType uint16

// Device and light message types from the published LAN protocol.
const (
	// TypeGetService is the broadcast discovery request.
	TypeGetService MessageType = 2
	// TypeStateService is the discovery response carrying service and port.
	TypeStateService MessageType = 3

	// TypeGetPower requests the device power level.
	TypeGetPower MessageType = 20
	// TypeSetPower sets the device power level (0 or 65535).
	TypeSetPower MessageType = 21
	// TypeStatePower is the power level response.
	TypeStatePower MessageType = 22

	// TypeGetLabel requests the device label.
	TypeGetLabel MessageType = 23
	// TypeSetLabel sets the device label.
	TypeSetLabel MessageType = 24
	// TypeStateLabel is the label response.
	TypeStateLabel MessageType = 25

	// TypeAcknowledgement confirms receipt of an ack-required packet.
	TypeAcknowledgement MessageType = 45

	// TypeGetColor requests the light state.
	TypeGetColor MessageType = 101
	// TypeSetColor changes color and brightness over a duration.
	TypeSetColor MessageType = 102
	// TypeLightState is the full light state response.
	TypeLightState MessageType = 107
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case TypeGetService:
		return "GetService"
	case TypeStateService:
		return "StateService"
	case TypeGetPower:
		return "GetPower"
	case TypeSetPower:
		return "SetPower"
	case TypeStatePower:
		return "StatePower"
	case TypeGetLabel:
		return "GetLabel"
	case TypeSetLabel:
		return "SetLabel"
	case TypeStateLabel:
		return "StateLabel"
	case TypeAcknowledgement:
		return "Acknowledgement"
	case TypeGetColor:
		return "GetColor"
	case TypeSetColor:
		return "SetColor"
	case TypeLightState:
		return "LightState"
	default:
		return "Unknown"
	}
}
