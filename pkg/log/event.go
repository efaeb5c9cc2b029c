package log

import "time"

// Event represents a protocol event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID uniquely identifies the client session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates packet flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer address (IP:port). For broadcast sends this
	// is the subnet broadcast address.
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Target is the device serial the packet addresses or originates from
	// (aa:bb:cc:dd:ee:ff), empty for broadcast.
	Target string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Packet      *PacketEvent      `cbor:"8,keyasint,omitempty"`  // Sent/received packet
	StateChange *StateChangeEvent `cbor:"9,keyasint,omitempty"`  // Session/request lifecycle
	Error       *ErrorEventData   `cbor:"10,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of packet flow.
type Direction uint8

const (
	// DirectionIn indicates an inbound datagram.
	DirectionIn Direction = 0
	// DirectionOut indicates an outbound datagram.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the UDP endpoint layer (raw datagrams).
	LayerTransport Layer = 0
	// LayerWire is the packet codec layer (decoded headers).
	LayerWire Layer = 1
	// LayerSession is the request/response correlation layer.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryPacket indicates a protocol packet was sent or received.
	CategoryPacket Category = 0
	// CategoryState indicates a session or request state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryPacket:
		return "PACKET"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// PacketEvent captures a packet at the transport or wire layer.
type PacketEvent struct {
	// Type is the message type code (0 when the packet could not be decoded).
	Type uint16 `cbor:"1,keyasint"`

	// TypeName is the human-readable message type.
	TypeName string `cbor:"2,keyasint,omitempty"`

	// Source is the session identifier from the packet header.
	Source uint32 `cbor:"3,keyasint,omitempty"`

	// Sequence is the request counter from the packet header.
	Sequence uint8 `cbor:"4,keyasint,omitempty"`

	// Size is the full datagram size in bytes.
	Size int `cbor:"5,keyasint"`

	// Payload is the raw payload bytes (may be truncated for large packets).
	Payload []byte `cbor:"6,keyasint,omitempty"`

	// Truncated indicates if Payload was truncated.
	Truncated bool `cbor:"7,keyasint,omitempty"`
}

// StateChangeEvent captures session and request lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntitySession indicates a session lifecycle change.
	StateEntitySession StateEntity = 0
	// StateEntityRequest indicates a pending request state change.
	StateEntityRequest StateEntity = 1
	// StateEntityDiscovery indicates a discovery run state change.
	StateEntityDiscovery StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntitySession:
		return "SESSION"
	case StateEntityRequest:
		return "REQUEST"
	case StateEntityDiscovery:
		return "DISCOVERY"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
