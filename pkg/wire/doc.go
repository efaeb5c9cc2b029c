// Package wire implements the binary wire format of the LIFX LAN protocol.
//
// Every packet is a fixed 36-byte header followed by a payload whose length
// is fixed per message type. All multi-byte integers are little-endian.
//
// # Header Layout
//
//	┌─────────────────────────────────────────────┬───────┐
//	│ size                                 uint16 │  0-1  │
//	│ protocol:12  addressable:1  tagged:1  og:2  │  2-3  │
//	│ source                               uint32 │  4-7  │
//	│ target (6-byte serial + 2 zero)     [8]byte │  8-15 │
//	│ reserved                            [6]byte │ 16-21 │
//	│ resRequired:1  ackRequired:1  reserved:6    │  22   │
//	│ sequence                              uint8 │  23   │
//	│ reserved                             uint64 │ 24-31 │
//	│ type                                 uint16 │ 32-33 │
//	│ reserved                            [2]byte │ 34-35 │
//	└─────────────────────────────────────────────┴───────┘
//
// The protocol field is always 1024 and addressable is always set; tagged is
// set on broadcast discovery packets only. The size field always equals
// header length plus payload length and is computed by Encode, never taken
// from the caller.
//
// # Message Types
//
// Device messages: GetService/StateService (discovery), GetPower/SetPower/
// StatePower, GetLabel/StateLabel, Acknowledgement. Light messages:
// GetColor/SetColor/LightState.
//
// The codec is a pure data transform: it performs no unit conversion on
// color fields (raw 16-bit values on the wire) and no network I/O.
package wire
