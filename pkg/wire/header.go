package wire

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Header sizes and protocol constants.
const (
	// HeaderSize is the fixed size of the packet header in bytes.
	HeaderSize = 36

	// MaxPacketSize is the largest datagram the codec will produce or
	// accept. LIFX payloads are small; this bounds receive buffers.
	MaxPacketSize = 1024

	// protocolNumber is the protocol field value, constant for the LAN
	// protocol family.
	protocolNumber = 1024
)

// Codec errors.
var (
	// ErrMalformedPayload indicates caller-supplied field values outside
	// their wire domain. Rejected before any network I/O.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrTruncatedPacket indicates fewer bytes than the header or the
	// type's fixed payload length require.
	ErrTruncatedPacket = errors.New("truncated packet")

	// ErrUnknownMessageType indicates an unregistered type code. Expected
	// from protocol evolution; receivers drop such packets.
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Target is a device hardware identity: the 6-byte serial carried in the
// header target field. The zero value addresses all devices (broadcast).
type Target [6]byte

// BroadcastTarget addresses all devices.
var BroadcastTarget = Target{}

// IsBroadcast reports whether the target addresses all devices.
func (t Target) IsBroadcast() bool {
	return t == Target{}
}

// String formats the target as a colon-separated hex serial.
func (t Target) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", t[0], t[1], t[2], t[3], t[4], t[5])
}

// ParseTarget parses a hex serial, with or without colon separators
// (aa:bb:cc:dd:ee:ff or aabbccddeeff).
func ParseTarget(s string) (Target, error) {
	var t Target
	raw, err := hex.DecodeString(strings.ReplaceAll(s, ":", ""))
	if err != nil {
		return t, fmt.Errorf("invalid target %q: %w", s, err)
	}
	if len(raw) != len(t) {
		return t, fmt.Errorf("invalid target %q: want 6 octets, got %d", s, len(raw))
	}
	copy(t[:], raw)
	return t, nil
}

// Header is the decoded form of the 36-byte packet header.
type Header struct {
	// Size is the total packet length in bytes (header + payload).
	// Computed by Encode; populated from the wire by Decode.
	Size uint16

	// Tagged is set on broadcast packets addressed to all devices.
	Tagged bool

	// Source identifies the client session. Devices echo it in responses;
	// it is stable for the lifetime of one session.
	Source uint32

	// Target is the addressed device, or the zero value for broadcast.
	Target Target

	// AckRequired asks the device to send an Acknowledgement.
	AckRequired bool

	// ResRequired asks the device to send a State response.
	ResRequired bool

	// Sequence is the wrap-around request counter (0-255) echoed by the
	// device, used with Source to correlate responses.
	Sequence uint8

	// Type identifies the payload layout.
	Type MessageType
}

// marshal writes the header into buf, which must be at least HeaderSize
// bytes. Reserved regions are zeroed.
func (h *Header) marshal(buf []byte) {
	for i := range buf[:HeaderSize] {
		buf[i] = 0
	}

	binary.LittleEndian.PutUint16(buf[0:2], h.Size)

	flags := uint16(protocolNumber) | 1<<12 // addressable is always set
	if h.Tagged {
		flags |= 1 << 13
	}
	binary.LittleEndian.PutUint16(buf[2:4], flags)
	binary.LittleEndian.PutUint32(buf[4:8], h.Source)

	copy(buf[8:14], h.Target[:])

	var resAck byte
	if h.ResRequired {
		resAck |= 1 << 0
	}
	if h.AckRequired {
		resAck |= 1 << 1
	}
	buf[22] = resAck
	buf[23] = h.Sequence

	binary.LittleEndian.PutUint16(buf[32:34], uint16(h.Type))
}

// unmarshalHeader decodes the first HeaderSize bytes of data.
func unmarshalHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncatedPacket, len(data), HeaderSize)
	}

	var h Header
	h.Size = binary.LittleEndian.Uint16(data[0:2])

	flags := binary.LittleEndian.Uint16(data[2:4])
	h.Tagged = flags&(1<<13) != 0

	h.Source = binary.LittleEndian.Uint32(data[4:8])
	copy(h.Target[:], data[8:14])

	h.ResRequired = data[22]&(1<<0) != 0
	h.AckRequired = data[22]&(1<<1) != 0
	h.Sequence = data[23]
	h.Type = MessageType(binary.LittleEndian.Uint16(data[32:34]))

	return h, nil
}
