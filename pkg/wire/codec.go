package wire

import "fmt"

// Encode packs a header and payload into a datagram. The header's Size and
// Type fields are derived from the payload; caller values are ignored.
// Field values outside their wire domain fail with ErrMalformedPayload
// before any bytes are produced.
func Encode(hdr Header, p Payload) ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	size, ok := payloadSize(p.Type())
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, uint16(p.Type()))
	}

	hdr.Type = p.Type()
	hdr.Size = uint16(HeaderSize + size)

	buf := make([]byte, HeaderSize+size)
	hdr.marshal(buf[:HeaderSize])
	p.marshal(buf[HeaderSize:])
	return buf, nil
}

// Decode unpacks a datagram into its header and typed payload.
//
// Returns ErrTruncatedPacket when data is shorter than the header, than the
// declared size, or than the type's fixed payload length, and
// ErrUnknownMessageType for unregistered type codes. Both are expected
// network noise for receivers, which drop such packets rather than fail.
func Decode(data []byte) (Header, Payload, error) {
	hdr, err := unmarshalHeader(data)
	if err != nil {
		return Header{}, nil, err
	}

	if int(hdr.Size) > len(data) {
		return Header{}, nil, fmt.Errorf("%w: declared %d bytes, have %d", ErrTruncatedPacket, hdr.Size, len(data))
	}

	size, ok := payloadSize(hdr.Type)
	if !ok {
		return Header{}, nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, uint16(hdr.Type))
	}
	if len(data)-HeaderSize < size {
		return Header{}, nil, fmt.Errorf("%w: type %v needs %d payload bytes, have %d",
			ErrTruncatedPacket, hdr.Type, size, len(data)-HeaderSize)
	}

	p, _ := newPayload(hdr.Type)
	if err := p.unmarshal(data[HeaderSize : HeaderSize+size]); err != nil {
		return Header{}, nil, err
	}
	return hdr, p, nil
}
