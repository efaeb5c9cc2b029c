package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Power levels for SetPower/StatePower. Devices accept only full-on or
// full-off; intermediate levels are reserved for lights via SetColor.
const (
	PowerOff uint16 = 0
	PowerOn  uint16 = 65535
)

// Kelvin bounds accepted by devices for color temperature.
const (
	KelvinMin uint16 = 1500
	KelvinMax uint16 = 9000
)

// LabelSize is the fixed on-wire length of a device label.
const LabelSize = 32

// Payload is a typed, message-specific byte layout. Each payload has a
// fixed size known before decode.
type Payload interface {
	// Type returns the message type code for this payload layout.
	Type() MessageType

	validate() error
	marshal(buf []byte)
	unmarshal(buf []byte) error
}

// payloadSize returns the fixed payload length for a type, or false for
// an unregistered type.
func payloadSize(t MessageType) (int, bool) {
	switch t {
	case TypeGetService, TypeGetPower, TypeGetLabel, TypeAcknowledgement, TypeGetColor:
		return 0, true
	case TypeStateService:
		return 5, true
	case TypeSetPower, TypeStatePower:
		return 2, true
	case TypeSetLabel, TypeStateLabel:
		return LabelSize, true
	case TypeSetColor:
		return 13, true
	case TypeLightState:
		return 52, true
	default:
		return 0, false
	}
}

// newPayload returns a zero payload value for a type, or false for an
// unregistered type.
func newPayload(t MessageType) (Payload, bool) {
	switch t {
	case TypeGetService:
		return &GetServicePayload{}, true
	case TypeStateService:
		return &StateServicePayload{}, true
	case TypeGetPower:
		return &GetPowerPayload{}, true
	case TypeSetPower:
		return &SetPowerPayload{}, true
	case TypeStatePower:
		return &StatePowerPayload{}, true
	case TypeGetLabel:
		return &GetLabelPayload{}, true
	case TypeSetLabel:
		return &SetLabelPayload{}, true
	case TypeStateLabel:
		return &StateLabelPayload{}, true
	case TypeAcknowledgement:
		return &AcknowledgementPayload{}, true
	case TypeGetColor:
		return &GetColorPayload{}, true
	case TypeSetColor:
		return &SetColorPayload{}, true
	case TypeLightState:
		return &LightStatePayload{}, true
	default:
		return nil, false
	}
}

// HSBK is the raw 16-bit color representation used on the wire. The codec
// performs no unit conversion; see the client package for helpers that map
// degrees and percentages onto these fields.
type HSBK struct {
	Hue        uint16
	Saturation uint16
	Brightness uint16
	Kelvin     uint16
}

func (c HSBK) marshal(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], c.Hue)
	binary.LittleEndian.PutUint16(buf[2:4], c.Saturation)
	binary.LittleEndian.PutUint16(buf[4:6], c.Brightness)
	binary.LittleEndian.PutUint16(buf[6:8], c.Kelvin)
}

func (c *HSBK) unmarshal(buf []byte) {
	c.Hue = binary.LittleEndian.Uint16(buf[0:2])
	c.Saturation = binary.LittleEndian.Uint16(buf[2:4])
	c.Brightness = binary.LittleEndian.Uint16(buf[4:6])
	c.Kelvin = binary.LittleEndian.Uint16(buf[6:8])
}

// encodeLabel writes s NUL-padded into a LabelSize region.
func encodeLabel(buf []byte, s string) {
	copy(buf[:LabelSize], s)
}

// decodeLabel reads a NUL-padded label.
func decodeLabel(buf []byte) string {
	if i := bytes.IndexByte(buf[:LabelSize], 0); i >= 0 {
		return string(buf[:i])
	}
	return string(buf[:LabelSize])
}

func validateLabel(s string) error {
	if len(s) > LabelSize {
		return fmt.Errorf("%w: label %d bytes exceeds %d", ErrMalformedPayload, len(s), LabelSize)
	}
	return nil
}

// GetServicePayload is the empty broadcast discovery request.
type GetServicePayload struct{}

func (*GetServicePayload) Type() MessageType { return TypeGetService }
func (*GetServicePayload) validate() error   { return nil }
func (*GetServicePayload) marshal([]byte)    {}
func (*GetServicePayload) unmarshal([]byte) error {
	return nil
}

// StateServicePayload is the discovery response: the service a device
// exposes and the UDP port it listens on.
type StateServicePayload struct {
	Service uint8
	Port    uint32
}

// ServiceUDP is the only service type the LAN protocol defines.
const ServiceUDP uint8 = 1

func (*StateServicePayload) Type() MessageType { return TypeStateService }
func (*StateServicePayload) validate() error   { return nil }

func (p *StateServicePayload) marshal(buf []byte) {
	buf[0] = p.Service
	binary.LittleEndian.PutUint32(buf[1:5], p.Port)
}

func (p *StateServicePayload) unmarshal(buf []byte) error {
	p.Service = buf[0]
	p.Port = binary.LittleEndian.Uint32(buf[1:5])
	return nil
}

// GetPowerPayload is the empty power query.
type GetPowerPayload struct{}

func (*GetPowerPayload) Type() MessageType      { return TypeGetPower }
func (*GetPowerPayload) validate() error        { return nil }
func (*GetPowerPayload) marshal([]byte)         {}
func (*GetPowerPayload) unmarshal([]byte) error { return nil }

// SetPowerPayload sets the device power level.
type SetPowerPayload struct {
	Level uint16
}

func (*SetPowerPayload) Type() MessageType { return TypeSetPower }

func (p *SetPowerPayload) validate() error {
	if p.Level != PowerOff && p.Level != PowerOn {
		return fmt.Errorf("%w: power level %d, want %d or %d", ErrMalformedPayload, p.Level, PowerOff, PowerOn)
	}
	return nil
}

func (p *SetPowerPayload) marshal(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], p.Level)
}

func (p *SetPowerPayload) unmarshal(buf []byte) error {
	p.Level = binary.LittleEndian.Uint16(buf[0:2])
	return nil
}

// StatePowerPayload is the power level response.
type StatePowerPayload struct {
	Level uint16
}

func (*StatePowerPayload) Type() MessageType { return TypeStatePower }
func (*StatePowerPayload) validate() error   { return nil }

func (p *StatePowerPayload) marshal(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], p.Level)
}

func (p *StatePowerPayload) unmarshal(buf []byte) error {
	p.Level = binary.LittleEndian.Uint16(buf[0:2])
	return nil
}

// GetLabelPayload is the empty label query.
type GetLabelPayload struct{}

func (*GetLabelPayload) Type() MessageType      { return TypeGetLabel }
func (*GetLabelPayload) validate() error        { return nil }
func (*GetLabelPayload) marshal([]byte)         {}
func (*GetLabelPayload) unmarshal([]byte) error { return nil }

// SetLabelPayload sets the device label (at most 32 bytes of UTF-8).
type SetLabelPayload struct {
	Label string
}

func (*SetLabelPayload) Type() MessageType { return TypeSetLabel }

func (p *SetLabelPayload) validate() error { return validateLabel(p.Label) }

func (p *SetLabelPayload) marshal(buf []byte) { encodeLabel(buf, p.Label) }

func (p *SetLabelPayload) unmarshal(buf []byte) error {
	p.Label = decodeLabel(buf)
	return nil
}

// StateLabelPayload is the label response.
type StateLabelPayload struct {
	Label string
}

func (*StateLabelPayload) Type() MessageType { return TypeStateLabel }

func (p *StateLabelPayload) validate() error { return validateLabel(p.Label) }

func (p *StateLabelPayload) marshal(buf []byte) { encodeLabel(buf, p.Label) }

func (p *StateLabelPayload) unmarshal(buf []byte) error {
	p.Label = decodeLabel(buf)
	return nil
}

// AcknowledgementPayload is the empty receipt confirmation.
type AcknowledgementPayload struct{}

func (*AcknowledgementPayload) Type() MessageType      { return TypeAcknowledgement }
func (*AcknowledgementPayload) validate() error        { return nil }
func (*AcknowledgementPayload) marshal([]byte)         {}
func (*AcknowledgementPayload) unmarshal([]byte) error { return nil }

// GetColorPayload is the empty light state query.
type GetColorPayload struct{}

func (*GetColorPayload) Type() MessageType      { return TypeGetColor }
func (*GetColorPayload) validate() error        { return nil }
func (*GetColorPayload) marshal([]byte)         {}
func (*GetColorPayload) unmarshal([]byte) error { return nil }

// SetColorPayload changes the light color over a transition duration.
type SetColorPayload struct {
	Color HSBK

	// Duration is the transition time in milliseconds.
	Duration uint32
}

func (*SetColorPayload) Type() MessageType { return TypeSetColor }

func (p *SetColorPayload) validate() error {
	if p.Color.Kelvin < KelvinMin || p.Color.Kelvin > KelvinMax {
		return fmt.Errorf("%w: kelvin %d outside %d..%d", ErrMalformedPayload, p.Color.Kelvin, KelvinMin, KelvinMax)
	}
	return nil
}

func (p *SetColorPayload) marshal(buf []byte) {
	buf[0] = 0 // reserved
	p.Color.marshal(buf[1:9])
	binary.LittleEndian.PutUint32(buf[9:13], p.Duration)
}

func (p *SetColorPayload) unmarshal(buf []byte) error {
	p.Color.unmarshal(buf[1:9])
	p.Duration = binary.LittleEndian.Uint32(buf[9:13])
	return nil
}

// LightStatePayload is the full light state response: color plus the
// device label and power level.
type LightStatePayload struct {
	Color HSBK
	Power uint16
	Label string
}

func (*LightStatePayload) Type() MessageType { return TypeLightState }

func (p *LightStatePayload) validate() error { return validateLabel(p.Label) }

func (p *LightStatePayload) marshal(buf []byte) {
	p.Color.marshal(buf[0:8])
	// buf[8:10] reserved
	binary.LittleEndian.PutUint16(buf[10:12], p.Power)
	encodeLabel(buf[12:44], p.Label)
	// buf[44:52] reserved
}

func (p *LightStatePayload) unmarshal(buf []byte) error {
	p.Color.unmarshal(buf[0:8])
	p.Power = binary.LittleEndian.Uint16(buf[10:12])
	p.Label = decodeLabel(buf[12:44])
	return nil
}
