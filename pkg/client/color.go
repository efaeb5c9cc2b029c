package client

import (
	"math"

	"github.com/okabe-project/lifx-go/pkg/wire"
)

// ColorFromHSBK converts human color units into the raw wire scale: hue
// in degrees (wrapped into [0,360)), saturation and brightness as
// fractions clamped to [0,1], kelvin passed through. Conversion happens
// here, at the edge; the codec only ever sees raw values.
func ColorFromHSBK(hueDegrees, saturation, brightness float64, kelvin uint16) wire.HSBK {
	hue := math.Mod(hueDegrees, 360)
	if hue < 0 {
		hue += 360
	}
	return wire.HSBK{
		Hue:        uint16(math.Round(hue / 360 * 65535)),
		Saturation: fractionToU16(saturation),
		Brightness: fractionToU16(brightness),
		Kelvin:     kelvin,
	}
}

// NormalizeColor converts raw wire values back into human units: hue in
// degrees, saturation and brightness as fractions in [0,1].
func NormalizeColor(c wire.HSBK) (hueDegrees, saturation, brightness float64, kelvin uint16) {
	hueDegrees = float64(c.Hue) / 65535 * 360
	saturation = float64(c.Saturation) / 65535
	brightness = float64(c.Brightness) / 65535
	kelvin = c.Kelvin
	return
}

func fractionToU16(f float64) uint16 {
	if f <= 0 {
		return 0
	}
	if f >= 1 {
		return 65535
	}
	return uint16(math.Round(f * 65535))
}
