package transform

import "math"

// clampByte rounds v to the nearest integer and saturates it to 0..255.
func clampByte(v float64) uint8 {
	r := math.Floor(v + 0.5)
	switch {
	case r < 0:
		return 0
	case r > 255:
		return 255
	}
	return uint8(r)
}

// clampFixed converts a 16.16 fixed point value, already biased for
// rounding, to a saturated byte.
func clampFixed(v int32) uint8 {
	v >>= 16
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}

// RGBToYUV converts an RGB colour to full range YCbCr with the coefficients
// used for grid and palette colours.
func RGBToYUV(r, g, b uint8) (y, u, v uint8) {
	fr, fg, fb := float64(r), float64(g), float64(b)
	y = clampByte(0.299*fr + 0.587*fg + 0.114*fb)
	u = clampByte(-0.169*fr - 0.331*fg + 0.499*fb + 128)
	v = clampByte(0.499*fr - 0.418*fg - 0.0813*fb + 128)
	return y, u, v
}
