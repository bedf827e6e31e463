package transform

import "math"

// Mode selects false colour rendering. Any non-zero mode other than
// ModeIron renders with the rainbow palette.
type Mode int

// False colour modes.
const (
	ModeOff     Mode = 0
	ModeRainbow Mode = 1
	ModeIron    Mode = 2
)

// String returns the palette name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeIron:
		return "iron"
	}
	return "rainbow"
}

// ParseMode parses a palette name.
func ParseMode(name string) (Mode, bool) {
	switch name {
	case "off", "none":
		return ModeOff, true
	case "rainbow":
		return ModeRainbow, true
	case "iron":
		return ModeIron, true
	}
	return ModeOff, false
}

// Palette maps a luma value to an RGB colour and to the equivalent YUV
// triple.
type Palette struct {
	Name    string
	R, G, B [256]uint8
	Y, U, V [256]uint8
}

var (
	rainbow = buildPalette("rainbow", rainbowColor)
	iron    = buildPalette("iron", ironColor)
)

// PaletteFor returns the palette used by mode, or nil for ModeOff.
func PaletteFor(mode Mode) *Palette {
	switch mode {
	case ModeOff:
		return nil
	case ModeIron:
		return iron
	}
	return rainbow
}

func buildPalette(name string, color func(i int) (r, g, b uint8)) *Palette {
	p := &Palette{Name: name}
	for i := range 256 {
		r, g, b := color(i)
		p.R[i], p.G[i], p.B[i] = r, g, b
		p.Y[i], p.U[i], p.V[i] = RGBToYUV(r, g, b)
	}
	return p
}

// rainbowColor sweeps the hue from violet at 0 to red at 255 at full
// saturation.
func rainbowColor(i int) (r, g, b uint8) {
	hue := 270 * (1 - float64(i)/255)
	return hsvToRGB(hue, 1, 1)
}

func hsvToRGB(h, s, v float64) (r, g, b uint8) {
	c := v * s
	hp := h / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	var fr, fg, fb float64
	switch {
	case hp < 1:
		fr, fg, fb = c, x, 0
	case hp < 2:
		fr, fg, fb = x, c, 0
	case hp < 3:
		fr, fg, fb = 0, c, x
	case hp < 4:
		fr, fg, fb = 0, x, c
	case hp < 5:
		fr, fg, fb = x, 0, c
	default:
		fr, fg, fb = c, 0, x
	}
	m := v - c
	return clampByte((fr + m) * 255), clampByte((fg + m) * 255), clampByte((fb + m) * 255)
}

type ironStop struct {
	at      int
	r, g, b float64
}

// Thermal camera style ramp: black, indigo, magenta, red, orange, yellow,
// white.
var ironStops = []ironStop{
	{0, 0, 0, 0},
	{40, 32, 0, 128},
	{90, 140, 0, 160},
	{140, 220, 40, 60},
	{190, 255, 130, 0},
	{230, 255, 220, 40},
	{255, 255, 255, 255},
}

func ironColor(i int) (r, g, b uint8) {
	for k := 1; k < len(ironStops); k++ {
		lo, hi := ironStops[k-1], ironStops[k]
		if i > hi.at {
			continue
		}
		t := float64(i-lo.at) / float64(hi.at-lo.at)
		return clampByte(lo.r + t*(hi.r-lo.r)),
			clampByte(lo.g + t*(hi.g-lo.g)),
			clampByte(lo.b + t*(hi.b-lo.b))
	}
	last := ironStops[len(ironStops)-1]
	return clampByte(last.r), clampByte(last.g), clampByte(last.b)
}
