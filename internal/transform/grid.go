package transform

import (
	"image/color"

	"github.com/smazurov/ffview/internal/frames"
)

// Grid describes the crosshair and the minor grid lines around it, in image
// pixel coordinates.
type Grid struct {
	Enabled bool
	X, Y    int
	Spacing int
	Color   color.RGBA
	// ScaleX is the horizontal image to screen scale. The crosshair is
	// widened so that it stays at least one screen pixel wide.
	ScaleX float64
}

// OverlayGrid draws g into an I420 display frame. Minor lines are blended at
// one fifth intensity and the crosshair replaces luma. It does nothing for
// the fallback backend, which draws the grid at paint time, or for frames
// that are not I420.
func OverlayGrid(buf *frames.Handle, g Grid, backend Backend) {
	if backend != BackendOverlay || buf == nil || !g.Enabled || g.Spacing <= 0 {
		return
	}
	if f := buf.Format(); f != frames.FormatYUVJ420P && f != frames.FormatYUV420P {
		return
	}
	w, h := buf.Width(), buf.Height()
	if w <= 0 || h <= 0 {
		return
	}

	o := overlay{w: w, h: h, spacing: g.Spacing}
	o.yp, o.ys = buf.Plane(0)
	o.up, o.cs = buf.Plane(1)
	o.vp, _ = buf.Plane(2)
	o.ty, o.tu, o.tv = RGBToYUV(g.Color.R, g.Color.G, g.Color.B)

	gridw := 1
	if g.ScaleX > 0 {
		gridw = max(int(0.5+1/g.ScaleX), 1)
	}
	o.verticalLines(g.X, gridw)
	o.horizontalLines(g.Y, gridw)
}

type overlay struct {
	w, h       int
	spacing    int
	yp, up, vp []byte
	ys, cs     int
	ty, tu, tv uint8
}

// majorRange returns the first and one past the last line of a crosshair of
// width gridw centred on c.
func majorRange(c, gridw int) (int, int) {
	half := float64(gridw) / 2
	start := int(float64(c) + 0.5 - half)
	end := start
	for float64(end) < float64(c)-0.1+half {
		end++
	}
	return start, end
}

// minors calls fn for each minor line position on both sides of c within
// (0, limit).
func (o *overlay) minors(c, limit int, fn func(int)) {
	for p := c - o.spacing; p > 0; p -= o.spacing {
		if p < limit {
			fn(p)
		}
	}
	for p := c + o.spacing; p < limit; p += o.spacing {
		if p > 0 {
			fn(p)
		}
	}
}

func blendMinor(p *byte, t uint8) { *p = uint8((4*int(*p) + int(t)) / 5) }
func blendHalf(p *byte, t uint8)  { *p = uint8((int(*p) + int(t)) / 2) }

func (o *overlay) chromaIndex(x, y int) int {
	return (y/2)*o.cs + x/2
}

func (o *overlay) verticalLines(gx, gridw int) {
	start, end := majorRange(gx, gridw)
	for y := range o.h {
		row := o.yp[y*o.ys : (y+1)*o.ys]
		o.minors(gx, o.w, func(x int) { blendMinor(&row[x], o.ty) })
		for x := max(start, 0); x < min(end, o.w); x++ {
			row[x] = o.ty
		}
	}
	for y := 0; y < o.h; y += 2 {
		o.minors(gx, o.w, func(x int) {
			i := o.chromaIndex(x, y)
			blendMinor(&o.up[i], o.tu)
			blendMinor(&o.vp[i], o.tv)
		})
		if gx >= 0 && gx < o.w {
			i := o.chromaIndex(gx, y)
			blendHalf(&o.up[i], o.tu)
			blendHalf(&o.vp[i], o.tv)
		}
	}
}

func (o *overlay) horizontalLines(gy, gridw int) {
	start, end := majorRange(gy, gridw)
	o.minors(gy, o.h, func(y int) {
		row := o.yp[y*o.ys : (y+1)*o.ys]
		for x := range o.w {
			blendMinor(&row[x], o.ty)
		}
	})
	for y := max(start, 0); y < min(end, o.h); y++ {
		row := o.yp[y*o.ys : (y+1)*o.ys]
		for x := range o.w {
			row[x] = o.ty
		}
	}
	for x := 0; x < o.w; x += 2 {
		o.minors(gy, o.h, func(y int) {
			i := o.chromaIndex(x, y)
			blendMinor(&o.up[i], o.tu)
			blendMinor(&o.vp[i], o.tv)
		})
		if gy >= 0 && gy < o.h {
			i := o.chromaIndex(x, gy)
			blendHalf(&o.up[i], o.tu)
			blendHalf(&o.vp[i], o.tv)
		}
	}
}
