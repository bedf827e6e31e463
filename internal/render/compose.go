// Package render is the presentation surface: it crops and scales display
// frames to the viewport, draws the paint-time grid for RGB frames and
// serves the result as JPEG snapshots and an MJPEG stream.
package render

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"github.com/smazurov/ffview/internal/frames"
	"github.com/smazurov/ffview/internal/viewport"
)

// minorAlpha is the opacity of minor grid lines drawn at paint time.
const minorAlpha = 35

// ParseScaler returns the interpolator for name: nearest, bilinear or
// catmullrom.
func ParseScaler(name string) (draw.Interpolator, bool) {
	switch name {
	case "", "nearest":
		return draw.NearestNeighbor, true
	case "bilinear":
		return draw.ApproxBiLinear, true
	case "catmullrom":
		return draw.CatmullRom, true
	}
	return nil, false
}

// Compose draws the visible region of a display frame scaled to the view.
// The canvas has the widget size, or the scaled visible size when the view
// has no widget. RGB frames get the grid drawn on top; I420 frames carry it
// in the raster already.
func Compose(frame *frames.Handle, view viewport.Snapshot, scaler draw.Interpolator) *image.RGBA {
	w, h := view.WidgetWidth, view.WidgetHeight
	if w <= 0 || h <= 0 {
		w, h = view.ScaledVisibleWidth, view.ScaledVisibleHeight
	}
	if w <= 0 || h <= 0 {
		w, h = frame.Width(), frame.Height()
	}
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	crop := image.Rect(view.X, view.Y, view.X+view.VisibleWidth, view.Y+view.VisibleHeight)
	crop = crop.Intersect(image.Rect(0, 0, frame.Width(), frame.Height()))
	if crop.Empty() {
		crop = image.Rect(0, 0, frame.Width(), frame.Height())
	}
	dst := image.Rect(0, 0, view.ScaledVisibleWidth, view.ScaledVisibleHeight).Intersect(canvas.Bounds())
	if dst.Empty() {
		dst = canvas.Bounds()
	}

	src, rgb := frameImage(frame, crop)
	if src == nil {
		return canvas
	}
	scaler.Scale(canvas, dst, src, crop, draw.Src, nil)

	if rgb && view.GridEnabled {
		drawGrid(gg.NewContextForRGBA(canvas), view)
	}
	return canvas
}

// frameImage wraps the pixels of h as an image. RGB frames are copied for
// the crop region only. The second result reports an RGB frame.
func frameImage(h *frames.Handle, crop image.Rectangle) (image.Image, bool) {
	w, ht := h.Width(), h.Height()
	switch h.Format() {
	case frames.FormatYUVJ420P, frames.FormatYUV420P:
		y, ys := h.Plane(0)
		cb, cs := h.Plane(1)
		cr, _ := h.Plane(2)
		return &image.YCbCr{
			Y:              y,
			Cb:             cb,
			Cr:             cr,
			YStride:        ys,
			CStride:        cs,
			SubsampleRatio: image.YCbCrSubsampleRatio420,
			Rect:           image.Rect(0, 0, w, ht),
		}, false
	case frames.FormatGray:
		pix, stride := h.Plane(0)
		return &image.Gray{Pix: pix, Stride: stride, Rect: image.Rect(0, 0, w, ht)}, false
	case frames.FormatRGB24:
		pix, stride := h.Plane(0)
		img := image.NewRGBA(crop)
		for y := crop.Min.Y; y < crop.Max.Y; y++ {
			row := pix[y*stride:]
			out := img.Pix[img.PixOffset(crop.Min.X, y):]
			for x := crop.Min.X; x < crop.Max.X; x++ {
				i, o := 3*x, 4*(x-crop.Min.X)
				out[o] = row[i]
				out[o+1] = row[i+1]
				out[o+2] = row[i+2]
				out[o+3] = 0xff
			}
		}
		return img, true
	}
	return nil, false
}

// drawGrid draws the crosshair through the grid centre and minor lines every
// spacing pixels, in screen coordinates of the scaled visible region.
func drawGrid(dc *gg.Context, view viewport.Snapshot) {
	col := view.GridColor
	visW, visH := float64(view.ScaledVisibleWidth), float64(view.ScaledVisibleHeight)

	// The 0.5 puts the line in the middle of the image pixel.
	scGx := (float64(view.GridX-view.X) + 0.5) * view.SFX
	scGy := (float64(view.GridY-view.Y) + 0.5) * view.SFY
	scGsx := float64(view.GridSpacing) * view.SFX
	scGsy := float64(view.GridSpacing) * view.SFY

	dc.SetLineWidth(1)
	if scGsx > 0.1 && scGsy > 0.1 {
		dc.SetRGBA255(int(col.R), int(col.G), int(col.B), minorAlpha)
		for x := scGx - scGsx; x > 0; x -= scGsx {
			vline(dc, x, visH)
		}
		for x := scGx + scGsx; x < visW; x += scGsx {
			vline(dc, x, visH)
		}
		for y := scGy - scGsy; y > 0; y -= scGsy {
			hline(dc, y, visW)
		}
		for y := scGy + scGsy; y < visH; y += scGsy {
			hline(dc, y, visW)
		}
	}

	dc.SetRGB255(int(col.R), int(col.G), int(col.B))
	vline(dc, scGx, visH)
	hline(dc, scGy, visW)
}

// vline strokes a one pixel wide vertical line over the pixel column that
// contains x.
func vline(dc *gg.Context, x, height float64) {
	px := math.Floor(x) + 0.5
	dc.DrawLine(px, 0, px, height)
	dc.Stroke()
}

func hline(dc *gg.Context, y, width float64) {
	py := math.Floor(y) + 0.5
	dc.DrawLine(0, py, width, py)
	dc.Stroke()
}
