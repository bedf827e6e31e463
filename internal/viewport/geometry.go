// Package viewport derives the visible region of a frame from the image
// size, the presentation surface size and the zoom level, and owns the view
// parameters (pan, zoom, grid, false colour) with their clamping rules.
package viewport

import "math"

const (
	MinZoom        = 0
	MaxZoom        = 30
	MinGridSpacing = 10
	MaxGridSpacing = 2000
)

// Geometry is the derived state of a view.
type Geometry struct {
	// Scale is the nominal image to screen scale for the zoom level.
	Scale float64
	// ScaledWidth and ScaledHeight are the on-screen size of the whole image.
	ScaledWidth, ScaledHeight int
	// ScaledVisibleWidth and ScaledVisibleHeight are the on-screen size of
	// the visible region.
	ScaledVisibleWidth, ScaledVisibleHeight int
	// VisibleWidth and VisibleHeight are the size of the visible region in
	// image pixels.
	VisibleWidth, VisibleHeight int
	// SFX and SFY are the effective scale factors after rounding.
	SFX, SFY   float64
	MaxX, MaxY int
}

// Compute derives the geometry for an image of imageW x imageH shown in a
// widget of widgetW x widgetH at the given zoom level. Zero sized images or
// widgets yield an unscaled geometry.
func Compute(imageW, imageH, widgetW, widgetH, zoom int) Geometry {
	if imageW <= 0 || imageH <= 0 || widgetW <= 0 || widgetH <= 0 {
		return Geometry{
			Scale:               1,
			ScaledWidth:         max(imageW, 0),
			ScaledHeight:        max(imageH, 0),
			ScaledVisibleWidth:  max(imageW, 0),
			ScaledVisibleHeight: max(imageH, 0),
			VisibleWidth:        max(imageW, 0),
			VisibleHeight:       max(imageH, 0),
			SFX:                 1,
			SFY:                 1,
		}
	}

	ratio := min(float64(widgetW)/float64(imageW), float64(widgetH)/float64(imageH))
	sf := math.Pow(10, float64(zoom)/20) * ratio

	g := Geometry{Scale: sf}
	g.ScaledWidth = round(float64(imageW) * sf)
	g.ScaledHeight = round(float64(imageH) * sf)
	g.ScaledVisibleWidth = min(g.ScaledWidth, widgetW)
	g.ScaledVisibleHeight = min(g.ScaledHeight, widgetH)
	g.VisibleWidth = visible(imageW, widgetW, g.ScaledVisibleWidth, sf)
	g.VisibleHeight = visible(imageH, widgetH, g.ScaledVisibleHeight, sf)
	g.SFX = float64(g.ScaledVisibleWidth) / float64(g.VisibleWidth)
	g.SFY = float64(g.ScaledVisibleHeight) / float64(g.VisibleHeight)
	g.MaxX = max(imageW-g.VisibleWidth, 0)
	g.MaxY = max(imageH-g.VisibleHeight, 0)
	return g
}

func visible(image, widget, scaledVisible int, sf float64) int {
	if scaledVisible < widget {
		return image
	}
	return max(min(round(float64(widget)/sf), image), 1)
}

// round rounds half up for the non-negative values used here.
func round(v float64) int {
	return int(v + 0.5)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
