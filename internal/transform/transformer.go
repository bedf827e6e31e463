// Package transform turns decoded frames into display frames: pixel format
// conversion, false colour rendering and the in-raster grid overlay.
package transform

import (
	"log/slog"
	"time"

	"github.com/smazurov/ffview/internal/frames"
	"github.com/smazurov/ffview/internal/logging"
	"github.com/smazurov/ffview/internal/metrics"
)

// Backend selects how display frames are presented.
type Backend int

const (
	// BackendOverlay presents I420 frames and draws the grid into the raster.
	BackendOverlay Backend = iota
	// BackendFallback presents RGB frames and draws the grid at paint time.
	BackendFallback
)

// String returns the backend name.
func (b Backend) String() string {
	if b == BackendFallback {
		return "fallback"
	}
	return "overlay"
}

// OutputFormat returns the display pixel format of the backend.
func (b Backend) OutputFormat() frames.PixelFormat {
	if b == BackendFallback {
		return frames.FormatRGB24
	}
	return frames.FormatYUVJ420P
}

// Transformer produces display frames in buffers taken from its pool.
type Transformer struct {
	pool   *frames.Pool
	cache  *converterCache
	logger *slog.Logger
}

// New creates a transformer writing into pool.
func New(pool *frames.Pool) *Transformer {
	return &Transformer{
		pool:   pool,
		cache:  newConverterCache(),
		logger: logging.GetLogger("transform"),
	}
}

// ConverterBuilds returns how many converters have been built.
func (t *Transformer) ConverterBuilds() uint64 {
	return t.cache.builds.Load()
}

// FormatConvert converts src into a new buffer in format dst. The output is
// AlignedSize of the source. It returns false when no buffer is free or the
// conversion is not supported. The caller owns the returned handle.
func (t *Transformer) FormatConvert(src *frames.Handle, dst frames.PixelFormat) (*frames.Handle, bool) {
	if src == nil || src.Width() <= 0 || src.Height() <= 0 {
		return nil, false
	}
	start := time.Now()

	key := converterKey{src: src.Format(), dst: dst, width: src.Width(), height: src.Height()}
	conv, err := t.cache.get(key)
	if err != nil {
		t.logger.Warn("Cannot convert frame", "error", err)
		metrics.IncTransformSkipped("unsupported")
		return nil, false
	}

	out, ok := t.pool.Acquire()
	if !ok {
		metrics.IncTransformSkipped("no_buffer")
		return nil, false
	}
	buf, err := out.Prepare(dst, conv.dstW, conv.dstH)
	if err != nil {
		out.Release()
		t.logger.Warn("Cannot prepare output buffer", "error", err)
		metrics.IncTransformSkipped("too_large")
		return nil, false
	}

	conv.convert(src.Frame(), buf)
	metrics.ObserveTransform("convert", time.Since(start))
	return out, true
}

// FalseColor maps the luma of src through the palette of mode into a new
// buffer in format dst (FormatRGB24 or FormatYUVJ420P). Sources that are not
// planar YUV are converted to I420 first.
func (t *Transformer) FalseColor(src *frames.Handle, dst frames.PixelFormat, mode Mode) (*frames.Handle, bool) {
	palette := PaletteFor(mode)
	if palette == nil {
		return t.FormatConvert(src, dst)
	}
	if src == nil || src.Width() <= 0 || src.Height() <= 0 {
		return nil, false
	}
	if dst != frames.FormatRGB24 && dst != frames.FormatYUVJ420P {
		t.logger.Warn("Unsupported false colour output", "format", dst.String())
		metrics.IncTransformSkipped("unsupported")
		return nil, false
	}
	start := time.Now()

	yuv := src
	if !src.Format().IsPlanarYUV() {
		converted, ok := t.FormatConvert(src, frames.FormatYUVJ420P)
		if !ok {
			return nil, false
		}
		defer converted.Release()
		yuv = converted
	}

	out, ok := t.pool.Acquire()
	if !ok {
		metrics.IncTransformSkipped("no_buffer")
		return nil, false
	}
	w, h := AlignedSize(src.Width(), src.Height())
	buf, err := out.Prepare(dst, w, h)
	if err != nil {
		out.Release()
		t.logger.Warn("Cannot prepare output buffer", "error", err)
		metrics.IncTransformSkipped("too_large")
		return nil, false
	}

	luma, stride := yuv.Plane(0)
	if dst == frames.FormatRGB24 {
		falseColorRGB(palette, luma, stride, w, h, buf)
	} else {
		falseColorI420(palette, luma, stride, w, h, buf)
	}
	metrics.ObserveTransform("false_color", time.Since(start))
	return out, true
}

func falseColorRGB(p *Palette, luma []byte, stride, w, h int, dst []byte) {
	for y := range h {
		row := luma[y*stride:]
		out := dst[y*w*3 : (y+1)*w*3]
		for x := range w {
			l := row[x]
			out[3*x] = p.R[l]
			out[3*x+1] = p.G[l]
			out[3*x+2] = p.B[l]
		}
	}
}

// falseColorI420 takes the chroma of each 2x2 block from its top-left luma
// sample.
func falseColorI420(p *Palette, luma []byte, stride, w, h int, dst []byte) {
	cw := w / 2
	dy := dst[:w*h]
	du := dst[w*h : w*h+cw*h/2]
	dv := dst[w*h+cw*h/2:]
	for y := range h {
		row := luma[y*stride:]
		for x := range w {
			l := row[x]
			dy[y*w+x] = p.Y[l]
			if y%2 == 0 && x%2 == 0 {
				i := (y/2)*cw + x/2
				du[i] = p.U[l]
				dv[i] = p.V[l]
			}
		}
	}
}
