package transform

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/smazurov/ffview/internal/frames"
)

// ErrUnsupported is returned for conversions between formats the converter
// does not handle.
var ErrUnsupported = errors.New("unsupported conversion")

const maxCachedConverters = 8

// AlignedSize returns the output size of a conversion: the width rounded
// down to a multiple of 8 and the height rounded down to a multiple of 2.
func AlignedSize(width, height int) (int, int) {
	return width - width%8, height - height%2
}

type converterKey struct {
	src, dst      frames.PixelFormat
	width, height int
}

// converter holds the lookup tables for one source/destination pair.
type converter struct {
	key        converterKey
	dstW, dstH int

	luma   [256]uint8 // source luma to full range
	chroma [256]uint8 // source chroma to full range

	// 16.16 fixed point chroma contributions for YUV to RGB.
	yBase          [256]int32
	rV, gU, gV, bU [256]int32
}

func newConverter(key converterKey) (*converter, error) {
	switch key.dst {
	case frames.FormatYUVJ420P, frames.FormatRGB24:
	default:
		return nil, fmt.Errorf("%s to %s: %w", key.src, key.dst, ErrUnsupported)
	}
	switch {
	case key.src.IsPlanarYUV(), key.src == frames.FormatGray,
		key.src == frames.FormatRGB24, key.src == frames.FormatBGR24:
	default:
		return nil, fmt.Errorf("%s to %s: %w", key.src, key.dst, ErrUnsupported)
	}

	c := &converter{key: key}
	c.dstW, c.dstH = AlignedSize(key.width, key.height)

	full := key.src.FullRange()
	for i := range 256 {
		if full {
			c.luma[i] = uint8(i)
			c.chroma[i] = uint8(i)
		} else {
			c.luma[i] = clampByte(float64(i-16) * 255 / 219)
			c.chroma[i] = clampByte(float64(i-128)*255/224 + 128)
		}
		y := float64(c.luma[i])
		cc := float64(c.chroma[i]) - 128
		c.yBase[i] = int32(y*65536) + 1<<15
		c.rV[i] = int32(1.402 * cc * 65536)
		c.gU[i] = int32(-0.344136 * cc * 65536)
		c.gV[i] = int32(-0.714136 * cc * 65536)
		c.bU[i] = int32(1.772 * cc * 65536)
	}
	return c, nil
}

// convert writes the aligned region of src into dst, which must hold a
// dstW x dstH frame in the destination format.
func (c *converter) convert(src frames.Frame, dst []byte) {
	s := newSampler(src)
	switch c.key.dst {
	case frames.FormatYUVJ420P:
		if s.rgb {
			c.rgbToI420(&s, dst)
		} else {
			c.yuvToI420(&s, dst)
		}
	case frames.FormatRGB24:
		if s.rgb {
			c.rgbToRGB(&s, dst)
		} else {
			c.yuvToRGB(&s, dst)
		}
	}
}

func (c *converter) yuvToI420(s *sampler, dst []byte) {
	w, h := c.dstW, c.dstH
	cw := w / 2
	dy := dst[:w*h]
	du := dst[w*h : w*h+cw*h/2]
	dv := dst[w*h+cw*h/2:]

	for y := range h {
		row := s.planes[0][y*s.strides[0]:]
		out := dy[y*w : (y+1)*w]
		for x := range out {
			out[x] = c.luma[row[x]]
		}
	}
	for cy := range h / 2 {
		for cx := range cw {
			var su, sv int
			for _, p := range quad {
				u, v := s.chroma(2*cx+p[0], 2*cy+p[1])
				su += int(u)
				sv += int(v)
			}
			i := cy*cw + cx
			du[i] = c.chroma[(su+2)/4]
			dv[i] = c.chroma[(sv+2)/4]
		}
	}
}

var quad = [4][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}}

func (c *converter) rgbToI420(s *sampler, dst []byte) {
	w, h := c.dstW, c.dstH
	cw := w / 2
	dy := dst[:w*h]
	du := dst[w*h : w*h+cw*h/2]
	dv := dst[w*h+cw*h/2:]

	for y := range h {
		for x := range w {
			r, g, b := s.pixel(x, y)
			dy[y*w+x] = clampFixed(19595*int32(r) + 38470*int32(g) + 7471*int32(b) + 1<<15)
		}
	}
	for cy := range h / 2 {
		for cx := range cw {
			var sr, sg, sb int32
			for _, p := range quad {
				r, g, b := s.pixel(2*cx+p[0], 2*cy+p[1])
				sr += int32(r)
				sg += int32(g)
				sb += int32(b)
			}
			// Sums of four samples: divide by 4 inside the fixed point scale.
			i := cy*cw + cx
			du[i] = clampFixed((-11059*sr-21709*sg+32768*sb)/4 + 128<<16 + 1<<15)
			dv[i] = clampFixed((32768*sr-27439*sg-5329*sb)/4 + 128<<16 + 1<<15)
		}
	}
}

func (c *converter) yuvToRGB(s *sampler, dst []byte) {
	w, h := c.dstW, c.dstH
	for y := range h {
		row := s.planes[0][y*s.strides[0]:]
		out := dst[y*w*3 : (y+1)*w*3]
		for x := range w {
			u, v := s.chroma(x, y)
			base := c.yBase[row[x]]
			out[3*x] = clampFixed(base + c.rV[v])
			out[3*x+1] = clampFixed(base + c.gU[u] + c.gV[v])
			out[3*x+2] = clampFixed(base + c.bU[u])
		}
	}
}

func (c *converter) rgbToRGB(s *sampler, dst []byte) {
	w, h := c.dstW, c.dstH
	for y := range h {
		out := dst[y*w*3 : (y+1)*w*3]
		if !s.bgr {
			copy(out, s.planes[0][y*s.strides[0]:])
			continue
		}
		row := s.planes[0][y*s.strides[0]:]
		for x := range w {
			out[3*x] = row[3*x+2]
			out[3*x+1] = row[3*x+1]
			out[3*x+2] = row[3*x]
		}
	}
}

// sampler reads pixels from a packed frame of any supported source format.
type sampler struct {
	format  frames.PixelFormat
	planes  [][]byte
	strides []int
	sx, sy  uint
	rgb     bool
	bgr     bool
}

func newSampler(f frames.Frame) sampler {
	s := sampler{
		format: f.Format,
		rgb:    f.Format == frames.FormatRGB24 || f.Format == frames.FormatBGR24,
		bgr:    f.Format == frames.FormatBGR24,
	}
	sx, sy := f.Format.ChromaShift()
	s.sx, s.sy = uint(sx), uint(sy)
	for _, p := range f.Format.Layout(f.Width, f.Height) {
		s.planes = append(s.planes, f.Data[p.Offset:p.Offset+p.Size()])
		s.strides = append(s.strides, p.Stride)
	}
	return s
}

// chroma returns the raw U and V samples covering luma position x, y.
func (s *sampler) chroma(x, y int) (u, v uint8) {
	cx, cy := x>>s.sx, y>>s.sy
	switch s.format {
	case frames.FormatGray:
		return 128, 128
	case frames.FormatNV12:
		i := cy*s.strides[1] + 2*cx
		return s.planes[1][i], s.planes[1][i+1]
	case frames.FormatNV21:
		i := cy*s.strides[1] + 2*cx
		return s.planes[1][i+1], s.planes[1][i]
	}
	i := cy*s.strides[1] + cx
	return s.planes[1][i], s.planes[2][i]
}

// pixel returns the RGB value at x, y of an RGB or BGR frame.
func (s *sampler) pixel(x, y int) (r, g, b uint8) {
	i := y*s.strides[0] + 3*x
	p := s.planes[0]
	if s.bgr {
		return p[i+2], p[i+1], p[i]
	}
	return p[i], p[i+1], p[i+2]
}

// converterCache keeps converters keyed by source format, destination format
// and source dimensions.
type converterCache struct {
	mu      sync.Mutex
	entries map[converterKey]*converter
	builds  atomic.Uint64
}

func newConverterCache() *converterCache {
	return &converterCache{entries: make(map[converterKey]*converter)}
}

func (cc *converterCache) get(key converterKey) (*converter, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if c, ok := cc.entries[key]; ok {
		return c, nil
	}
	c, err := newConverter(key)
	if err != nil {
		return nil, err
	}
	if len(cc.entries) >= maxCachedConverters {
		clear(cc.entries)
	}
	cc.entries[key] = c
	cc.builds.Add(1)
	return c, nil
}
