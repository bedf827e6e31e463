package frames

// PixelFormat identifies the memory layout of a frame. String values match
// ffmpeg's pix_fmt names so they can be passed straight to -pix_fmt.
type PixelFormat int

// Supported pixel formats.
const (
	FormatNone PixelFormat = iota
	FormatYUV420P
	FormatYUVJ420P
	FormatYUV422P
	FormatYUVJ422P
	FormatYUV444P
	FormatYUVJ444P
	FormatNV12
	FormatNV21
	FormatGray
	FormatRGB24
	FormatBGR24
)

var formatNames = map[PixelFormat]string{
	FormatNone:     "none",
	FormatYUV420P:  "yuv420p",
	FormatYUVJ420P: "yuvj420p",
	FormatYUV422P:  "yuv422p",
	FormatYUVJ422P: "yuvj422p",
	FormatYUV444P:  "yuv444p",
	FormatYUVJ444P: "yuvj444p",
	FormatNV12:     "nv12",
	FormatNV21:     "nv21",
	FormatGray:     "gray",
	FormatRGB24:    "rgb24",
	FormatBGR24:    "bgr24",
}

// String returns the ffmpeg name of the format.
func (f PixelFormat) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "unknown"
}

// ParsePixelFormat looks up a format by its ffmpeg name.
func ParsePixelFormat(name string) (PixelFormat, bool) {
	for f, n := range formatNames {
		if n == name && f != FormatNone {
			return f, true
		}
	}
	return FormatNone, false
}

// IsPlanarYUV reports whether the first plane of the format is a full
// resolution luma plane followed by chroma. Gray is excluded: it has no chroma
// and is treated as a packed format by the transformer.
func (f PixelFormat) IsPlanarYUV() bool {
	switch f {
	case FormatYUV420P, FormatYUVJ420P, FormatYUV422P, FormatYUVJ422P,
		FormatYUV444P, FormatYUVJ444P, FormatNV12, FormatNV21:
		return true
	}
	return false
}

// FullRange reports whether luma and chroma use the full 0..255 range
// (JPEG style) rather than the 16..235 / 16..240 video range.
func (f PixelFormat) FullRange() bool {
	switch f {
	case FormatYUVJ420P, FormatYUVJ422P, FormatYUVJ444P, FormatGray:
		return true
	}
	return false
}

// ChromaShift returns the horizontal and vertical chroma subsampling as
// power-of-two shifts. Formats without chroma return 0, 0.
func (f PixelFormat) ChromaShift() (sx, sy int) {
	switch f {
	case FormatYUV420P, FormatYUVJ420P, FormatNV12, FormatNV21:
		return 1, 1
	case FormatYUV422P, FormatYUVJ422P:
		return 1, 0
	}
	return 0, 0
}

// Plane describes one plane of a packed frame.
type Plane struct {
	Offset int
	Stride int
	Height int
}

// Size returns the number of bytes the plane occupies.
func (p Plane) Size() int {
	return p.Stride * p.Height
}

// Layout returns the planes of a width x height frame in this format. Planes
// are stored back to back without padding; chroma dimensions round up.
func (f PixelFormat) Layout(width, height int) []Plane {
	if width <= 0 || height <= 0 {
		return nil
	}
	switch f {
	case FormatRGB24, FormatBGR24:
		return []Plane{{Offset: 0, Stride: width * 3, Height: height}}
	case FormatGray:
		return []Plane{{Offset: 0, Stride: width, Height: height}}
	case FormatNV12, FormatNV21:
		cw, ch := (width+1)/2, (height+1)/2
		luma := Plane{Offset: 0, Stride: width, Height: height}
		return []Plane{luma, {Offset: luma.Size(), Stride: cw * 2, Height: ch}}
	case FormatNone:
		return nil
	}

	sx, sy := f.ChromaShift()
	cw := (width + (1 << sx) - 1) >> sx
	ch := (height + (1 << sy) - 1) >> sy
	luma := Plane{Offset: 0, Stride: width, Height: height}
	u := Plane{Offset: luma.Size(), Stride: cw, Height: ch}
	v := Plane{Offset: u.Offset + u.Size(), Stride: cw, Height: ch}
	return []Plane{luma, u, v}
}

// FrameSize returns the number of bytes of a width x height frame.
func (f PixelFormat) FrameSize(width, height int) int {
	planes := f.Layout(width, height)
	if len(planes) == 0 {
		return 0
	}
	last := planes[len(planes)-1]
	return last.Offset + last.Size()
}
