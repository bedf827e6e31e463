package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/AlexxIT/go2rtc/pkg/mpjpeg"

	"github.com/smazurov/ffview/internal/decoder"
	"github.com/smazurov/ffview/internal/frames"
	"github.com/smazurov/ffview/internal/logging"
)

// maxPartSize bounds a single JPEG image. No valid image within the frame
// size limits comes close to a raw frame of the same size.
var maxPartSize = frames.Capacity(frames.MaxWidth, frames.MaxHeight)

var errHeaderTooLarge = errors.New("multipart: part header too large")

// MJPEG reads multipart/x-mixed-replace JPEG streams over HTTP and decodes
// them in process. A plain image/jpeg response is a one-frame stream.
type MJPEG struct {
	client *http.Client
	logger *slog.Logger
}

// NewMJPEG creates an MJPEG source. A nil client uses http.DefaultClient.
func NewMJPEG(client *http.Client) *MJPEG {
	if client == nil {
		client = http.DefaultClient
	}
	return &MJPEG{client: client, logger: logging.GetLogger("source")}
}

// Open connects to address, with or without the mjpeg+ prefix.
func (s *MJPEG) Open(ctx context.Context, address string) (decoder.Input, error) {
	url := strings.TrimPrefix(address, MJPEGScheme)
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "multipart/x-mixed-replace, image/jpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("connect %s: bad status: %s", url, resp.Status)
	}

	in := &mjpegInput{body: resp.Body, cancel: cancel}
	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case err != nil:
		in.Close()
		return nil, fmt.Errorf("content type: %w", err)
	case mediaType == "image/jpeg":
		in.single = true
	case strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != "":
		in.rd = bufio.NewReaderSize(resp.Body, 64<<10)
	default:
		in.Close()
		return nil, fmt.Errorf("unexpected content type: %s", mediaType)
	}

	s.logger.Debug("MJPEG connected", "url", url, "content_type", mediaType)
	return in, nil
}

type mjpegInput struct {
	body   io.ReadCloser
	cancel context.CancelFunc
	rd     *bufio.Reader
	single bool
	done   bool
	buf    bytes.Buffer

	closeOnce sync.Once
}

// Streams reports one video stream. Its size is only known after decoding
// the first frame.
func (in *mjpegInput) Streams() []decoder.StreamInfo {
	return []decoder.StreamInfo{{Index: 0, Type: decoder.MediaVideo, Codec: "mjpeg"}}
}

func (in *mjpegInput) FindDecoder(stream decoder.StreamInfo) (decoder.Codec, error) {
	if stream.Codec != "mjpeg" {
		return nil, fmt.Errorf("no decoder for %s", stream.Codec)
	}
	return &jpegCodec{}, nil
}

// ReadUnit returns the next JPEG image. Parts that are not images are
// returned on stream 1 so that the decoder discards them.
func (in *mjpegInput) ReadUnit() (decoder.Unit, error) {
	if in.single {
		return in.readSingle()
	}

	size, err := peekPartSize(in.rd)
	if err != nil {
		return decoder.Unit{}, err
	}
	if size > maxPartSize {
		return decoder.Unit{}, fmt.Errorf("part of %d bytes: %w", size, frames.ErrTooLarge)
	}

	header, data, err := mpjpeg.Next(in.rd)
	if err != nil {
		return decoder.Unit{}, err
	}
	index := 0
	if ct := header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/jpeg") {
		index = 1
	}
	return decoder.Unit{StreamIndex: index, Data: data}, nil
}

func (in *mjpegInput) readSingle() (decoder.Unit, error) {
	if in.done {
		return decoder.Unit{}, io.EOF
	}
	in.done = true
	in.buf.Reset()
	if _, err := in.buf.ReadFrom(io.LimitReader(in.body, int64(maxPartSize)+1)); err != nil {
		return decoder.Unit{}, err
	}
	if in.buf.Len() > maxPartSize {
		return decoder.Unit{}, fmt.Errorf("image larger than %d bytes: %w", maxPartSize, frames.ErrTooLarge)
	}
	return decoder.Unit{StreamIndex: 0, Data: in.buf.Bytes()}, nil
}

// peekPartSize returns the Content-Length of the next part without consuming
// it. It returns 0 when the header is not complete before the stream ends,
// leaving the error to the part reader.
func peekPartSize(rd *bufio.Reader) (int, error) {
	n := max(rd.Buffered(), 1)
	for {
		b, err := rd.Peek(n)

		skip := 0
		for bytes.HasPrefix(b[skip:], []byte("\r\n")) {
			skip += 2
		}
		if end := bytes.Index(b[skip:], []byte("\r\n\r\n")); end >= 0 {
			return contentLength(b[skip : skip+end])
		}
		if err != nil {
			return 0, nil
		}
		if n == rd.Size() {
			return 0, errHeaderTooLarge
		}
		// Ask for one byte more than is buffered so that Peek reads again.
		n = min(rd.Buffered()+1, rd.Size())
	}
}

func contentLength(header []byte) (int, error) {
	for line := range bytes.SplitSeq(header, []byte("\r\n")) {
		key, value, ok := bytes.Cut(line, []byte(":"))
		if !ok || !strings.EqualFold(string(bytes.TrimSpace(key)), "Content-Length") {
			continue
		}
		size, err := strconv.Atoi(string(bytes.TrimSpace(value)))
		if err != nil || size < 0 {
			return 0, fmt.Errorf("multipart: invalid content length %q", value)
		}
		return size, nil
	}
	return 0, nil
}

func (in *mjpegInput) Close() error {
	var err error
	in.closeOnce.Do(func() {
		in.cancel()
		err = in.body.Close()
	})
	return err
}

// jpegCodec decodes JPEG images into packed frames. YCbCr images keep their
// planes; other colour models are converted.
type jpegCodec struct {
	buf []byte
}

func (c *jpegCodec) Open() error  { return nil }
func (c *jpegCodec) Close() error { return nil }

func (c *jpegCodec) Decode(u decoder.Unit) (frames.Frame, bool, error) {
	if len(u.Data) == 0 {
		return frames.Frame{}, false, nil
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(u.Data))
	if err != nil {
		return frames.Frame{}, false, fmt.Errorf("decode jpeg: %w", err)
	}
	if cfg.Width > frames.MaxWidth || cfg.Height > frames.MaxHeight {
		return frames.Frame{}, false, fmt.Errorf("jpeg %dx%d: %w", cfg.Width, cfg.Height, frames.ErrTooLarge)
	}
	img, err := jpeg.Decode(bytes.NewReader(u.Data))
	if err != nil {
		return frames.Frame{}, false, fmt.Errorf("decode jpeg: %w", err)
	}
	return c.frame(img), true, nil
}

func (c *jpegCodec) frame(img image.Image) frames.Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch m := img.(type) {
	case *image.YCbCr:
		if format, ok := ycbcrFormat(m.SubsampleRatio); ok {
			return c.copyYCbCr(m, format, w, h)
		}
		return c.convertYCbCr(m, w, h)
	case *image.Gray:
		f := c.alloc(frames.FormatGray, w, h)
		for y := range h {
			copy(f.Data[y*w:(y+1)*w], m.Pix[y*m.Stride:])
		}
		return f
	}

	f := c.alloc(frames.FormatRGB24, w, h)
	for y := range h {
		for x := range w {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := (y*w + x) * 3
			f.Data[i] = uint8(r >> 8)
			f.Data[i+1] = uint8(g >> 8)
			f.Data[i+2] = uint8(bl >> 8)
		}
	}
	return f
}

func ycbcrFormat(r image.YCbCrSubsampleRatio) (frames.PixelFormat, bool) {
	switch r {
	case image.YCbCrSubsampleRatio420:
		return frames.FormatYUVJ420P, true
	case image.YCbCrSubsampleRatio422:
		return frames.FormatYUVJ422P, true
	case image.YCbCrSubsampleRatio444:
		return frames.FormatYUVJ444P, true
	}
	return frames.FormatNone, false
}

func (c *jpegCodec) alloc(format frames.PixelFormat, w, h int) frames.Frame {
	size := format.FrameSize(w, h)
	if cap(c.buf) < size {
		c.buf = make([]byte, size)
	}
	return frames.Frame{Format: format, Width: w, Height: h, Data: c.buf[:size]}
}

func (c *jpegCodec) copyYCbCr(m *image.YCbCr, format frames.PixelFormat, w, h int) frames.Frame {
	f := c.alloc(format, w, h)
	planes := format.Layout(w, h)
	src := [3][]byte{m.Y, m.Cb, m.Cr}
	strides := [3]int{m.YStride, m.CStride, m.CStride}
	for i, p := range planes {
		for y := range p.Height {
			row := f.Data[p.Offset+y*p.Stride : p.Offset+(y+1)*p.Stride]
			copy(row, src[i][y*strides[i]:])
		}
	}
	return f
}

// convertYCbCr resamples 4:4:0, 4:1:1 and 4:1:0 images to 4:4:4.
func (c *jpegCodec) convertYCbCr(m *image.YCbCr, w, h int) frames.Frame {
	f := c.alloc(frames.FormatYUVJ444P, w, h)
	b := m.Bounds()
	plane := w * h
	for y := range h {
		for x := range w {
			px, py := b.Min.X+x, b.Min.Y+y
			i := y*w + x
			f.Data[i] = m.Y[m.YOffset(px, py)]
			ci := m.COffset(px, py)
			f.Data[plane+i] = m.Cb[ci]
			f.Data[2*plane+i] = m.Cr[ci]
		}
	}
	return f
}
