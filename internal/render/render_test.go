package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"golang.org/x/image/draw"

	"github.com/smazurov/ffview/internal/frames"
	"github.com/smazurov/ffview/internal/viewport"
)

func newFrame(t *testing.T, format frames.PixelFormat, w, h int, fill func([]byte)) *frames.Handle {
	t.Helper()
	pool := frames.NewPool("test", 1, frames.Capacity(w, h))
	hd, ok := pool.Acquire()
	if !ok {
		t.Fatal("Acquire() failed")
	}
	buf, err := hd.Prepare(format, w, h)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	fill(buf)
	t.Cleanup(hd.Release)
	return hd
}

func grayI420(luma byte) func([]byte) {
	return func(buf []byte) {
		for i := range buf {
			buf[i] = 128
		}
		for i := range len(buf) * 2 / 3 {
			buf[i] = luma
		}
	}
}

func view(imageW, imageH, widgetW, widgetH int) viewport.Snapshot {
	return viewport.Snapshot{
		State: viewport.State{
			GridSpacing: 10,
			GridColor:   color.RGBA{R: 255, G: 255, B: 255, A: 255},
			ImageWidth:  imageW, ImageHeight: imageH,
			WidgetWidth: widgetW, WidgetHeight: widgetH,
		},
		Geometry: viewport.Compute(imageW, imageH, widgetW, widgetH, 0),
	}
}

func near(got, want uint8) bool {
	d := int(got) - int(want)
	return d >= -2 && d <= 2
}

func TestComposeI420(t *testing.T) {
	frame := newFrame(t, frames.FormatYUVJ420P, 16, 8, grayI420(200))

	canvas := Compose(frame, view(16, 8, 0, 0), draw.NearestNeighbor)
	if got := canvas.Bounds(); got != image.Rect(0, 0, 16, 8) {
		t.Fatalf("Bounds() = %v, want 16x8", got)
	}
	c := canvas.RGBAAt(5, 5)
	if !near(c.R, 200) || !near(c.G, 200) || !near(c.B, 200) {
		t.Errorf("pixel = %v, want gray 200", c)
	}
}

func TestComposeScalesToWidget(t *testing.T) {
	frame := newFrame(t, frames.FormatYUVJ420P, 16, 8, grayI420(90))

	tests := []struct {
		name         string
		widgetW      int
		widgetH      int
		wantBounds   image.Rectangle
		paintedPixel image.Point
		blackPixel   image.Point
	}{
		{"fit", 32, 16, image.Rect(0, 0, 32, 16), image.Pt(31, 15), image.Pt(-1, -1)},
		{"letterbox", 32, 32, image.Rect(0, 0, 32, 32), image.Pt(31, 15), image.Pt(0, 20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			canvas := Compose(frame, view(16, 8, tt.widgetW, tt.widgetH), draw.NearestNeighbor)
			if canvas.Bounds() != tt.wantBounds {
				t.Fatalf("Bounds() = %v, want %v", canvas.Bounds(), tt.wantBounds)
			}
			if c := canvas.RGBAAt(tt.paintedPixel.X, tt.paintedPixel.Y); !near(c.R, 90) {
				t.Errorf("painted pixel = %v, want gray 90", c)
			}
			if tt.blackPixel.X >= 0 {
				if c := canvas.RGBAAt(tt.blackPixel.X, tt.blackPixel.Y); c.R != 0 || c.A != 255 {
					t.Errorf("border pixel = %v, want opaque black", c)
				}
			}
		})
	}
}

func TestComposeCropsPan(t *testing.T) {
	frame := newFrame(t, frames.FormatRGB24, 16, 8, func(buf []byte) {
		for x := range 16 {
			for y := range 8 {
				buf[(y*16+x)*3] = uint8(x * 10)
			}
		}
	})

	v := viewport.Snapshot{
		State: viewport.State{X: 8, ImageWidth: 16, ImageHeight: 8},
		Geometry: viewport.Geometry{
			Scale: 1, ScaledWidth: 16, ScaledHeight: 8,
			ScaledVisibleWidth: 8, ScaledVisibleHeight: 8,
			VisibleWidth: 8, VisibleHeight: 8,
			SFX: 1, SFY: 1, MaxX: 8,
		},
	}
	canvas := Compose(frame, v, draw.NearestNeighbor)
	if got := canvas.RGBAAt(0, 0).R; got != 80 {
		t.Errorf("first visible column red = %d, want 80", got)
	}
}

func TestComposeDrawsGridOnRGB(t *testing.T) {
	frame := newFrame(t, frames.FormatRGB24, 16, 8, func(buf []byte) { clear(buf) })

	v := view(16, 8, 0, 0)
	v.GridEnabled = true
	v.GridX, v.GridY = 4, 2

	canvas := Compose(frame, v, draw.NearestNeighbor)

	if c := canvas.RGBAAt(4, 6); c.R < 250 {
		t.Errorf("crosshair column pixel = %v, want white", c)
	}
	if c := canvas.RGBAAt(10, 2); c.R < 250 {
		t.Errorf("crosshair row pixel = %v, want white", c)
	}
	if c := canvas.RGBAAt(3, 6); c.R != 0 {
		t.Errorf("pixel beside crosshair = %v, want black", c)
	}
	if c := canvas.RGBAAt(14, 6); c.R < 25 || c.R > 45 {
		t.Errorf("minor line pixel = %v, want a faint line", c)
	}
}

func TestComposeLeavesI420GridAlone(t *testing.T) {
	frame := newFrame(t, frames.FormatYUVJ420P, 16, 8, grayI420(0))

	v := view(16, 8, 0, 0)
	v.GridEnabled = true
	v.GridX, v.GridY = 4, 2

	canvas := Compose(frame, v, draw.NearestNeighbor)
	if c := canvas.RGBAAt(4, 6); c.R > 2 {
		t.Errorf("I420 frame got a paint time grid: %v", c)
	}
}

func TestParseScaler(t *testing.T) {
	for _, name := range []string{"", "nearest", "bilinear", "catmullrom"} {
		if _, ok := ParseScaler(name); !ok {
			t.Errorf("ParseScaler(%q) failed", name)
		}
	}
	if _, ok := ParseScaler("lanczos"); ok {
		t.Error("ParseScaler(lanczos) succeeded")
	}
}

func TestSurfaceJPEG(t *testing.T) {
	s := New(Options{})
	if _, _, err := s.JPEG(); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("JPEG() before a frame error = %v, want ErrNoFrame", err)
	}

	s.Present(newFrame(t, frames.FormatYUVJ420P, 16, 8, grayI420(128)), view(16, 8, 0, 0))
	data, seq, err := s.JPEG()
	if err != nil {
		t.Fatalf("JPEG() error = %v", err)
	}
	if seq != 1 {
		t.Errorf("seq = %d, want 1", seq)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("jpeg.Decode() error = %v", err)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 8 {
		t.Errorf("decoded size = %v", img.Bounds())
	}

	again, _, _ := s.JPEG()
	if &again[0] != &data[0] {
		t.Error("unchanged frame was encoded twice")
	}
}

func TestSurfaceNext(t *testing.T) {
	s := New(Options{Quality: 50})
	frame := newFrame(t, frames.FormatYUVJ420P, 16, 8, grayI420(10))

	got := make(chan uint64, 1)
	go func() {
		_, seq, err := s.Next(context.Background(), 0)
		if err != nil {
			t.Errorf("Next() error = %v", err)
		}
		got <- seq
	}()

	time.Sleep(20 * time.Millisecond)
	s.Present(frame, view(16, 8, 0, 0))

	select {
	case seq := <-got:
		if seq != 1 {
			t.Errorf("Next() seq = %d, want 1", seq)
		}
	case <-time.After(time.Second):
		t.Fatal("Next() did not return after Present")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := s.Next(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next() without a new frame error = %v, want deadline exceeded", err)
	}
}

func TestSurfaceAttach(t *testing.T) {
	s := New(Options{})
	detachA := s.Attach()
	detachB := s.Attach()
	if got := s.Clients(); got != 2 {
		t.Fatalf("Clients() = %d, want 2", got)
	}
	detachA()
	detachA()
	if got := s.Clients(); got != 1 {
		t.Errorf("Clients() after a double detach = %d, want 1", got)
	}
	detachB()
	if got := s.Clients(); got != 0 {
		t.Errorf("Clients() = %d, want 0", got)
	}
}
