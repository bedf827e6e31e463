package viewport

import (
	"image/color"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/ffview/internal/events"
	"github.com/smazurov/ffview/internal/transform"
)

type renderRecorder struct {
	mu    sync.Mutex
	calls []Render
}

func (r *renderRecorder) record(kind Render) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, kind)
}

func (r *renderRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *renderRecorder) get() []Render {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Render(nil), r.calls...)
}

func newTestController(backend transform.Backend, opts ...Option) (*Controller, *renderRecorder) {
	rec := &renderRecorder{}
	opts = append([]Option{WithBackend(backend), WithRenderFunc(rec.record)}, opts...)
	c := New(opts...)
	c.Batch(func(b *Batch) {
		b.SetWidgetSize(500, 400)
		b.SetImageSize(1000, 800)
	})
	rec.reset()
	return c, rec
}

func TestGridClamping(t *testing.T) {
	c, _ := newTestController(transform.BackendFallback)
	c.SetImageSize(640, 480)

	tests := []struct {
		name  string
		apply func()
		get   func(Snapshot) int
		want  int
	}{
		{"gx below range", func() { c.SetGx(0) }, func(s Snapshot) int { return s.GridX }, 1},
		{"gx at width", func() { c.SetGx(640) }, func(s Snapshot) int { return s.GridX }, 639},
		{"gy negative", func() { c.SetGy(-5) }, func(s Snapshot) int { return s.GridY }, 1},
		{"gy beyond height", func() { c.SetGy(10000) }, func(s Snapshot) int { return s.GridY }, 479},
		{"spacing below range", func() { c.SetGridSpacing(5) }, func(s Snapshot) int { return s.GridSpacing }, 10},
		{"spacing above range", func() { c.SetGridSpacing(5000) }, func(s Snapshot) int { return s.GridSpacing }, 2000},
		{"zoom below range", func() { c.SetZoom(-3) }, func(s Snapshot) int { return s.Zoom }, 0},
		{"zoom above range", func() { c.SetZoom(99) }, func(s Snapshot) int { return s.Zoom }, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.apply()
			if got := tt.get(c.Snapshot()); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestZoomReclampsPan(t *testing.T) {
	c, _ := newTestController(transform.BackendFallback)

	c.SetZoom(10)
	s10 := c.Snapshot()
	c.SetZoom(11)
	s11 := c.Snapshot()

	if s11.ScaledWidth <= s10.ScaledWidth || s11.ScaledHeight <= s10.ScaledHeight {
		t.Errorf("scaled dims did not grow: %dx%d -> %dx%d",
			s10.ScaledWidth, s10.ScaledHeight, s11.ScaledWidth, s11.ScaledHeight)
	}
	if s11.MaxX != 718 || s11.MaxY != 575 {
		t.Fatalf("max pan at zoom 11 = %d,%d, want 718,575", s11.MaxX, s11.MaxY)
	}

	c.SetPan(700, 560)
	if s := c.Snapshot(); s.X != 700 || s.Y != 560 {
		t.Fatalf("pan = %d,%d, want 700,560", s.X, s.Y)
	}

	c.SetZoom(10)
	s := c.Snapshot()
	if s.X != 684 || s.Y != 547 {
		t.Errorf("pan after zoom out = %d,%d, want 684,547", s.X, s.Y)
	}
}

func TestPanClampingProperty(t *testing.T) {
	c, _ := newTestController(transform.BackendFallback)
	rng := rand.New(rand.NewSource(1))

	for range 500 {
		c.SetZoom(rng.Intn(MaxZoom + 1))
		c.SetPan(rng.Intn(4000)-2000, rng.Intn(4000)-2000)
		s := c.Snapshot()
		if s.X < 0 || s.X > s.MaxX || s.Y < 0 || s.Y > s.MaxY {
			t.Fatalf("pan %d,%d outside [0,%d]x[0,%d] at zoom %d", s.X, s.Y, s.MaxX, s.MaxY, s.Zoom)
		}
		if s.MaxX != max(s.ImageWidth-s.VisibleWidth, 0) {
			t.Fatalf("MaxX = %d, want %d", s.MaxX, s.ImageWidth-s.VisibleWidth)
		}
	}
}

func TestOverlayPanIsEven(t *testing.T) {
	c, _ := newTestController(transform.BackendOverlay)
	c.SetZoom(10)

	c.SetPan(101, 333)
	s := c.Snapshot()
	if s.X != 100 || s.Y != 332 {
		t.Errorf("pan = %d,%d, want 100,332", s.X, s.Y)
	}

	// MaxY is odd at this zoom.
	c.SetY(10000)
	if s := c.Snapshot(); s.Y != 546 {
		t.Errorf("Y = %d, want 546", s.Y)
	}
}

func TestSetterNoOp(t *testing.T) {
	c, rec := newTestController(transform.BackendFallback)
	c.SetGridSpacing(50)
	rec.reset()

	c.SetGridSpacing(50)
	c.SetZoom(0)
	c.SetPan(0, 0)
	c.SetFalseColor(transform.ModeOff)

	if calls := rec.get(); len(calls) != 0 {
		t.Errorf("render calls = %v, want none", calls)
	}
}

func TestRenderKinds(t *testing.T) {
	tests := []struct {
		name    string
		backend transform.Backend
		apply   func(c *Controller)
		want    Render
	}{
		{"grid on overlay", transform.BackendOverlay, func(c *Controller) { c.SetGx(300) }, RenderRetransform},
		{"grid on fallback", transform.BackendFallback, func(c *Controller) { c.SetGx(300) }, RenderRepaint},
		{"colour on fallback", transform.BackendFallback, func(c *Controller) {
			c.SetGridColor(color.RGBA{R: 255, A: 255})
		}, RenderRepaint},
		{"false colour", transform.BackendFallback, func(c *Controller) { c.SetFalseColor(transform.ModeIron) }, RenderRetransform},
		{"zoom", transform.BackendOverlay, func(c *Controller) { c.SetZoom(4) }, RenderRepaint},
		{"widget resize", transform.BackendOverlay, func(c *Controller) { c.SetWidgetSize(640, 480) }, RenderRepaint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestController(tt.backend)
			tt.apply(c)
			calls := rec.get()
			if len(calls) != 1 || calls[0] != tt.want {
				t.Errorf("render calls = %v, want [%v]", calls, tt.want)
			}
		})
	}
}

func TestBatchRendersOnce(t *testing.T) {
	c, rec := newTestController(transform.BackendOverlay)

	c.Batch(func(b *Batch) {
		b.SetZoom(12)
		b.SetPan(200, 200)
		b.SetGridCenter(500, 400)
		b.SetGridSpacing(40)
		b.SetGridEnabled(true)
	})

	calls := rec.get()
	if len(calls) != 1 {
		t.Fatalf("render calls = %d, want 1", len(calls))
	}
	if calls[0] != RenderRetransform {
		t.Errorf("render = %v, want RenderRetransform", calls[0])
	}
	s := c.Snapshot()
	if s.Zoom != 12 || s.X != 200 || s.GridX != 500 || s.GridSpacing != 40 || !s.GridEnabled {
		t.Errorf("snapshot = %+v", s.State)
	}
}

func TestSetImageSizeResetsZoom(t *testing.T) {
	c, _ := newTestController(transform.BackendFallback)
	c.SetGridCenter(900, 700)
	c.SetZoom(5)

	c.SetImageSize(640, 480)

	s := c.Snapshot()
	if s.Zoom != 0 {
		t.Errorf("Zoom = %d, want 0", s.Zoom)
	}
	if s.GridX != 639 || s.GridY != 479 {
		t.Errorf("grid centre = %d,%d, want 639,479", s.GridX, s.GridY)
	}
	if s.MaxGridX() != 639 || s.MaxGridY() != 479 {
		t.Errorf("max grid = %d,%d, want 639,479", s.MaxGridX(), s.MaxGridY())
	}
}

func TestZoomAtKeepsCursorPoint(t *testing.T) {
	c, _ := newTestController(transform.BackendFallback)

	c.ZoomAt(1, 250, 200)

	s := c.Snapshot()
	if s.Zoom != 1 {
		t.Fatalf("Zoom = %d, want 1", s.Zoom)
	}
	if s.VisibleWidth != 891 || s.VisibleHeight != 713 {
		t.Fatalf("visible = %dx%d, want 891x713", s.VisibleWidth, s.VisibleHeight)
	}
	if s.X != 55 || s.Y != 44 {
		t.Errorf("pan = %d,%d, want 55,44", s.X, s.Y)
	}

	c.ZoomAt(-1, 250, 200)
	if s := c.Snapshot(); s.Zoom != 0 || s.X != 0 || s.Y != 0 {
		t.Errorf("after zoom out: zoom %d pan %d,%d, want 0 and 0,0", s.Zoom, s.X, s.Y)
	}
}

func TestViewEvents(t *testing.T) {
	bus := events.New()
	got := make(chan events.ViewChangedEvent, 16)
	geom := make(chan events.GeometryChangedEvent, 16)
	defer bus.Subscribe(func(e events.ViewChangedEvent) { got <- e })()
	defer bus.Subscribe(func(e events.GeometryChangedEvent) { geom <- e })()

	c, _ := newTestController(transform.BackendFallback, WithBus(bus))

	c.SetGridColor(color.RGBA{R: 0x12, G: 0x34, B: 0x56})
	waitFor(t, got, func(e events.ViewChangedEvent) bool {
		return e.Field == FieldGridColor && e.Value == 0x123456
	})

	c.SetZoom(10)
	waitFor(t, geom, func(e events.GeometryChangedEvent) bool {
		return e.MaxX == 684 && e.MaxY == 547 && e.ImageWidth == 1000
	})
}

func waitFor[T any](t *testing.T, ch chan T, match func(T) bool) {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case e := <-ch:
			if match(e) {
				return
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %T", *new(T))
		}
	}
}

func TestSnapshotGrid(t *testing.T) {
	c, _ := newTestController(transform.BackendOverlay)
	c.Batch(func(b *Batch) {
		b.SetZoom(10)
		b.SetGridEnabled(true)
		b.SetGridCenter(100, 120)
	})

	g := c.Snapshot().Grid()
	if !g.Enabled || g.X != 100 || g.Y != 120 || g.Spacing != MinGridSpacing {
		t.Errorf("Grid() = %+v", g)
	}
	if want := 500.0 / 316; g.ScaleX != want {
		t.Errorf("ScaleX = %v, want %v", g.ScaleX, want)
	}
}

func TestColorValue(t *testing.T) {
	c := color.RGBA{R: 0xab, G: 0xcd, B: 0xef, A: 255}
	if v := ColorValue(c); v != 0xabcdef {
		t.Errorf("ColorValue = %#x, want 0xabcdef", v)
	}
	if got := ColorFromValue(0xabcdef); got != c {
		t.Errorf("ColorFromValue = %+v, want %+v", got, c)
	}
}

func TestControllerConcurrency(t *testing.T) {
	c, _ := newTestController(transform.BackendOverlay)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for range 100 {
				switch rng.Intn(4) {
				case 0:
					c.SetZoom(rng.Intn(31))
				case 1:
					c.SetPan(rng.Intn(1000), rng.Intn(800))
				case 2:
					c.ZoomAt(rng.Intn(3)-1, rng.Intn(500), rng.Intn(400))
				default:
					_ = c.Snapshot()
				}
			}
		}(int64(i))
	}
	wg.Wait()

	s := c.Snapshot()
	if s.X < 0 || s.X > s.MaxX || s.X%2 != 0 {
		t.Errorf("X = %d, MaxX = %d", s.X, s.MaxX)
	}
}
