package viewport

import (
	"image/color"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/ffview/internal/events"
	"github.com/smazurov/ffview/internal/logging"
	"github.com/smazurov/ffview/internal/transform"
)

// Render says what a parameter change requires from the presentation side.
type Render int

const (
	// RenderNone means nothing visible changed.
	RenderNone Render = iota
	// RenderRepaint redraws the current display frame with new geometry.
	RenderRepaint
	// RenderRetransform rebuilds the display frame from the last raw frame.
	RenderRetransform
)

// View field names used in change notifications.
const (
	FieldX           = "x"
	FieldY           = "y"
	FieldZoom        = "zoom"
	FieldGridX       = "gx"
	FieldGridY       = "gy"
	FieldGridSpacing = "gs"
	FieldGrid        = "grid"
	FieldGridColor   = "gcol"
	FieldFalseColor  = "fcol"
)

// State holds the view parameters.
type State struct {
	X, Y         int
	Zoom         int
	GridX, GridY int
	GridSpacing  int
	GridEnabled  bool
	GridColor    color.RGBA
	FalseColor   transform.Mode

	ImageWidth, ImageHeight   int
	WidgetWidth, WidgetHeight int
}

// Snapshot is a consistent copy of the view parameters and derived geometry.
type Snapshot struct {
	State
	Geometry
}

// MaxGridX returns the largest grid x for the current image.
func (s Snapshot) MaxGridX() int { return max(s.ImageWidth-1, 1) }

// MaxGridY returns the largest grid y for the current image.
func (s Snapshot) MaxGridY() int { return max(s.ImageHeight-1, 1) }

// Grid returns the grid overlay parameters for the view.
func (s Snapshot) Grid() transform.Grid {
	return transform.Grid{
		Enabled: s.GridEnabled,
		X:       s.GridX,
		Y:       s.GridY,
		Spacing: s.GridSpacing,
		Color:   s.GridColor,
		ScaleX:  s.SFX,
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithBackend sets the presentation backend. The overlay backend needs even
// pan offsets and redraws the grid by retransforming.
func WithBackend(b transform.Backend) Option {
	return func(c *Controller) { c.backend = b }
}

// WithBus publishes view and geometry changes on bus.
func WithBus(bus *events.Bus) Option {
	return func(c *Controller) { c.bus = bus }
}

// WithRenderFunc sets the callback invoked after changes that need a render.
// It runs on the goroutine that made the change, without locks held.
func WithRenderFunc(fn func(Render)) Option {
	return func(c *Controller) { c.onRender = fn }
}

// Controller owns the view state. All methods are safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	state    State
	geom     Geometry
	dirty    bool
	backend  transform.Backend
	bus      *events.Bus
	onRender func(Render)
	logger   *slog.Logger
}

// New creates a controller with zoom 0, grid spacing 10, grid disabled,
// a white grid and false colour off.
func New(opts ...Option) *Controller {
	c := &Controller{
		state: State{
			GridX:       1,
			GridY:       1,
			GridSpacing: MinGridSpacing,
			GridColor:   color.RGBA{R: 255, G: 255, B: 255, A: 255},
		},
		dirty:  true,
		logger: logging.GetLogger("viewport"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backend returns the presentation backend.
func (c *Controller) Backend() transform.Backend {
	return c.backend
}

// Snapshot returns the current state and geometry.
func (c *Controller) Snapshot() Snapshot {
	var snap Snapshot
	c.Batch(func(b *Batch) {
		b.ensureGeometry()
		snap = Snapshot{State: c.state, Geometry: c.geom}
	})
	return snap
}

// Batch applies several changes with a single re-derivation and a single
// render request at the end.
func (c *Controller) Batch(fn func(b *Batch)) {
	c.mu.Lock()
	b := &Batch{c: c}
	fn(b)
	b.ensureGeometry()
	changes, geom, render := b.changes, b.geomChanged, b.render
	snap := Snapshot{State: c.state, Geometry: c.geom}
	onRender := c.onRender
	c.mu.Unlock()

	c.notify(changes, geom, snap)
	if render != RenderNone && onRender != nil {
		onRender(render)
	}
}

// OnRender replaces the render callback set with WithRenderFunc.
func (c *Controller) OnRender(fn func(Render)) {
	c.mu.Lock()
	c.onRender = fn
	c.mu.Unlock()
}

// SetX sets the horizontal pan offset.
func (c *Controller) SetX(x int) { c.Batch(func(b *Batch) { b.SetX(x) }) }

// SetY sets the vertical pan offset.
func (c *Controller) SetY(y int) { c.Batch(func(b *Batch) { b.SetY(y) }) }

// SetPan sets both pan offsets.
func (c *Controller) SetPan(x, y int) { c.Batch(func(b *Batch) { b.SetPan(x, y) }) }

// SetZoom sets the zoom level.
func (c *Controller) SetZoom(zoom int) { c.Batch(func(b *Batch) { b.SetZoom(zoom) }) }

// SetGx sets the grid centre x.
func (c *Controller) SetGx(gx int) { c.Batch(func(b *Batch) { b.SetGx(gx) }) }

// SetGy sets the grid centre y.
func (c *Controller) SetGy(gy int) { c.Batch(func(b *Batch) { b.SetGy(gy) }) }

// SetGridCenter sets both grid centre coordinates.
func (c *Controller) SetGridCenter(gx, gy int) { c.Batch(func(b *Batch) { b.SetGridCenter(gx, gy) }) }

// SetGridSpacing sets the minor grid spacing.
func (c *Controller) SetGridSpacing(gs int) { c.Batch(func(b *Batch) { b.SetGridSpacing(gs) }) }

// SetGridEnabled turns the grid on or off.
func (c *Controller) SetGridEnabled(on bool) { c.Batch(func(b *Batch) { b.SetGridEnabled(on) }) }

// SetGridColor sets the grid colour.
func (c *Controller) SetGridColor(col color.RGBA) { c.Batch(func(b *Batch) { b.SetGridColor(col) }) }

// SetFalseColor sets the false colour mode.
func (c *Controller) SetFalseColor(m transform.Mode) { c.Batch(func(b *Batch) { b.SetFalseColor(m) }) }

// SetImageSize records new display frame dimensions. Zoom returns to 0 and
// the grid centre is re-clamped to the new image.
func (c *Controller) SetImageSize(w, h int) { c.Batch(func(b *Batch) { b.SetImageSize(w, h) }) }

// SetWidgetSize records a new presentation surface size.
func (c *Controller) SetWidgetSize(w, h int) { c.Batch(func(b *Batch) { b.SetWidgetSize(w, h) }) }

// ZoomAt zooms in (delta > 0) or out (delta < 0) by one level, keeping the
// image point under the surface position px, py in place.
func (c *Controller) ZoomAt(delta, px, py int) {
	c.Batch(func(b *Batch) { b.ZoomAt(delta, px, py) })
}

func (c *Controller) notify(changes []events.ViewChangedEvent, geom bool, snap Snapshot) {
	if len(changes) > 0 {
		c.logger.Debug("View changed", "changes", len(changes))
	}
	if c.bus == nil {
		return
	}
	ts := time.Now().Format(time.RFC3339)
	for _, ev := range changes {
		ev.Timestamp = ts
		c.bus.Publish(ev)
	}
	if geom {
		c.bus.Publish(events.GeometryChangedEvent{
			ImageWidth:    snap.ImageWidth,
			ImageHeight:   snap.ImageHeight,
			VisibleWidth:  snap.VisibleWidth,
			VisibleHeight: snap.VisibleHeight,
			MaxX:          snap.MaxX,
			MaxY:          snap.MaxY,
			MaxGridX:      snap.MaxGridX(),
			MaxGridY:      snap.MaxGridY(),
			Scale:         snap.SFX,
			Timestamp:     ts,
		})
	}
}

// Batch applies changes to a Controller while its lock is held. It is only
// valid inside the function passed to Controller.Batch.
type Batch struct {
	c           *Controller
	changes     []events.ViewChangedEvent
	geomChanged bool
	render      Render
}

func (b *Batch) changed(field string, value int64, r Render) {
	b.changes = append(b.changes, events.ViewChangedEvent{Field: field, Value: value})
	b.render = max(b.render, r)
}

// gridRender is the render needed after a grid change: the overlay backend
// draws the grid into the raster, the fallback backend at paint time.
func (b *Batch) gridRender() Render {
	if b.c.backend == transform.BackendOverlay {
		return RenderRetransform
	}
	return RenderRepaint
}

func (b *Batch) ensureGeometry() {
	c := b.c
	if !c.dirty {
		return
	}
	c.dirty = false
	s := &c.state
	g := Compute(s.ImageWidth, s.ImageHeight, s.WidgetWidth, s.WidgetHeight, s.Zoom)
	if g != c.geom {
		c.geom = g
		b.geomChanged = true
		b.render = max(b.render, RenderRepaint)
	}
	b.SetX(s.X)
	b.SetY(s.Y)
}

func (b *Batch) pan(v, limit int) int {
	v = clamp(v, 0, limit)
	if b.c.backend == transform.BackendOverlay {
		v -= v % 2
	}
	return v
}

// SetX sets the horizontal pan offset in image pixels.
func (b *Batch) SetX(x int) {
	b.ensureGeometry()
	x = b.pan(x, b.c.geom.MaxX)
	if x != b.c.state.X {
		b.c.state.X = x
		b.changed(FieldX, int64(x), RenderRepaint)
	}
}

// SetY sets the vertical pan offset in image pixels.
func (b *Batch) SetY(y int) {
	b.ensureGeometry()
	y = b.pan(y, b.c.geom.MaxY)
	if y != b.c.state.Y {
		b.c.state.Y = y
		b.changed(FieldY, int64(y), RenderRepaint)
	}
}

// SetPan sets both pan offsets.
func (b *Batch) SetPan(x, y int) {
	b.SetX(x)
	b.SetY(y)
}

// SetZoom sets the zoom level, clamped to [MinZoom, MaxZoom].
func (b *Batch) SetZoom(zoom int) {
	zoom = clamp(zoom, MinZoom, MaxZoom)
	if zoom != b.c.state.Zoom {
		b.c.state.Zoom = zoom
		b.c.dirty = true
		b.changed(FieldZoom, int64(zoom), RenderRepaint)
	}
}

func gridLimit(v, dim int) int {
	if v < 1 {
		return 1
	}
	if dim > 0 && v > dim-1 {
		return dim - 1
	}
	return v
}

// SetGx sets the grid centre x, clamped to [1, width-1].
func (b *Batch) SetGx(gx int) {
	gx = gridLimit(gx, b.c.state.ImageWidth)
	if gx != b.c.state.GridX {
		b.c.state.GridX = gx
		b.changed(FieldGridX, int64(gx), b.gridRender())
	}
}

// SetGy sets the grid centre y, clamped to [1, height-1].
func (b *Batch) SetGy(gy int) {
	gy = gridLimit(gy, b.c.state.ImageHeight)
	if gy != b.c.state.GridY {
		b.c.state.GridY = gy
		b.changed(FieldGridY, int64(gy), b.gridRender())
	}
}

// SetGridCenter sets both grid centre coordinates.
func (b *Batch) SetGridCenter(gx, gy int) {
	b.SetGx(gx)
	b.SetGy(gy)
}

// SetGridSpacing sets the minor grid spacing, clamped to
// [MinGridSpacing, MaxGridSpacing].
func (b *Batch) SetGridSpacing(gs int) {
	gs = clamp(gs, MinGridSpacing, MaxGridSpacing)
	if gs != b.c.state.GridSpacing {
		b.c.state.GridSpacing = gs
		b.changed(FieldGridSpacing, int64(gs), b.gridRender())
	}
}

// SetGridEnabled turns the grid on or off.
func (b *Batch) SetGridEnabled(on bool) {
	if on != b.c.state.GridEnabled {
		b.c.state.GridEnabled = on
		var v int64
		if on {
			v = 1
		}
		b.changed(FieldGrid, v, b.gridRender())
	}
}

// SetGridColor sets the grid colour. Alpha is ignored.
func (b *Batch) SetGridColor(col color.RGBA) {
	col.A = 255
	if col != b.c.state.GridColor {
		b.c.state.GridColor = col
		b.changed(FieldGridColor, int64(ColorValue(col)), b.gridRender())
	}
}

// SetFalseColor sets the false colour mode.
func (b *Batch) SetFalseColor(m transform.Mode) {
	m = transform.Mode(clamp(int(m), int(transform.ModeOff), int(transform.ModeIron)))
	if m != b.c.state.FalseColor {
		b.c.state.FalseColor = m
		b.changed(FieldFalseColor, int64(m), RenderRetransform)
	}
}

// SetImageSize records new image dimensions.
func (b *Batch) SetImageSize(w, h int) {
	s := &b.c.state
	if w == s.ImageWidth && h == s.ImageHeight {
		return
	}
	s.ImageWidth, s.ImageHeight = w, h
	b.c.dirty = true
	b.render = max(b.render, RenderRepaint)
	b.SetZoom(0)
	b.SetGridCenter(s.GridX, s.GridY)
}

// SetWidgetSize records the presentation surface size.
func (b *Batch) SetWidgetSize(w, h int) {
	s := &b.c.state
	if w == s.WidgetWidth && h == s.WidgetHeight {
		return
	}
	s.WidgetWidth, s.WidgetHeight = w, h
	b.c.dirty = true
	b.render = max(b.render, RenderRepaint)
}

// ZoomAt changes the zoom by one level in the direction of delta and pans
// so that the point at px, py on the surface stays under the cursor.
func (b *Batch) ZoomAt(delta, px, py int) {
	if delta == 0 {
		return
	}
	b.ensureGeometry()
	g := b.c.geom
	var fx, fy float64
	if g.ScaledVisibleWidth > 0 {
		fx = float64(px) / float64(g.ScaledVisibleWidth)
	}
	if g.ScaledVisibleHeight > 0 {
		fy = float64(py) / float64(g.ScaledVisibleHeight)
	}

	step := 1
	if delta < 0 {
		step = -1
	}
	b.SetZoom(b.c.state.Zoom + step)
	b.ensureGeometry()

	s := b.c.state
	b.SetX(s.X + int(0.5+fx*float64(g.VisibleWidth-b.c.geom.VisibleWidth)))
	b.SetY(s.Y + int(0.5+fy*float64(g.VisibleHeight-b.c.geom.VisibleHeight)))
}

// State returns the parameters as they stand inside the batch.
func (b *Batch) State() State {
	return b.c.state
}

// ColorValue encodes a colour as 0xRRGGBB.
func ColorValue(c color.RGBA) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// ColorFromValue decodes a 0xRRGGBB colour.
func ColorFromValue(v uint32) color.RGBA {
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}
