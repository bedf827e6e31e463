package frames

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/smazurov/ffview/internal/logging"
)

// Limits of the supported image size.
const (
	MaxWidth       = 4000
	MaxHeight      = 3000
	DefaultBuffers = 20
)

var (
	// ErrNotExclusive is returned when frame data is written to a buffer that
	// is shared with a reader.
	ErrNotExclusive = errors.New("buffer is not exclusively owned")
	// ErrTooLarge is returned when a frame does not fit the buffer capacity.
	ErrTooLarge = errors.New("frame exceeds buffer capacity")
	// ErrShortFrame is returned when frame data is smaller than its layout.
	ErrShortFrame = errors.New("frame data shorter than layout")
)

// Capacity returns the buffer size needed to hold a maxWidth x maxHeight
// frame in the widest supported format.
func Capacity(maxWidth, maxHeight int) int {
	return maxWidth * maxHeight * 3
}

// Frame describes a decoded picture that is not owned by a pool.
type Frame struct {
	Format PixelFormat
	Width  int
	Height int
	Data   []byte
}

type slot struct {
	mu     sync.Mutex
	refs   int
	mem    []byte
	format PixelFormat
	width  int
	height int
	size   int
}

// Handle refers to one pooled buffer. Handles are owned by the pool and stay
// valid for its lifetime; the buffer behind a handle may be reused once all
// holders have released it.
type Handle struct {
	pool *Pool
	slot *slot
}

// PoolStats is a snapshot of pool usage.
type PoolStats struct {
	Size       int    `json:"size"`
	InUse      int    `json:"in_use"`
	Exhausted  uint64 `json:"exhausted"`
	Underflows uint64 `json:"underflows"`
}

// Pool is a fixed arena of reference-counted buffers.
type Pool struct {
	name       string
	slots      []slot
	handles    []Handle
	logger     *slog.Logger
	exhausted  atomic.Uint64
	underflows atomic.Uint64
}

// NewPool allocates n buffers of capacity bytes each.
func NewPool(name string, n, capacity int) *Pool {
	p := &Pool{
		name:    name,
		slots:   make([]slot, n),
		handles: make([]Handle, n),
		logger:  logging.GetLogger("frames").With("pool", name),
	}
	for i := range p.slots {
		p.slots[i].mem = make([]byte, capacity)
		p.handles[i] = Handle{pool: p, slot: &p.slots[i]}
	}
	return p
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.name
}

// Size returns the number of buffers in the pool.
func (p *Pool) Size() int {
	return len(p.slots)
}

// Acquire returns a free buffer with a reference count of 1. It never blocks:
// a buffer whose lock is momentarily held elsewhere is skipped, and false is
// returned when no buffer is free.
func (p *Pool) Acquire() (*Handle, bool) {
	for i := range p.slots {
		s := &p.slots[i]
		if !s.mu.TryLock() {
			continue
		}
		if s.refs == 0 {
			s.refs = 1
			s.format = FormatNone
			s.width, s.height, s.size = 0, 0, 0
			s.mu.Unlock()
			return &p.handles[i], true
		}
		s.mu.Unlock()
	}
	p.exhausted.Add(1)
	return nil, false
}

// Stats returns current usage counters.
func (p *Pool) Stats() PoolStats {
	inUse := 0
	for i := range p.slots {
		s := &p.slots[i]
		s.mu.Lock()
		if s.refs > 0 {
			inUse++
		}
		s.mu.Unlock()
	}
	return PoolStats{
		Size:       len(p.slots),
		InUse:      inUse,
		Exhausted:  p.exhausted.Load(),
		Underflows: p.underflows.Load(),
	}
}

// Reserve adds a reference to the buffer.
func (h *Handle) Reserve() {
	h.slot.mu.Lock()
	h.slot.refs++
	h.slot.mu.Unlock()
}

// Release drops a reference. Releasing a buffer with no references is
// logged and otherwise ignored.
func (h *Handle) Release() {
	s := h.slot
	s.mu.Lock()
	if s.refs <= 0 {
		s.mu.Unlock()
		h.pool.underflows.Add(1)
		h.pool.logger.Error("Release of unreferenced buffer")
		return
	}
	s.refs--
	s.mu.Unlock()
}

// Refs returns the current reference count.
func (h *Handle) Refs() int {
	h.slot.mu.Lock()
	defer h.slot.mu.Unlock()
	return h.slot.refs
}

// Prepare sets the frame description and returns the writable frame bytes.
// The caller must be the only holder of the buffer.
func (h *Handle) Prepare(format PixelFormat, width, height int) ([]byte, error) {
	size := format.FrameSize(width, height)
	s := h.slot
	if size > len(s.mem) {
		return nil, fmt.Errorf("%dx%d %s needs %d bytes, have %d: %w",
			width, height, format, size, len(s.mem), ErrTooLarge)
	}

	s.mu.Lock()
	refs := s.refs
	s.mu.Unlock()
	if refs != 1 {
		return nil, ErrNotExclusive
	}

	s.format = format
	s.width = width
	s.height = height
	s.size = size
	return s.mem[:size], nil
}

// Fill copies a decoded frame into the buffer.
func (h *Handle) Fill(f Frame) error {
	dst, err := h.Prepare(f.Format, f.Width, f.Height)
	if err != nil {
		return err
	}
	if len(f.Data) < len(dst) {
		return ErrShortFrame
	}
	copy(dst, f.Data)
	return nil
}

// Format returns the pixel format of the stored frame.
func (h *Handle) Format() PixelFormat { return h.slot.format }

// Width returns the stored frame width.
func (h *Handle) Width() int { return h.slot.width }

// Height returns the stored frame height.
func (h *Handle) Height() int { return h.slot.height }

// Data returns the stored frame bytes.
func (h *Handle) Data() []byte { return h.slot.mem[:h.slot.size] }

// Planes returns the layout of the stored frame.
func (h *Handle) Planes() []Plane {
	return h.slot.format.Layout(h.slot.width, h.slot.height)
}

// Plane returns the bytes of plane i and its stride.
func (h *Handle) Plane(i int) ([]byte, int) {
	planes := h.Planes()
	if i < 0 || i >= len(planes) {
		return nil, 0
	}
	p := planes[i]
	return h.slot.mem[p.Offset : p.Offset+p.Size()], p.Stride
}

// Frame returns a view of the stored frame. The data aliases the buffer.
func (h *Handle) Frame() Frame {
	return Frame{
		Format: h.slot.format,
		Width:  h.slot.width,
		Height: h.slot.height,
		Data:   h.Data(),
	}
}
