// Package mirror keeps the grid parameters of a viewer in step with a remote
// copy. The remote is polled and at most one changed field is applied per
// tick; local changes are written back.
package mirror

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/ffview/internal/events"
	"github.com/smazurov/ffview/internal/logging"
	"github.com/smazurov/ffview/internal/metrics"
	"github.com/smazurov/ffview/internal/viewport"
)

// Mirrored field names, the same as the view field names.
const (
	FieldGX   = viewport.FieldGridX
	FieldGY   = viewport.FieldGridY
	FieldGCol = viewport.FieldGridColor
	FieldGrid = viewport.FieldGrid
	FieldGS   = viewport.FieldGridSpacing
)

// Fields lists the mirrored fields in the order remote changes are applied.
var Fields = [...]string{FieldGX, FieldGY, FieldGCol, FieldGrid, FieldGS}

// DefaultInterval is the remote poll period.
const DefaultInterval = 100 * time.Millisecond

const (
	unset          = -1
	requestTimeout = 2 * time.Second
)

// Option configures a Mirror.
type Option func(*Mirror)

// WithInterval sets the poll period.
func WithInterval(d time.Duration) Option {
	return func(m *Mirror) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithBus enables write-back of local changes seen on bus.
func WithBus(bus *events.Bus) Option {
	return func(m *Mirror) { m.bus = bus }
}

// Mirror syncs the grid of a viewport controller with a Remote.
type Mirror struct {
	remote   Remote
	view     *viewport.Controller
	bus      *events.Bus
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	last    [len(Fields)]int64
	current [len(Fields)]int64
	pending map[int]int64
	failing bool

	kick     chan struct{}
	stopChan chan struct{}
	unsub    func()
	wg       sync.WaitGroup
}

// New creates a mirror of view against remote.
func New(remote Remote, view *viewport.Controller, opts ...Option) *Mirror {
	m := &Mirror{
		remote:   remote,
		view:     view,
		interval: DefaultInterval,
		logger:   logging.GetLogger("mirror"),
		pending:  make(map[int]int64),
		kick:     make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
	for i := range Fields {
		m.last[i], m.current[i] = unset, unset
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start subscribes to local changes and starts polling. Call Stop to end it.
func (m *Mirror) Start() {
	if m.bus != nil {
		m.unsub = m.bus.Subscribe(m.onViewChanged)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			<-m.stopChan
			cancel()
		}()

		for {
			select {
			case <-ticker.C:
				m.flush(ctx)
				m.poll(ctx)
			case <-m.kick:
				m.flush(ctx)
			case <-m.stopChan:
				return
			}
		}
	}()
	m.logger.Info("Mirror started", "interval", m.interval)
}

// Stop ends polling and write-back.
func (m *Mirror) Stop() {
	if m.unsub != nil {
		m.unsub()
	}
	close(m.stopChan)
	m.wg.Wait()
}

// poll reads the remote and applies the first changed field.
func (m *Mirror) poll(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, requestTimeout)
	g, err := m.remote.Get(rctx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.IncMirrorErrors("read")
		m.setFailing(true, err)
		return
	}
	m.setFailing(false, nil)

	m.mu.Lock()
	for i, field := range Fields {
		m.current[i], _ = g.Value(field)
	}
	idx := -1
	for i := range Fields {
		if _, queued := m.pending[i]; queued {
			continue
		}
		if m.last[i] != m.current[i] {
			m.last[i] = m.current[i]
			idx = i
			break
		}
	}
	var value int64
	if idx >= 0 {
		value = m.last[idx]
	}
	m.mu.Unlock()

	if idx >= 0 {
		m.logger.Debug("Applying remote value", "field", Fields[idx], "value", value)
		m.apply(Fields[idx], value)
	}
}

func (m *Mirror) apply(field string, value int64) {
	switch field {
	case FieldGX:
		m.view.SetGx(int(value))
	case FieldGY:
		m.view.SetGy(int(value))
	case FieldGCol:
		m.view.SetGridColor(viewport.ColorFromValue(uint32(value)))
	case FieldGrid:
		m.view.SetGridEnabled(value != 0)
	case FieldGS:
		m.view.SetGridSpacing(int(value))
	}
}

// onViewChanged queues a local change for write-back. A value equal to the
// one last seen on the remote is the echo of an applied remote change.
func (m *Mirror) onViewChanged(ev events.ViewChangedEvent) {
	idx := fieldIndex(ev.Field)
	if idx < 0 {
		return
	}

	m.mu.Lock()
	if m.last[idx] == ev.Value {
		m.mu.Unlock()
		return
	}
	m.last[idx] = ev.Value
	m.pending[idx] = ev.Value
	m.mu.Unlock()

	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// flush writes queued local changes in field order.
func (m *Mirror) flush(ctx context.Context) {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return
	}
	pending := m.pending
	m.pending = make(map[int]int64)
	m.mu.Unlock()

	for i, field := range Fields {
		value, ok := pending[i]
		if !ok {
			continue
		}
		rctx, cancel := context.WithTimeout(ctx, requestTimeout)
		err := m.remote.Put(rctx, field, value)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.IncMirrorErrors("write")
			m.logger.Warn("Failed to write back view change", "field", field, "value", value, "error", err)
		}
	}
}

func (m *Mirror) setFailing(failing bool, err error) {
	m.mu.Lock()
	was := m.failing
	m.failing = failing
	m.mu.Unlock()

	switch {
	case failing && !was:
		m.logger.Warn("Remote is unavailable", "error", err)
	case !failing && was:
		m.logger.Info("Remote is back online")
	}
}

func fieldIndex(field string) int {
	for i, f := range Fields {
		if f == field {
			return i
		}
	}
	return -1
}
