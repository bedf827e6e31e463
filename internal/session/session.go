// Package session runs one viewer session: a decoder feeding raw frames to a
// goroutine that turns them into display frames and hands those to a
// presenter. View changes re-transform the last raw frame without waiting
// for a new decode.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/ffview/internal/decoder"
	"github.com/smazurov/ffview/internal/events"
	"github.com/smazurov/ffview/internal/frames"
	"github.com/smazurov/ffview/internal/logging"
	"github.com/smazurov/ffview/internal/transform"
	"github.com/smazurov/ffview/internal/viewport"
)

var (
	// ErrNotStarted is returned by Reset before Start.
	ErrNotStarted = errors.New("session not started")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrNoAddress is returned by Reset when no stream address is known.
	ErrNoAddress = errors.New("no stream address")
)

// Presenter shows display frames. Present runs on the session goroutine and
// must not block for long; a presenter that keeps the handle after
// returning must Reserve it and Release it later.
type Presenter interface {
	Present(frame *frames.Handle, view viewport.Snapshot)
}

// Sources picks the frame source for a stream address.
type Sources interface {
	ForAddress(address string) decoder.Source
}

// Config holds the session tuning.
type Config struct {
	// RawBuffers and DisplayBuffers size the two frame pools.
	RawBuffers     int
	DisplayBuffers int
	// MaxWidth and MaxHeight bound the frame size the pools can hold.
	MaxWidth  int
	MaxHeight int
	// OverlayMaxWidth and OverlayMaxHeight are the largest frames the overlay
	// backend presents. Larger frames are shown as RGB.
	OverlayMaxWidth  int
	OverlayMaxHeight int
	// FallbackInterval is the shortest time between frames shown by the
	// fallback backend.
	FallbackInterval time.Duration
	// Grace and KillGrace bound decoder shutdown.
	Grace     time.Duration
	KillGrace time.Duration
}

// DefaultConfig returns the default session settings.
func DefaultConfig() Config {
	return Config{
		RawBuffers:       frames.DefaultBuffers,
		DisplayBuffers:   frames.DefaultBuffers,
		MaxWidth:         frames.MaxWidth,
		MaxHeight:        frames.MaxHeight,
		OverlayMaxWidth:  2048,
		OverlayMaxHeight: 2048,
		FallbackInterval: 100 * time.Millisecond,
		Grace:            decoder.DefaultGrace,
		KillGrace:        decoder.DefaultKillGrace,
	}
}

// Options contains the dependencies of a Session.
type Options struct {
	Config    Config
	Sources   Sources
	View      *viewport.Controller
	Presenter Presenter
	EventBus  *events.Bus
}

// Status is a snapshot of the session for status reporting.
type Status struct {
	Address     string           `json:"address"`
	State       decoder.State    `json:"state"`
	Error       string           `json:"error,omitempty"`
	Backend     string           `json:"backend"`
	FPS         float64          `json:"fps"`
	FPSLabel    string           `json:"fps_label"`
	Limited     bool             `json:"limited"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
	Displayed   uint64           `json:"displayed"`
	Decoder     decoder.Stats    `json:"decoder"`
	RawPool     frames.PoolStats `json:"raw_pool"`
	DisplayPool frames.PoolStats `json:"display_pool"`
}

// Session owns the frame pools, the current decoder and the goroutine that
// produces display frames.
type Session struct {
	cfg         Config
	sources     Sources
	view        *viewport.Controller
	presenter   Presenter
	bus         *events.Bus
	logger      *slog.Logger
	rawPool     *frames.Pool
	displayPool *frames.Pool
	transformer *transform.Transformer
	raw         chan *frames.Handle

	pending atomic.Int32
	wake    chan struct{}

	resetMu sync.Mutex

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	dec     *decoder.Decoder
	address string

	statsMu   sync.Mutex
	fps       float64
	limited   bool
	width     int
	height    int
	displayed uint64

	// Owned by the session goroutine.
	lastRaw     *frames.Handle
	lastDisplay *frames.Handle
	lastFrameAt time.Time
	ticks       fpsCounter
	skipped     bool
	sinceStats  int
}

// New creates a session. Frames flow once Start is called.
func New(opts *Options) *Session {
	cfg := opts.Config
	def := DefaultConfig()
	if cfg.RawBuffers <= 0 {
		cfg.RawBuffers = def.RawBuffers
	}
	if cfg.DisplayBuffers <= 0 {
		cfg.DisplayBuffers = def.DisplayBuffers
	}
	if cfg.MaxWidth <= 0 || cfg.MaxHeight <= 0 {
		cfg.MaxWidth, cfg.MaxHeight = def.MaxWidth, def.MaxHeight
	}
	if cfg.OverlayMaxWidth <= 0 || cfg.OverlayMaxHeight <= 0 {
		cfg.OverlayMaxWidth, cfg.OverlayMaxHeight = def.OverlayMaxWidth, def.OverlayMaxHeight
	}
	if cfg.FallbackInterval <= 0 {
		cfg.FallbackInterval = def.FallbackInterval
	}
	if cfg.Grace <= 0 {
		cfg.Grace, cfg.KillGrace = def.Grace, def.KillGrace
	}

	capacity := frames.Capacity(cfg.MaxWidth, cfg.MaxHeight)
	rawPool := frames.NewPool("raw", cfg.RawBuffers, capacity)
	displayPool := frames.NewPool("display", cfg.DisplayBuffers, capacity)

	view := opts.View
	if view == nil {
		view = viewport.New(viewport.WithBus(opts.EventBus))
	}

	s := &Session{
		cfg:         cfg,
		sources:     opts.Sources,
		view:        view,
		presenter:   opts.Presenter,
		bus:         opts.EventBus,
		logger:      logging.GetLogger("session"),
		rawPool:     rawPool,
		displayPool: displayPool,
		transformer: transform.New(displayPool),
		raw:         make(chan *frames.Handle, cfg.RawBuffers),
		wake:        make(chan struct{}, 1),
	}
	view.OnRender(s.Invalidate)
	return s
}

// View returns the viewport controller of the session.
func (s *Session) View() *viewport.Controller {
	return s.view
}

// Transformer returns the transformer producing display frames.
func (s *Session) Transformer() *transform.Transformer {
	return s.transformer
}

// Start runs the session goroutine and opens address. The session lives
// until ctx is cancelled or Stop is called. An empty address starts the
// session without a stream.
func (s *Session) Start(ctx context.Context, address string) error {
	s.mu.Lock()
	if s.ctx != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	runCtx, done := s.ctx, s.done
	s.mu.Unlock()

	go s.run(runCtx, done)

	if address == "" {
		return nil
	}
	return s.Reset(address)
}

// Reset stops the running decoder and starts a new one on address, or on
// the current address when address is empty. The zoom returns to 0.
func (s *Session) Reset(address string) error {
	s.resetMu.Lock()
	defer s.resetMu.Unlock()

	s.mu.Lock()
	ctx, old := s.ctx, s.dec
	if address == "" {
		address = s.address
	}
	s.mu.Unlock()

	if ctx == nil {
		return ErrNotStarted
	}
	if address == "" {
		return ErrNoAddress
	}
	if ctx.Err() != nil {
		return fmt.Errorf("reset: %w", ctx.Err())
	}

	if old != nil {
		old.Stop()
	}

	s.logger.Info("Opening stream", "address", address)
	dec := decoder.New(s.sources.ForAddress(address), s.rawPool,
		decoder.WithOutput(s.raw),
		decoder.WithGrace(s.cfg.Grace, s.cfg.KillGrace),
		decoder.OnStateChange(s.onDecoderState))

	s.mu.Lock()
	s.dec = dec
	s.address = address
	s.mu.Unlock()

	s.view.SetZoom(0)
	return dec.Start(ctx, address)
}

// Stop stops the decoder and the session goroutine, and releases the frames
// the session holds.
func (s *Session) Stop() {
	s.resetMu.Lock()
	defer s.resetMu.Unlock()

	s.mu.Lock()
	dec, cancel, done := s.dec, s.cancel, s.done
	s.mu.Unlock()

	if dec != nil {
		dec.Stop()
	}
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the session goroutine has exited. It is nil before
// Start.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Invalidate asks the session goroutine to re-render. It never blocks;
// requests made before the goroutine wakes are merged.
func (s *Session) Invalidate(r viewport.Render) {
	for {
		cur := s.pending.Load()
		if viewport.Render(cur) >= r || s.pending.CompareAndSwap(cur, int32(r)) {
			break
		}
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Status returns the current session status.
func (s *Session) Status() Status {
	s.mu.Lock()
	dec, address := s.dec, s.address
	s.mu.Unlock()

	st := Status{
		Address:     address,
		State:       decoder.StateIdle,
		Backend:     s.view.Backend().String(),
		RawPool:     s.rawPool.Stats(),
		DisplayPool: s.displayPool.Stats(),
	}
	if dec != nil {
		st.State = dec.State()
		st.Decoder = dec.Stats()
		if err := dec.Err(); err != nil {
			st.Error = err.Error()
		}
	}

	s.statsMu.Lock()
	st.FPS, st.Limited = s.fps, s.limited
	st.Width, st.Height = s.width, s.height
	st.Displayed = s.displayed
	s.statsMu.Unlock()
	st.FPSLabel = fpsLabel(st.FPS, st.Limited)
	return st
}

func (s *Session) onDecoderState(address string, _, state decoder.State, err error) {
	switch state {
	case decoder.StateFailed:
		s.logger.Error("Stream failed", "address", address, "error", err)
	case decoder.StateStreaming:
		s.logger.Info("Stream started", "address", address)
	case decoder.StateStopped:
		s.logger.Info("Stream stopped", "address", address)
	}
	if s.bus == nil {
		return
	}
	ev := events.SessionStateChangedEvent{
		Address:   address,
		State:     string(state),
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(ev)
}
