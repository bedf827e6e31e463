package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/ffview/internal/frames"
	"github.com/smazurov/ffview/internal/logging"
	"github.com/smazurov/ffview/internal/metrics"
)

// State is the decoder lifecycle state.
type State string

// Decoder states. Failed and Stopped are terminal.
const (
	StateIdle      State = "idle"
	StateOpening   State = "opening"
	StateStreaming State = "streaming"
	StateStopping  State = "stopping"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

// Default shutdown timings.
const (
	DefaultGrace     = 500 * time.Millisecond
	DefaultKillGrace = 100 * time.Millisecond
)

// StateFunc is called on every state transition, outside of any lock.
type StateFunc func(address string, old, new State, err error)

// Stats holds the decoder counters.
type Stats struct {
	Decoded         uint64 `json:"decoded"`
	Published       uint64 `json:"published"`
	DroppedNoBuffer uint64 `json:"dropped_no_buffer"`
	DroppedBehind   uint64 `json:"dropped_consumer_behind"`
	NonVideo        uint64 `json:"non_video_units"`
	Incomplete      uint64 `json:"incomplete_units"`
}

// Dropped returns the number of decoded frames that were not published.
func (s Stats) Dropped() uint64 {
	return s.DroppedNoBuffer + s.DroppedBehind
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithOutput sets the channel decoded frames are published on. Ownership of
// a published handle passes to the receiver, which must release it.
func WithOutput(ch chan *frames.Handle) Option {
	return func(d *Decoder) { d.out = ch }
}

// WithGrace sets how long Stop waits for a cooperative exit before forcing
// the input closed, and how long it then waits for the loop to finish.
func WithGrace(grace, killGrace time.Duration) Option {
	return func(d *Decoder) {
		d.grace = grace
		d.killGrace = killGrace
	}
}

// OnStateChange registers a state transition callback.
func OnStateChange(fn StateFunc) Option {
	return func(d *Decoder) { d.onState = fn }
}

// Decoder runs one decode session. It is started once; a new session needs
// a new Decoder.
type Decoder struct {
	source    Source
	pool      *frames.Pool
	out       chan *frames.Handle
	grace     time.Duration
	killGrace time.Duration
	onState   StateFunc
	logger    *slog.Logger

	mu      sync.Mutex
	state   State
	address string
	err     error
	input   Input
	cancel  context.CancelFunc
	done    chan struct{}

	inputClosed bool
	stopping    atomic.Bool

	decoded, published             atomic.Uint64
	droppedNoBuffer, droppedBehind atomic.Uint64
	nonVideo, incomplete           atomic.Uint64
}

// New creates an idle decoder reading from source into buffers of pool.
func New(source Source, pool *frames.Pool, opts ...Option) *Decoder {
	d := &Decoder{
		source:    source,
		pool:      pool,
		grace:     DefaultGrace,
		killGrace: DefaultKillGrace,
		logger:    logging.GetLogger("decoder"),
		state:     StateIdle,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.out == nil {
		d.out = make(chan *frames.Handle, pool.Size())
	}
	return d
}

// Frames returns the channel decoded frames are published on.
func (d *Decoder) Frames() <-chan *frames.Handle {
	return d.out
}

// Start opens address and runs the decode loop in the background. It
// returns immediately; failures are reported through the state.
func (d *Decoder) Start(ctx context.Context, address string) error {
	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	d.address = address
	d.cancel = cancel
	d.state = StateOpening
	d.mu.Unlock()

	d.notify(address, StateIdle, StateOpening, nil)
	go d.run(ctx, address)
	return nil
}

// Stop asks the loop to exit after the current unit. If it has not exited
// within the grace period the input is closed to unblock it. Stop returns
// once the loop has exited or the kill grace has elapsed.
func (d *Decoder) Stop() {
	d.mu.Lock()
	state := d.state
	cancel := d.cancel
	if state == StateIdle {
		d.state = StateStopped
		close(d.done)
	}
	d.mu.Unlock()

	switch state {
	case StateIdle:
		d.notify("", StateIdle, StateStopped, nil)
		return
	case StateStopped, StateFailed:
		return
	}

	d.stopping.Store(true)
	d.setState(StateStopping, nil)

	select {
	case <-d.done:
		return
	case <-time.After(d.grace):
	}

	d.logger.Warn("Decoder did not stop in time, closing input", "grace", d.grace)
	cancel()
	go d.closeInput()

	select {
	case <-d.done:
	case <-time.After(d.killGrace):
		d.logger.Error("Decoder still running after forced close", "kill_grace", d.killGrace)
	}
}

// Done is closed when the decode loop has exited.
func (d *Decoder) Done() <-chan struct{} {
	return d.done
}

// State returns the current state.
func (d *Decoder) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Err returns the error that made the decoder fail, if any.
func (d *Decoder) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Address returns the stream address.
func (d *Decoder) Address() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.address
}

// Stats returns a snapshot of the counters.
func (d *Decoder) Stats() Stats {
	return Stats{
		Decoded:         d.decoded.Load(),
		Published:       d.published.Load(),
		DroppedNoBuffer: d.droppedNoBuffer.Load(),
		DroppedBehind:   d.droppedBehind.Load(),
		NonVideo:        d.nonVideo.Load(),
		Incomplete:      d.incomplete.Load(),
	}
}

func (d *Decoder) setState(state State, err error) {
	d.mu.Lock()
	old := d.state
	switch {
	case old == state:
		d.mu.Unlock()
		return
	case old == StateStopped || old == StateFailed:
		d.mu.Unlock()
		return
	case old == StateStopping && (state == StateOpening || state == StateStreaming):
		d.mu.Unlock()
		return
	}
	d.state = state
	if err != nil {
		d.err = err
	}
	address := d.address
	d.mu.Unlock()

	d.notify(address, old, state, err)
}

func (d *Decoder) notify(address string, old, state State, err error) {
	d.logger.Debug("Decoder state changed", "address", address, "from", old, "to", state)
	if d.onState != nil {
		d.onState(address, old, state, err)
	}
}

func (d *Decoder) run(ctx context.Context, address string) {
	defer close(d.done)
	defer d.cancel()

	state, err := d.decode(ctx, address)
	if state == StateFailed && d.stopping.Load() {
		state, err = StateStopped, nil
	}
	if err != nil {
		var openErr *OpenError
		if errors.As(err, &openErr) {
			d.logger.Error("Failed to open stream", "stage", openErr.Stage, "address", address, "error", openErr.Err)
		} else {
			d.logger.Error("Stream failed", "address", address, "error", err)
		}
	}
	d.setState(state, err)
}

func (d *Decoder) decode(ctx context.Context, address string) (State, error) {
	defer d.closeInput()

	input, err := d.source.Open(ctx, address)
	if err != nil {
		return StateFailed, &OpenError{Stage: StageOpenInput, Address: address, Err: err}
	}
	d.mu.Lock()
	if d.inputClosed {
		d.mu.Unlock()
		if err := input.Close(); err != nil {
			d.logger.Debug("Input close failed", "error", err)
		}
		return StateStopped, nil
	}
	d.input = input
	d.mu.Unlock()
	if d.stopping.Load() {
		return StateStopped, nil
	}

	stream, ok := FirstVideoStream(input.Streams())
	if !ok {
		return StateFailed, &OpenError{Stage: StageFindStream, Address: address}
	}
	codec, err := input.FindDecoder(stream)
	if err != nil {
		return StateFailed, &OpenError{Stage: StageFindDecoder, Address: address, Err: err}
	}
	defer func() {
		if err := codec.Close(); err != nil {
			d.logger.Debug("Codec close failed", "error", err)
		}
	}()
	if err := codec.Open(); err != nil {
		return StateFailed, &OpenError{Stage: StageOpenCodec, Address: address, Err: err}
	}

	d.logger.Info("Streaming", "address", address, "codec", stream.Codec,
		"width", stream.Width, "height", stream.Height, "format", stream.PixelFormat.String())
	d.setState(StateStreaming, nil)

	for !d.stopping.Load() {
		unit, err := input.ReadUnit()
		if err != nil {
			if errors.Is(err, io.EOF) || d.stopping.Load() {
				return StateStopped, nil
			}
			return StateFailed, fmt.Errorf("read %s: %w", address, err)
		}
		d.handleUnit(stream, codec, unit)
	}
	return StateStopped, nil
}

func (d *Decoder) handleUnit(stream StreamInfo, codec Codec, unit Unit) {
	if unit.StreamIndex != stream.Index {
		d.nonVideo.Add(1)
		metrics.IncUnitsSkipped("non_video")
		return
	}

	frame, ok, err := codec.Decode(unit)
	if err != nil {
		d.logger.Debug("Decode error", "error", err)
	}
	if err != nil || !ok {
		d.incomplete.Add(1)
		metrics.IncUnitsSkipped("incomplete")
		return
	}
	d.decoded.Add(1)
	metrics.IncFramesDecoded()

	buf, ok := d.pool.Acquire()
	if !ok {
		d.droppedNoBuffer.Add(1)
		metrics.IncFramesDropped("no_buffer")
		return
	}
	if err := buf.Fill(frame); err != nil {
		buf.Release()
		d.logger.Debug("Discarding frame", "width", frame.Width, "height", frame.Height, "error", err)
		d.incomplete.Add(1)
		metrics.IncUnitsSkipped("incomplete")
		return
	}

	select {
	case d.out <- buf:
		d.published.Add(1)
	default:
		buf.Release()
		d.droppedBehind.Add(1)
		metrics.IncFramesDropped("consumer_behind")
	}
}

// closeInput closes the input once, from the loop or from a forced Stop. An
// input opened after a forced close is closed by the loop itself.
func (d *Decoder) closeInput() {
	d.mu.Lock()
	input := d.input
	d.input = nil
	d.inputClosed = true
	d.mu.Unlock()

	if input == nil {
		return
	}
	if err := input.Close(); err != nil {
		d.logger.Debug("Input close failed", "error", err)
	}
}
