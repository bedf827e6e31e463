package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"

	"github.com/smazurov/ffview/internal/frames"
	"github.com/smazurov/ffview/internal/logging"
	"github.com/smazurov/ffview/internal/metrics"
	"github.com/smazurov/ffview/internal/viewport"
)

// ErrNoFrame is returned before the first frame was presented.
var ErrNoFrame = errors.New("no frame presented yet")

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 80

// Options configures a Surface.
type Options struct {
	// Quality is the JPEG quality, 1 to 100.
	Quality int
	// Scaler is the interpolator used to scale the visible region.
	Scaler draw.Interpolator
}

// Surface keeps the latest composed frame and encodes it for clients. It
// implements the session presenter.
type Surface struct {
	quality int
	scaler  draw.Interpolator
	logger  *slog.Logger
	clients atomic.Int32

	mu      sync.Mutex
	canvas  *image.RGBA
	seq     uint64
	updated chan struct{}

	encMu      sync.Mutex
	encoded    []byte
	encodedSeq uint64
}

// New creates an empty surface.
func New(opts Options) *Surface {
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	if opts.Scaler == nil {
		opts.Scaler = draw.NearestNeighbor
	}
	return &Surface{
		quality: opts.Quality,
		scaler:  opts.Scaler,
		logger:  logging.GetLogger("render"),
		updated: make(chan struct{}),
	}
}

// Present composes h for view. The handle is not kept.
func (s *Surface) Present(h *frames.Handle, view viewport.Snapshot) {
	if h == nil || h.Width() <= 0 || h.Height() <= 0 {
		return
	}
	start := time.Now()
	canvas := Compose(h, view, s.scaler)
	metrics.ObserveTransform("compose", time.Since(start))

	s.mu.Lock()
	s.canvas = canvas
	s.seq++
	close(s.updated)
	s.updated = make(chan struct{})
	s.mu.Unlock()
}

// Image returns the latest composed frame and its sequence number.
func (s *Surface) Image() (*image.RGBA, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas, s.seq
}

// Attach registers a stream client. Call the returned function when the
// client goes away.
func (s *Surface) Attach() func() {
	n := s.clients.Add(1)
	s.logger.Debug("Stream client attached", "clients", n)
	var once sync.Once
	return func() {
		once.Do(func() {
			n := s.clients.Add(-1)
			s.logger.Debug("Stream client detached", "clients", n)
		})
	}
}

// Clients returns the number of attached stream clients.
func (s *Surface) Clients() int {
	return int(s.clients.Load())
}

// JPEG returns the latest frame encoded as JPEG. Each frame is encoded once
// however many clients ask for it.
func (s *Surface) JPEG() ([]byte, uint64, error) {
	s.encMu.Lock()
	defer s.encMu.Unlock()

	canvas, seq := s.Image()
	if canvas == nil {
		return nil, 0, ErrNoFrame
	}
	if seq == s.encodedSeq && s.encoded != nil {
		return s.encoded, seq, nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, 0, fmt.Errorf("encode JPEG: %w", err)
	}
	s.encoded, s.encodedSeq = buf.Bytes(), seq
	return s.encoded, seq, nil
}

// Next waits for a frame newer than after and returns it as JPEG.
func (s *Surface) Next(ctx context.Context, after uint64) ([]byte, uint64, error) {
	for {
		s.mu.Lock()
		seq, updated := s.seq, s.updated
		s.mu.Unlock()

		if seq > after {
			return s.JPEG()
		}
		select {
		case <-ctx.Done():
			return nil, after, ctx.Err()
		case <-updated:
		}
	}
}
