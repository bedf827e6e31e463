package session

import (
	"context"
	"fmt"
	"time"

	"github.com/smazurov/ffview/internal/events"
	"github.com/smazurov/ffview/internal/frames"
	"github.com/smazurov/ffview/internal/metrics"
	"github.com/smazurov/ffview/internal/transform"
	"github.com/smazurov/ffview/internal/viewport"
)

const (
	// maxTicks is the number of frame intervals averaged for the frame rate.
	maxTicks = 10
	// fpsCheckInterval is how often a stalled stream is detected.
	fpsCheckInterval = 100 * time.Millisecond
	// statsEvery is the number of checks between frame stats events.
	statsEvery = 10
)

// fpsCounter keeps a rolling sum of the last maxTicks frame intervals.
type fpsCounter struct {
	ticks [maxTicks]time.Duration
	sum   time.Duration
	index int
}

func (f *fpsCounter) add(elapsed time.Duration) float64 {
	f.sum -= f.ticks[f.index]
	f.sum += elapsed
	f.ticks[f.index] = elapsed
	f.index = (f.index + 1) % maxTicks
	if f.sum <= 0 {
		return 0
	}
	return maxTicks / f.sum.Seconds()
}

func fpsLabel(fps float64, limited bool) string {
	if limited {
		return fmt.Sprintf("%.1f (limited)", fps)
	}
	return fmt.Sprintf("%.1f", fps)
}

func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer s.teardown()

	ticker := time.NewTicker(fpsCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case h := <-s.raw:
			s.handleFrame(h, time.Now())
		case <-s.wake:
			s.render(viewport.Render(s.pending.Swap(0)))
		case now := <-ticker.C:
			s.checkRate(now)
		}
	}
}

// handleFrame takes ownership of a raw frame from the decoder.
func (s *Session) handleFrame(h *frames.Handle, now time.Time) {
	elapsed := now.Sub(s.lastFrameAt)
	if s.lastRaw != nil && s.view.Backend() == transform.BackendFallback && elapsed < s.cfg.FallbackInterval {
		s.skipped = true
		h.Release()
		return
	}

	fps := 0.0
	if !s.lastFrameAt.IsZero() {
		fps = s.ticks.add(elapsed)
	}
	s.lastFrameAt = now

	s.statsMu.Lock()
	s.fps = fps
	s.limited = s.skipped
	s.statsMu.Unlock()
	s.skipped = false
	metrics.SetDisplayFPS(fps)

	if s.lastRaw != nil {
		s.lastRaw.Release()
	}
	s.lastRaw = h
	s.retransform()
}

func (s *Session) render(r viewport.Render) {
	switch r {
	case viewport.RenderRetransform:
		s.retransform()
	case viewport.RenderRepaint:
		if s.lastDisplay != nil {
			s.present(s.lastDisplay, s.view.Snapshot())
		}
	}
}

// retransform rebuilds the display frame from the last raw frame. When no
// display buffer is free the previous display frame stays.
func (s *Session) retransform() {
	if s.lastRaw == nil || s.lastRaw.Width() <= 0 || s.lastRaw.Height() <= 0 {
		return
	}

	snap := s.view.Snapshot()
	display, ok := s.makeDisplay(s.lastRaw, snap)
	if !ok {
		s.logger.Debug("No free display buffer, skipping frame")
		return
	}
	if s.lastDisplay != nil {
		s.lastDisplay.Release()
	}
	s.lastDisplay = display

	w, h := display.Width(), display.Height()
	if w != snap.ImageWidth || h != snap.ImageHeight {
		s.logger.Info("Image size changed", "width", w, "height", h)
		s.view.SetImageSize(w, h)
		snap = s.view.Snapshot()
		s.statsMu.Lock()
		s.width, s.height = w, h
		s.statsMu.Unlock()
	}

	transform.OverlayGrid(display, snap.Grid(), s.view.Backend())
	s.present(display, snap)
}

// makeDisplay converts raw for the active backend. Frames too large for the
// overlay backend are converted to RGB instead.
func (s *Session) makeDisplay(raw *frames.Handle, snap viewport.Snapshot) (*frames.Handle, bool) {
	format := s.view.Backend().OutputFormat()
	if format == frames.FormatYUVJ420P && (raw.Width() > s.cfg.OverlayMaxWidth || raw.Height() > s.cfg.OverlayMaxHeight) {
		s.logger.Debug("Image too big, using RGB fallback",
			"width", raw.Width(), "height", raw.Height(),
			"max_width", s.cfg.OverlayMaxWidth, "max_height", s.cfg.OverlayMaxHeight)
		format = frames.FormatRGB24
	}
	if snap.FalseColor != transform.ModeOff {
		return s.transformer.FalseColor(raw, format, snap.FalseColor)
	}
	return s.transformer.FormatConvert(raw, format)
}

func (s *Session) present(display *frames.Handle, snap viewport.Snapshot) {
	s.statsMu.Lock()
	s.displayed++
	s.statsMu.Unlock()
	if s.presenter != nil {
		s.presenter.Present(display, snap)
	}
}

// checkRate reports a zero frame rate once no frame has arrived for one and
// a half frame intervals, and periodically publishes the frame stats.
func (s *Session) checkRate(now time.Time) {
	s.statsMu.Lock()
	fps := s.fps
	if fps > 0 && now.Sub(s.lastFrameAt).Seconds() > 1.5/fps {
		s.fps = 0
		fps = 0
		metrics.SetDisplayFPS(0)
	}
	s.statsMu.Unlock()

	metrics.SetPoolInUse(s.rawPool.Name(), s.rawPool.Stats().InUse)
	metrics.SetPoolInUse(s.displayPool.Name(), s.displayPool.Stats().InUse)

	s.sinceStats++
	if s.sinceStats < statsEvery || s.bus == nil {
		return
	}
	s.sinceStats = 0

	st := s.Status()
	s.bus.Publish(events.FrameStatsEvent{
		FPS:       fps,
		Limited:   st.Limited,
		Decoded:   st.Decoder.Decoded,
		Dropped:   st.Decoder.Dropped(),
		Timestamp: now.Format(time.RFC3339),
	})
}

// teardown releases the frames held by the session and drains frames the
// decoder published but nobody consumed.
func (s *Session) teardown() {
	if s.lastRaw != nil {
		s.lastRaw.Release()
		s.lastRaw = nil
	}
	if s.lastDisplay != nil {
		s.lastDisplay.Release()
		s.lastDisplay = nil
	}
	for {
		select {
		case h := <-s.raw:
			h.Release()
		default:
			return
		}
	}
}
