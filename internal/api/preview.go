package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/AlexxIT/go2rtc/pkg/mjpeg"

	"github.com/smazurov/ffview/internal/render"
	"github.com/smazurov/ffview/ui"
)

// registerPreviewRoutes serves the presentation surface and the viewer page.
// These are plain handlers: huma has no model for an endless multipart
// response.
func (s *Server) registerPreviewRoutes() {
	s.mux.HandleFunc("GET /{$}", s.requireAuth(ui.Handler().ServeHTTP))
	s.mux.HandleFunc("GET /snapshot.jpg", s.requireAuth(s.handleSnapshot))
	s.mux.HandleFunc("GET /stream.mjpg", s.requireAuth(s.handleStream))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	data, _, err := s.surface.JPEG()
	status := http.StatusOK
	switch {
	case errors.Is(err, render.ErrNoFrame):
		status = http.StatusServiceUnavailable
		http.Error(w, err.Error(), status)
	case err != nil:
		status = http.StatusInternalServerError
		http.Error(w, err.Error(), status)
	default:
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(data)
	}
	logRequest(r.Context(), r.Method, r.URL.Path, r.URL.RawQuery, r.RemoteAddr, status, time.Since(start))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	detach := s.surface.Attach()
	defer detach()
	s.logger.Info("Preview client connected", "remote_addr", r.RemoteAddr)

	mw := mjpeg.NewWriter(w)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	frames, err := s.streamFrames(r.Context(), mw)
	s.logger.Info("Preview client disconnected", "remote_addr", r.RemoteAddr, "frames", frames, "error", err)
}

// streamFrames writes every new surface frame as one multipart part until the
// client goes away. The writer flushes after each part.
func (s *Server) streamFrames(ctx context.Context, mw io.Writer) (int, error) {
	var seq uint64
	sent := 0
	for {
		data, next, err := s.surface.Next(ctx, seq)
		if err != nil {
			if ctx.Err() != nil {
				return sent, nil
			}
			return sent, err
		}
		seq = next

		if _, err := mw.Write(data); err != nil {
			return sent, fmt.Errorf("write frame: %w", err)
		}
		sent++
	}
}
