// Package source provides the frame sources the decoder reads from: an
// ffmpeg subprocess for any address ffmpeg understands and an in-process
// reader for MJPEG over HTTP.
package source

import (
	"context"
	"strings"

	"github.com/smazurov/ffview/internal/decoder"
	"github.com/smazurov/ffview/internal/ffmpeg"
)

// MJPEGScheme prefixes addresses read by the MJPEG source.
const MJPEGScheme = "mjpeg+"

// Config holds the settings shared by the sources.
type Config struct {
	// FFmpegOptions are applied to ffprobe and ffmpeg inputs.
	FFmpegOptions []ffmpeg.OptionType
	// FFmpegLogLevel is the ffmpeg stderr log level.
	FFmpegLogLevel string
	// ProgressDir holds the ffmpeg progress sockets. Empty disables them.
	ProgressDir string
}

// Router picks a source by address.
type Router struct {
	ffmpeg *FFmpeg
	mjpeg  *MJPEG
}

// NewRouter creates a router over the ffmpeg and MJPEG sources.
func NewRouter(cfg Config) *Router {
	ff := NewFFmpeg(cfg.FFmpegOptions, cfg.FFmpegLogLevel)
	ff.SetProgressDir(cfg.ProgressDir)
	return &Router{
		ffmpeg: ff,
		mjpeg:  NewMJPEG(nil),
	}
}

// ForAddress returns the source able to open address.
func (r *Router) ForAddress(address string) decoder.Source {
	if IsMJPEG(address) {
		return r.mjpeg
	}
	return r.ffmpeg
}

// Open opens address with the matching source.
func (r *Router) Open(ctx context.Context, address string) (decoder.Input, error) {
	return r.ForAddress(address).Open(ctx, address)
}

// IsMJPEG reports whether address selects the MJPEG source.
func IsMJPEG(address string) bool {
	return strings.HasPrefix(address, MJPEGScheme+"http://") ||
		strings.HasPrefix(address, MJPEGScheme+"https://")
}
