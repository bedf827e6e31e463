package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ffmpegFPS = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ffview",
		Subsystem: "ffmpeg",
		Name:      "fps",
		Help:      "Decode frame rate reported by ffmpeg",
	})

	ffmpegDroppedFrames = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ffview",
		Subsystem: "ffmpeg",
		Name:      "dropped_frames",
		Help:      "Frames dropped by ffmpeg since the decode started",
	})

	ffmpegDuplicateFrames = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ffview",
		Subsystem: "ffmpeg",
		Name:      "duplicate_frames",
		Help:      "Frames duplicated by ffmpeg since the decode started",
	})

	ffmpegSpeed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ffview",
		Subsystem: "ffmpeg",
		Name:      "processing_speed",
		Help:      "ffmpeg processing speed multiplier",
	})
)

// FFmpegProgress is one -progress block of the running ffmpeg decode.
type FFmpegProgress struct {
	Frame           int64
	FPS             float64
	DroppedFrames   float64
	DuplicateFrames float64
	Speed           float64
}

// SetFFmpegProgress records the latest progress block.
func SetFFmpegProgress(p FFmpegProgress) {
	ffmpegFPS.Set(p.FPS)
	ffmpegDroppedFrames.Set(p.DroppedFrames)
	ffmpegDuplicateFrames.Set(p.DuplicateFrames)
	ffmpegSpeed.Set(p.Speed)
	updateCache(func(m *PipelineMetrics) { m.FFmpeg = p })
}

// ResetFFmpegProgress zeroes the ffmpeg gauges when the decode ends.
func ResetFFmpegProgress() {
	SetFFmpegProgress(FFmpegProgress{})
}
