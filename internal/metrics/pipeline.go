// Package metrics provides Prometheus metrics for the frame pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ffview",
		Subsystem: "decoder",
		Name:      "frames_decoded_total",
		Help:      "Frames produced by the codec",
	})

	framesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ffview",
		Subsystem: "decoder",
		Name:      "frames_dropped_total",
		Help:      "Decoded frames dropped before reaching the display pipeline",
	}, []string{"reason"})

	unitsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ffview",
		Subsystem: "decoder",
		Name:      "units_skipped_total",
		Help:      "Compressed units discarded without producing a frame",
	}, []string{"reason"})

	displayFPS = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ffview",
		Subsystem: "display",
		Name:      "fps",
		Help:      "Rolling display frame rate",
	})

	transformSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ffview",
		Subsystem: "transform",
		Name:      "skipped_total",
		Help:      "Display frames not produced",
	}, []string{"reason"})

	transformDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ffview",
		Subsystem: "transform",
		Name:      "duration_seconds",
		Help:      "Time spent producing a display frame",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	}, []string{"op"})

	poolInUse = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ffview",
		Subsystem: "pool",
		Name:      "buffers_in_use",
		Help:      "Pool buffers currently referenced",
	}, []string{"pool"})

	mirrorErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ffview",
		Subsystem: "mirror",
		Name:      "errors_total",
		Help:      "Failed remote parameter reads and writes",
	}, []string{"op"})

	// Local cache for API and SSE access.
	cache   PipelineMetrics
	cacheMu sync.RWMutex
)

// PipelineMetrics holds current values for the status API.
type PipelineMetrics struct {
	FramesDecoded float64
	FramesDropped float64
	UnitsSkipped  float64
	FPS           float64
	FFmpeg        FFmpegProgress
}

// IncFramesDecoded counts a frame produced by the codec.
func IncFramesDecoded() {
	framesDecoded.Inc()
	updateCache(func(m *PipelineMetrics) { m.FramesDecoded++ })
}

// IncFramesDropped counts a frame dropped for reason ("no_buffer",
// "consumer_behind").
func IncFramesDropped(reason string) {
	framesDropped.WithLabelValues(reason).Inc()
	updateCache(func(m *PipelineMetrics) { m.FramesDropped++ })
}

// IncUnitsSkipped counts a unit discarded for reason ("non_video",
// "incomplete").
func IncUnitsSkipped(reason string) {
	unitsSkipped.WithLabelValues(reason).Inc()
	updateCache(func(m *PipelineMetrics) { m.UnitsSkipped++ })
}

// SetDisplayFPS sets the current display frame rate.
func SetDisplayFPS(fps float64) {
	displayFPS.Set(fps)
	updateCache(func(m *PipelineMetrics) { m.FPS = fps })
}

// IncTransformSkipped counts a display frame that could not be produced.
func IncTransformSkipped(reason string) {
	transformSkipped.WithLabelValues(reason).Inc()
}

// ObserveTransform records the duration of a transform operation.
func ObserveTransform(op string, d time.Duration) {
	transformDuration.WithLabelValues(op).Observe(d.Seconds())
}

// SetPoolInUse sets the number of referenced buffers of a pool.
func SetPoolInUse(pool string, n int) {
	poolInUse.WithLabelValues(pool).Set(float64(n))
}

// IncMirrorErrors counts a failed remote operation ("read", "write").
func IncMirrorErrors(op string) {
	mirrorErrors.WithLabelValues(op).Inc()
}

// GetPipelineMetrics returns a copy of the current values.
func GetPipelineMetrics() PipelineMetrics {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	return cache
}

func updateCache(update func(*PipelineMetrics)) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	update(&cache)
}
