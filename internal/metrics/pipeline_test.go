package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDecoderCounters(t *testing.T) {
	before := GetPipelineMetrics()
	dropsBefore := testutil.ToFloat64(framesDropped.WithLabelValues("no_buffer"))

	IncFramesDecoded()
	IncFramesDecoded()
	IncFramesDropped("no_buffer")
	IncUnitsSkipped("non_video")

	after := GetPipelineMetrics()
	if got := after.FramesDecoded - before.FramesDecoded; got != 2 {
		t.Errorf("FramesDecoded delta = %v, want 2", got)
	}
	if got := after.FramesDropped - before.FramesDropped; got != 1 {
		t.Errorf("FramesDropped delta = %v, want 1", got)
	}
	if got := after.UnitsSkipped - before.UnitsSkipped; got != 1 {
		t.Errorf("UnitsSkipped delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(framesDropped.WithLabelValues("no_buffer")) - dropsBefore; got != 1 {
		t.Errorf("frames_dropped_total{no_buffer} delta = %v, want 1", got)
	}
}

func TestDisplayFPS(t *testing.T) {
	SetDisplayFPS(24.5)
	if got := testutil.ToFloat64(displayFPS); got != 24.5 {
		t.Errorf("displayFPS = %v, want 24.5", got)
	}
	if got := GetPipelineMetrics().FPS; got != 24.5 {
		t.Errorf("cached FPS = %v, want 24.5", got)
	}
}

func TestPoolAndTransformMetrics(t *testing.T) {
	SetPoolInUse("display", 3)
	if got := testutil.ToFloat64(poolInUse.WithLabelValues("display")); got != 3 {
		t.Errorf("poolInUse = %v, want 3", got)
	}

	before := testutil.ToFloat64(transformSkipped.WithLabelValues("no_buffer"))
	IncTransformSkipped("no_buffer")
	if got := testutil.ToFloat64(transformSkipped.WithLabelValues("no_buffer")) - before; got != 1 {
		t.Errorf("transformSkipped delta = %v, want 1", got)
	}

	ObserveTransform("convert", 2*time.Millisecond)
	if n := testutil.CollectAndCount(transformDuration); n == 0 {
		t.Error("transform histogram has no series")
	}
}

func TestMetricsConcurrency(t *testing.T) {
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			SetDisplayFPS(v)
			IncFramesDecoded()
			_ = GetPipelineMetrics()
		}(float64(i))
	}
	wg.Wait()
}

func TestFFmpegProgress(t *testing.T) {
	SetFFmpegProgress(FFmpegProgress{Frame: 120, FPS: 29.97, DroppedFrames: 3, DuplicateFrames: 1, Speed: 1.25})
	if got := testutil.ToFloat64(ffmpegFPS); got != 29.97 {
		t.Errorf("ffmpegFPS = %v, want 29.97", got)
	}
	if got := testutil.ToFloat64(ffmpegSpeed); got != 1.25 {
		t.Errorf("ffmpegSpeed = %v, want 1.25", got)
	}
	if got := GetPipelineMetrics().FFmpeg.Frame; got != 120 {
		t.Errorf("cached frame = %d, want 120", got)
	}

	ResetFFmpegProgress()
	if got := testutil.ToFloat64(ffmpegDroppedFrames); got != 0 {
		t.Errorf("ffmpegDroppedFrames after reset = %v, want 0", got)
	}
}
